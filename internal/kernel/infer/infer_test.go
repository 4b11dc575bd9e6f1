package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/kerr"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/kernel/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func intTy() expr.Expr { return expr.MkConst("Int") }

func TestInferVarLiftsContextDomain(t *testing.T) {
	en := env.New()
	ctx := expr.Ctx{
		{NameHint: "x", Domain: intTy()},
		{NameHint: "y", Domain: expr.MkVar(0)}, // y : x, i.e. the just-bound Int
	}

	// Var(0) is y, bound at ctx[1]; its domain Var(0) (referring to x) must
	// be lifted by 1 to remain valid at this two-binder depth.
	got, err := Infer(en, nil, ctx, expr.MkVar(0))
	require.NoError(t, err)
	assert.Same(t, expr.MkVar(1), got)

	got, err = Infer(en, nil, ctx, expr.MkVar(1))
	require.NoError(t, err)
	assert.Same(t, intTy(), got)
}

func TestInferConstResolvesPostulateType(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("zero", intTy()))

	got, err := Infer(en, nil, nil, expr.MkConst("zero"))
	require.NoError(t, err)
	assert.Same(t, intTy(), got)
}

func TestInferConstUnknownNameFails(t *testing.T) {
	en := env.New()
	_, err := Infer(en, nil, nil, expr.MkConst("nope"))
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.UnknownName))
}

func TestInferSortIsNextSucc(t *testing.T) {
	en := env.New()
	got, err := Infer(en, nil, nil, expr.MkSort(expr.LZero()))
	require.NoError(t, err)
	assert.Same(t, expr.MkSort(expr.LSucc(expr.LZero())), got)
}

func TestInferLambdaProducesPi(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	lam := expr.MkLambda("x", expr.MkConst("Int"), expr.MkVar(0))

	got, err := Infer(en, nil, nil, lam)
	require.NoError(t, err)
	want := expr.MkPi("x", expr.MkConst("Int"), expr.MkConst("Int"))
	assert.Same(t, want, got)
}

func TestInferAppBetaReducesResultType(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("n", expr.MkConst("Int")))
	id := expr.MkLambda("x", expr.MkConst("Int"), expr.MkVar(0))
	app := expr.MkApp(id, expr.MkConst("n"))

	got, err := Infer(en, nil, nil, app)
	require.NoError(t, err)
	assert.Same(t, expr.MkConst("Int"), got)
}

func TestInferAppArgTypeMismatchFails(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("Bool", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("b", expr.MkConst("Bool")))
	id := expr.MkLambda("x", expr.MkConst("Int"), expr.MkVar(0))
	app := expr.MkApp(id, expr.MkConst("b"))

	_, err := Infer(en, nil, nil, app)
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.AppTypeMismatch))
}

func TestInferAppOnNonFunctionFails(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("n", intTy()))

	_, err := Infer(en, nil, nil, expr.MkApp(expr.MkConst("n"), intTy()))
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.FunctionExpected))
}

func TestInferPiIsImpredicativeInProp(t *testing.T) {
	en := env.New()
	// A lives in a large universe (its type is Sort(Succ^2(Zero))); P is a
	// proposition (its type is Sort(Zero)). Pi(x:A, P) still lands in
	// Sort(Zero): a proposition quantifying over a large type is still a
	// proposition.
	require.NoError(t, en.AddPostulate("A", expr.MkSort(expr.LSuccN(expr.LZero(), 2))))
	require.NoError(t, en.AddPostulate("P", expr.MkSort(expr.LZero())))
	pi := expr.MkPi("x", expr.MkConst("A"), expr.MkConst("P"))

	got, err := Infer(en, nil, nil, pi)
	require.NoError(t, err)
	assert.Same(t, expr.MkSort(expr.LZero()), got)
}

func TestInferPiTakesMaxWhenCodomainIsNotProp(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("B", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("Q", expr.MkSort(expr.LSucc(expr.LZero()))))
	pi := expr.MkPi("x", expr.MkConst("B"), expr.MkConst("Q"))

	got, err := Infer(en, nil, nil, pi)
	require.NoError(t, err)
	assert.Same(t, expr.MkSort(expr.LMax(expr.LZero(), expr.LSucc(expr.LZero()))), got)
}

func TestInferSigmaTakesPlainMax(t *testing.T) {
	en := env.New()
	// Same u (Succ(Zero)) and v (Zero) as would trigger Pi's impredicativity
	// collapse to Sort(Zero); Sigma keeps the uncollapsed Max instead, since
	// (unlike a Pi's codomain) its second component is actually present in
	// the term.
	require.NoError(t, en.AddPostulate("A", expr.MkSort(expr.LSucc(expr.LZero()))))
	require.NoError(t, en.AddPostulate("P", expr.MkSort(expr.LZero())))
	sigma := expr.MkSigma("x", expr.MkConst("A"), expr.MkConst("P"))

	got, err := Infer(en, nil, nil, sigma)
	require.NoError(t, err)
	assert.Same(t, expr.MkSort(expr.LMax(expr.LSucc(expr.LZero()), expr.LZero())), got)
}

func TestInferPairAndProj(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	sigmaTy := expr.MkSigma("x", expr.MkConst("Int"), expr.MkConst("Int"))
	pair := expr.MkPair(value.NewInt(1), value.NewInt(2), sigmaTy)

	got, err := Infer(en, nil, nil, pair)
	require.NoError(t, err)
	assert.Same(t, sigmaTy, got)

	firstTy, err := Infer(en, nil, nil, expr.MkProj(true, pair))
	require.NoError(t, err)
	assert.Same(t, expr.MkConst("Int"), firstTy)
}

func TestInferPairComponentMismatchFails(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("Bool", expr.MkSort(expr.LZero())))
	sigmaTy := expr.MkSigma("x", expr.MkConst("Int"), expr.MkConst("Int"))
	require.NoError(t, en.AddPostulate("b", expr.MkConst("Bool")))
	pair := expr.MkPair(expr.MkConst("b"), value.NewInt(2), sigmaTy)

	_, err := Infer(en, nil, nil, pair)
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.PairTypeMismatch))
}

func TestInferLetZetaReducesBodyType(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	// let x : Int = 5 in x -- the body Var(0) gets x's annotation lifted
	// past the binder, which is still Int since Int is closed; substituting
	// the let-bound value into that type leaves Int, so no Var(0) escapes to
	// the top level, where there is no such binder.
	letExpr := expr.MkLet("x", expr.MkConst("Int"), value.NewInt(5), expr.MkVar(0))

	got, err := Infer(en, nil, nil, letExpr)
	require.NoError(t, err)
	assert.Same(t, expr.MkConst("Int"), got)
}

func TestInferHEqIsPropositional(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("a", expr.MkConst("Int")))
	require.NoError(t, en.AddPostulate("b", expr.MkConst("Int")))
	heq := expr.MkHEq(expr.MkConst("a"), expr.MkConst("b"))

	got, err := Infer(en, nil, nil, heq)
	require.NoError(t, err)
	assert.Same(t, expr.MkSort(expr.LZero()), got)
}

func TestInferMetaVarAllocatesFreshTypeHole(t *testing.T) {
	en := env.New()
	m := mvar.New(en, nil, 64)
	mv := m.MkMetaVar(nil)

	got, err := Infer(en, m, nil, mv)
	require.NoError(t, err)
	assert.Equal(t, expr.KMetaVar, got.Kind())
	assert.NotSame(t, mv, got)
}

func TestInferValueReportsItsType(t *testing.T) {
	en := env.New()
	got, err := Infer(en, nil, nil, value.NewInt(3))
	require.NoError(t, err)
	assert.Same(t, intTy(), got)
}

func TestCheckSucceedsWhenConvertible(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, Check(en, nil, nil, expr.MkConst("Int"), expr.MkSort(expr.LZero())))
}

func TestCheckAcceptsCumulativeSort(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))

	// Int : Sort(Zero), i.e. Type(0); checking Int against Sort(Succ(Zero)),
	// i.e. Type(1), must succeed under cumulativity (Type(0) <= Type(1)).
	require.NoError(t, Check(en, nil, nil, expr.MkConst("Int"), expr.MkSort(expr.LSucc(expr.LZero()))))
}

func TestCheckRejectsReverseCumulativeSort(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Big", expr.MkSort(expr.LSucc(expr.LZero()))))

	// Big : Type(1) cannot be checked against Type(0): cumulativity only
	// flows upward.
	err := Check(en, nil, nil, expr.MkConst("Big"), expr.MkSort(expr.LZero()))
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.DefTypeMismatch))
}

func TestInferAppAcceptsCumulativeArgType(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	// f's domain is Sort(Succ(Zero)) (Type(1)); Int's own type is the
	// smaller Sort(Zero) (Type(0)). The application must still type-check
	// under cumulativity.
	f := expr.MkLambda("A", expr.MkSort(expr.LSucc(expr.LZero())), expr.MkConst("Int"))
	app := expr.MkApp(f, expr.MkConst("Int"))

	got, err := Infer(en, nil, nil, app)
	require.NoError(t, err)
	assert.Same(t, expr.MkSort(expr.LZero()), got)
}

func TestInferPairAcceptsCumulativeComponentType(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	// A Sigma field typed Type(1) must accept an Int (Type(0)) component.
	sigmaTy := expr.MkSigma("x", expr.MkSort(expr.LSucc(expr.LZero())), expr.MkConst("Int"))
	pair := expr.MkPair(expr.MkConst("Int"), value.NewInt(1), sigmaTy)

	got, err := Infer(en, nil, nil, pair)
	require.NoError(t, err)
	assert.Same(t, sigmaTy, got)
}

func TestCheckFailsWithDefTypeMismatch(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("Bool", expr.MkSort(expr.LZero())))

	err := Check(en, nil, nil, expr.MkConst("Int"), expr.MkConst("Bool"))
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.DefTypeMismatch))
}

func TestCheckFallsBackToUnifierForMetavarType(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("n", expr.MkConst("Int")))
	m := mvar.New(en, nil, 64)
	mv := m.MkMetaVar(nil)

	// Checking n against an unassigned metavariable type must reach the
	// unifier fallback and assign mv := Int rather than simply failing.
	require.NoError(t, Check(en, m, nil, expr.MkConst("n"), mv))
	assert.Same(t, expr.MkConst("Int"), m.InstantiateMetavars(mv))
}

func TestDeclareDefinitionCheckedRejectsIllTypedValue(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("Bool", expr.MkSort(expr.LZero())))
	require.NoError(t, en.AddPostulate("b", expr.MkConst("Bool")))

	err := DeclareDefinitionChecked(en, nil, "bad", expr.MkConst("Int"), expr.MkConst("b"), false)
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.DefTypeMismatch))

	_, found := en.FindObject("bad")
	assert.False(t, found)
}

func TestDeclareDefinitionCheckedAcceptsWellTypedValue(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddPostulate("Int", expr.MkSort(expr.LZero())))

	require.NoError(t, DeclareDefinitionChecked(en, nil, "one", expr.MkConst("Int"), value.NewInt(1), false))
	obj, found := en.FindObject("one")
	require.True(t, found)
	def := obj.(*env.Definition)
	assert.Same(t, value.NewInt(1), def.Value)
}

func TestDeclareUVarCheckedRejectsUnknownBoundVariable(t *testing.T) {
	en := env.New()
	err := DeclareUVarChecked(en, "u", expr.LUVar("ghost"))
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.UnknownUniverseVariable))
}

func TestDeclareUVarCheckedAcceptsKnownBoundVariable(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddUVar("base", nil))
	require.NoError(t, DeclareUVarChecked(en, "u", expr.LUVar("base")))

	_, found := en.FindObject("u")
	assert.True(t, found)
}
