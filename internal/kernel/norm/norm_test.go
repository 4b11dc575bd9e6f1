package norm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/kernel/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func natTy() expr.Expr { return expr.MkConst("Nat") }

func TestWhnfBetaReducesApplication(t *testing.T) {
	en := env.New()
	id := expr.MkLambda("x", natTy(), expr.MkVar(0))
	app := expr.MkApp(id, natTy())

	got, err := Whnf(en, nil, app)
	require.NoError(t, err)
	assert.Same(t, natTy(), got)
}

func TestWhnfUnfoldsNonOpaqueDefinition(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddDefinition("two", natTy(), value.NewInt(2), false))

	got, err := Whnf(en, nil, expr.MkConst("two"))
	require.NoError(t, err)
	assert.Same(t, value.NewInt(2), got)
}

func TestWhnfLeavesOpaqueDefinitionStuck(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddDefinition("hidden", natTy(), value.NewInt(2), true))

	got, err := Whnf(en, nil, expr.MkConst("hidden"))
	require.NoError(t, err)
	assert.Equal(t, "hidden", got.(*expr.ConstExpr).Name)
}

func TestWhnfRespectsMenvUnfoldablePolicy(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddDefinition("x", natTy(), value.NewInt(1), false))
	m := mvar.New(en, []string{"other"}, 64)

	got, err := Whnf(en, m, expr.MkConst("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", got.(*expr.ConstExpr).Name)
}

func TestWhnfProjectsPairIota(t *testing.T) {
	en := env.New()
	pairTy := expr.MkConst("Pair")
	pair := expr.MkPair(natTy(), value.NewInt(9), pairTy)

	gotFirst, err := Whnf(en, nil, expr.MkProj(true, pair))
	require.NoError(t, err)
	assert.Same(t, natTy(), gotFirst)

	gotSecond, err := Whnf(en, nil, expr.MkProj(false, pair))
	require.NoError(t, err)
	assert.Same(t, value.NewInt(9), gotSecond)
}

func TestWhnfLetZeta(t *testing.T) {
	en := env.New()
	letExpr := expr.MkLet("x", natTy(), value.NewInt(5), expr.MkVar(0))

	got, err := Whnf(en, nil, letExpr)
	require.NoError(t, err)
	assert.Same(t, value.NewInt(5), got)
}

func TestWhnfFollowsAssignedMetavar(t *testing.T) {
	en := env.New()
	m := mvar.New(en, nil, 64)
	mv := m.MkMetaVar(nil)
	id := mv.(*expr.MetaVarExpr).ID
	require.NoError(t, m.Assign(id, value.NewInt(7)))

	got, err := Whnf(en, m, mv)
	require.NoError(t, err)
	assert.Same(t, value.NewInt(7), got)
}

func TestWhnfLeavesUnassignedMetavarStuck(t *testing.T) {
	en := env.New()
	m := mvar.New(en, nil, 64)
	mv := m.MkMetaVar(nil)

	got, err := Whnf(en, m, mv)
	require.NoError(t, err)
	assert.Same(t, mv, got)
}

func TestWhnfAppliesValueNormalizeHook(t *testing.T) {
	en := env.New()
	app := expr.MkApp(value.Add(), value.NewInt(2), value.NewInt(3))

	got, err := Whnf(en, nil, app)
	require.NoError(t, err)
	assert.Equal(t, value.NewInt(5), got)
}

func TestWhnfStuckOnValueOperandMetavar(t *testing.T) {
	en := env.New()
	m := mvar.New(en, nil, 64)
	mv := m.MkMetaVar(nil)
	app := expr.MkApp(value.Add(), value.NewInt(2), mv)

	got, err := Whnf(en, m, app)
	require.NoError(t, err)
	gotApp, ok := got.(*expr.AppExpr)
	require.True(t, ok)
	assert.Same(t, value.Add(), gotApp.Fn)
}

func TestWhnfReturnsInterruptedError(t *testing.T) {
	en := env.New()
	m := mvar.New(en, nil, 64)
	m.Interrupt()

	_, err := Whnf(en, m, natTy())
	require.Error(t, err)
}

func TestNormalizeReducesUnderBinders(t *testing.T) {
	en := env.New()
	id := expr.MkLambda("x", natTy(), expr.MkVar(0))
	body := expr.MkApp(id, expr.MkVar(0))
	lam := expr.MkLambda("y", natTy(), body)

	got, err := Normalize(en, nil, lam)
	require.NoError(t, err)
	want := expr.MkLambda("y", natTy(), expr.MkVar(0))
	assert.Same(t, want, got)
}

func TestIsConvertibleRequiresStrictSortEquality(t *testing.T) {
	en := env.New()
	zero := expr.MkSort(expr.LZero())
	one := expr.MkSort(expr.LSucc(expr.LZero()))

	ok, err := IsConvertible(en, nil, nil, zero, one, nil)
	require.NoError(t, err)
	assert.False(t, ok, "Sort(Zero) and Sort(Succ(Zero)) are not strictly equal")
}

func TestIsSubtypeAcceptsCumulativeSorts(t *testing.T) {
	en := env.New()
	zero := expr.MkSort(expr.LZero())
	one := expr.MkSort(expr.LSucc(expr.LZero()))

	ok, err := IsSubtype(en, nil, nil, zero, one, nil)
	require.NoError(t, err)
	assert.True(t, ok, "Sort(Zero) <= Sort(Succ(Zero)) under cumulativity")

	ok, err = IsSubtype(en, nil, nil, one, zero, nil)
	require.NoError(t, err)
	assert.False(t, ok, "Sort(Succ(Zero)) is not <= Sort(Zero)")
}

func TestIsSubtypePropagatesCumulativityThroughPiCodomain(t *testing.T) {
	en := env.New()
	lowPi := expr.MkPi("x", natTy(), expr.MkSort(expr.LZero()))
	highPi := expr.MkPi("x", natTy(), expr.MkSort(expr.LSucc(expr.LZero())))

	ok, err := IsSubtype(en, nil, nil, lowPi, highPi, nil)
	require.NoError(t, err)
	assert.True(t, ok, "Pi(A, Sort(Zero)) <= Pi(A, Sort(Succ(Zero))) via codomain cumulativity")
}

func TestNormalizeMemoizesRepeatedSubterm(t *testing.T) {
	en := env.New()
	require.NoError(t, en.AddDefinition("c", natTy(), value.NewInt(1), false))
	shared := expr.MkConst("c")
	pair := expr.MkPair(shared, shared, natTy())

	got, err := Normalize(en, nil, pair)
	require.NoError(t, err)
	p := got.(*expr.PairExpr)
	assert.Same(t, p.First, p.Second)
}
