package expr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHashConsingMaximalSharing(t *testing.T) {
	t.Run("identical constants are pointer-identical", func(t *testing.T) {
		a := MkConst("Nat", LZero())
		b := MkConst("Nat", LZero())
		assert.Same(t, a, b)
	})

	t.Run("identical lambdas built independently share a node", func(t *testing.T) {
		nat := MkConst("Nat")
		l1 := MkLambda("x", nat, MkVar(0))
		l2 := MkLambda("y", nat, MkVar(0)) // name hint differs, structure doesn't
		assert.Same(t, l1, l2)
	})

	t.Run("structurally distinct apps are distinct nodes", func(t *testing.T) {
		f := MkConst("f")
		a1 := MkApp(f, MkConst("a"))
		a2 := MkApp(f, MkConst("b"))
		assert.NotSame(t, a1, a2)
	})
}

func TestExprEqAlphaEquivalence(t *testing.T) {
	t.Run("binder name hints are irrelevant", func(t *testing.T) {
		nat := MkConst("Nat")
		l1 := MkLambda("x", nat, MkVar(0))
		l2 := MkLambda("q", nat, MkVar(0))
		require.True(t, ExprEq(l1, l2))
	})

	t.Run("different bound indices are not equal", func(t *testing.T) {
		nat := MkConst("Nat")
		body := MkLambda("y", nat, MkVar(1)) // refers to outer binder
		l1 := MkLambda("x", nat, body)
		l2 := MkLambda("x", nat, MkLambda("y", nat, MkVar(0)))
		require.False(t, ExprEq(l1, l2))
	})

	t.Run("self-equal on a shared DAG terminates", func(t *testing.T) {
		shared := MkApp(MkConst("f"), MkConst("a"))
		whole := MkApp(MkConst("g"), shared, shared)
		require.True(t, ExprEq(whole, whole))
	})
}

func TestLiftClosedShortCircuit(t *testing.T) {
	closedTerm := MkApp(MkConst("f"), MkConst("a"), MkConst("b"))
	require.True(t, closedTerm.FreeVars().Closed())

	lifted := Lift(closedTerm, 0, 5)
	assert.Same(t, closedTerm, lifted, "lifting a closed term must be a no-op returning the same node")
}

func TestLiftShiftsOnlyFreeOccurrences(t *testing.T) {
	// \x. x (Var 1)   -- Var 0 is bound, Var 1 is free relative to the lambda
	body := MkApp(MkVar(0), MkVar(1))
	lam := MkLambda("x", MkConst("A"), body)

	lifted := Lift(lam, 0, 3)
	lb, ok := lifted.(*LambdaExpr)
	require.True(t, ok)
	app, ok := lb.Body.(*AppExpr)
	require.True(t, ok)

	assert.Equal(t, uint32(0), app.Fn.(*VarExpr).Idx, "bound occurrence must stay Var(0)")
	assert.Equal(t, uint32(4), app.Args[0].(*VarExpr).Idx, "free occurrence shifts by the offset")
}

func TestInstantiateSingleArg(t *testing.T) {
	// (\x. x) applied to `a` reduces to `a`.
	id := MkLambda("x", MkConst("A"), MkVar(0))
	a := MkConst("a")
	result := ApplyBeta(id, []Expr{a})
	assert.Same(t, a, result)
}

func TestInstantiateNestedBindersOrdering(t *testing.T) {
	// \x. \y. x  applied to (a, b) must reduce to `a` — the outer binder
	// (first argument) wins, regardless of nesting.
	a := MkConst("a")
	b := MkConst("b")
	inner := MkLambda("y", MkConst("B"), MkVar(1)) // refers to x (outer)
	outer := MkLambda("x", MkConst("A"), inner)

	result := ApplyBeta(outer, []Expr{a, b})
	assert.Same(t, a, result)
}

func TestInstantiateNestedBindersSecondArg(t *testing.T) {
	// \x. \y. y  applied to (a, b) must reduce to `b`.
	a := MkConst("a")
	b := MkConst("b")
	inner := MkLambda("y", MkConst("B"), MkVar(0)) // refers to y (inner)
	outer := MkLambda("x", MkConst("A"), inner)

	result := ApplyBeta(outer, []Expr{a, b})
	assert.Same(t, b, result)
}

func TestApplyBetaPartialApplication(t *testing.T) {
	// \x. \y. x applied to a single arg leaves a residual lambda binding y.
	inner := MkLambda("y", MkConst("B"), MkVar(1))
	outer := MkLambda("x", MkConst("A"), inner)
	a := MkConst("a")

	result := ApplyBeta(outer, []Expr{a})
	lam, ok := result.(*LambdaExpr)
	require.True(t, ok, "partial application must leave a residual lambda")
	assert.Same(t, a, lam.Body)
}

func TestApplyBetaExcessArgsResidualApp(t *testing.T) {
	id := MkLambda("x", MkConst("A"), MkVar(0))
	a := MkConst("a")
	extra := MkConst("extra")

	result := ApplyBeta(id, []Expr{a, extra})
	app, ok := result.(*AppExpr)
	require.True(t, ok, "excess args must produce a residual application")
	assert.Same(t, a, app.Fn)
	if diff := cmp.Diff([]Expr{extra}, app.Args, cmp.Comparer(func(a, b Expr) bool { return a == b })); diff != "" {
		t.Errorf("residual args mismatch (-want +got):\n%s", diff)
	}
}

func TestBetaReduceFixpoint(t *testing.T) {
	// ((\x. x) (\y. y)) applied to `a` reduces fully to `a`.
	id := MkLambda("x", MkConst("A"), MkVar(0))
	appliedToId := MkApp(id, id)
	a := MkConst("a")
	whole := MkApp(appliedToId, a)

	reduced := BetaReduce(whole)
	assert.Same(t, a, reduced)
}

func TestMetaVarDeferredSubstitution(t *testing.T) {
	mv := MkMetaVar(NextMetavarID(), nil)
	require.True(t, mv.HasMetavar())

	lifted := Lift(mv, 0, 2)
	mve, ok := lifted.(*MetaVarExpr)
	require.True(t, ok)
	require.Len(t, mve.LocalCtx, 1)
	assert.Equal(t, EntryLift, mve.LocalCtx[0].Kind)
	assert.Equal(t, int32(2), mve.LocalCtx[0].Offset)

	a := MkConst("a")
	instantiated := Instantiate(lifted, 0, []Expr{a})
	mve2, ok := instantiated.(*MetaVarExpr)
	require.True(t, ok)
	require.Len(t, mve2.LocalCtx, 2)
	assert.Equal(t, EntryInst, mve2.LocalCtx[1].Kind)
}

func TestMaxSharingCanonicalizesUnsharedDuplicates(t *testing.T) {
	// Build two structurally identical but independently-constructed leaves
	// by routing them through a path that skips the interning table's
	// normal entry (simulated here via the constructors, which already
	// intern — so instead we check idempotence and pointer stability).
	nat := MkConst("Nat")
	term := MkPi("x", nat, MkApp(nat, MkVar(0)))

	once := MaxSharing(term)
	twice := MaxSharing(once)
	assert.Same(t, once, twice, "MaxSharing must be idempotent")
	assert.True(t, once.MaxShared())
}

func TestInspectionAPI(t *testing.T) {
	nat := MkConst("Nat")
	pi := MkPi("n", nat, MkApp(nat, MkVar(0)))

	assert.True(t, IsPi(pi))
	assert.False(t, IsLambda(pi))
	assert.Same(t, nat, AbstDomain(pi))
	assert.Equal(t, "n", AbstName(pi))

	body := AbstBody(pi)
	require.True(t, IsApp(body))
	assert.Equal(t, 1, NumArgs(body))
	assert.Equal(t, uint32(0), VarIdx(Arg(body, 0)))
}

func TestHasFreeVar(t *testing.T) {
	t.Run("closed term has no free vars", func(t *testing.T) {
		term := MkApp(MkConst("f"), MkConst("a"))
		assert.False(t, HasFreeVar(term, 0, 1000))
	})

	t.Run("free var detected outside any binder", func(t *testing.T) {
		term := MkApp(MkConst("f"), MkVar(3))
		assert.True(t, HasFreeVar(term, 3, 4))
		assert.False(t, HasFreeVar(term, 0, 3))
	})

	t.Run("free var shadowed by an enclosing binder deeper in the query window", func(t *testing.T) {
		// \x. Var(2) -- relative to the lambda's body, Var(2) is free and
		// refers to outer index 1 (2 minus the one binder crossed).
		lam := MkLambda("x", MkConst("A"), MkVar(2))
		assert.True(t, HasFreeVar(lam, 1, 2))
		assert.False(t, HasFreeVar(lam, 2, 3))
	})

	t.Run("metavariable conservatively reports free in any range", func(t *testing.T) {
		mv := MkMetaVar(NextMetavarID(), nil)
		assert.True(t, HasFreeVar(mv, 0, 1))
	})
}

func TestLevelHashConsing(t *testing.T) {
	t.Run("equal levels intern to the same pointer", func(t *testing.T) {
		a := LSucc(LSucc(LZero()))
		b := LSuccN(LZero(), 2)
		assert.Same(t, a, b)
	})

	t.Run("max is order-sensitive only in structure, not semantics of interning", func(t *testing.T) {
		u := LUVar("u")
		m1 := LMax(LZero(), u)
		m2 := LMax(LZero(), u)
		assert.Same(t, m1, m2)
	})
}
