package mvar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/kerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeEnv struct{}

func (fakeEnv) DescribeEnv() string { return "fake" }

func intTy() expr.Expr { return expr.MkConst("Int") }

func TestMkMetaVarAndIsAssigned(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	mv := m.MkMetaVar(nil)
	id := mv.(*expr.MetaVarExpr).ID

	assert.False(t, m.IsAssigned(id))
	require.NoError(t, m.Assign(id, intTy()))
	assert.True(t, m.IsAssigned(id))
}

func TestAssignThenInstantiateMetavars(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	mv := m.MkMetaVar(nil)
	id := mv.(*expr.MetaVarExpr).ID

	require.NoError(t, m.Assign(id, intTy()))

	wrapped := expr.MkApp(expr.MkConst("f"), mv)
	got := m.InstantiateMetavars(wrapped)
	want := expr.MkApp(expr.MkConst("f"), intTy())
	assert.Same(t, want, got)
}

func TestInstantiateMetavarsLeavesUnassignedAlone(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	mv := m.MkMetaVar(nil)

	got := m.InstantiateMetavars(mv)
	assert.Same(t, mv, got)
}

func TestOccursCheckRejectsSelfReference(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	mv := m.MkMetaVar(nil)
	id := mv.(*expr.MetaVarExpr).ID

	err := m.Assign(id, expr.MkApp(expr.MkConst("succ"), mv))
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.OccursCheck))
}

func TestOccursCheckCatchesIndirectCycleThroughAssignedMetavar(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	a := m.MkMetaVar(nil)
	aID := a.(*expr.MetaVarExpr).ID
	b := m.MkMetaVar(nil)
	bID := b.(*expr.MetaVarExpr).ID

	// a := b
	require.NoError(t, m.Assign(aID, b))
	// b := f(a) should be rejected: a is assigned b, so
	// instantiate_metavars(f(a)) is f(b), which mentions b itself (the
	// indirect case, through a's assignment).
	err := m.Assign(bID, expr.MkApp(expr.MkConst("f"), a))
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.OccursCheck))
}

func TestUnionPrefersDeeperContext(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	shallow := m.MkMetaVar(expr.Ctx{{NameHint: "x", Domain: intTy()}})
	deep := m.MkMetaVar(expr.Ctx{{NameHint: "x", Domain: intTy()}, {NameHint: "y", Domain: intTy()}})

	shallowID := shallow.(*expr.MetaVarExpr).ID
	deepID := deep.(*expr.MetaVarExpr).ID

	winner := m.Union(shallowID, deepID)
	assert.Equal(t, m.Root(deepID), winner)
	assert.Equal(t, m.Root(shallowID), m.Root(deepID))
}

func TestUnionIsIdempotentOnSameRoot(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	a := m.MkMetaVar(nil)
	id := a.(*expr.MetaVarExpr).ID

	assert.Equal(t, id, m.Union(id, id))
}

func TestSnapshotRestoreRoundtrips(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	mv := m.MkMetaVar(nil)
	id := mv.(*expr.MetaVarExpr).ID

	snap := m.Snapshot()
	require.NoError(t, m.Assign(id, intTy()))
	assert.True(t, m.IsAssigned(id))

	m.Restore(snap)
	assert.False(t, m.IsAssigned(id))
}

func TestInterruptAndResume(t *testing.T) {
	m := New(fakeEnv{}, nil, 64)
	require.NoError(t, m.CheckInterrupted())

	m.Interrupt()
	err := m.CheckInterrupted()
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.Interrupted))

	m.Resume()
	assert.NoError(t, m.CheckInterrupted())
}

func TestIsUnfoldablePolicy(t *testing.T) {
	all := New(fakeEnv{}, nil, 64)
	assert.True(t, all.IsUnfoldable("anything"))

	scoped := New(fakeEnv{}, []string{"foo"}, 64)
	assert.True(t, scoped.IsUnfoldable("foo"))
	assert.False(t, scoped.IsUnfoldable("bar"))
}
