// Package mvar implements the kernel's metavariable environment (entity
// MEnv in spec.md §4/§4.5): a union-find arena over metavariable cells, each
// carrying the local typing context it was introduced in, plus deferred
// assignment, an occur check, and instantiate_metavars. The union-find
// itself (arena-indexed cells with path compression and union by rank) is
// hand-rolled rather than pulled from a library — no repo in the pack
// vendors a general-purpose disjoint-set implementation, and the structure
// is small and self-contained enough that wrapping a dependency around it
// would not exercise anything beyond what a dozen lines already do (see
// DESIGN.md).
package mvar

import (
	"sync"

	"github.com/google/uuid"

	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/kerr"
	"kernelnerd/internal/klog"
)

// CellState tracks a metavariable cell through unification, mirroring
// spec.md §4's Unprocessed/Processing/Processed states. The unifier's
// pattern solver marks a cell Processing while it builds a solution; the
// states are recorded for inspection and no kernel code branches on them.
type CellState uint8

const (
	Unprocessed CellState = iota
	Processing
	Processed
)

type cell struct {
	ctx   expr.Ctx
	value expr.Expr // nil until assigned
	find  int64     // union-find parent; find == own id at a root
	rank  int
	state CellState
}

// EnvRef is the minimal window MEnv needs into the owning environment, so
// this package need not import internal/kernel/env (same cycle-avoidance
// trick as kerr.EnvRef).
type EnvRef interface {
	DescribeEnv() string
}

// MEnv is the metavariable environment: a union-find over metavariables
// plus a substitution table, scoped to one owning Env (spec.md §4 "MEnv").
// Per spec.md §5, MEnv is not thread-safe by itself; the internal mutex
// here only protects the cell arena against torn reads/writes from
// concurrent diagnostic calls (e.g. a watcher goroutine reading IsAssigned
// while the owning task assigns), not against logically racing callers.
type MEnv struct {
	mu sync.Mutex

	env        EnvRef
	unfoldable map[string]bool
	unfoldAll  bool
	maxDepth   int
	instanceID string

	// cells is keyed by the process-global id expr.NextMetavarID() hands
	// out, not a dense per-MEnv index: ids are shared across the whole
	// hash-cons table so two different MEnv instances never alias the same
	// canonical MetaVarExpr node to logically distinct metavariables.
	cells map[int64]*cell

	interrupted bool
}

// New creates a metavariable environment owned by env. A nil unfoldable
// slice means every non-opaque definition may be delta-unfolded; otherwise
// only the named definitions are (spec.md §4 "MEnv additionally carries...
// a set of unfoldable definitions"). maxDepth bounds unification recursion.
func New(env EnvRef, unfoldable []string, maxDepth int) *MEnv {
	m := &MEnv{
		env:        env,
		maxDepth:   maxDepth,
		instanceID: uuid.NewString(),
		cells:      make(map[int64]*cell),
	}
	if unfoldable == nil {
		m.unfoldAll = true
	} else {
		m.unfoldable = make(map[string]bool, len(unfoldable))
		for _, name := range unfoldable {
			m.unfoldable[name] = true
		}
	}
	klog.WithRequestID(klog.CategoryUnify, m.instanceID).Debug("new metavariable environment, max_depth=%d", maxDepth)
	return m
}

// InstanceID identifies this MEnv for log correlation (spec.md supplemented
// feature: distinguishing interleaved output from parallel kernel
// instances, §5 "Scheduling model").
func (m *MEnv) InstanceID() string { return m.instanceID }

// IsUnfoldable reports whether name may be delta-unfolded under this menv's
// policy (consulted by norm's whnf step for Definition).
func (m *MEnv) IsUnfoldable(name string) bool {
	if m.unfoldAll {
		return true
	}
	return m.unfoldable[name]
}

// MaxDepth returns the unification recursion budget.
func (m *MEnv) MaxDepth() int { return m.maxDepth }

// Interrupt requests cooperative cancellation; the next CheckInterrupted
// call by any recursive kernel operation observes it and fails with
// kerr.Interrupted (spec.md §5 "Cancellation"). It does not synchronously
// preempt an in-flight call.
func (m *MEnv) Interrupt() {
	m.mu.Lock()
	m.interrupted = true
	m.mu.Unlock()
}

// Resume clears a prior interruption so the environment can be reused.
func (m *MEnv) Resume() {
	m.mu.Lock()
	m.interrupted = false
	m.mu.Unlock()
}

// CheckInterrupted returns a kerr.Interrupted error if interruption was
// requested since the last Resume.
func (m *MEnv) CheckInterrupted() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interrupted {
		return kerr.InterruptedErr(m.env)
	}
	return nil
}

// MkMetaVar allocates a fresh metavariable with the supplied local typing
// context and returns the canonical Expr referencing it (spec.md §4.5
// "mk_metavar(ctx) -> Expr... pushes a cell (None, ctx, find=self, rank=0,
// state=Unprocessed)").
func (m *MEnv) MkMetaVar(ctx expr.Ctx) expr.Expr {
	id := expr.NextMetavarID()
	m.mu.Lock()
	m.cells[id] = &cell{ctx: ctx, find: id}
	m.mu.Unlock()
	klog.UnifyDebug("allocated metavar ?%d with context depth %d", id, len(ctx))
	return expr.MkMetaVar(id, nil)
}

// Root follows the union-find find link to id's current representative,
// compressing the path traversed (spec.md §9 "Union-find cells... path
// compression").
func (m *MEnv) Root(id int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rootLocked(id)
}

func (m *MEnv) rootLocked(id int64) int64 {
	root := id
	for m.cells[root].find != root {
		root = m.cells[root].find
	}
	for m.cells[id].find != root {
		next := m.cells[id].find
		m.cells[id].find = root
		id = next
	}
	return root
}

// IsAssigned reports whether id's representative cell carries a value.
func (m *MEnv) IsAssigned(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	root := m.rootLocked(id)
	return m.cells[root].value != nil
}

// Value returns id's representative's assigned value and whether it is
// assigned at all. The returned value has not had LocalCtx entries applied;
// callers normally want InstantiateMetavars instead.
func (m *MEnv) Value(id int64) (expr.Expr, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root := m.rootLocked(id)
	v := m.cells[root].value
	return v, v != nil
}

// Ctx returns the local typing context id's representative was introduced
// with — used to validate the context-prefix invariant (spec.md §4
// "If ?m1 occurs in the context of ?m2, then the context of ?m1 is a
// prefix of the context of ?m2") before a union.
func (m *MEnv) Ctx(id int64) expr.Ctx {
	m.mu.Lock()
	defer m.mu.Unlock()
	root := m.rootLocked(id)
	return m.cells[root].ctx
}

// State returns id's representative's processing state.
func (m *MEnv) State(id int64) CellState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cells[m.rootLocked(id)].state
}

// SetState sets id's representative's processing state (spec.md §4
// "state ∈ {Unprocessed, Processing, Processed}"); the unifier's pattern
// solver records its progress here, and no kernel code branches on it.
func (m *MEnv) SetState(id int64, s CellState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[m.rootLocked(id)].state = s
}

// Assign records value for metavar id's representative, after an occur
// check: value must not mention id, modulo already-resolved metavars it
// transitively contains (spec.md §4.5 "assign"). Assignments are never
// rolled back on a later failure; transactional callers must snapshot
// Snapshot/Restore around the call tree.
func (m *MEnv) Assign(id int64, value expr.Expr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	root := m.rootLocked(id)
	resolved := m.instantiateMetavarsLocked(value)
	if m.containsMetaVarLocked(resolved, root) {
		return kerr.OccursCheckErr(m.env, m.cells[root].ctx, expr.MkMetaVar(root, nil), value)
	}
	m.cells[root].value = value
	m.cells[root].state = Processed
	klog.UnifyDebug("assigned ?%d", root)
	return nil
}

// Union merges the classes of two metavars (spec.md §4.5): the one whose
// context is longer becomes root; with equal context lengths the one of
// higher rank wins, and a wins a tie. It does not check that the deeper
// context is assignable to the shallower one, nor that either metavar is
// unassigned. Returns the surviving root id.
func (m *MEnv) Union(a, b int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ra, rb := m.rootLocked(a), m.rootLocked(b)
	if ra == rb {
		return ra
	}

	ca, cb := m.cells[ra], m.cells[rb]
	var winner, loser int64
	switch {
	case len(ca.ctx) > len(cb.ctx):
		winner, loser = ra, rb
	case len(cb.ctx) > len(ca.ctx):
		winner, loser = rb, ra
	case ca.rank >= cb.rank:
		winner, loser = ra, rb
	default:
		winner, loser = rb, ra
	}

	m.cells[loser].find = winner
	if m.cells[ra].rank == m.cells[rb].rank {
		m.cells[winner].rank++
	}
	klog.UnifyDebug("unioned ?%d <- ?%d", winner, loser)
	return winner
}

// InstantiateMetavars traverses e, replacing each assigned metavariable
// occurrence with its value (LocalCtx entries replayed via
// expr.ApplyLocalCtx), recursively resolving any metavariables the
// replacement itself contains. Pure; does not mutate MEnv state
// (spec.md §4.5 "instantiate_metavars").
func (m *MEnv) InstantiateMetavars(e expr.Expr) expr.Expr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instantiateMetavarsLocked(e)
}

func (m *MEnv) instantiateMetavarsLocked(e expr.Expr) expr.Expr {
	if !e.HasMetavar() {
		return e
	}
	switch n := e.(type) {
	case *expr.MetaVarExpr:
		root := m.rootLocked(n.ID)
		val := m.cells[root].value
		if val == nil {
			return e
		}
		resolved := m.instantiateMetavarsLocked(val)
		substituted := expr.ApplyLocalCtx(resolved, n.LocalCtx)
		// The LocalCtx replacements substituted in may themselves mention
		// metavars assigned since they were recorded; resolve once more.
		// Termination is guaranteed by the occurs check: no assignment
		// graph can be cyclic, so each pass strictly shrinks the remaining
		// metavar depth.
		return m.instantiateMetavarsLocked(substituted)
	case *expr.AppExpr:
		fn := m.instantiateMetavarsLocked(n.Fn)
		args := make([]expr.Expr, len(n.Args))
		changed := fn != n.Fn
		for i, a := range n.Args {
			args[i] = m.instantiateMetavarsLocked(a)
			changed = changed || args[i] != a
		}
		if !changed {
			return e
		}
		return expr.MkApp(fn, args...)
	case *expr.LambdaExpr:
		dom := m.instantiateMetavarsLocked(n.Domain)
		body := m.instantiateMetavarsLocked(n.Body)
		if dom == n.Domain && body == n.Body {
			return e
		}
		return expr.MkLambda(n.NameHint, dom, body)
	case *expr.PiExpr:
		dom := m.instantiateMetavarsLocked(n.Domain)
		body := m.instantiateMetavarsLocked(n.Body)
		if dom == n.Domain && body == n.Body {
			return e
		}
		return expr.MkPi(n.NameHint, dom, body)
	case *expr.SigmaExpr:
		dom := m.instantiateMetavarsLocked(n.Domain)
		body := m.instantiateMetavarsLocked(n.Body)
		if dom == n.Domain && body == n.Body {
			return e
		}
		return expr.MkSigma(n.NameHint, dom, body)
	case *expr.PairExpr:
		first := m.instantiateMetavarsLocked(n.First)
		second := m.instantiateMetavarsLocked(n.Second)
		typ := m.instantiateMetavarsLocked(n.Type)
		if first == n.First && second == n.Second && typ == n.Type {
			return e
		}
		return expr.MkPair(first, second, typ)
	case *expr.ProjExpr:
		arg := m.instantiateMetavarsLocked(n.Arg)
		if arg == n.Arg {
			return e
		}
		return expr.MkProj(n.First, arg)
	case *expr.LetExpr:
		var typ expr.Expr
		if n.Type != nil {
			typ = m.instantiateMetavarsLocked(n.Type)
		}
		value := m.instantiateMetavarsLocked(n.Value)
		body := m.instantiateMetavarsLocked(n.Body)
		if typ == n.Type && value == n.Value && body == n.Body {
			return e
		}
		return expr.MkLet(n.NameHint, typ, value, body)
	case *expr.HEqExpr:
		lhs := m.instantiateMetavarsLocked(n.Lhs)
		rhs := m.instantiateMetavarsLocked(n.Rhs)
		if lhs == n.Lhs && rhs == n.Rhs {
			return e
		}
		return expr.MkHEq(lhs, rhs)
	default:
		return e
	}
}

// containsMetaVarLocked reports whether e mentions metavariable root
// (already a union-find root) anywhere, short-circuiting on the cached
// has-metavar bit the same way expr.HasFreeVar short-circuits on
// FreeVarRange. Every encountered MetaVarExpr is resolved to its own root
// before comparison, since a prior Union may have aliased a different id to
// the same representative.
func (m *MEnv) containsMetaVarLocked(e expr.Expr, root int64) bool {
	if !e.HasMetavar() {
		return false
	}
	switch n := e.(type) {
	case *expr.MetaVarExpr:
		if m.rootLocked(n.ID) == root {
			return true
		}
		for _, entry := range n.LocalCtx {
			for _, r := range entry.Replacements {
				if m.containsMetaVarLocked(r, root) {
					return true
				}
			}
		}
		return false
	case *expr.AppExpr:
		if m.containsMetaVarLocked(n.Fn, root) {
			return true
		}
		for _, a := range n.Args {
			if m.containsMetaVarLocked(a, root) {
				return true
			}
		}
		return false
	case *expr.LambdaExpr:
		return m.containsMetaVarLocked(n.Domain, root) || m.containsMetaVarLocked(n.Body, root)
	case *expr.PiExpr:
		return m.containsMetaVarLocked(n.Domain, root) || m.containsMetaVarLocked(n.Body, root)
	case *expr.SigmaExpr:
		return m.containsMetaVarLocked(n.Domain, root) || m.containsMetaVarLocked(n.Body, root)
	case *expr.PairExpr:
		return m.containsMetaVarLocked(n.First, root) || m.containsMetaVarLocked(n.Second, root) || m.containsMetaVarLocked(n.Type, root)
	case *expr.ProjExpr:
		return m.containsMetaVarLocked(n.Arg, root)
	case *expr.LetExpr:
		if n.Type != nil && m.containsMetaVarLocked(n.Type, root) {
			return true
		}
		return m.containsMetaVarLocked(n.Value, root) || m.containsMetaVarLocked(n.Body, root)
	case *expr.HEqExpr:
		return m.containsMetaVarLocked(n.Lhs, root) || m.containsMetaVarLocked(n.Rhs, root)
	default:
		return false
	}
}

// Snapshot copies the current cell arena, for callers needing transactional
// semantics around a call tree that may assign metavars before failing
// (spec.md §5 "Ordering guarantees... not rolled back on failure").
func (m *MEnv) Snapshot() map[int64]CellSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]CellSnapshot, len(m.cells))
	for id, c := range m.cells {
		out[id] = CellSnapshot{Ctx: c.ctx, Value: c.value, Find: c.find, Rank: c.rank, State: c.state}
	}
	return out
}

// Restore replaces the cell arena with a previously taken Snapshot.
func (m *MEnv) Restore(snap map[int64]CellSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cells := make(map[int64]*cell, len(snap))
	for id, c := range snap {
		cells[id] = &cell{ctx: c.Ctx, value: c.Value, find: c.Find, rank: c.Rank, state: c.State}
	}
	m.cells = cells
}

// CellSnapshot is the exported, immutable view of one arena cell returned
// by Snapshot.
type CellSnapshot struct {
	Ctx   expr.Ctx
	Value expr.Expr
	Find  int64
	Rank  int
	State CellState
}
