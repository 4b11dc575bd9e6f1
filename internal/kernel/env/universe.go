package env

import "kernelnerd/internal/kernel/expr"

// uedge is one step of the universe constraint graph: from >= to (+ some
// non-negative number of successors, which we don't need to track — see
// IsGe's comment).
type uedge struct{ to string }

// decomposeBound walks a Level's Max spine and collects the named uvar
// leaves a constraint "name >= bound" ultimately rests on. Succ and Zero
// leaves contribute no edge: Succ only adds a non-negative offset (already
// accounted for by reachability being offset-agnostic, see IsGe) and Zero
// is the bottom of every chain, not a named vertex.
func decomposeBound(l *expr.Level) []string {
	if l == nil {
		return nil
	}
	var leaves []string
	var walk func(*expr.Level)
	walk = func(l *expr.Level) {
		switch l.Kind() {
		case expr.LevelZero:
			return
		case expr.LevelSucc:
			walk(l.SuccArg())
		case expr.LevelMax:
			a, b := l.MaxArgs()
			walk(a)
			walk(b)
		case expr.LevelUVar:
			leaves = append(leaves, l.UVarName())
		}
	}
	walk(l)
	return leaves
}

// addUVarConstraintLocked registers the edges a UVarConstraint's bound
// implies. Caller holds e.mu.
func (e *Env) addUVarConstraintLocked(name string, bound *expr.Level) {
	for _, leaf := range decomposeBound(bound) {
		e.edges[name] = append(e.edges[name], uedge{to: leaf})
	}
	// Any existing is_ge answers may now be stale.
	e.geCache = make(map[[2]string]bool)
}

// IsGe reports whether u >= v + k is derivable for some k >= 0 (spec.md
// §3 "Universe variables are partially ordered by a directed constraint
// graph"). Every edge in the graph already carries a non-negative implicit
// offset (a Succ chain can only add to it), so the existence of *any* path
// from u to v already witnesses such a k — the search only needs to answer
// reachability, not compute the exact offset. Results are memoized per
// (u, v) pair and invalidated whenever a new constraint is added.
func (e *Env) IsGe(u, v string) bool {
	if u == v {
		return true
	}
	key := [2]string{u, v}

	e.mu.RLock()
	if cached, ok := e.geCache[key]; ok {
		e.mu.RUnlock()
		return cached
	}
	e.mu.RUnlock()

	result := e.reachable(u, v)

	e.mu.Lock()
	e.geCache[key] = result
	e.mu.Unlock()

	return result
}

// reachable walks the union of this environment's and every ancestor's
// constraint graphs (a child may add uvars but never invalidates a
// parent's constraints, so both are in scope) via breadth-first search.
func (e *Env) reachable(u, v string) bool {
	visited := map[string]bool{u: true}
	queue := []string{u}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == v {
			return true
		}
		for _, edge := range e.edgesFor(cur) {
			if !visited[edge.to] {
				visited[edge.to] = true
				queue = append(queue, edge.to)
			}
		}
	}
	return false
}

// edgesFor collects outgoing edges for name from this Env and every
// ancestor, since constraints declared on a parent remain visible to
// children (spec.md "a child may not redeclare a parent's name" implies
// lookups already traverse the chain; is_ge must too).
func (e *Env) edgesFor(name string) []uedge {
	var out []uedge
	for cur := e; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		out = append(out, cur.edges[name]...)
		cur.mu.RUnlock()
	}
	return out
}

// levelPeel decomposes l into (core, n) such that l is Succ applied n
// times to core, and core is not itself a Succ node.
func levelPeel(l *expr.Level) (*expr.Level, int) {
	n := 0
	for l.Kind() == expr.LevelSucc {
		l = l.SuccArg()
		n++
	}
	return l, n
}

// LevelGe reports whether level a >= level b is derivable (spec.md §4.4
// "universe cumulativity", consulted when checking Sort(u) <= Sort(v)).
// Max on either side is handled by recursion rather than name lookup:
// Max(a1,a2) >= b iff a1>=b or a2>=b (either alternative alone dominating
// suffices), and a >= Max(b1,b2) iff a>=b1 and a>=b2 (a must dominate every
// alternative). Once both sides are Succ-chains over a Zero or a named
// uvar, comparison reduces to peeled offsets plus, for differing uvar
// names, a reachability query via IsGe — the same simplification IsGe
// itself relies on (no upper bounds are ever tracked, only lower), so an
// uvar can never be proven <= a bare numeral unless it IS that numeral.
func (e *Env) LevelGe(a, b *expr.Level) bool {
	if expr.LevelEq(a, b) {
		return true
	}
	if b.Kind() == expr.LevelMax {
		b1, b2 := b.MaxArgs()
		return e.LevelGe(a, b1) && e.LevelGe(a, b2)
	}
	if a.Kind() == expr.LevelMax {
		a1, a2 := a.MaxArgs()
		return e.LevelGe(a1, b) || e.LevelGe(a2, b)
	}

	coreA, na := levelPeel(a)
	coreB, nb := levelPeel(b)
	switch {
	case coreA.Kind() == expr.LevelZero && coreB.Kind() == expr.LevelZero:
		return na >= nb
	case coreB.Kind() == expr.LevelZero:
		// a uvar contributes at least 0, so Succ^na(uvar) >= numeral nb
		// whenever na >= nb regardless of the uvar's actual value.
		return na >= nb
	case coreA.Kind() == expr.LevelZero:
		// A bare numeral can never be shown >= an unconstrained uvar: IsGe
		// only ever records lower bounds, never upper ones.
		return false
	case coreA.Kind() == expr.LevelUVar && coreB.Kind() == expr.LevelUVar:
		if coreA.UVarName() == coreB.UVarName() {
			return na >= nb
		}
		return na >= nb && e.IsGe(coreA.UVarName(), coreB.UVarName())
	default:
		return false
	}
}
