// Package unify implements the kernel's bounded-depth higher-order
// unification (entity U in spec.md §4.5 "Unification unify(e1, e2, ctx)"):
// the ordered case analysis (flex-headed pattern match, rigid-rigid
// structural recursion, whnf-and-retry, failure), wired as norm's
// UnifyFallback so convertibility checks that hit a metavar-headed
// structural mismatch escalate here instead of just failing.
package unify

import (
	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/kerr"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/kernel/norm"
	"kernelnerd/internal/klog"
)

// Unify attempts to make a and b definitionally equal under ctx, recording
// any metavariable assignments it makes along the way in m (spec.md §4.5).
// Assignments made before a later failure are not rolled back; transactional
// callers snapshot m before calling (spec.md §5).
func Unify(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, a, b expr.Expr) error {
	timer := klog.StartTimer(klog.CategoryUnify, "unify")
	defer timer.Stop()
	return unify(en, m, ctx, a, b, 0)
}

// Fallback adapts Unify to norm.UnifyFallback's (bool, error) shape: a
// successful unification reports convertible, a FailedToUnify reports not
// convertible (not an error — the caller's IsConvertible is a predicate),
// and every other kind (interrupted, max_depth_exceeded) propagates as a
// hard error since the caller cannot recover a sensible bool from those.
func Fallback(en *env.Env, m *mvar.MEnv) norm.UnifyFallback {
	return func(ctx expr.Ctx, a, b expr.Expr) (bool, error) {
		err := Unify(en, m, ctx, a, b)
		if err == nil {
			return true, nil
		}
		if kerr.Is(err, kerr.FailedToUnify) {
			return false, nil
		}
		return false, err
	}
}

func unify(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, a, b expr.Expr, depth int) error {
	if err := m.CheckInterrupted(); err != nil {
		return err
	}
	if depth > m.MaxDepth() {
		return kerr.MaxDepthExceededErr(en, ctx, m.MaxDepth())
	}

	a = m.InstantiateMetavars(a)
	b = m.InstantiateMetavars(b)
	if a == b {
		return nil
	}

	// Case 1: either side is a metavariable (possibly applied to a spine of
	// arguments), unassigned after root resolution (InstantiateMetavars
	// above already resolved every assigned one, so any MetaVarExpr
	// surviving here is flexible). Try the decidable pattern fragment;
	// falling through to the rigid cases below when the spine isn't a
	// pattern, in case whnf on the other side eventually produces one.
	if id, args, ok := asFlexApp(a); ok {
		if solved, err := solveFlex(en, m, ctx, id, args, b, depth); solved || err != nil {
			return err
		}
	}
	if id, args, ok := asFlexApp(b); ok {
		if solved, err := solveFlex(en, m, ctx, id, args, a, depth); solved || err != nil {
			return err
		}
	}

	// Case 2: both App, same arity — unify function and arguments pointwise.
	if appA, ok := a.(*expr.AppExpr); ok {
		if appB, ok := b.(*expr.AppExpr); ok && len(appA.Args) == len(appB.Args) {
			if err := unify(en, m, ctx, appA.Fn, appB.Fn, depth+1); err == nil {
				for i := range appA.Args {
					if err := unify(en, m, ctx, appA.Args[i], appB.Args[i], depth+1); err != nil {
						return fallbackToWhnf(en, m, ctx, a, b, depth, err)
					}
				}
				return nil
			}
		}
	}

	// Case 3: both the same binder form — unify domain (equivalence), then
	// body under the extended context.
	switch na := a.(type) {
	case *expr.PiExpr:
		if nb, ok := b.(*expr.PiExpr); ok {
			return unifyBinder(en, m, ctx, na.NameHint, na.Domain, na.Body, nb.Domain, nb.Body, depth)
		}
	case *expr.LambdaExpr:
		if nb, ok := b.(*expr.LambdaExpr); ok {
			return unifyBinder(en, m, ctx, na.NameHint, na.Domain, na.Body, nb.Domain, nb.Body, depth)
		}
	case *expr.SigmaExpr:
		if nb, ok := b.(*expr.SigmaExpr); ok {
			return unifyBinder(en, m, ctx, na.NameHint, na.Domain, na.Body, nb.Domain, nb.Body, depth)
		}
	case *expr.PairExpr:
		if nb, ok := b.(*expr.PairExpr); ok {
			if err := unify(en, m, ctx, na.First, nb.First, depth+1); err != nil {
				return fallbackToWhnf(en, m, ctx, a, b, depth, err)
			}
			if err := unify(en, m, ctx, na.Second, nb.Second, depth+1); err != nil {
				return fallbackToWhnf(en, m, ctx, a, b, depth, err)
			}
			return nil
		}
	case *expr.ProjExpr:
		if nb, ok := b.(*expr.ProjExpr); ok && na.First == nb.First {
			if err := unify(en, m, ctx, na.Arg, nb.Arg, depth+1); err != nil {
				return fallbackToWhnf(en, m, ctx, a, b, depth, err)
			}
			return nil
		}
	case *expr.HEqExpr:
		if nb, ok := b.(*expr.HEqExpr); ok {
			if err := unify(en, m, ctx, na.Lhs, nb.Lhs, depth+1); err != nil {
				return fallbackToWhnf(en, m, ctx, a, b, depth, err)
			}
			if err := unify(en, m, ctx, na.Rhs, nb.Rhs, depth+1); err != nil {
				return fallbackToWhnf(en, m, ctx, a, b, depth, err)
			}
			return nil
		}
	}

	// Case 4: Sort, Const, Var, Value require plain equality.
	switch a.(type) {
	case *expr.SortExpr, *expr.ConstExpr, *expr.VarExpr, *expr.ValueExpr:
		if expr.ExprEq(a, b) {
			return nil
		}
		return kerr.FailedToUnifyErr(en, ctx, a, b)
	}

	// Case 5/6: reduce both sides one whnf step and retry, or give up.
	return fallbackToWhnf(en, m, ctx, a, b, depth, kerr.FailedToUnifyErr(en, ctx, a, b))
}

func unifyBinder(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, nameHint string, domA, bodyA, domB, bodyB expr.Expr, depth int) error {
	if err := unify(en, m, ctx, domA, domB, depth+1); err != nil {
		return fallbackToWhnf(en, m, ctx, domA, domB, depth, err)
	}
	return unify(en, m, ctx.Extend(nameHint, domA), bodyA, bodyB, depth+1)
}

// fallbackToWhnf implements spec.md §4.5 case 5: "Whnf both; if either
// progressed, recurse" when the structural cases above didn't match or
// didn't succeed. prior carries the error the structural attempt produced,
// returned unchanged if whnf makes no progress on either side (case 6).
func fallbackToWhnf(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, a, b expr.Expr, depth int, prior error) error {
	wa, err := norm.Whnf(en, m, a)
	if err != nil {
		return err
	}
	wb, err := norm.Whnf(en, m, b)
	if err != nil {
		return err
	}
	if wa == a && wb == b {
		if prior != nil {
			return prior
		}
		return kerr.FailedToUnifyErr(en, ctx, a, b)
	}
	return unify(en, m, ctx, wa, wb, depth+1)
}

// asFlexApp reports whether e is a bare metavariable or a metavariable
// applied to a spine of arguments, returning the metavariable's id and the
// spine (nil for the bare case). Any MetaVarExpr reaching here is flexible:
// the caller already ran m.InstantiateMetavars, which would have replaced
// an assigned one.
func asFlexApp(e expr.Expr) (int64, []expr.Expr, bool) {
	switch n := e.(type) {
	case *expr.MetaVarExpr:
		return n.ID, nil, true
	case *expr.AppExpr:
		if mv, ok := n.Fn.(*expr.MetaVarExpr); ok {
			return mv.ID, n.Args, true
		}
	}
	return 0, nil, false
}

// solveFlex attempts the decidable pattern fragment of spec.md §4.5 "Simple
// higher-order match": ?m a1 ... an ≡ t succeeds when a1..an are distinct
// bound variables, assigning ?m := Lambda(...) t[ai := Var(n-1-i)]. Returns
// (false, nil) — not solved, not an error — when the spine isn't a pattern,
// so the caller can fall through to the rigid-rigid/whnf cases instead.
func solveFlex(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, id int64, args []expr.Expr, target expr.Expr, depth int) (bool, error) {
	root := m.Root(id)
	idxs, ok := distinctVarSpine(args)
	if !ok {
		return false, nil
	}

	m.SetState(root, mvar.Processing)

	body, ok := abstractPattern(target, idxs)
	if !ok {
		m.SetState(root, mvar.Unprocessed)
		return false, nil
	}
	defer m.SetState(root, mvar.Processed)

	value := body
	for k := len(idxs) - 1; k >= 0; k-- {
		domain, nameHint := ctxEntryFor(ctx, idxs[k])
		value = expr.MkLambda(nameHint, domain, value)
	}

	if err := m.Assign(root, value); err != nil {
		return false, err
	}
	klog.UnifyDebug("pattern-solved ?%d at depth %d", root, depth)
	return true, nil
}

// distinctVarSpine reports whether args are all Var nodes with pairwise
// distinct indices, returning those indices in application order.
func distinctVarSpine(args []expr.Expr) ([]uint32, bool) {
	seen := make(map[uint32]bool, len(args))
	idxs := make([]uint32, len(args))
	for i, a := range args {
		v, ok := a.(*expr.VarExpr)
		if !ok || seen[v.Idx] {
			return nil, false
		}
		seen[v.Idx] = true
		idxs[i] = v.Idx
	}
	return idxs, true
}

// ctxEntryFor returns the (domain, name hint) of the context entry bound at
// de Bruijn index idx. ctx[i] is bound at index len(ctx)-1-i (expr.Ctx's
// convention), so idx's entry sits at len(ctx)-1-idx.
func ctxEntryFor(ctx expr.Ctx, idx uint32) (expr.Expr, string) {
	i := len(ctx) - 1 - int(idx)
	entry := ctx[i]
	return entry.Domain, entry.NameHint
}

// abstractPattern replaces each free occurrence of Var(idxs[k]) in t with a
// newly bound variable at position len(idxs)-1-k — the inverse of
// expr.Instantiate — so the result can be wrapped in len(idxs) lambdas, one
// per pattern variable, outermost first. Fails (false) if t mentions any
// free variable not in idxs: the "simple" pattern fragment does not attempt
// to re-derive a value for a dependency outside the pattern (spec.md §4.5
// "More general HO unification is deferred").
func abstractPattern(t expr.Expr, idxs []uint32) (expr.Expr, bool) {
	n := uint32(len(idxs))
	pos := make(map[uint32]uint32, n)
	for k, idx := range idxs {
		pos[idx] = n - 1 - uint32(k)
	}
	return abstractRec(t, pos, 0)
}

func abstractRec(e expr.Expr, pos map[uint32]uint32, depth uint32) (expr.Expr, bool) {
	switch n := e.(type) {
	case *expr.VarExpr:
		if n.Idx < depth {
			return e, true
		}
		ambient := n.Idx - depth
		newAmbient, ok := pos[ambient]
		if !ok {
			return nil, false
		}
		return expr.MkVar(newAmbient + depth), true
	case *expr.ConstExpr, *expr.SortExpr, *expr.ValueExpr:
		return e, true
	case *expr.MetaVarExpr:
		// A different, still-unassigned metavariable's eventual value is
		// unknown; conservatively leave it untouched rather than guess
		// whether it depends on the pattern variables.
		return e, true
	case *expr.AppExpr:
		fn, ok := abstractRec(n.Fn, pos, depth)
		if !ok {
			return nil, false
		}
		args := make([]expr.Expr, len(n.Args))
		for i, a := range n.Args {
			arg, ok := abstractRec(a, pos, depth)
			if !ok {
				return nil, false
			}
			args[i] = arg
		}
		return expr.MkApp(fn, args...), true
	case *expr.LambdaExpr:
		dom, ok := abstractRec(n.Domain, pos, depth)
		if !ok {
			return nil, false
		}
		body, ok := abstractRec(n.Body, pos, depth+1)
		if !ok {
			return nil, false
		}
		return expr.MkLambda(n.NameHint, dom, body), true
	case *expr.PiExpr:
		dom, ok := abstractRec(n.Domain, pos, depth)
		if !ok {
			return nil, false
		}
		body, ok := abstractRec(n.Body, pos, depth+1)
		if !ok {
			return nil, false
		}
		return expr.MkPi(n.NameHint, dom, body), true
	case *expr.SigmaExpr:
		dom, ok := abstractRec(n.Domain, pos, depth)
		if !ok {
			return nil, false
		}
		body, ok := abstractRec(n.Body, pos, depth+1)
		if !ok {
			return nil, false
		}
		return expr.MkSigma(n.NameHint, dom, body), true
	case *expr.PairExpr:
		first, ok := abstractRec(n.First, pos, depth)
		if !ok {
			return nil, false
		}
		second, ok := abstractRec(n.Second, pos, depth)
		if !ok {
			return nil, false
		}
		typ, ok := abstractRec(n.Type, pos, depth)
		if !ok {
			return nil, false
		}
		return expr.MkPair(first, second, typ), true
	case *expr.ProjExpr:
		arg, ok := abstractRec(n.Arg, pos, depth)
		if !ok {
			return nil, false
		}
		return expr.MkProj(n.First, arg), true
	case *expr.LetExpr:
		var typ expr.Expr
		if n.Type != nil {
			var ok bool
			typ, ok = abstractRec(n.Type, pos, depth)
			if !ok {
				return nil, false
			}
		}
		val, ok := abstractRec(n.Value, pos, depth)
		if !ok {
			return nil, false
		}
		body, ok := abstractRec(n.Body, pos, depth+1)
		if !ok {
			return nil, false
		}
		return expr.MkLet(n.NameHint, typ, val, body), true
	case *expr.HEqExpr:
		lhs, ok := abstractRec(n.Lhs, pos, depth)
		if !ok {
			return nil, false
		}
		rhs, ok := abstractRec(n.Rhs, pos, depth)
		if !ok {
			return nil, false
		}
		return expr.MkHEq(lhs, rhs), true
	default:
		return e, true
	}
}
