// Package infer implements the kernel's type checker (entity U in
// spec.md §4.5): infer_type, check, and the Declare*Checked wrappers that
// sit above internal/kernel/env to enforce "every Definition/Postulate type
// must itself type-check" without an env<->infer import cycle (see
// DESIGN.md on internal/kernel/env's layering decision). It is the one
// package that imports env, norm, mvar, and unify together, since it is the
// only component that needs all four at once (spec.md §2 "U... calls N,
// which calls S/E/T").
package infer

import (
	"fmt"

	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/kerr"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/kernel/norm"
	"kernelnerd/internal/kernel/unify"
	"kernelnerd/internal/klog"
)

// Infer computes the type of e in ctx (spec.md §4.5 "infer_type"). m may be
// nil, meaning e must not contain any metavariable (MetaVar nodes have no
// well-defined type without an owning MEnv to allocate their type-hole in —
// see the MetaVar case below).
func Infer(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, e expr.Expr) (expr.Expr, error) {
	timer := klog.StartTimer(klog.CategoryInfer, "infer")
	defer timer.Stop()
	if m != nil {
		if err := m.CheckInterrupted(); err != nil {
			return nil, err
		}
	}

	switch n := e.(type) {
	case *expr.VarExpr:
		return inferVar(ctx, n)
	case *expr.ConstExpr:
		return inferConst(en, ctx, n)
	case *expr.SortExpr:
		return expr.MkSort(expr.LSucc(n.Level)), nil
	case *expr.AppExpr:
		return inferApp(en, m, ctx, n)
	case *expr.LambdaExpr:
		return inferLambda(en, m, ctx, n)
	case *expr.PiExpr:
		return inferPi(en, m, ctx, n)
	case *expr.SigmaExpr:
		return inferSigma(en, m, ctx, n)
	case *expr.PairExpr:
		return inferPair(en, m, ctx, n)
	case *expr.ProjExpr:
		return inferProj(en, m, ctx, n)
	case *expr.LetExpr:
		return inferLet(en, m, ctx, n)
	case *expr.HEqExpr:
		return inferHEq(en, m, ctx, n)
	case *expr.MetaVarExpr:
		return inferMetaVar(m, n)
	case *expr.ValueExpr:
		return n.V.Type(), nil
	default:
		return nil, fmt.Errorf("infer: unhandled expr kind %v", e.Kind())
	}
}

// Check requires e to have type typ in ctx, per spec.md §4.5 "check(e, T,
// ctx) = infer(e, ctx) then require is_convertible(result, T, ctx), else
// def_type_mismatch" — the spec reuses DefTypeMismatch for every check-site
// mismatch, not just internal/kernel/env's declaration path.
func Check(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, e expr.Expr, typ expr.Expr) error {
	got, err := Infer(en, m, ctx, e)
	if err != nil {
		return err
	}
	ok, err := convertible(en, m, ctx, got, typ)
	if err != nil {
		return err
	}
	if !ok {
		return kerr.DefTypeMismatchErr(en, ctx, got, typ)
	}
	return nil
}

// convertible wraps norm.IsSubtype (got <= expected, cumulative — spec.md
// §4.4 "flows ... through ... the right operand of top-level checks") with
// the unify package wired in as the metavar-mismatch escalation path (spec.md
// §4.4 "fall back to the unifier"). Every check-site below calls this, not
// norm.IsConvertible directly, so e.g. Check(Int, Sort(Succ(Zero))) accepts
// Int : Sort(Zero) rather than demanding strict universe equality.
func convertible(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, got, expected expr.Expr) (bool, error) {
	return norm.IsSubtype(en, m, ctx, got, expected, unify.Fallback(en, m))
}

func inferVar(ctx expr.Ctx, n *expr.VarExpr) (expr.Expr, error) {
	idx := int(n.Idx)
	if idx < 0 || idx >= len(ctx) {
		return nil, fmt.Errorf("infer: Var(%d) out of range in context of length %d (ill-scoped term)", n.Idx, len(ctx))
	}
	// ctx[i] is bound at de Bruijn index len(ctx)-1-i (expr.Ctx's
	// convention); Var(idx)'s entry sits at len(ctx)-1-idx, and its stored
	// domain type was written in the frame below it, so it needs lifting by
	// idx+1 binders to be valid at the point of use (spec.md §4.5
	// "Var(i) -> lift ctx[i].type by i+1").
	entry := ctx[len(ctx)-1-idx]
	return expr.Lift(entry.Domain, 0, int32(idx+1)), nil
}

func inferConst(en *env.Env, ctx expr.Ctx, n *expr.ConstExpr) (expr.Expr, error) {
	obj, ok := en.FindObject(n.Name)
	if !ok {
		return nil, kerr.UnknownNameErr(en, n.Name)
	}
	switch o := obj.(type) {
	case *env.Postulate:
		return o.Type, nil
	case *env.Definition:
		return o.Type, nil
	case *env.Builtin:
		return o.Value.Type(), nil
	default:
		return nil, kerr.UnknownNameErr(en, n.Name)
	}
}

func inferApp(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, n *expr.AppExpr) (expr.Expr, error) {
	t, err := Infer(en, m, ctx, n.Fn)
	if err != nil {
		return nil, err
	}
	for _, arg := range n.Args {
		w, err := norm.Whnf(en, m, t)
		if err != nil {
			return nil, err
		}
		pi, ok := w.(*expr.PiExpr)
		if !ok {
			return nil, kerr.FunctionExpectedErr(en, ctx, w)
		}
		argType, err := Infer(en, m, ctx, arg)
		if err != nil {
			return nil, err
		}
		ok, err = convertible(en, m, ctx, argType, pi.Domain)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, kerr.AppTypeMismatchErr(en, ctx, argType, pi.Domain)
		}
		t = expr.Instantiate(pi.Body, 0, []expr.Expr{arg})
	}
	return t, nil
}

// checkIsType requires a's inferred type to whnf to a Sort, returning the
// level (spec.md §4.5 "A must be a type").
func checkIsType(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, a expr.Expr) (*expr.Level, error) {
	t, err := Infer(en, m, ctx, a)
	if err != nil {
		return nil, err
	}
	w, err := norm.Whnf(en, m, t)
	if err != nil {
		return nil, err
	}
	sort, ok := w.(*expr.SortExpr)
	if !ok {
		return nil, kerr.TypeExpectedErr(en, ctx, w)
	}
	return sort.Level, nil
}

func inferLambda(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, n *expr.LambdaExpr) (expr.Expr, error) {
	if _, err := checkIsType(en, m, ctx, n.Domain); err != nil {
		return nil, err
	}
	bodyType, err := Infer(en, m, ctx.Extend(n.NameHint, n.Domain), n.Body)
	if err != nil {
		return nil, err
	}
	return expr.MkPi(n.NameHint, n.Domain, bodyType), nil
}

// piResultLevel computes the level of Pi(_:Sort(u), Sort(v)) per spec.md
// §4.5 "result Sort(Max(u,v)) (with Max(u, Zero)=Zero for
// Prop-impredicativity — design choice, document in code)": a Pi whose
// codomain lands in the bottom universe (Prop/Sort(Zero)) stays in
// Sort(Zero) regardless of how large the domain's universe is, which is
// what makes Prop impredicative (a Pi quantifying over any type can still
// itself be a proposition).
func piResultLevel(u, v *expr.Level) *expr.Level {
	if v.Kind() == expr.LevelZero {
		return expr.LZero()
	}
	return expr.LMax(u, v)
}

func inferPi(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, n *expr.PiExpr) (expr.Expr, error) {
	u, err := checkIsType(en, m, ctx, n.Domain)
	if err != nil {
		return nil, err
	}
	v, err := checkIsType(en, m, ctx.Extend(n.NameHint, n.Domain), n.Body)
	if err != nil {
		return nil, err
	}
	return expr.MkSort(piResultLevel(u, v)), nil
}

// inferSigma mirrors inferPi's universe computation, without the
// impredicativity special case: a dependent pair carrying a proof
// (Sort(Zero)) alongside non-proof data still needs to record the larger
// universe, since (unlike a Pi) a Sigma's second component is actually
// present in the term, not merely quantified over.
func inferSigma(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, n *expr.SigmaExpr) (expr.Expr, error) {
	u, err := checkIsType(en, m, ctx, n.Domain)
	if err != nil {
		return nil, err
	}
	v, err := checkIsType(en, m, ctx.Extend(n.NameHint, n.Domain), n.Body)
	if err != nil {
		return nil, err
	}
	return expr.MkSort(expr.LMax(u, v)), nil
}

func inferPair(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, n *expr.PairExpr) (expr.Expr, error) {
	w, err := norm.Whnf(en, m, n.Type)
	if err != nil {
		return nil, err
	}
	sigma, ok := w.(*expr.SigmaExpr)
	if !ok {
		return nil, kerr.PairTypeMismatchErr(en, ctx, n.Type, w)
	}
	firstType, err := Infer(en, m, ctx, n.First)
	if err != nil {
		return nil, err
	}
	ok, err = convertible(en, m, ctx, firstType, sigma.Domain)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, kerr.PairTypeMismatchErr(en, ctx, firstType, sigma.Domain)
	}
	expectedSecond := expr.Instantiate(sigma.Body, 0, []expr.Expr{n.First})
	secondType, err := Infer(en, m, ctx, n.Second)
	if err != nil {
		return nil, err
	}
	ok, err = convertible(en, m, ctx, secondType, expectedSecond)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, kerr.PairTypeMismatchErr(en, ctx, secondType, expectedSecond)
	}
	return n.Type, nil
}

func inferProj(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, n *expr.ProjExpr) (expr.Expr, error) {
	argType, err := Infer(en, m, ctx, n.Arg)
	if err != nil {
		return nil, err
	}
	w, err := norm.Whnf(en, m, argType)
	if err != nil {
		return nil, err
	}
	sigma, ok := w.(*expr.SigmaExpr)
	if !ok {
		return nil, kerr.PairTypeMismatchErr(en, ctx, argType, w)
	}
	if n.First {
		return sigma.Domain, nil
	}
	return expr.Instantiate(sigma.Body, 0, []expr.Expr{expr.MkProj(true, n.Arg)}), nil
}

func inferLet(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, n *expr.LetExpr) (expr.Expr, error) {
	var typ expr.Expr
	if n.Type != nil {
		if err := Check(en, m, ctx, n.Value, n.Type); err != nil {
			return nil, err
		}
		typ = n.Type
	} else {
		inferred, err := Infer(en, m, ctx, n.Value)
		if err != nil {
			return nil, err
		}
		typ = inferred
	}
	bodyType, err := Infer(en, m, ctx.Extend(n.NameHint, typ), n.Body)
	if err != nil {
		return nil, err
	}
	// Zeta: the body's type may depend on the let-bound name, so it is
	// instantiated with the value, the same way whnf reduces Let itself.
	return expr.Instantiate(bodyType, 0, []expr.Expr{n.Value}), nil
}

// inferHEq types HEq(lhs, rhs) as Sort(Zero) (the propositional universe)
// once both sides are individually well-typed; heterogeneous equality
// deliberately does not require lhs's and rhs's types to match each other
// (spec.md §3 "HEq(lhs, rhs) — heterogeneous equality").
func inferHEq(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, n *expr.HEqExpr) (expr.Expr, error) {
	if _, err := Infer(en, m, ctx, n.Lhs); err != nil {
		return nil, err
	}
	if _, err := Infer(en, m, ctx, n.Rhs); err != nil {
		return nil, err
	}
	return expr.MkSort(expr.LZero()), nil
}

// inferMetaVar reports the type of a metavariable occurrence. This kernel's
// MetaVarExpr carries only the context it was introduced in, not a type (no
// mk_metavar call ever takes one — spec.md §6 "mk_metavar(ctx)"); lacking
// anywhere else to record it, infer allocates a second, fresh metavariable
// of the same context to stand for the (likewise unknown) type, leaving it
// to whichever caller eventually assigns the term metavariable to also
// narrow its type metavariable by checking the assignment. Documented as an
// open-question resolution in DESIGN.md rather than spec.md §9's own
// (differently scoped) open question about Bool proof irrelevance.
func inferMetaVar(m *mvar.MEnv, n *expr.MetaVarExpr) (expr.Expr, error) {
	if m == nil {
		return nil, fmt.Errorf("infer: MetaVar(%d) encountered with no owning MEnv", n.ID)
	}
	ctx := m.Ctx(n.ID)
	return m.MkMetaVar(ctx), nil
}
