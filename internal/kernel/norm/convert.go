package norm

import (
	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/mvar"
)

// UnifyFallback is consulted when whnf heads disagree structurally and
// either side still mentions a metavariable (spec.md §4.4 "On structural
// mismatch where either side contains metavariables, fall back to the
// unifier"). norm itself never imports the unify package — unify imports
// norm for Whnf/Normalize, so wiring the dependency the other way would
// cycle; callers that own both (internal/kernel/infer) pass their
// unifier's entry point in here instead.
type UnifyFallback func(ctx expr.Ctx, a, b expr.Expr) (bool, error)

// IsConvertible reports whether a and b are definitionally equal under ctx
// (spec.md §4.4 "is_convertible"): beta/delta/iota/zeta reduction, eta for
// functions and pairs, and strict universe equivalence — no cumulativity.
// Use this for a symmetric "are these two terms the same" query; use
// IsSubtype at a check-site, where one side is the expected type.
func IsConvertible(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, a, b expr.Expr, fallback UnifyFallback) (bool, error) {
	return isConvertible(en, m, ctx, a, b, false, fallback)
}

// IsSubtype reports whether sub is convertible to super, cumulatively: the
// one asymmetric entry point into is_convertible, run with sub on the left
// (spec.md §4.4 "Sort(u) <= Sort(v) when env.is_ge(v, u)" and "cumulativity
// ... flows ... through ... the right operand of top-level checks"). Every
// check-site in internal/kernel/infer (Check, an applied argument against a
// Pi's domain, a pair component against its Sigma field) calls this, not
// IsConvertible, so that e.g. a Sort(Zero)-typed term is accepted where a
// Sort(Succ(Zero)) is expected.
func IsSubtype(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, sub, super expr.Expr, fallback UnifyFallback) (bool, error) {
	return isConvertible(en, m, ctx, sub, super, true, fallback)
}

func isConvertible(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, a, b expr.Expr, cumulative bool, fallback UnifyFallback) (bool, error) {
	if m != nil {
		if err := m.CheckInterrupted(); err != nil {
			return false, err
		}
	}
	if a == b {
		return true, nil
	}

	wa, err := whnf(en, m, a)
	if err != nil {
		return false, err
	}
	wb, err := whnf(en, m, b)
	if err != nil {
		return false, err
	}
	if wa == wb {
		return true, nil
	}

	// Eta for functions: exactly one side is a Lambda.
	if lam, ok := wa.(*expr.LambdaExpr); ok {
		if _, ok2 := wb.(*expr.LambdaExpr); !ok2 {
			return isConvertible(en, m, ctx.Extend(lam.NameHint, lam.Domain), lam.Body, etaExpandFn(lam.Domain, wb), false, fallback)
		}
	} else if lam, ok := wb.(*expr.LambdaExpr); ok {
		return isConvertible(en, m, ctx.Extend(lam.NameHint, lam.Domain), etaExpandFn(lam.Domain, wa), lam.Body, false, fallback)
	}

	// Eta for pairs: exactly one side is a Pair.
	if pair, ok := wa.(*expr.PairExpr); ok {
		if _, ok2 := wb.(*expr.PairExpr); !ok2 {
			return etaPairConvertible(en, m, ctx, pair, wb, fallback)
		}
	} else if pair, ok := wb.(*expr.PairExpr); ok {
		return etaPairConvertible(en, m, ctx, pair, wa, fallback)
	}

	switch na := wa.(type) {
	case *expr.VarExpr:
		nb, ok := wb.(*expr.VarExpr)
		if !ok {
			break
		}
		return na.Idx == nb.Idx, nil

	case *expr.ConstExpr:
		nb, ok := wb.(*expr.ConstExpr)
		if !ok || na.Name != nb.Name || len(na.Levels) != len(nb.Levels) {
			break
		}
		for i := range na.Levels {
			if !expr.LevelEq(na.Levels[i], nb.Levels[i]) {
				return false, nil
			}
		}
		return true, nil

	case *expr.SortExpr:
		nb, ok := wb.(*expr.SortExpr)
		if !ok {
			break
		}
		if cumulative {
			// Sort(u) <= Sort(v) iff env.is_ge(v, u).
			return en.LevelGe(nb.Level, na.Level), nil
		}
		return expr.LevelEq(na.Level, nb.Level), nil

	case *expr.PiExpr:
		nb, ok := wb.(*expr.PiExpr)
		if !ok {
			break
		}
		domOk, err := isConvertible(en, m, ctx, na.Domain, nb.Domain, false, fallback)
		if err != nil || !domOk {
			return false, err
		}
		return isConvertible(en, m, ctx.Extend(na.NameHint, na.Domain), na.Body, nb.Body, cumulative, fallback)

	case *expr.LambdaExpr:
		nb, ok := wb.(*expr.LambdaExpr)
		if !ok {
			break
		}
		domOk, err := isConvertible(en, m, ctx, na.Domain, nb.Domain, false, fallback)
		if err != nil || !domOk {
			return false, err
		}
		return isConvertible(en, m, ctx.Extend(na.NameHint, na.Domain), na.Body, nb.Body, false, fallback)

	case *expr.SigmaExpr:
		nb, ok := wb.(*expr.SigmaExpr)
		if !ok {
			break
		}
		domOk, err := isConvertible(en, m, ctx, na.Domain, nb.Domain, false, fallback)
		if err != nil || !domOk {
			return false, err
		}
		return isConvertible(en, m, ctx.Extend(na.NameHint, na.Domain), na.Body, nb.Body, false, fallback)

	case *expr.PairExpr:
		nb, ok := wb.(*expr.PairExpr)
		if !ok {
			break
		}
		firstOk, err := isConvertible(en, m, ctx, na.First, nb.First, false, fallback)
		if err != nil || !firstOk {
			return false, err
		}
		return isConvertible(en, m, ctx, na.Second, nb.Second, false, fallback)

	case *expr.ProjExpr:
		nb, ok := wb.(*expr.ProjExpr)
		if !ok || na.First != nb.First {
			break
		}
		return isConvertible(en, m, ctx, na.Arg, nb.Arg, false, fallback)

	case *expr.AppExpr:
		nb, ok := wb.(*expr.AppExpr)
		if !ok || len(na.Args) != len(nb.Args) {
			break
		}
		fnOk, err := isConvertible(en, m, ctx, na.Fn, nb.Fn, false, fallback)
		if err != nil || !fnOk {
			return false, err
		}
		for i := range na.Args {
			argOk, err := isConvertible(en, m, ctx, na.Args[i], nb.Args[i], false, fallback)
			if err != nil || !argOk {
				return false, err
			}
		}
		return true, nil

	case *expr.HEqExpr:
		nb, ok := wb.(*expr.HEqExpr)
		if !ok {
			break
		}
		lhsOk, err := isConvertible(en, m, ctx, na.Lhs, nb.Lhs, false, fallback)
		if err != nil || !lhsOk {
			return false, err
		}
		return isConvertible(en, m, ctx, na.Rhs, nb.Rhs, false, fallback)

	case *expr.ValueExpr:
		nb, ok := wb.(*expr.ValueExpr)
		if !ok {
			break
		}
		return na.V.Equals(nb.V), nil
	}

	if (wa.HasMetavar() || wb.HasMetavar()) && fallback != nil {
		return fallback(ctx, wa, wb)
	}
	return false, nil
}

// etaExpandFn returns App(lift(f, 0, 1), Var(0)), the body of f's eta
// expansion Lambda(domain, App(lift(f, 0, 1), Var(0))) (spec.md §4.4 "eta
// for functions"). Callers compare it with a lambda's body under the
// extended context, so the Lambda itself is not built and domain is unused.
func etaExpandFn(domain, f expr.Expr) expr.Expr {
	lifted := expr.Lift(f, 0, 1)
	return expr.MkApp(lifted, expr.MkVar(0))
}

// etaPairConvertible compares pair against other (not itself a Pair) by
// eta-expanding other into Pair(Proj(true,other), Proj(false,other),
// pair.Type) (spec.md §4.4 "eta ... for pairs").
func etaPairConvertible(en *env.Env, m *mvar.MEnv, ctx expr.Ctx, pair *expr.PairExpr, other expr.Expr, fallback UnifyFallback) (bool, error) {
	firstOk, err := isConvertible(en, m, ctx, pair.First, expr.MkProj(true, other), false, fallback)
	if err != nil || !firstOk {
		return false, err
	}
	return isConvertible(en, m, ctx, pair.Second, expr.MkProj(false, other), false, fallback)
}
