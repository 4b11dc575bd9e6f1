// Package norm implements the kernel's normalizer and definitional-equality
// checker (entity N in spec.md §4.4): weak-head reduction, full
// normalization under binders, and universe-aware convertibility with
// cumulativity, eta for functions and pairs, and a unifier escape hatch for
// metavariable-headed mismatches.
package norm

import (
	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/klog"
)

// Whnf reduces e to weak-head normal form (spec.md §4.4). m may be nil,
// meaning no metavariable is ever treated as assigned and every
// non-opaque Definition is unfoldable (no menv policy to consult).
func Whnf(en *env.Env, m *mvar.MEnv, e expr.Expr) (expr.Expr, error) {
	timer := klog.StartTimer(klog.CategoryNorm, "whnf")
	defer timer.Stop()
	return whnf(en, m, e)
}

func whnf(en *env.Env, m *mvar.MEnv, e expr.Expr) (expr.Expr, error) {
	for {
		if m != nil {
			if err := m.CheckInterrupted(); err != nil {
				return nil, err
			}
		}
		switch n := e.(type) {
		case *expr.AppExpr:
			fn, err := whnf(en, m, n.Fn)
			if err != nil {
				return nil, err
			}
			if lam, ok := fn.(*expr.LambdaExpr); ok {
				e = expr.ApplyBeta(lam, n.Args)
				continue
			}
			if v, ok := headValue(en, fn); ok {
				// The hook sees its operands in whnf, so an argument that
				// reduces to a literal is passed as that literal.
				wargs := make([]expr.Expr, len(n.Args))
				for i, a := range n.Args {
					if wargs[i], err = whnf(en, m, a); err != nil {
						return nil, err
					}
				}
				if red := v.Normalize(wargs); red != nil {
					e = red
					continue
				}
			}
			if fn == n.Fn {
				return e, nil
			}
			e = expr.MkApp(fn, n.Args...)
			continue

		case *expr.ConstExpr:
			def, ok := unfoldableDefinition(en, m, n.Name)
			if !ok {
				return e, nil
			}
			e = def.Value
			continue

		case *expr.ProjExpr:
			arg, err := whnf(en, m, n.Arg)
			if err != nil {
				return nil, err
			}
			if pair, ok := arg.(*expr.PairExpr); ok {
				if n.First {
					e = pair.First
				} else {
					e = pair.Second
				}
				continue
			}
			if arg == n.Arg {
				return e, nil
			}
			e = expr.MkProj(n.First, arg)
			continue

		case *expr.LetExpr:
			e = expr.Instantiate(n.Body, 0, []expr.Expr{n.Value})
			continue

		case *expr.MetaVarExpr:
			if m == nil {
				return e, nil
			}
			val, ok := m.Value(n.ID)
			if !ok {
				return e, nil
			}
			e = expr.ApplyLocalCtx(val, n.LocalCtx)
			continue

		default:
			return e, nil
		}
	}
}

// headValue resolves fn (already in whnf) to an expr.Value if it is one
// directly, or a reference to an env.Builtin by Const name.
func headValue(en *env.Env, fn expr.Expr) (expr.Value, bool) {
	if v, ok := fn.(*expr.ValueExpr); ok {
		return v.V, true
	}
	if c, ok := fn.(*expr.ConstExpr); ok {
		if obj, found := en.FindObject(c.Name); found {
			if b, ok := obj.(*env.Builtin); ok {
				return b.Value, true
			}
		}
	}
	return nil, false
}

// unfoldableDefinition looks up name and returns its Definition only when
// it is non-opaque and permitted by m's unfoldable-set policy (spec.md
// §4.4 "Const(n) -> if the environment has a non-opaque Definition for n
// and n is in the unfoldable set, unfold (delta)").
func unfoldableDefinition(en *env.Env, m *mvar.MEnv, name string) (*env.Definition, bool) {
	obj, ok := en.FindObject(name)
	if !ok {
		return nil, false
	}
	def, ok := obj.(*env.Definition)
	if !ok || def.Opaque {
		return nil, false
	}
	if m != nil && !m.IsUnfoldable(name) {
		return nil, false
	}
	return def, true
}

// Normalize reduces e to full normal form, recursing under binders and
// memoizing by pointer identity within this one call (spec.md §4.4
// "memoizing by pointer identity within one call").
func Normalize(en *env.Env, m *mvar.MEnv, e expr.Expr) (expr.Expr, error) {
	timer := klog.StartTimer(klog.CategoryNorm, "normalize")
	defer timer.Stop()
	memo := make(map[expr.Expr]expr.Expr)
	return normalizeMemo(en, m, e, memo)
}

func normalizeMemo(en *env.Env, m *mvar.MEnv, e expr.Expr, memo map[expr.Expr]expr.Expr) (expr.Expr, error) {
	if v, ok := memo[e]; ok {
		return v, nil
	}
	if m != nil {
		if err := m.CheckInterrupted(); err != nil {
			return nil, err
		}
	}
	w, err := whnf(en, m, e)
	if err != nil {
		return nil, err
	}

	var out expr.Expr
	switch n := w.(type) {
	case *expr.AppExpr:
		fn, err := normalizeMemo(en, m, n.Fn, memo)
		if err != nil {
			return nil, err
		}
		args := make([]expr.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i], err = normalizeMemo(en, m, a, memo)
			if err != nil {
				return nil, err
			}
		}
		out = expr.MkApp(fn, args...)
	case *expr.LambdaExpr:
		out, err = normalizeAbst(en, m, n.NameHint, n.Domain, n.Body, expr.MkLambda, memo)
	case *expr.PiExpr:
		out, err = normalizeAbst(en, m, n.NameHint, n.Domain, n.Body, expr.MkPi, memo)
	case *expr.SigmaExpr:
		out, err = normalizeAbst(en, m, n.NameHint, n.Domain, n.Body, expr.MkSigma, memo)
	case *expr.PairExpr:
		first, e1 := normalizeMemo(en, m, n.First, memo)
		second, e2 := normalizeMemo(en, m, n.Second, memo)
		typ, e3 := normalizeMemo(en, m, n.Type, memo)
		if err = firstErr(e1, e2, e3); err != nil {
			return nil, err
		}
		out = expr.MkPair(first, second, typ)
	case *expr.ProjExpr:
		arg, e1 := normalizeMemo(en, m, n.Arg, memo)
		if e1 != nil {
			return nil, e1
		}
		out = expr.MkProj(n.First, arg)
	case *expr.HEqExpr:
		lhs, e1 := normalizeMemo(en, m, n.Lhs, memo)
		rhs, e2 := normalizeMemo(en, m, n.Rhs, memo)
		if err = firstErr(e1, e2); err != nil {
			return nil, err
		}
		out = expr.MkHEq(lhs, rhs)
	default:
		out = w
	}
	if err != nil {
		return nil, err
	}
	memo[e] = out
	return out, nil
}

func normalizeAbst(en *env.Env, m *mvar.MEnv, nameHint string, domain, body expr.Expr, mk func(string, expr.Expr, expr.Expr) expr.Expr, memo map[expr.Expr]expr.Expr) (expr.Expr, error) {
	dom, err := normalizeMemo(en, m, domain, memo)
	if err != nil {
		return nil, err
	}
	b, err := normalizeMemo(en, m, body, memo)
	if err != nil {
		return nil, err
	}
	return mk(nameHint, dom, b), nil
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
