package expr

// pairKey identifies an (a, b) comparison in progress, used to terminate
// ExprEq on shared sub-DAGs without exponential blowup.
type pairKey struct{ a, b Expr }

// ExprEq is alpha-equivalence: structural equality that ignores binder
// name hints, short-circuits on pointer equality and hash inequality, and
// uses a visited set of pairs to terminate on shared sub-DAGs (spec.md
// §4.1). Because every Expr reachable through this package's constructors
// is already hash-consed, alpha-equal terms built via mk* are normally
// pointer-identical; ExprEq exists for terms a caller has not (yet) run
// back through the constructors, e.g. while comparing unification
// candidates mid-algorithm.
func ExprEq(a, b Expr) bool {
	return exprEqRec(a, b, make(map[pairKey]bool))
}

func exprEqRec(a, b Expr, visited map[pairKey]bool) bool {
	if a == b {
		return true
	}
	if a.Hash() != b.Hash() {
		return false
	}
	if a.Kind() != b.Kind() {
		return false
	}
	key := pairKey{a, b}
	if visited[key] {
		return true
	}
	visited[key] = true

	switch na := a.(type) {
	case *VarExpr:
		nb := b.(*VarExpr)
		return na.Idx == nb.Idx
	case *ConstExpr:
		nb := b.(*ConstExpr)
		return na.Name == nb.Name && levelsEq(na.Levels, nb.Levels)
	case *SortExpr:
		nb := b.(*SortExpr)
		return na.Level == nb.Level
	case *AppExpr:
		nb := b.(*AppExpr)
		if len(na.Args) != len(nb.Args) {
			return false
		}
		if !exprEqRec(na.Fn, nb.Fn, visited) {
			return false
		}
		for i := range na.Args {
			if !exprEqRec(na.Args[i], nb.Args[i], visited) {
				return false
			}
		}
		return true
	case *LambdaExpr:
		nb := b.(*LambdaExpr)
		return exprEqRec(na.Domain, nb.Domain, visited) && exprEqRec(na.Body, nb.Body, visited)
	case *PiExpr:
		nb := b.(*PiExpr)
		return exprEqRec(na.Domain, nb.Domain, visited) && exprEqRec(na.Body, nb.Body, visited)
	case *SigmaExpr:
		nb := b.(*SigmaExpr)
		return exprEqRec(na.Domain, nb.Domain, visited) && exprEqRec(na.Body, nb.Body, visited)
	case *PairExpr:
		nb := b.(*PairExpr)
		return exprEqRec(na.First, nb.First, visited) &&
			exprEqRec(na.Second, nb.Second, visited) &&
			exprEqRec(na.Type, nb.Type, visited)
	case *ProjExpr:
		nb := b.(*ProjExpr)
		return na.First == nb.First && exprEqRec(na.Arg, nb.Arg, visited)
	case *LetExpr:
		nb := b.(*LetExpr)
		if (na.Type == nil) != (nb.Type == nil) {
			return false
		}
		if na.Type != nil && !exprEqRec(na.Type, nb.Type, visited) {
			return false
		}
		return exprEqRec(na.Value, nb.Value, visited) && exprEqRec(na.Body, nb.Body, visited)
	case *HEqExpr:
		nb := b.(*HEqExpr)
		return exprEqRec(na.Lhs, nb.Lhs, visited) && exprEqRec(na.Rhs, nb.Rhs, visited)
	case *MetaVarExpr:
		nb := b.(*MetaVarExpr)
		if na.ID != nb.ID || len(na.LocalCtx) != len(nb.LocalCtx) {
			return false
		}
		for i := range na.LocalCtx {
			ea, eb := na.LocalCtx[i], nb.LocalCtx[i]
			if ea.Kind != eb.Kind || ea.Start != eb.Start {
				return false
			}
			if ea.Kind == EntryLift {
				if ea.Offset != eb.Offset {
					return false
				}
				continue
			}
			if len(ea.Replacements) != len(eb.Replacements) {
				return false
			}
			for j := range ea.Replacements {
				if !exprEqRec(ea.Replacements[j], eb.Replacements[j], visited) {
					return false
				}
			}
		}
		return true
	case *ValueExpr:
		nb := b.(*ValueExpr)
		return na.V.Equals(nb.V)
	default:
		return false
	}
}
