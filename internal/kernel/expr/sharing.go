package expr

// MaxSharing visits a DAG and replaces every sub-expression by its
// canonical hash-consed twin, so the result is structurally identical but
// uses the smallest possible number of distinct nodes. It is idempotent
// (terminates immediately on a node whose MaxShared bit is already set)
// and memoizes by pointer identity within one call so shared sub-DAGs are
// only re-canonicalized once (spec.md §4.1).
func MaxSharing(e Expr) Expr {
	memo := make(map[Expr]Expr)
	return maxSharingRec(e, memo)
}

func maxSharingRec(e Expr, memo map[Expr]Expr) Expr {
	if e.MaxShared() {
		return e
	}
	if out, ok := memo[e]; ok {
		return out
	}

	var out Expr
	switch n := e.(type) {
	case *VarExpr:
		out = MkVar(n.Idx)
	case *ConstExpr:
		out = MkConst(n.Name, n.Levels...)
	case *SortExpr:
		out = MkSort(n.Level)
	case *AppExpr:
		fn := maxSharingRec(n.Fn, memo)
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = maxSharingRec(a, memo)
		}
		out = MkApp(fn, args...)
	case *LambdaExpr:
		out = MkLambda(n.NameHint, maxSharingRec(n.Domain, memo), maxSharingRec(n.Body, memo))
	case *PiExpr:
		out = MkPi(n.NameHint, maxSharingRec(n.Domain, memo), maxSharingRec(n.Body, memo))
	case *SigmaExpr:
		out = MkSigma(n.NameHint, maxSharingRec(n.Domain, memo), maxSharingRec(n.Body, memo))
	case *PairExpr:
		out = MkPair(maxSharingRec(n.First, memo), maxSharingRec(n.Second, memo), maxSharingRec(n.Type, memo))
	case *ProjExpr:
		out = MkProj(n.First, maxSharingRec(n.Arg, memo))
	case *LetExpr:
		var typ Expr
		if n.Type != nil {
			typ = maxSharingRec(n.Type, memo)
		}
		out = MkLet(n.NameHint, typ, maxSharingRec(n.Value, memo), maxSharingRec(n.Body, memo))
	case *HEqExpr:
		out = MkHEq(maxSharingRec(n.Lhs, memo), maxSharingRec(n.Rhs, memo))
	case *MetaVarExpr:
		entries := make([]LocalEntry, len(n.LocalCtx))
		for i, entry := range n.LocalCtx {
			entries[i] = entry
			if entry.Kind == EntryInst {
				reps := make([]Expr, len(entry.Replacements))
				for j, r := range entry.Replacements {
					reps[j] = maxSharingRec(r, memo)
				}
				entries[i].Replacements = reps
			}
		}
		out = MkMetaVar(n.ID, entries)
	case *ValueExpr:
		out = MkValue(n.V)
	default:
		out = e
	}

	out.exprNode().maxShared = true
	memo[e] = out
	return out
}
