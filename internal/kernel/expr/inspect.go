package expr

// Kind predicates (spec.md §6 Inspection API).

func IsVar(e Expr) bool     { return e.Kind() == KVar }
func IsConst(e Expr) bool   { return e.Kind() == KConst }
func IsSort(e Expr) bool    { return e.Kind() == KSort }
func IsApp(e Expr) bool     { return e.Kind() == KApp }
func IsLambda(e Expr) bool  { return e.Kind() == KLambda }
func IsPi(e Expr) bool      { return e.Kind() == KPi }
func IsSigma(e Expr) bool   { return e.Kind() == KSigma }
func IsPair(e Expr) bool    { return e.Kind() == KPair }
func IsProj(e Expr) bool    { return e.Kind() == KProj }
func IsLet(e Expr) bool     { return e.Kind() == KLet }
func IsHEq(e Expr) bool     { return e.Kind() == KHEq }
func IsMetaVar(e Expr) bool { return e.Kind() == KMetaVar }
func IsValue(e Expr) bool   { return e.Kind() == KValue }

// VarIdx returns the de Bruijn index of a Var node; panics otherwise.
func VarIdx(e Expr) uint32 { return e.(*VarExpr).Idx }

// NumArgs returns the argument count of an App node, 0 otherwise.
func NumArgs(e Expr) int {
	if app, ok := e.(*AppExpr); ok {
		return len(app.Args)
	}
	return 0
}

// Arg returns the i-th argument of an App node; panics if out of range or
// e is not an App.
func Arg(e Expr, i int) Expr { return e.(*AppExpr).Args[i] }

// AppFn returns the function position of an App node.
func AppFn(e Expr) Expr { return e.(*AppExpr).Fn }

// AbstDomain returns the domain of a Lambda/Pi/Sigma node.
func AbstDomain(e Expr) Expr {
	switch n := e.(type) {
	case *LambdaExpr:
		return n.Domain
	case *PiExpr:
		return n.Domain
	case *SigmaExpr:
		return n.Domain
	default:
		return nil
	}
}

// AbstBody returns the body of a Lambda/Pi/Sigma node.
func AbstBody(e Expr) Expr {
	switch n := e.(type) {
	case *LambdaExpr:
		return n.Body
	case *PiExpr:
		return n.Body
	case *SigmaExpr:
		return n.Body
	default:
		return nil
	}
}

// AbstName returns the diagnostic name hint of a Lambda/Pi/Sigma node.
func AbstName(e Expr) string {
	switch n := e.(type) {
	case *LambdaExpr:
		return n.NameHint
	case *PiExpr:
		return n.NameHint
	case *SigmaExpr:
		return n.NameHint
	default:
		return ""
	}
}

// HasFreeVar reports whether e has a free variable with index in
// [low, high). The cached FreeVarRange gives an O(1) "definitely not"
// answer when the ranges don't overlap; otherwise this falls back to an
// exact bounded traversal, since the cache is a summary, not an exact set.
func HasFreeVar(e Expr, low, high uint32) bool {
	fv := e.FreeVars()
	if fv.Closed() || high <= fv.Lo || low >= fv.Hi {
		return false
	}
	return hasFreeVarExact(e, low, high, 0)
}

func hasFreeVarExact(e Expr, low, high, depth uint32) bool {
	// e's cached range is in e's own local coordinate space (relative to
	// binders entered so far, i.e. depth of them). An outer index o in
	// [low, high) corresponds to e's local index o+depth, so the query
	// window in e's local frame is [low+depth, high+depth).
	if fv := e.FreeVars(); fv.Closed() || high+depth <= fv.Lo || low+depth >= fv.Hi {
		return false
	}
	switch n := e.(type) {
	case *VarExpr:
		return n.Idx >= low+depth && n.Idx < high+depth
	case *ConstExpr, *SortExpr, *ValueExpr:
		return false
	case *AppExpr:
		if hasFreeVarExact(n.Fn, low, high, depth) {
			return true
		}
		for _, a := range n.Args {
			if hasFreeVarExact(a, low, high, depth) {
				return true
			}
		}
		return false
	case *LambdaExpr:
		return hasFreeVarExact(n.Domain, low, high, depth) || hasFreeVarExact(n.Body, low, high, depth+1)
	case *PiExpr:
		return hasFreeVarExact(n.Domain, low, high, depth) || hasFreeVarExact(n.Body, low, high, depth+1)
	case *SigmaExpr:
		return hasFreeVarExact(n.Domain, low, high, depth) || hasFreeVarExact(n.Body, low, high, depth+1)
	case *PairExpr:
		return hasFreeVarExact(n.First, low, high, depth) ||
			hasFreeVarExact(n.Second, low, high, depth) ||
			hasFreeVarExact(n.Type, low, high, depth)
	case *ProjExpr:
		return hasFreeVarExact(n.Arg, low, high, depth)
	case *LetExpr:
		if n.Type != nil && hasFreeVarExact(n.Type, low, high, depth) {
			return true
		}
		return hasFreeVarExact(n.Value, low, high, depth) || hasFreeVarExact(n.Body, low, high, depth+1)
	case *HEqExpr:
		return hasFreeVarExact(n.Lhs, low, high, depth) || hasFreeVarExact(n.Rhs, low, high, depth)
	case *MetaVarExpr:
		// A metavariable's eventual assignment is unknown; conservatively
		// assume it may mention any free variable in range.
		return true
	default:
		return false
	}
}
