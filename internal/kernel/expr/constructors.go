package expr

// Smart constructors. Per spec.md §4.1 these are total: they never fail.
// Each computes the node's caches in O(fanout) and interns the result in
// the process-global hash-cons table, returning the canonical
// representative for (constructor, children, payload).

var (
	varTable     = newConsTable[VarExpr]()
	constTable   = newConsTable[ConstExpr]()
	sortTable    = newConsTable[SortExpr]()
	appTable     = newConsTable[AppExpr]()
	lambdaTable  = newConsTable[LambdaExpr]()
	piTable      = newConsTable[PiExpr]()
	sigmaTable   = newConsTable[SigmaExpr]()
	pairTable    = newConsTable[PairExpr]()
	projTable    = newConsTable[ProjExpr]()
	letTable     = newConsTable[LetExpr]()
	heqTable     = newConsTable[HEqExpr]()
	metavarTable = newConsTable[MetaVarExpr]()
	valueTable   = newConsTable[ValueExpr]()
)

const (
	tagVar     = uint32(KVar) + 1
	tagConst   = uint32(KConst) + 1
	tagSort    = uint32(KSort) + 1
	tagApp     = uint32(KApp) + 1
	tagLambda  = uint32(KLambda) + 1
	tagPi      = uint32(KPi) + 1
	tagSigma   = uint32(KSigma) + 1
	tagPair    = uint32(KPair) + 1
	tagProj    = uint32(KProj) + 1
	tagLet     = uint32(KLet) + 1
	tagHEq     = uint32(KHEq) + 1
	tagMetaVar = uint32(KMetaVar) + 1
	tagValue   = uint32(KValue) + 1
)

// MkVar builds Var(idx), a bound variable reference by de Bruijn index.
func MkVar(idx uint32) Expr {
	h := mixHash(hashSeed, tagVar)
	h = mixHash(h, idx)
	candidate := &VarExpr{
		Idx: idx,
		nodeCache: nodeCache{
			hash:     h,
			freeVars: FreeVarRange{Lo: idx, Hi: idx + 1},
			weight:   1,
		},
	}
	return varTable.intern(h, candidate, func(e *VarExpr) bool { return e.Idx == idx })
}

// MkConst builds a reference to a named Environment object, optionally
// instantiated at the given universe levels.
func MkConst(name string, levels ...*Level) Expr {
	h := mixHash(hashSeed, tagConst)
	h = mixHash(h, hashString(name))
	for _, l := range levels {
		h = mixHash(h, l.hash)
	}
	candidate := &ConstExpr{
		Name:   name,
		Levels: append([]*Level(nil), levels...),
		nodeCache: nodeCache{
			hash:   h,
			weight: 1,
		},
	}
	return constTable.intern(h, candidate, func(e *ConstExpr) bool {
		return e.Name == name && levelsEq(e.Levels, levels)
	})
}

func levelsEq(a, b []*Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MkSort builds Sort(level), a universe.
func MkSort(level *Level) Expr {
	h := mixHash(hashSeed, tagSort)
	h = mixHash(h, level.hash)
	candidate := &SortExpr{Level: level, nodeCache: nodeCache{hash: h, weight: 1}}
	return sortTable.intern(h, candidate, func(e *SortExpr) bool { return e.Level == level })
}

// MkApp builds an n-ary application of fn to args, stored flat for sharing.
func MkApp(fn Expr, args ...Expr) Expr {
	if len(args) == 0 {
		return fn
	}
	h := mixHash(hashSeed, tagApp)
	h = mixHash(h, fn.Hash())
	fv := fn.FreeVars()
	hasMeta := fn.HasMetavar()
	weight := uint32(1) + fn.Weight()
	for _, a := range args {
		h = mixHash(h, a.Hash())
		fv = unionRange(fv, a.FreeVars())
		hasMeta = hasMeta || a.HasMetavar()
		weight += a.Weight()
	}
	candidate := &AppExpr{
		Fn:   fn,
		Args: append([]Expr(nil), args...),
		nodeCache: nodeCache{
			hash:       h,
			freeVars:   fv,
			hasMetavar: hasMeta,
			weight:     weight,
		},
	}
	return appTable.intern(h, candidate, func(e *AppExpr) bool {
		return e.Fn == fn && exprSliceEq(e.Args, args)
	})
}

func exprSliceEq(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func binderCache(tag uint32, domain, body Expr) nodeCache {
	h := mixHash(hashSeed, tag)
	h = mixHash(h, domain.Hash())
	h = mixHash(h, body.Hash())
	return nodeCache{
		hash:       h,
		freeVars:   unionRange(domain.FreeVars(), shiftDownForBody(body.FreeVars())),
		hasMetavar: domain.HasMetavar() || body.HasMetavar(),
		weight:     1 + domain.Weight() + body.Weight(),
	}
}

// MkLambda builds Lambda(name_hint, domain, body). The name hint is
// diagnostic only; alpha-equivalence ignores it (spec.md §3 invariant 3).
func MkLambda(nameHint string, domain, body Expr) Expr {
	nc := binderCache(tagLambda, domain, body)
	candidate := &LambdaExpr{NameHint: nameHint, Domain: domain, Body: body, nodeCache: nc}
	return lambdaTable.intern(nc.hash, candidate, func(e *LambdaExpr) bool {
		return e.Domain == domain && e.Body == body
	})
}

// MkPi builds Pi(name_hint, domain, body), the dependent product.
func MkPi(nameHint string, domain, body Expr) Expr {
	nc := binderCache(tagPi, domain, body)
	candidate := &PiExpr{NameHint: nameHint, Domain: domain, Body: body, nodeCache: nc}
	return piTable.intern(nc.hash, candidate, func(e *PiExpr) bool {
		return e.Domain == domain && e.Body == body
	})
}

// MkSigma builds Sigma(name_hint, domain, body), the dependent sum's type.
func MkSigma(nameHint string, domain, body Expr) Expr {
	nc := binderCache(tagSigma, domain, body)
	candidate := &SigmaExpr{NameHint: nameHint, Domain: domain, Body: body, nodeCache: nc}
	return sigmaTable.intern(nc.hash, candidate, func(e *SigmaExpr) bool {
		return e.Domain == domain && e.Body == body
	})
}

// MkPair builds Pair(first, second, type), a dependent-sum inhabitant.
func MkPair(first, second, typ Expr) Expr {
	h := mixHash(hashSeed, tagPair)
	h = mixHash(h, first.Hash())
	h = mixHash(h, second.Hash())
	h = mixHash(h, typ.Hash())
	fv := unionRange(unionRange(first.FreeVars(), second.FreeVars()), typ.FreeVars())
	candidate := &PairExpr{
		First: first, Second: second, Type: typ,
		nodeCache: nodeCache{
			hash:       h,
			freeVars:   fv,
			hasMetavar: first.HasMetavar() || second.HasMetavar() || typ.HasMetavar(),
			weight:     1 + first.Weight() + second.Weight() + typ.Weight(),
		},
	}
	return pairTable.intern(h, candidate, func(e *PairExpr) bool {
		return e.First == first && e.Second == second && e.Type == typ
	})
}

// MkProj builds Proj(first, arg): projects the first or second component
// out of a Sigma inhabitant.
func MkProj(first bool, arg Expr) Expr {
	h := mixHash(hashSeed, tagProj)
	if first {
		h = mixHash(h, 1)
	}
	h = mixHash(h, arg.Hash())
	candidate := &ProjExpr{
		First: first, Arg: arg,
		nodeCache: nodeCache{
			hash:       h,
			freeVars:   arg.FreeVars(),
			hasMetavar: arg.HasMetavar(),
			weight:     1 + arg.Weight(),
		},
	}
	return projTable.intern(h, candidate, func(e *ProjExpr) bool {
		return e.First == first && e.Arg == arg
	})
}

// MkLet builds Let(name_hint, type, value, body); type may be nil when
// unannotated. body's scope includes the bound name at index 0.
func MkLet(nameHint string, typ, value, body Expr) Expr {
	h := mixHash(hashSeed, tagLet)
	if typ != nil {
		h = mixHash(h, typ.Hash())
	}
	h = mixHash(h, value.Hash())
	h = mixHash(h, body.Hash())

	fv := unionRange(value.FreeVars(), shiftDownForBody(body.FreeVars()))
	hasMeta := value.HasMetavar() || body.HasMetavar()
	weight := uint32(1) + value.Weight() + body.Weight()
	if typ != nil {
		fv = unionRange(fv, typ.FreeVars())
		hasMeta = hasMeta || typ.HasMetavar()
		weight += typ.Weight()
	}

	candidate := &LetExpr{
		NameHint: nameHint, Type: typ, Value: value, Body: body,
		nodeCache: nodeCache{hash: h, freeVars: fv, hasMetavar: hasMeta, weight: weight},
	}
	return letTable.intern(h, candidate, func(e *LetExpr) bool {
		return e.Type == typ && e.Value == value && e.Body == body
	})
}

// MkHEq builds HEq(lhs, rhs), heterogeneous equality.
func MkHEq(lhs, rhs Expr) Expr {
	h := mixHash(hashSeed, tagHEq)
	h = mixHash(h, lhs.Hash())
	h = mixHash(h, rhs.Hash())
	candidate := &HEqExpr{
		Lhs: lhs, Rhs: rhs,
		nodeCache: nodeCache{
			hash:       h,
			freeVars:   unionRange(lhs.FreeVars(), rhs.FreeVars()),
			hasMetavar: lhs.HasMetavar() || rhs.HasMetavar(),
			weight:     1 + lhs.Weight() + rhs.Weight(),
		},
	}
	return heqTable.intern(h, candidate, func(e *HEqExpr) bool { return e.Lhs == lhs && e.Rhs == rhs })
}

var metavarIDSeq int64

// NextMetavarID hands out process-unique sequential metavariable ids; the
// metavariable environment (package mvar) is the sole caller.
func NextMetavarID() int64 {
	metavarIDSeq++
	return metavarIDSeq
}

// MkMetaVar builds a MetaVar node with the given id and deferred local
// context (Lift/Inst entries, applied right-to-left on instantiation).
func MkMetaVar(id int64, localCtx []LocalEntry) Expr {
	h := mixHash(hashSeed, tagMetaVar)
	h = mixHash(h, uint32(id))
	h = mixHash(h, uint32(id>>32))
	hasMeta := true
	// A MetaVar's free-var range is conservatively "everything": its
	// eventual assignment is unknown at construction time, so lift and
	// instantiate must always recurse into its deferred entries rather
	// than assume it is closed.
	fv := FreeVarRange{Lo: 0, Hi: ^uint32(0)}
	weight := uint32(1)
	for _, e := range localCtx {
		h = mixHash(h, uint32(e.Kind))
		h = mixHash(h, e.Start)
		if e.Kind == EntryLift {
			h = mixHash(h, uint32(e.Offset))
		} else {
			for _, r := range e.Replacements {
				h = mixHash(h, r.Hash())
				weight += r.Weight()
			}
		}
	}
	candidate := &MetaVarExpr{
		ID: id, LocalCtx: append([]LocalEntry(nil), localCtx...),
		nodeCache: nodeCache{hash: h, freeVars: fv, hasMetavar: hasMeta, weight: weight},
	}
	return metavarTable.intern(h, candidate, func(e *MetaVarExpr) bool {
		return e.ID == id && localEntriesEq(e.LocalCtx, localCtx)
	})
}

func localEntriesEq(a, b []LocalEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Start != b[i].Start {
			return false
		}
		if a[i].Kind == EntryLift {
			if a[i].Offset != b[i].Offset {
				return false
			}
		} else if !exprSliceEq(a[i].Replacements, b[i].Replacements) {
			return false
		}
	}
	return true
}

// MkValue embeds an opaque host Value as a leaf expression.
func MkValue(v Value) Expr {
	h := mixHash(hashSeed, tagValue)
	h = mixHash(h, hashString(v.KindTag()))
	h = mixHash(h, v.Hash())
	candidate := &ValueExpr{V: v, nodeCache: nodeCache{hash: h, weight: 1}}
	return valueTable.intern(h, candidate, func(e *ValueExpr) bool { return e.V.Equals(v) })
}
