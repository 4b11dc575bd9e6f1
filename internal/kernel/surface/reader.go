package surface

import (
	"fmt"
	"strconv"

	"kernelnerd/internal/kernel/expr"
)

// Decl is a top-level declaration form read from a `.kdef` file: a
// postulate, a definition, or a universe-variable bound. cmd/kernelctl
// applies these through internal/kernel/infer's DeclareXxxChecked
// wrappers, never directly through env.Add*, so every declaration is
// type-checked on the way in.
type Decl struct {
	Kind   string // "postulate", "definition", "uvar"
	Name   string
	Type   expr.Expr
	Value  expr.Expr
	Opaque bool
	UBound *expr.Level
}

// ReadExpr parses src as a single term in the grammar documented in
// SPEC_FULL.md §3 and returns its expr.Expr translation.
func ReadExpr(src string) (expr.Expr, error) {
	form, err := parseExactlyOne(src)
	if err != nil {
		return nil, err
	}
	return readExpr(form)
}

// ReadDecls parses src as a sequence of top-level declaration forms, the
// shape of a `.kdef` file: zero or more of
//
//	(uvar "name" BOUND)
//	(postulate "name" TYPE)
//	(definition "name" TYPE VALUE)
//	(definition "name" TYPE VALUE opaque)
func ReadDecls(src string) ([]Decl, error) {
	forms, err := parseAll(src)
	if err != nil {
		return nil, err
	}
	decls := make([]Decl, 0, len(forms))
	for _, f := range forms {
		d, err := readDecl(f)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func readDecl(s sexpr) (Decl, error) {
	if !s.isList || len(s.list) == 0 || s.list[0].isList {
		return Decl{}, fmt.Errorf("surface: expected a declaration form at line %d col %d", s.line, s.col)
	}
	head := s.list[0].atom
	switch head {
	case "uvar":
		if len(s.list) != 3 {
			return Decl{}, fmt.Errorf("surface: (uvar name bound) takes 2 arguments, got %d at line %d", len(s.list)-1, s.line)
		}
		name, err := readName(s.list[1])
		if err != nil {
			return Decl{}, err
		}
		bound, err := readLevel(s.list[2])
		if err != nil {
			return Decl{}, err
		}
		return Decl{Kind: "uvar", Name: name, UBound: bound}, nil
	case "postulate":
		if len(s.list) != 3 {
			return Decl{}, fmt.Errorf("surface: (postulate name type) takes 2 arguments, got %d at line %d", len(s.list)-1, s.line)
		}
		name, err := readName(s.list[1])
		if err != nil {
			return Decl{}, err
		}
		typ, err := readExpr(s.list[2])
		if err != nil {
			return Decl{}, err
		}
		return Decl{Kind: "postulate", Name: name, Type: typ}, nil
	case "definition":
		if len(s.list) != 4 && len(s.list) != 5 {
			return Decl{}, fmt.Errorf("surface: (definition name type value [opaque]) takes 3 or 4 arguments, got %d at line %d", len(s.list)-1, s.line)
		}
		name, err := readName(s.list[1])
		if err != nil {
			return Decl{}, err
		}
		typ, err := readExpr(s.list[2])
		if err != nil {
			return Decl{}, err
		}
		value, err := readExpr(s.list[3])
		if err != nil {
			return Decl{}, err
		}
		opaque := false
		if len(s.list) == 5 {
			if s.list[4].isList || s.list[4].atom != "opaque" {
				return Decl{}, fmt.Errorf("surface: definition's 4th argument must be the bare symbol opaque, at line %d", s.line)
			}
			opaque = true
		}
		return Decl{Kind: "definition", Name: name, Type: typ, Value: value, Opaque: opaque}, nil
	default:
		return Decl{}, fmt.Errorf("surface: unknown declaration form %q at line %d col %d", head, s.line, s.col)
	}
}

func readName(s sexpr) (string, error) {
	if s.isList || !s.quoted {
		return "", fmt.Errorf("surface: expected a quoted name at line %d col %d", s.line, s.col)
	}
	return s.atom, nil
}

// readExpr translates a parsed s-expression into a term, following the
// grammar in SPEC_FULL.md §3. Binder name hints are diagnostic only
// (expr.Mk* ignores them for equality); bound-variable references are
// written explicitly as (var N) de Bruijn indices, so no name resolution
// happens here.
func readExpr(s sexpr) (expr.Expr, error) {
	if !s.isList {
		return nil, fmt.Errorf("surface: expected a term, found bare atom %q at line %d col %d", s.atom, s.line, s.col)
	}
	if len(s.list) == 0 {
		return nil, fmt.Errorf("surface: empty list is not a term, at line %d col %d", s.line, s.col)
	}
	head := s.list[0]
	if head.isList {
		return nil, fmt.Errorf("surface: term head must be a symbol, at line %d col %d", head.line, head.col)
	}
	args := s.list[1:]
	switch head.atom {
	case "sort":
		if len(args) != 1 {
			return nil, argCountErr("sort", 1, len(args), s)
		}
		lvl, err := readLevel(args[0])
		if err != nil {
			return nil, err
		}
		return expr.MkSort(lvl), nil
	case "var":
		if len(args) != 1 {
			return nil, argCountErr("var", 1, len(args), s)
		}
		idx, err := readIndex(args[0])
		if err != nil {
			return nil, err
		}
		return expr.MkVar(idx), nil
	case "const":
		if len(args) < 1 {
			return nil, fmt.Errorf("surface: (const name [levels...]) needs a name, at line %d", s.line)
		}
		name, err := readName(args[0])
		if err != nil {
			return nil, err
		}
		levels := make([]*expr.Level, 0, len(args)-1)
		for _, a := range args[1:] {
			lvl, err := readLevel(a)
			if err != nil {
				return nil, err
			}
			levels = append(levels, lvl)
		}
		return expr.MkConst(name, levels...), nil
	case "pi", "lambda", "sigma":
		if len(args) != 3 {
			return nil, argCountErr(head.atom, 3, len(args), s)
		}
		nameHint, err := readBinderName(args[0])
		if err != nil {
			return nil, err
		}
		domain, err := readExpr(args[1])
		if err != nil {
			return nil, err
		}
		body, err := readExpr(args[2])
		if err != nil {
			return nil, err
		}
		switch head.atom {
		case "pi":
			return expr.MkPi(nameHint, domain, body), nil
		case "lambda":
			return expr.MkLambda(nameHint, domain, body), nil
		default:
			return expr.MkSigma(nameHint, domain, body), nil
		}
	case "app":
		if len(args) < 2 {
			return nil, fmt.Errorf("surface: (app fn arg...) needs a function and at least one argument, at line %d", s.line)
		}
		fn, err := readExpr(args[0])
		if err != nil {
			return nil, err
		}
		rest := make([]expr.Expr, 0, len(args)-1)
		for _, a := range args[1:] {
			v, err := readExpr(a)
			if err != nil {
				return nil, err
			}
			rest = append(rest, v)
		}
		return expr.MkApp(fn, rest...), nil
	case "pair":
		if len(args) != 3 {
			return nil, argCountErr("pair", 3, len(args), s)
		}
		first, err := readExpr(args[0])
		if err != nil {
			return nil, err
		}
		second, err := readExpr(args[1])
		if err != nil {
			return nil, err
		}
		typ, err := readExpr(args[2])
		if err != nil {
			return nil, err
		}
		return expr.MkPair(first, second, typ), nil
	case "proj1", "proj2":
		if len(args) != 1 {
			return nil, argCountErr(head.atom, 1, len(args), s)
		}
		arg, err := readExpr(args[0])
		if err != nil {
			return nil, err
		}
		return expr.MkProj(head.atom == "proj1", arg), nil
	case "let":
		nameHint, typ, value, body, err := readLet(args, s)
		if err != nil {
			return nil, err
		}
		return expr.MkLet(nameHint, typ, value, body), nil
	case "heq":
		if len(args) != 2 {
			return nil, argCountErr("heq", 2, len(args), s)
		}
		lhs, err := readExpr(args[0])
		if err != nil {
			return nil, err
		}
		rhs, err := readExpr(args[1])
		if err != nil {
			return nil, err
		}
		return expr.MkHEq(lhs, rhs), nil
	default:
		return nil, fmt.Errorf("surface: unknown term form %q at line %d col %d", head.atom, head.line, head.col)
	}
}

// readLet accepts both (let x T v b) and the unannotated (let x v b),
// mirroring expr.MkLet's nil-typ convention.
func readLet(args []sexpr, s sexpr) (nameHint string, typ, value, body expr.Expr, err error) {
	switch len(args) {
	case 3:
		nameHint, err = readBinderName(args[0])
		if err != nil {
			return
		}
		value, err = readExpr(args[1])
		if err != nil {
			return
		}
		body, err = readExpr(args[2])
		return
	case 4:
		nameHint, err = readBinderName(args[0])
		if err != nil {
			return
		}
		typ, err = readExpr(args[1])
		if err != nil {
			return
		}
		value, err = readExpr(args[2])
		if err != nil {
			return
		}
		body, err = readExpr(args[3])
		return
	default:
		err = fmt.Errorf("surface: (let x [type] value body) takes 3 or 4 arguments, got %d at line %d", len(args), s.line)
		return
	}
}

func readBinderName(s sexpr) (string, error) {
	if s.isList {
		return "", fmt.Errorf("surface: expected a binder name symbol at line %d col %d", s.line, s.col)
	}
	return s.atom, nil
}

func readIndex(s sexpr) (uint32, error) {
	if s.isList {
		return 0, fmt.Errorf("surface: expected a de Bruijn index at line %d col %d", s.line, s.col)
	}
	n, err := strconv.ParseUint(s.atom, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("surface: invalid de Bruijn index %q at line %d col %d: %w", s.atom, s.line, s.col, err)
	}
	return uint32(n), nil
}

// readLevel translates a level form: zero, (succ L), (max L1 L2), or a
// bare symbol naming a universe variable.
func readLevel(s sexpr) (*expr.Level, error) {
	if !s.isList {
		if s.atom == "zero" {
			return expr.LZero(), nil
		}
		return expr.LUVar(s.atom), nil
	}
	if len(s.list) == 0 {
		return nil, fmt.Errorf("surface: empty list is not a level, at line %d col %d", s.line, s.col)
	}
	head := s.list[0]
	if head.isList {
		return nil, fmt.Errorf("surface: level head must be a symbol, at line %d col %d", head.line, head.col)
	}
	args := s.list[1:]
	switch head.atom {
	case "succ":
		if len(args) != 1 {
			return nil, argCountErr("succ", 1, len(args), s)
		}
		arg, err := readLevel(args[0])
		if err != nil {
			return nil, err
		}
		return expr.LSucc(arg), nil
	case "max":
		if len(args) != 2 {
			return nil, argCountErr("max", 2, len(args), s)
		}
		a, err := readLevel(args[0])
		if err != nil {
			return nil, err
		}
		b, err := readLevel(args[1])
		if err != nil {
			return nil, err
		}
		return expr.LMax(a, b), nil
	default:
		return nil, fmt.Errorf("surface: unknown level form %q at line %d col %d", head.atom, head.line, head.col)
	}
}

func argCountErr(form string, want, got int, s sexpr) error {
	return fmt.Errorf("surface: (%s ...) takes %d argument(s), got %d at line %d col %d", form, want, got, s.line, s.col)
}
