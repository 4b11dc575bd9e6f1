// Package value collects reference implementations of the kernel's
// expr.Value extension point (spec.md §6 "Value plugin"). It has no
// special status: anything in here could equally live outside this
// module, wired in by a host the same way.
package value

import (
	"fmt"

	"kernelnerd/internal/kernel/expr"
)

// IntKind tags every value this package produces so the normalizer's
// dynamic dispatch on kind_tag has something stable to switch on.
const IntKind = "kernelnerd.int"

// intType is the shared Const reference every IntVal reports as its type.
// A host wiring this package into a real environment is expected to
// declare a matching Postulate("Int", Sort(Zero)) so infer_type resolves it.
var intType = expr.MkConst("Int")

// IntVal is a machine int64 embedded as an expr.Value leaf.
type IntVal struct {
	N int64
}

// NewInt wraps n as an Expr leaf.
func NewInt(n int64) expr.Expr {
	return expr.MkValue(IntVal{N: n})
}

func (v IntVal) KindTag() string { return IntKind }
func (v IntVal) Type() expr.Expr { return intType }

// Normalize is only meaningful for the primitive-op values below; a bare
// literal is already in whnf and never receives arguments to apply, so it
// reports no reduction.
func (v IntVal) Normalize(args []expr.Expr) expr.Expr { return nil }

func (v IntVal) Hash() uint32 {
	return uint32(v.N) ^ uint32(v.N>>32)
}

func (v IntVal) Equals(other expr.Value) bool {
	o, ok := other.(IntVal)
	return ok && o.N == v.N
}

func (v IntVal) Display() string { return fmt.Sprintf("%d", v.N) }

// intOp is a curried binary primitive (add, mul, ...) exposed as a Value so
// it can sit in head position of an App and be driven through whnf's
// "f is a Value with a normalize hook" rule (spec.md §4.4). apply combines
// two already-evaluated int literals; it is never called with anything else
// since op only fires once both args are present and both whnf to IntVal.
type intOp struct {
	name  string
	apply func(a, b int64) int64
}

func (op intOp) KindTag() string { return IntKind + "." + op.name }

// binOpType is Pi(_, Int, Pi(_, Int, Int)) for every binary primitive.
func binOpType() expr.Expr {
	return expr.MkPi("_", intType, expr.MkPi("_", intType, intType))
}

func (op intOp) Type() expr.Expr { return binOpType() }

// Normalize fires once both operands are supplied and both are whnf int
// literals; otherwise it declines (returns nil) and the caller (whnf) leaves
// the application stuck, which is correct when an operand is itself a
// metavariable or an unreduced neutral.
func (op intOp) Normalize(args []expr.Expr) expr.Expr {
	if len(args) != 2 {
		return nil
	}
	a, aok := asIntLit(args[0])
	b, bok := asIntLit(args[1])
	if !aok || !bok {
		return nil
	}
	return NewInt(op.apply(a, b))
}

func (op intOp) Hash() uint32 { return crcString(op.name) }

func (op intOp) Equals(other expr.Value) bool {
	o, ok := other.(intOp)
	return ok && o.name == op.name
}

func (op intOp) Display() string { return op.name }

func asIntLit(e expr.Expr) (int64, bool) {
	ve, ok := e.(*expr.ValueExpr)
	if !ok {
		return 0, false
	}
	iv, ok := ve.V.(IntVal)
	if !ok {
		return 0, false
	}
	return iv.N, true
}

func crcString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Add is the binary integer-addition primitive, embedded as an Expr so it
// can be applied: App(Add(), x, y).
func Add() expr.Expr {
	return expr.MkValue(intOp{name: "add", apply: func(a, b int64) int64 { return a + b }})
}

// Mul is the binary integer-multiplication primitive.
func Mul() expr.Expr {
	return expr.MkValue(intOp{name: "mul", apply: func(a, b int64) int64 { return a * b }})
}
