package env

import "kernelnerd/internal/kernel/expr"

// Object is a declaration the environment stores under a dotted name
// (spec.md "Environment" §3: UVarConstraint/Postulate/Definition/
// Builtin/Neutral). Each concrete type below mirrors a spec object kind;
// the interface lets find_object return any of them uniformly, the same
// shape as internal/kernel/expr.Expr.
type Object interface {
	ObjectName() string
}

// UVarConstraint registers a universe variable with a lower bound used by
// is_ge's constraint graph.
type UVarConstraint struct {
	Name  string
	Bound *expr.Level // nil means no declared bound beyond Zero
}

func (o *UVarConstraint) ObjectName() string { return o.Name }

// Postulate is an axiom/free variable: a name with a type but no value.
type Postulate struct {
	Name string
	Type expr.Expr
}

func (o *Postulate) ObjectName() string { return o.Name }

// Definition is a name with both a type and a value. Opaque definitions
// are never delta-unfolded during whnf regardless of the driver's
// unfoldable-set policy.
type Definition struct {
	Name   string
	Type   expr.Expr
	Value  expr.Expr
	Opaque bool
}

func (o *Definition) ObjectName() string { return o.Name }

// Builtin wires a host expr.Value in under a name, so surface syntax can
// refer to it by identifier instead of embedding the Value literally.
type Builtin struct {
	Name  string
	Value expr.Value
}

func (o *Builtin) ObjectName() string { return o.Name }

// Neutral is a host-extensible opaque payload (notations, coercions,
// aliases) the kernel stores and returns but never interprets.
type Neutral struct {
	Name    string
	KindTag string
	Payload interface{}
}

func (o *Neutral) ObjectName() string { return o.Name }
