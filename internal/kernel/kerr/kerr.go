// Package kerr defines the kernel's structured error taxonomy (spec.md §7).
// Every failure path in env, norm, unify, and infer returns a *Error
// carrying enough context — the offending term(s), the checking context,
// and a snapshot of the environment — for a formatter to render a precise
// diagnostic, instead of an opaque string.
package kerr

import (
	"fmt"

	"kernelnerd/internal/kernel/expr"
)

// Kind discriminates the error taxonomy of spec.md §7.
type Kind string

const (
	UnknownName             Kind = "unknown_name"
	UnknownUniverseVariable Kind = "unknown_universe_variable"
	AlreadyDeclared         Kind = "already_declared"
	ReadOnlyEnvironment     Kind = "read_only_environment"
	FunctionExpected        Kind = "function_expected"
	TypeExpected            Kind = "type_expected"
	AppTypeMismatch         Kind = "app_type_mismatch"
	DefTypeMismatch         Kind = "def_type_mismatch"
	PairTypeMismatch        Kind = "pair_type_mismatch"
	OccursCheck             Kind = "occurs_check"
	FailedToUnify           Kind = "failed_to_unify"
	MaxDepthExceeded        Kind = "max_depth_exceeded"
	Interrupted             Kind = "interrupted"
)

// EnvRef is the minimal window kerr needs into an environment snapshot. It
// exists so this package need not import internal/kernel/env (which in
// turn wants to return kerr errors), avoiding an import cycle.
type EnvRef interface {
	// DescribeEnv renders a short diagnostic label for the environment at
	// the point of failure, e.g. its generation id and object count.
	DescribeEnv() string
}

// Error is the kernel's single structured error type; Kind selects which
// diagnostic shape the formatter should use.
type Error struct {
	Kind    Kind
	Message string

	// Env is nil when the failure predates any environment (e.g. a bare
	// expr.Lift call, which never fails) — in practice always set by
	// env/norm/unify/infer.
	Env EnvRef
	Ctx expr.Ctx

	// Terms carries the offending subterm(s); length and meaning depend on
	// Kind (e.g. AppTypeMismatch carries [argType, domain]).
	Terms []expr.Expr

	// Name is set for the name-keyed kinds (UnknownName, AlreadyDeclared,
	// UnknownUniverseVariable).
	Name string

	Wrapped error
}

func (e *Error) Error() string {
	var envDesc string
	if e.Env != nil {
		envDesc = e.Env.DescribeEnv()
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if envDesc != "" {
		msg = fmt.Sprintf("%s [%s]", msg, envDesc)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether target is a *Error of the same Kind, so callers can
// write errors.Is(err, &kerr.Error{Kind: kerr.OccursCheck}) or,
// more idiomatically, kerr.Is(err, kerr.OccursCheck).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

func newErr(kind Kind, env EnvRef, ctx expr.Ctx, msg string, terms ...expr.Expr) *Error {
	return &Error{Kind: kind, Message: msg, Env: env, Ctx: ctx, Terms: terms}
}

// UnknownNameErr reports a find_object miss in a required position.
func UnknownNameErr(env EnvRef, name string) *Error {
	e := newErr(UnknownName, env, nil, fmt.Sprintf("no object named %q", name))
	e.Name = name
	return e
}

// UnknownUniverseVariableErr reports a reference to an undeclared universe variable.
func UnknownUniverseVariableErr(env EnvRef, name string) *Error {
	e := newErr(UnknownUniverseVariable, env, nil, fmt.Sprintf("no universe variable named %q", name))
	e.Name = name
	return e
}

// AlreadyDeclaredErr reports a name collision on add.
func AlreadyDeclaredErr(env EnvRef, name string) *Error {
	e := newErr(AlreadyDeclared, env, nil, fmt.Sprintf("%q is already declared", name))
	e.Name = name
	return e
}

// ReadOnlyEnvironmentErr reports a write attempt on a frozen (has children) environment.
func ReadOnlyEnvironmentErr(env EnvRef, name string) *Error {
	e := newErr(ReadOnlyEnvironment, env, nil, fmt.Sprintf("environment is frozen, cannot declare %q", name))
	e.Name = name
	return e
}

// FunctionExpectedErr reports App whose head is not a Pi after whnf.
func FunctionExpectedErr(env EnvRef, ctx expr.Ctx, head expr.Expr) *Error {
	return newErr(FunctionExpected, env, ctx, "head of application is not a function type", head)
}

// TypeExpectedErr reports a term used as a type that has no Sort.
func TypeExpectedErr(env EnvRef, ctx expr.Ctx, got expr.Expr) *Error {
	return newErr(TypeExpected, env, ctx, "expected a type (Sort), got something else", got)
}

// AppTypeMismatchErr reports an argument type not convertible to the domain.
func AppTypeMismatchErr(env EnvRef, ctx expr.Ctx, argType, domain expr.Expr) *Error {
	return newErr(AppTypeMismatch, env, ctx, "argument type does not match function domain", argType, domain)
}

// DefTypeMismatchErr reports a definition value type not equal to its declared type.
func DefTypeMismatchErr(env EnvRef, ctx expr.Ctx, valueType, declared expr.Expr) *Error {
	return newErr(DefTypeMismatch, env, ctx, "definition value type does not match declared type", valueType, declared)
}

// PairTypeMismatchErr reports a pair component not matching its sigma.
func PairTypeMismatchErr(env EnvRef, ctx expr.Ctx, componentType, expected expr.Expr) *Error {
	return newErr(PairTypeMismatch, env, ctx, "pair component does not match sigma type", componentType, expected)
}

// OccursCheckErr reports a metavariable assignment cycle.
func OccursCheckErr(env EnvRef, ctx expr.Ctx, metaVar, value expr.Expr) *Error {
	return newErr(OccursCheck, env, ctx, "metavariable occurs in its own assignment", metaVar, value)
}

// FailedToUnifyErr reports a structural disagreement with no metavar flexibility.
func FailedToUnifyErr(env EnvRef, ctx expr.Ctx, a, b expr.Expr) *Error {
	return newErr(FailedToUnify, env, ctx, "terms are not unifiable", a, b)
}

// MaxDepthExceededErr reports the unifier's recursion budget exhausted.
func MaxDepthExceededErr(env EnvRef, ctx expr.Ctx, depth int) *Error {
	return newErr(MaxDepthExceeded, env, ctx, fmt.Sprintf("unification recursion exceeded max depth %d", depth))
}

// InterruptedErr reports a cooperative cancellation observed mid-call.
func InterruptedErr(env EnvRef) *Error {
	return newErr(Interrupted, env, nil, "operation was interrupted")
}
