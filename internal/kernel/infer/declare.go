package infer

import (
	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/kerr"
	"kernelnerd/internal/kernel/mvar"
)

// DeclareUVarChecked validates that every named universe variable bound
// mentions is already declared in en before delegating to en.AddUVar (see
// env.go's own comment on why this validation is layered above env rather
// than performed by AddUVar itself: env cannot import infer, and infer is
// the package that already knows how to walk a Level).
func DeclareUVarChecked(en *env.Env, name string, bound *expr.Level) error {
	if err := VerifyUVar(en, bound); err != nil {
		return err
	}
	return en.AddUVar(name, bound)
}

// VerifyUVar runs DeclareUVarChecked's validation without declaring
// anything, so a caller checking a batch of declarations concurrently
// (cmd/kernelctl's `env load --concurrent`) can validate against a read-only
// snapshot before any of them are inserted.
func VerifyUVar(en *env.Env, bound *expr.Level) error {
	for _, leaf := range uvarLeaves(bound) {
		if obj, ok := en.FindObject(leaf); !ok {
			return kerr.UnknownUniverseVariableErr(en, leaf)
		} else if _, ok := obj.(*env.UVarConstraint); !ok {
			return kerr.UnknownUniverseVariableErr(en, leaf)
		}
	}
	return nil
}

// uvarLeaves mirrors env's own unexported decomposeBound: it collects the
// named uvar leaves of a Level's Max/Succ spine.
func uvarLeaves(l *expr.Level) []string {
	if l == nil {
		return nil
	}
	var leaves []string
	var walk func(*expr.Level)
	walk = func(l *expr.Level) {
		switch l.Kind() {
		case expr.LevelSucc:
			walk(l.SuccArg())
		case expr.LevelMax:
			a, b := l.MaxArgs()
			walk(a)
			walk(b)
		case expr.LevelUVar:
			leaves = append(leaves, l.UVarName())
		}
	}
	walk(l)
	return leaves
}

// DeclarePostulateChecked validates that typ is well-formed (infers to some
// Sort) in the top-level context before declaring name as an axiom of that
// type (spec.md §4.5 "every Definition/Postulate type must itself
// type-check").
func DeclarePostulateChecked(en *env.Env, m *mvar.MEnv, name string, typ expr.Expr) error {
	if err := VerifyPostulate(en, m, typ); err != nil {
		return err
	}
	return en.AddPostulate(name, typ)
}

// VerifyPostulate runs DeclarePostulateChecked's validation without
// declaring anything.
func VerifyPostulate(en *env.Env, m *mvar.MEnv, typ expr.Expr) error {
	_, err := checkIsType(en, m, nil, typ)
	return err
}

// DeclareDefinitionChecked validates that typ is well-formed and that value
// checks against it before declaring the definition.
func DeclareDefinitionChecked(en *env.Env, m *mvar.MEnv, name string, typ, value expr.Expr, opaque bool) error {
	if err := VerifyDefinition(en, m, typ, value); err != nil {
		return err
	}
	return en.AddDefinition(name, typ, value, opaque)
}

// VerifyDefinition runs DeclareDefinitionChecked's validation without
// declaring anything.
func VerifyDefinition(en *env.Env, m *mvar.MEnv, typ, value expr.Expr) error {
	if _, err := checkIsType(en, m, nil, typ); err != nil {
		return err
	}
	return Check(en, m, nil, value, typ)
}
