package main

import (
	"fmt"
	"os"

	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/infer"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/kernel/surface"
)

// session bundles the environment and metavariable arena every
// term-level subcommand (infer/normalize/convert/unify) needs, built
// fresh per invocation since kernelctl is a script-driven, not a
// long-lived, collaborator.
type session struct {
	env  *env.Env
	mvar *mvar.MEnv
}

func newSession() *session {
	en := env.New()
	m := mvar.New(en, cfg.Unfoldable, cfg.Unify.MaxDepth)
	if rootCtx != nil {
		go func() {
			<-rootCtx.Done()
			m.Interrupt()
		}()
	}
	return &session{env: en, mvar: m}
}

// loadEnvFile reads a `.kdef` file's declarations and applies them to s.env
// in order via infer's DeclareXxxChecked wrappers, so every object a later
// subcommand sees has already passed the kernel's own type checker.
func (s *session) loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	decls, err := surface.ReadDecls(string(data))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, d := range decls {
		if err := applyDecl(s.env, s.mvar, d); err != nil {
			return fmt.Errorf("%s: declaring %q: %w", path, d.Name, err)
		}
	}
	return nil
}

func applyDecl(en *env.Env, m *mvar.MEnv, d surface.Decl) error {
	switch d.Kind {
	case "uvar":
		return infer.DeclareUVarChecked(en, d.Name, d.UBound)
	case "postulate":
		return infer.DeclarePostulateChecked(en, m, d.Name, d.Type)
	case "definition":
		return infer.DeclareDefinitionChecked(en, m, d.Name, d.Type, d.Value, d.Opaque)
	default:
		return fmt.Errorf("unknown declaration kind %q", d.Kind)
	}
}

// verifyDecl runs a declaration's validation against en without mutating
// it, for the concurrent check phase of `env load --concurrent`.
func verifyDecl(en *env.Env, m *mvar.MEnv, d surface.Decl) error {
	switch d.Kind {
	case "uvar":
		return infer.VerifyUVar(en, d.UBound)
	case "postulate":
		return infer.VerifyPostulate(en, m, d.Type)
	case "definition":
		return infer.VerifyDefinition(en, m, d.Type, d.Value)
	default:
		return fmt.Errorf("unknown declaration kind %q", d.Kind)
	}
}

// termText resolves a CLI argument to surface syntax text: if it names an
// existing file, its contents are used; otherwise the argument itself is
// treated as inline surface syntax, so a short term doesn't need a
// throwaway file just to be passed on the command line.
func termText(arg string) (string, error) {
	if data, err := os.ReadFile(arg); err == nil {
		return string(data), nil
	}
	return arg, nil
}
