package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/kernel/surface"
)

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Type-check .kdef declaration files",
	Long: `Validates the declarations in one or more .kdef files. Each file gets
its own fresh Env/MEnv (files are independent of each other by
construction), so multiple files are type-checked concurrently via
errgroup, grounded in the same fan-out-then-collect pattern the teacher
uses for independent batch work. Within a single file, declarations are
applied one at a time in order through infer.DeclareXxxChecked, since a
later declaration may legitimately reference an earlier one in the same
file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	results := make([]error, len(args))
	g := new(errgroup.Group)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			results[i] = checkFile(path)
			return nil
		})
	}
	_ = g.Wait() // per-file errors are collected in results, not propagated here

	var combined error
	for i, path := range args {
		if results[i] != nil {
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", path, results[i]))
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, results[i])
			continue
		}
		fmt.Printf("OK   %s\n", path)
	}
	return combined
}

// checkFile type-checks and declares one file's declarations in order,
// each through infer.DeclareXxxChecked so a malformed type or value is
// rejected at the point it's declared rather than later, at use.
func checkFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	decls, err := surface.ReadDecls(string(data))
	if err != nil {
		return err
	}

	en := env.New()
	m := mvar.New(en, cfg.Unfoldable, cfg.Unify.MaxDepth)
	if rootCtx != nil {
		go func() {
			<-rootCtx.Done()
			m.Interrupt()
		}()
	}

	for _, d := range decls {
		if err := applyDecl(en, m, d); err != nil {
			return fmt.Errorf("declaring %q: %w", d.Name, err)
		}
	}
	return nil
}
