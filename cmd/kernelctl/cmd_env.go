package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kernelnerd/internal/kernel/env"
	"kernelnerd/internal/kernel/mvar"
	"kernelnerd/internal/kernel/surface"
)

var envConcurrent bool

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Load and inspect kernel environments",
}

var envLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load a .kdef file's declarations into a fresh environment",
	Long: `Parses and type-checks a .kdef file's declarations, reporting the
resulting object count. With --concurrent, every declaration in the file
is first verified concurrently (errgroup) against a single frozen snapshot
of the environment as it stood before the file, then inserted in
declaration order — this is only correct for a batch of mutually
independent declarations; one that references another declared earlier in
the same file will fail to verify under --concurrent (use the default
sequential mode for files with intra-file dependencies, or 'check' for
any .kdef file's normal validation).`,
	Args: cobra.ExactArgs(1),
	RunE: runEnvLoad,
}

var envListCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "Load a .kdef file and list its declared objects",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnvList,
}

func init() {
	envLoadCmd.Flags().BoolVar(&envConcurrent, "concurrent", false, "Verify all declarations concurrently against a shared snapshot before inserting (requires no intra-file dependencies)")
	envCmd.AddCommand(envLoadCmd, envListCmd)
}

func runEnvLoad(cmd *cobra.Command, args []string) error {
	path := args[0]
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

	if envConcurrent {
		snapshot := en.MkChild()
		g := new(errgroup.Group)
		for _, d := range decls {
			d := d
			g.Go(func() error {
				if err := verifyDecl(snapshot, m, d); err != nil {
					return fmt.Errorf("declaring %q: %w", d.Name, err)
				}
				return nil
			})
		}
		verifyErr := g.Wait()
		snapshot.Release()
		if verifyErr != nil {
			return verifyErr
		}
		for _, d := range decls {
			if err := applyDecl(en, m, d); err != nil {
				return fmt.Errorf("declaring %q (post-verify insert): %w", d.Name, err)
			}
		}
	} else {
		for _, d := range decls {
			if err := applyDecl(en, m, d); err != nil {
				return fmt.Errorf("declaring %q: %w", d.Name, err)
			}
		}
	}

	fmt.Printf("loaded %d object(s) from %s\n", len(en.Objects()), path)
	return nil
}

func runEnvList(cmd *cobra.Command, args []string) error {
	s := newSession()
	if err := s.loadEnvFile(args[0]); err != nil {
		return err
	}
	for _, obj := range s.env.Objects() {
		fmt.Println(describeObject(obj))
	}
	return nil
}

func describeObject(obj env.Object) string {
	switch o := obj.(type) {
	case *env.UVarConstraint:
		if o.Bound == nil {
			return fmt.Sprintf("uvar %s", o.Name)
		}
		return fmt.Sprintf("uvar %s <= %s", o.Name, surface.PrintLevel(o.Bound))
	case *env.Postulate:
		return fmt.Sprintf("postulate %s : %s", o.Name, surface.Print(o.Type))
	case *env.Definition:
		tag := "definition"
		if o.Opaque {
			tag = "definition (opaque)"
		}
		return fmt.Sprintf("%s %s : %s := %s", tag, o.Name, surface.Print(o.Type), surface.Print(o.Value))
	case *env.Builtin:
		return fmt.Sprintf("builtin %s", o.Name)
	case *env.Neutral:
		return fmt.Sprintf("neutral %s (%s)", o.Name, o.KindTag)
	default:
		return fmt.Sprintf("%s (unknown object kind)", obj.ObjectName())
	}
}
