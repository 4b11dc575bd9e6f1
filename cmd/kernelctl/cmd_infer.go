package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kernelnerd/internal/kernel/infer"
	"kernelnerd/internal/kernel/norm"
	"kernelnerd/internal/kernel/surface"
	"kernelnerd/internal/kernel/trace"
)

var (
	inferEnvPath string
	inferTrace   bool
)

var inferCmd = &cobra.Command{
	Use:   "infer <term>",
	Short: "Infer a term's type",
	Long: `Parses <term> (a file path, or inline surface syntax) and prints its
inferred type. With --env, the term is checked against the declarations
loaded from that .kdef file; without it, the term must stand entirely on
its own (no Const references). With --trace, prints the full derivation
tree (internal/kernel/trace) instead of just the result.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfer,
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <term>",
	Short: "Normalize a term to normal form",
	Args:  cobra.ExactArgs(1),
	RunE:  runNormalize,
}

func init() {
	inferCmd.Flags().StringVar(&inferEnvPath, "env", "", "Path to a .kdef file to load before inferring")
	inferCmd.Flags().BoolVar(&inferTrace, "trace", false, "Print the full derivation tree instead of just the result")
	normalizeCmd.Flags().StringVar(&inferEnvPath, "env", "", "Path to a .kdef file to load before normalizing")
}

func loadedSession(envPath string) (*session, error) {
	s := newSession()
	if envPath != "" {
		if err := s.loadEnvFile(envPath); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runInfer(cmd *cobra.Command, args []string) error {
	s, err := loadedSession(inferEnvPath)
	if err != nil {
		return err
	}
	text, err := termText(args[0])
	if err != nil {
		return err
	}
	e, err := surface.ReadExpr(text)
	if err != nil {
		return err
	}

	if inferTrace {
		tracer := trace.NewTracer(0)
		root, typ, err := tracer.TraceInfer(s.env, s.mvar, nil, e)
		fmt.Print(root.RenderASCII())
		if err != nil {
			return err
		}
		fmt.Println(surface.Print(typ))
		return nil
	}

	typ, err := infer.Infer(s.env, s.mvar, nil, e)
	if err != nil {
		return err
	}
	fmt.Println(surface.Print(typ))
	return nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	s, err := loadedSession(inferEnvPath)
	if err != nil {
		return err
	}
	text, err := termText(args[0])
	if err != nil {
		return err
	}
	e, err := surface.ReadExpr(text)
	if err != nil {
		return err
	}
	result, err := norm.Normalize(s.env, s.mvar, e)
	if err != nil {
		return err
	}
	fmt.Println(surface.Print(result))
	return nil
}
