package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/norm"
	"kernelnerd/internal/kernel/surface"
	"kernelnerd/internal/kernel/trace"
	"kernelnerd/internal/kernel/unify"
)

var (
	convertEnvPath string
	unifyEnvPath   string
	unifyTrace     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <a> <b>",
	Short: "Check two terms for definitional equality",
	Long: `Parses <a> and <b> and reports whether they are convertible
(internal/kernel/norm.IsConvertible), escalating to unification on a
metavariable-headed mismatch exactly as infer.Check does.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

var unifyCmd = &cobra.Command{
	Use:   "unify <a> <b>",
	Short: "Unify two terms, recording any metavariable assignments",
	Args:  cobra.ExactArgs(2),
	RunE:  runUnify,
}

func init() {
	convertCmd.Flags().StringVar(&convertEnvPath, "env", "", "Path to a .kdef file to load before converting")
	unifyCmd.Flags().StringVar(&unifyEnvPath, "env", "", "Path to a .kdef file to load before unifying")
	unifyCmd.Flags().BoolVar(&unifyTrace, "trace", false, "Print the unify trace node instead of just the result")
}

func readTwoTerms(envPath, aArg, bArg string) (*session, expr.Expr, expr.Expr, error) {
	s, err := loadedSession(envPath)
	if err != nil {
		return nil, nil, nil, err
	}
	aText, err := termText(aArg)
	if err != nil {
		return nil, nil, nil, err
	}
	bText, err := termText(bArg)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := surface.ReadExpr(aText)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("first term: %w", err)
	}
	b, err := surface.ReadExpr(bText)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("second term: %w", err)
	}
	return s, a, b, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	s, a, b, err := readTwoTerms(convertEnvPath, args[0], args[1])
	if err != nil {
		return err
	}
	ok, err := norm.IsConvertible(s.env, s.mvar, nil, a, b, unify.Fallback(s.env, s.mvar))
	if err != nil {
		return err
	}
	fmt.Println(ok)
	return nil
}

func runUnify(cmd *cobra.Command, args []string) error {
	s, a, b, err := readTwoTerms(unifyEnvPath, args[0], args[1])
	if err != nil {
		return err
	}

	if unifyTrace {
		tracer := trace.NewTracer(0)
		node, err := tracer.TraceUnify(s.env, s.mvar, nil, a, b)
		fmt.Print(node.RenderASCII())
		if err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	}

	if err := unify.Unify(s.env, s.mvar, nil, a, b); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}
