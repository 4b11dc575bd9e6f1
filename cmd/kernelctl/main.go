// Package main implements kernelctl, a script-driven CLI over the kernel
// (SPEC_FULL.md §1): `check`/`infer`/`normalize`/`convert`/`unify`/`env`
// subcommands that parse the s-expression surface syntax
// (internal/kernel/surface) and drive internal/kernel's public API end to
// end, in the shape of the teacher's cmd/nerd (cobra root command, zap
// stderr logging, workspace-scoped file logging via internal/klog).
//
// # File Index
//
//   - main.go           - entry point, rootCmd, global flags, session setup
//   - cmd_check.go       - check subcommand (batch .kdef validation)
//   - cmd_env.go         - env load/list subcommands
//   - cmd_infer.go       - infer/normalize subcommands
//   - cmd_unify.go       - convert/unify subcommands
//   - cmd_watch.go       - env watch subcommand (fsnotify dev loop)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kernelnerd/internal/kconfig"
	"kernelnerd/internal/klog"
)

var (
	verbose    bool
	workspace  string
	configPath string

	logger *zap.Logger
	cfg    *kconfig.Config

	// rootCtx is cancelled on SIGINT (os.Interrupt). newSession watches it and
	// calls MEnv.Interrupt() on cancellation, the context.Context
	// boundary described in SPEC_FULL.md's interruption-plumbing
	// section, adapted to the kernel's own MEnv-scoped cancellation
	// flag rather than a ctx parameter threaded through Normalize/Unify.
	rootCtx context.Context
)

var rootCmd = &cobra.Command{
	Use:   "kernelctl",
	Short: "kernelctl - driver CLI for the kernelnerd dependently-typed kernel",
	Long: `kernelctl drives internal/kernel end to end: it parses the s-expression
surface syntax (internal/kernel/surface) into terms and declarations, and
calls straight into infer/norm/unify/env — it is not a real elaborator,
just enough of a collaborator to exercise the kernel from a shell.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		} else if abs, err := filepath.Abs(ws); err == nil {
			ws = abs
		}
		workspace = ws

		path := configPath
		if path == "" {
			path = filepath.Join(ws, "kernel.yaml")
		}
		cfg, err = kconfig.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load kernel config: %w", err)
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := cfg.ApplyToLogging(ws); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize kernel file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		klog.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to kernel.yaml (default: <workspace>/kernel.yaml)")

	rootCmd.AddCommand(
		checkCmd,
		envCmd,
		inferCmd,
		normalizeCmd,
		convertCmd,
		unifyCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCtx = ctx

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
