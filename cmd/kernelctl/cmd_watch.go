package main

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var envWatchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Reload and re-check a .kdef file on every write",
	Long: `A development convenience: watches <file> with fsnotify and re-runs a
fresh load+check (the same as 'kernelctl check <file>') on every write,
printing the result to stdout. Runs until interrupted (Ctrl-C).`,
	Args: cobra.ExactArgs(1),
	RunE: runEnvWatch,
}

func init() {
	envCmd.AddCommand(envWatchCmd)
}

func runEnvWatch(cmd *cobra.Command, args []string) error {
	path := args[0]

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	runOnce := func() {
		if err := checkFile(path); err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			return
		}
		fmt.Printf("OK   %s (%s)\n", path, time.Now().Format(time.RFC3339))
	}

	runOnce()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				runOnce()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Printf("watch error: %v\n", err)
		}
	}
}
