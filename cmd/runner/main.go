// Program runner launches a single child program under a supervised
// process-group session with a timeout, SIGINT forwarding, and guaranteed
// teardown.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kkloberdanz/jobrun/logging"
	"github.com/kkloberdanz/jobrun/runner"
)

var (
	verbose    bool
	timeoutSec int
)

func main() {
	logging.Init()

	rootCmd := &cobra.Command{
		Use:   "runner [-v] [-t seconds] -- <program> [args...]",
		Short: "Run a program under a supervised process-group session",
		Args:  cobra.ArbitraryArgs,
		RunE:  run,
	}

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().IntVarP(&timeoutSec, "timeout", "t", int(runner.DefaultCLITimeout.Seconds()), "timeout in seconds")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	program, programArgs, ok := resolveInvocation(os.Args[0], args)
	if !ok {
		return fmt.Errorf("runner: missing program; usage: %s", cmd.Use)
	}

	outcome, err := runner.Run(program, programArgs, time.Duration(timeoutSec)*time.Second)
	if err != nil {
		return fmt.Errorf("runner: %w", err)
	}

	switch outcome {
	case runner.OutcomeExited:
		return nil
	case runner.OutcomeTimeout:
		return fmt.Errorf("runner: %s timed out after %ds", program, timeoutSec)
	case runner.OutcomeInterrupted:
		return fmt.Errorf("runner: interrupted")
	default:
		return fmt.Errorf("runner: unknown outcome %v", outcome)
	}
}

// resolveInvocation implements the symlink invocation convenience: if the
// runner binary itself was invoked through a symlink ending in ".run", the
// symlink's base name (without the extension) is treated as the program to
// run, and the CLI's own args are forwarded to it untouched. Otherwise the
// first positional argument is the program, which requires at least one arg.
func resolveInvocation(invokedAs string, args []string) (program string, programArgs []string, ok bool) {
	base := filepath.Base(invokedAs)
	if strings.HasSuffix(base, ".run") {
		return strings.TrimSuffix(base, ".run"), args, true
	}
	if len(args) == 0 {
		return "", nil, false
	}
	return args[0], args[1:], true
}
