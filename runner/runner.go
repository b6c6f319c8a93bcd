// Package runner drives a supervised session to one of three terminal
// outcomes — child exit, user interrupt, or timeout — and unconditionally
// tears down the process group before returning.
package runner

import (
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/kkloberdanz/jobrun/session"
)

// DefaultCLITimeout is the default deadline used by the local CLI runner:
// 30 days, per spec.
const DefaultCLITimeout = 30 * 24 * time.Hour

// DefaultLibraryTimeout is the default deadline used when this package is
// used as a library rather than from the CLI: 2 hours, per spec.
const DefaultLibraryTimeout = 2 * time.Hour

// Outcome identifies which of the three event sources terminated a Run.
type Outcome int

const (
	OutcomeExited Outcome = iota
	OutcomeTimeout
	OutcomeInterrupted
)

// Run spawns program under a new session and races three event sources:
// child exit, SIGINT delivered to this process, and a timeout deadline.
// Whichever fires first determines the Outcome; the other two are
// abandoned. In every case, Run kills the whole session before returning, so
// no orphaned process survives a Run call.
func Run(program string, args []string, timeout time.Duration) (Outcome, error) {
	sess, err := session.Spawn(program, args, func(cmd *exec.Cmd) {
		// Fire-and-forget supervision: drop our handles to the child's
		// stdio immediately so we can never deadlock against a pipe the
		// child is blocked writing to. Jobs that need the output instead
		// retain and drain these handles themselves (see the job package).
		cmd.Stdin = nil
		cmd.Stdout = nil
		cmd.Stderr = nil
	})
	if err != nil {
		return OutcomeInterrupted, err
	}

	exited := make(chan error, 1)
	go func() { exited <- sess.Wait() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var outcome Outcome
	var runErr error

	select {
	case runErr = <-exited:
		outcome = OutcomeExited
		slog.Info("operation completed", "program", program)
	case <-timer.C:
		outcome = OutcomeTimeout
		slog.Warn("operation timed out", "program", program, "timeout", timeout)
	case <-sigCh:
		outcome = OutcomeInterrupted
		slog.Warn("user interruption", "program", program)
	}

	// Unconditional teardown: guarantee no orphans regardless of which
	// branch fired, including the exited branch (descendants forked by the
	// child may still be alive in its session).
	if err := sess.Kill(); err != nil {
		slog.Warn("failed to kill session after run", "error", err)
	}

	if outcome != OutcomeExited {
		// Drain the exited channel so the goroutine above doesn't leak.
		<-exited
	}

	return outcome, runErr
}
