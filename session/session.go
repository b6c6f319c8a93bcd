// Package session owns one child process spawned into a new POSIX session
// and provides signal broadcast over every process in that session.
package session

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/kkloberdanz/jobrun/procinspect"
)

// Name identifies one of the signals this package knows how to broadcast.
// The recognized set is closed; anything else is a programmer error.
type Name string

const (
	SIGTERM Name = "SIGTERM"
	SIGKILL Name = "SIGKILL"
	SIGCONT Name = "SIGCONT"
	SIGSTOP Name = "SIGSTOP"
	SIGINT  Name = "SIGINT"
)

var signalTable = map[Name]unix.Signal{
	SIGTERM: unix.SIGTERM,
	SIGKILL: unix.SIGKILL,
	SIGCONT: unix.SIGCONT,
	SIGSTOP: unix.SIGSTOP,
	SIGINT:  unix.SIGINT,
}

// Session owns a single child process running as the leader of a new
// session, and broadcasts signals to every process that session contains.
type Session struct {
	mu  sync.Mutex
	sid int32 // equal to the child's pid; zero until spawned.
	cmd *exec.Cmd
}

// Spawn creates the child process, in a new session, wiring stdio per the
// supplied configuration function (used by callers that need pipes). The
// session id becomes the child's pid.
func Spawn(program string, args []string, configure func(*exec.Cmd)) (*Session, error) {
	cmd := exec.Command(program, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	if configure != nil {
		configure(cmd)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("session: failed to spawn %q: %w", program, err)
	}

	return &Session{sid: int32(cmd.Process.Pid), cmd: cmd}, nil
}

// Cmd returns the underlying command, for callers that need to Wait() on it
// or read its Process.Pid.
func (s *Session) Cmd() *exec.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd
}

// SID returns the session id, or 0 if the session has not been spawned.
func (s *Session) SID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// Signal broadcasts name to every live process in the session, rechecking
// each pid's (pid, start_time) identity immediately before signalling it to
// avoid killing an unrelated process that happens to have reused the pid.
// Signalling errors against individual pids are logged and do not abort the
// broadcast. If the session has not been spawned, this is a no-op.
func (s *Session) Signal(name Name) error {
	sig, ok := signalTable[name]
	if !ok {
		panic(fmt.Sprintf("session: unrecognized signal %q", name))
	}

	sid := s.SID()
	if sid == 0 {
		slog.Debug("signal requested before session was spawned, ignoring")
		return nil
	}

	procs, err := procinspect.ProcessesInSession(sid)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	slog.Debug("broadcasting signal to session", "sid", sid, "signal", name, "count", len(procs))
	for _, want := range procs {
		got, ok := procinspect.IdentityForPID(want.PID)
		if !ok {
			slog.Debug("process already exited, skipping", "pid", want.PID)
			continue
		}
		if got != want {
			slog.Warn("pid was reused, skipping signal", "pid", want.PID)
			continue
		}
		if err := unix.Kill(int(want.PID), sig); err != nil && err != unix.ESRCH {
			slog.Warn("failed to signal process", "pid", want.PID, "signal", name, "error", err)
		}
	}
	return nil
}

// Terminate sends SIGTERM to every process in the session.
func (s *Session) Terminate() error { return s.Signal(SIGTERM) }

// Kill sends SIGKILL to every process in the session.
func (s *Session) Kill() error { return s.Signal(SIGKILL) }

// Pause sends SIGSTOP to every process in the session.
func (s *Session) Pause() error { return s.Signal(SIGSTOP) }

// Resume sends SIGCONT to every process in the session.
func (s *Session) Resume() error { return s.Signal(SIGCONT) }

// Wait blocks until the child exits and returns its exit error, if any.
// It may only be called once, since it delegates to exec.Cmd.Wait.
func (s *Session) Wait() error {
	return s.Cmd().Wait()
}
