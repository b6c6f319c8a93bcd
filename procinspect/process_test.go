package procinspect_test

import (
	"os"
	"syscall"
	"testing"

	"go.uber.org/goleak"

	"github.com/kkloberdanz/jobrun/procinspect"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIdentityForPIDSelf(t *testing.T) {
	id, ok := procinspect.IdentityForPID(int32(os.Getpid()))
	if !ok {
		t.Fatal("expected to resolve the identity of the current process")
	}
	if id.PID != int32(os.Getpid()) {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), id.PID)
	}
	if id.StartTime == 0 {
		t.Fatal("expected a non-zero start time")
	}
}

func TestIdentityForPIDUnknown(t *testing.T) {
	// A pid that is very unlikely to exist.
	if _, ok := procinspect.IdentityForPID(1 << 30); ok {
		t.Fatal("expected lookup of a bogus pid to fail")
	}
}

func TestProcessesInSessionFindsSelf(t *testing.T) {
	sid, err := syscall.Getsid(0)
	if err != nil {
		t.Skipf("getsid unavailable: %v", err)
	}

	procs, err := procinspect.ProcessesInSession(int32(sid))
	if err != nil {
		t.Fatalf("ProcessesInSession failed: %v", err)
	}

	pid := int32(os.Getpid())
	for _, p := range procs {
		if p.PID == pid {
			return
		}
	}
	t.Fatalf("expected session %d to include the test process (pid %d)", sid, pid)
}
