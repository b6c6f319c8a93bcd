package runner_test

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kkloberdanz/jobrun/runner"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunExitsNormally(t *testing.T) {
	outcome, err := runner.Run("true", nil, time.Second)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome != runner.OutcomeExited {
		t.Fatalf("expected OutcomeExited, got %v", outcome)
	}
}

func TestRunTimesOutAndKillsGroup(t *testing.T) {
	start := time.Now()
	outcome, _ := runner.Run("sleep", []string{"30"}, 500*time.Millisecond)
	elapsed := time.Since(start)

	if outcome != runner.OutcomeTimeout {
		t.Fatalf("expected OutcomeTimeout, got %v", outcome)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("expected Run to return shortly after timeout, took %v", elapsed)
	}
}

func TestRunBadProgram(t *testing.T) {
	_, err := runner.Run("command-that-does-not-exist-anywhere", nil, time.Second)
	if err == nil {
		t.Fatal("expected error for nonexistent program")
	}
}
