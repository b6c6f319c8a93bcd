package job

import (
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNormalizeFillsDefaults(t *testing.T) {
	s := Spec{Script: "#!/bin/sh\necho hi\n"}
	s.Normalize()

	if s.RunFile != defaultRunFile {
		t.Fatalf("expected run file %q, got %q", defaultRunFile, s.RunFile)
	}
	if s.InpFile != defaultInpFile {
		t.Fatalf("expected inp file %q, got %q", defaultInpFile, s.InpFile)
	}
	if s.OutFile != defaultOutFile {
		t.Fatalf("expected out file %q, got %q", defaultOutFile, s.OutFile)
	}
	if s.ErrFile != defaultErrFile {
		t.Fatalf("expected err file %q, got %q", defaultErrFile, s.ErrFile)
	}
}

func TestNormalizeDedupesExtraFiles(t *testing.T) {
	s := Spec{ExtraFiles: []string{"a.txt", "b.txt", "a.txt"}}
	warnings := s.Normalize()

	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	if len(s.ExtraFiles) != 2 {
		t.Fatalf("expected 2 deduped extra files, got %v", s.ExtraFiles)
	}
}

func TestBuildStartWait(t *testing.T) {
	tmp := t.TempDir()
	j := New(Spec{Script: "#!/bin/sh\necho hello\n"})

	if err := j.Build(tmp); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := j.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := j.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	out, err := os.ReadFile(j.OutFilePath())
	if err != nil {
		t.Fatalf("failed to read out file: %v", err)
	}
	if string(out) != "hello\n" {
		t.Fatalf("expected %q, got %q", "hello\n", string(out))
	}
}

func TestStartCalledTwice(t *testing.T) {
	tmp := t.TempDir()
	j := New(Spec{Script: "#!/bin/sh\necho hi\n"})
	if err := j.Build(tmp); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := j.Start(); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := j.Start(); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	j.Wait()
}

func TestWaitWithoutStart(t *testing.T) {
	j := New(Spec{Script: "#!/bin/sh\necho hi\n"})
	if err := j.Wait(); err != ErrNotStarted {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestTerminateKillsChild(t *testing.T) {
	tmp := t.TempDir()
	j := New(Spec{Script: "#!/bin/sh\nsleep 30\n"})
	if err := j.Build(tmp); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := j.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- j.Wait() }()

	if err := j.Kill(); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not killed within 5s")
	}
}

func TestDoneReflectsFileTimestamps(t *testing.T) {
	tmp := t.TempDir()
	j := New(Spec{Script: "#!/bin/sh\necho hi\n"})
	if err := j.Build(tmp); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if j.Done() {
		t.Fatal("expected Done to be false before the job has run")
	}
	if err := j.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := j.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !j.Done() {
		t.Fatal("expected Done to be true once out file postdates inp file")
	}
}
