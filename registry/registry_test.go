package registry_test

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/kkloberdanz/jobrun/job"
	"github.com/kkloberdanz/jobrun/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func echoSpec(text string) job.Spec {
	return job.Spec{Script: "#!/bin/sh\necho " + text + "\n"}
}

func TestInsertAssignsMonotonicIds(t *testing.T) {
	r := registry.New(t.TempDir())

	id1, err := r.InsertJob(echoSpec("a"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	id2, err := r.InsertJob(echoSpec("b"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	if id1 != 1 || id2 != 2 {
		t.Fatalf("expected ids 1, 2, got %d, %d", id1, id2)
	}
}

func TestIdsNeverReused(t *testing.T) {
	r := registry.New(t.TempDir())

	id1, err := r.InsertJob(echoSpec("a"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	if err := r.DeleteJob(id1); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}

	id2, err := r.InsertJob(echoSpec("b"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	if id2 == id1 {
		t.Fatalf("expected a fresh id, got reused id %d", id1)
	}
}

func TestGetJobListIsSorted(t *testing.T) {
	r := registry.New(t.TempDir())

	for i := 0; i < 3; i++ {
		if _, err := r.InsertJob(echoSpec("x")); err != nil {
			t.Fatalf("InsertJob failed: %v", err)
		}
	}

	ids := r.GetJobList()
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %v", ids)
	}
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("expected sorted ids 1..3, got %v", ids)
		}
	}
}

func TestDeleteUnknownIdReturnsNotFound(t *testing.T) {
	r := registry.New(t.TempDir())

	if err := r.DeleteJob(999); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepeatedDeleteFailsSecondTime(t *testing.T) {
	r := registry.New(t.TempDir())

	id, err := r.InsertJob(echoSpec("a"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	if err := r.DeleteJob(id); err != nil {
		t.Fatalf("first DeleteJob failed: %v", err)
	}
	if err := r.DeleteJob(id); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeated delete, got %v", err)
	}
}

func TestWaitJobStartsImplicitly(t *testing.T) {
	r := registry.New(t.TempDir())

	id, err := r.InsertJob(echoSpec("hello"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	if err := r.WaitJob(id); err != nil {
		t.Fatalf("WaitJob failed: %v", err)
	}

	data, err := r.GetJobFile(id, "job.out")
	if err != nil {
		t.Fatalf("GetJobFile failed: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("expected %q, got %q", "hello\n", string(data))
	}
}

func TestUpdateRejectedAfterStart(t *testing.T) {
	r := registry.New(t.TempDir())

	id, err := r.InsertJob(echoSpec("a"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	if err := r.WaitJob(id); err != nil {
		t.Fatalf("WaitJob failed: %v", err)
	}

	err = r.UpdateJob(id, echoSpec("b"))
	if !errors.Is(err, registry.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestUpdateUnknownIdReturnsNotFound(t *testing.T) {
	r := registry.New(t.TempDir())

	if err := r.UpdateJob(999, echoSpec("a")); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutThenGetFileRoundTrips(t *testing.T) {
	r := registry.New(t.TempDir())

	id, err := r.InsertJob(echoSpec("a"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	if err := r.PutJobFile(id, "extra.dat", []byte("abc")); err != nil {
		t.Fatalf("PutJobFile failed: %v", err)
	}

	data, err := r.GetJobFile(id, "extra.dat")
	if err != nil {
		t.Fatalf("GetJobFile failed: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("expected %q, got %q", "abc", string(data))
	}
}

func TestListJobFilesIncludesUpload(t *testing.T) {
	r := registry.New(t.TempDir())

	id, err := r.InsertJob(echoSpec("a"))
	if err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	if err := r.PutJobFile(id, "extra.dat", []byte("abc")); err != nil {
		t.Fatalf("PutJobFile failed: %v", err)
	}

	paths, err := r.ListJobFiles(id)
	if err != nil {
		t.Fatalf("ListJobFiles failed: %v", err)
	}

	found := false
	for _, p := range paths {
		if filepath.Base(p) == "extra.dat" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected extra.dat among %v", paths)
	}
}

func TestClearJobsRemovesEverything(t *testing.T) {
	r := registry.New(t.TempDir())

	for i := 0; i < 3; i++ {
		if _, err := r.InsertJob(echoSpec("a")); err != nil {
			t.Fatalf("InsertJob failed: %v", err)
		}
	}

	r.ClearJobs()

	if ids := r.GetJobList(); len(ids) != 0 {
		t.Fatalf("expected no jobs after ClearJobs, got %v", ids)
	}
}

