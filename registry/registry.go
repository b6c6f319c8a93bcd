// Package registry holds the server's in-memory job database: a single
// exclusive lock serializing issuance of stable external ids over a
// slot-allocated store of active jobs.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kkloberdanz/jobrun/job"
)

// ErrNotFound is returned by every operation that takes a JobId when no job
// with that id is present.
var ErrNotFound = errors.New("registry: job not found")

// ErrAlreadyStarted is returned by UpdateJob when the job has already been
// started. Re-exported from job so callers only need to import registry.
var ErrAlreadyStarted = job.ErrAlreadyStarted

// Registry is the server's job database. The zero value is not usable; call
// New. All exported methods take the single registry-wide lock for their
// entire duration, including WaitJob, which holds it across the child's
// whole execution per the coarse-grained concurrency contract.
type Registry struct {
	mu      sync.Mutex
	baseDir string
	jobs    map[int]*job.Job
	nextID  int
}

// New creates an empty registry. baseDir is the directory under which every
// job's scratch directory is created (by convention, the server's current
// working directory).
func New(baseDir string) *Registry {
	return &Registry{
		baseDir: baseDir,
		jobs:    make(map[int]*job.Job),
		nextID:  1,
	}
}

// InsertJob materializes spec into a new scratch directory and assigns it a
// fresh, never-reused JobId. An I/O error from the underlying build is fatal
// to the insert: no id is allocated and no job is retained.
func (r *Registry) InsertJob(spec job.Spec) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := job.New(spec)
	if err := j.Build(r.baseDir); err != nil {
		return 0, fmt.Errorf("registry: insert failed: %w", err)
	}

	id := r.nextID
	r.nextID++
	r.jobs[id] = j

	slog.Info("job inserted", "id", id, "dir", j.WrkDir())
	return id, nil
}

// UpdateJob replaces the submitted-form spec of an unstarted job. It fails
// with ErrAlreadyStarted if the job has already been started, and with
// ErrNotFound if id is unknown. The job keeps its JobId but not its scratch
// directory: the replacement is built into a fresh directory, and the old
// directory, including any files uploaded to it, is removed.
func (r *Registry) UpdateJob(id int, spec job.Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Started() {
		return ErrAlreadyStarted
	}

	replacement := job.New(spec)
	if err := replacement.Build(r.baseDir); err != nil {
		return fmt.Errorf("registry: update failed: %w", err)
	}

	oldDir := j.WrkDir()
	r.jobs[id] = replacement
	if err := os.RemoveAll(oldDir); err != nil {
		slog.Warn("failed to remove superseded working directory", "id", id, "error", err)
	}
	return nil
}

// DeleteJob terminates the job's process group (if started) and releases
// its scratch directory, retiring its JobId permanently.
func (r *Registry) DeleteJob(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(id)
}

func (r *Registry) deleteLocked(id int) error {
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}

	if err := j.Kill(); err != nil {
		slog.Warn("failed to kill job's session during delete", "id", id, "error", err)
	}
	if err := os.RemoveAll(j.WrkDir()); err != nil {
		slog.Warn("failed to remove job's working directory", "id", id, "error", err)
	}

	delete(r.jobs, id)
	return nil
}

// ClearJobs removes every live job, killing each one's process group. It
// never fails; deletion errors for individual jobs are logged and the clear
// continues.
func (r *Registry) ClearJobs() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.jobs {
		if err := r.deleteLocked(id); err != nil {
			slog.Warn("failed to delete job during clear", "id", id, "error", err)
		}
	}
}

// GetJobList returns every live JobId, in ascending order.
func (r *Registry) GetJobList() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// WaitJob starts the job if it has not already been started, then blocks
// until the child exits. It holds the registry lock for the entire duration,
// per the spec's coarse-grained concurrency contract: job execution is
// serialized through the registry.
func (r *Registry) WaitJob(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}

	if !j.Started() {
		if err := j.Start(); err != nil {
			return fmt.Errorf("registry: failed to start job %d: %w", id, err)
		}
	}

	return j.Wait()
}

// ListJobFiles returns the absolute paths of every regular file directly
// inside the job's scratch directory (non-recursive).
func (r *Registry) ListJobFiles(id int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	entries, err := os.ReadDir(j.WrkDir())
	if err != nil {
		return nil, fmt.Errorf("registry: failed to list files for job %d: %w", id, err)
	}

	var paths []string
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Mode().Type()&fs.ModeType != 0 {
			continue
		}
		paths = append(paths, filepath.Join(j.WrkDir(), e.Name()))
	}
	return paths, nil
}

// GetJobFile returns the bytes of a relative file name inside the job's
// scratch directory.
func (r *Registry) GetJobFile(id int, name string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(filepath.Join(j.WrkDir(), filepath.Clean("/"+name)[1:]))
	if err != nil {
		return nil, fmt.Errorf("registry: failed to read file %q for job %d: %w", name, id, err)
	}
	return data, nil
}

// PutJobFile writes (creating or overwriting) a relative file name inside
// the job's scratch directory.
func (r *Registry) PutJobFile(id int, name string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}

	path := filepath.Join(j.WrkDir(), filepath.Clean("/"+name)[1:])
	if err := os.WriteFile(path, body, 0o660); err != nil {
		return fmt.Errorf("registry: failed to write file %q for job %d: %w", name, id, err)
	}
	return nil
}
