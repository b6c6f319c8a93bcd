package job

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kkloberdanz/jobrun/session"
)

// runFileMode is the permission mode every run file is created with:
// owner and group read/write/execute, per spec.
const runFileMode = 0o770

// Job is the active form of a submitted Spec: it owns a scratch directory
// and, once started, a child process-group session. Both are released when
// the job is removed from the registry.
type Job struct {
	mu   sync.Mutex
	spec Spec

	wrkDir  string
	started bool
	sess    *session.Session
	copyErr error
}

// New allocates a Job in the NotStarted state. Build must be called before
// Start.
func New(spec Spec) *Job {
	return &Job{spec: spec}
}

// Build creates the job's scratch directory beneath baseDir (by convention
// the server's current working directory) and writes the run file (mode
// 0770) and the stdin file. Build must be called exactly once, before
// Start.
func (j *Job) Build(baseDir string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, w := range j.spec.Normalize() {
		slog.Warn(w)
	}

	dir, err := os.MkdirTemp(baseDir, "job-"+uuid.New().String()+"-")
	if err != nil {
		return fmt.Errorf("job: failed to create working directory: %w", err)
	}
	j.wrkDir = dir

	if err := os.WriteFile(j.runFilePathLocked(), []byte(j.spec.Script), runFileMode); err != nil {
		return fmt.Errorf("job: failed to write run file: %w", err)
	}
	// WriteFile applies the mode only on creation, but if the file already
	// existed (it never should, fresh temp dir) the mode wouldn't stick;
	// Chmod makes execute bits unconditional.
	if err := os.Chmod(j.runFilePathLocked(), runFileMode); err != nil {
		return fmt.Errorf("job: failed to set run file permissions: %w", err)
	}

	if err := os.WriteFile(j.inpFilePathLocked(), j.spec.StdinInput, 0o660); err != nil {
		return fmt.Errorf("job: failed to write stdin file: %w", err)
	}

	return nil
}

// WrkDir returns the job's scratch directory.
func (j *Job) WrkDir() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wrkDir
}

func (j *Job) runFilePathLocked() string { return filepath.Join(j.wrkDir, j.spec.RunFile) }
func (j *Job) inpFilePathLocked() string { return filepath.Join(j.wrkDir, j.spec.InpFile) }
func (j *Job) outFilePathLocked() string { return filepath.Join(j.wrkDir, j.spec.OutFile) }
func (j *Job) errFilePathLocked() string { return filepath.Join(j.wrkDir, j.spec.ErrFile) }

// RunFilePath, InpFilePath, OutFilePath, ErrFilePath return wrk_dir-relative
// joins of the configured file names.
func (j *Job) RunFilePath() string { j.mu.Lock(); defer j.mu.Unlock(); return j.runFilePathLocked() }
func (j *Job) InpFilePath() string { j.mu.Lock(); defer j.mu.Unlock(); return j.inpFilePathLocked() }
func (j *Job) OutFilePath() string { j.mu.Lock(); defer j.mu.Unlock(); return j.outFilePathLocked() }
func (j *Job) ErrFilePath() string { j.mu.Lock(); defer j.mu.Unlock(); return j.errFilePathLocked() }

// ExtraFilePaths returns the wrk_dir-relative joins of the job's configured
// extra input files.
func (j *Job) ExtraFilePaths() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	paths := make([]string, len(j.spec.ExtraFiles))
	for i, f := range j.spec.ExtraFiles {
		paths[i] = filepath.Join(j.wrkDir, f)
	}
	return paths
}

// Started reports whether Start has been called.
func (j *Job) Started() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.started
}

// Start launches the run file under the session supervisor with cwd set to
// the working directory, pipes stdin/stdout/stderr, writes StdinInput to
// the child's stdin, and begins draining stdout/stderr into OutFile/ErrFile
// concurrently. Starting an already-started job returns ErrAlreadyStarted.
func (j *Job) Start() error {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return ErrAlreadyStarted
	}
	j.started = true
	wrkDir := j.wrkDir
	runFile := j.runFilePathLocked()
	outPath := j.outFilePathLocked()
	errPath := j.errFilePathLocked()
	stdin := j.spec.StdinInput
	j.mu.Unlock()

	var stdinPipe io.WriteCloser
	var stdoutPipe, stderrPipe io.ReadCloser

	sess, err := session.Spawn(runFile, nil, func(cmd *exec.Cmd) {
		cmd.Dir = wrkDir
		stdinPipe, _ = cmd.StdinPipe()
		stdoutPipe, _ = cmd.StdoutPipe()
		stderrPipe, _ = cmd.StderrPipe()
	})
	if err != nil {
		return fmt.Errorf("job: failed to start: %w", err)
	}

	j.mu.Lock()
	j.sess = sess
	j.mu.Unlock()

	outFile, err := os.Create(outPath)
	if err != nil {
		sess.Kill()
		return fmt.Errorf("job: failed to create out file: %w", err)
	}
	errFile, err := os.Create(errPath)
	if err != nil {
		outFile.Close()
		sess.Kill()
		return fmt.Errorf("job: failed to create err file: %w", err)
	}

	// Write stdin synchronously; it is assumed small and is not streamed.
	if len(stdin) > 0 {
		if _, err := stdinPipe.Write(stdin); err != nil {
			slog.Warn("failed to write stdin to child", "error", err)
		}
	}
	stdinPipe.Close()

	var grp errgroup.Group
	grp.Go(func() error {
		defer outFile.Close()
		_, err := io.Copy(outFile, stdoutPipe)
		return err
	})
	grp.Go(func() error {
		defer errFile.Close()
		_, err := io.Copy(errFile, stderrPipe)
		return err
	})

	go func() {
		copyErr := grp.Wait()
		j.mu.Lock()
		j.copyErr = copyErr
		j.mu.Unlock()
	}()

	return nil
}

// Wait blocks until the child exits (or was killed). A nonzero exit status
// is not an error. Waiting a job that was never started returns
// ErrNotStarted.
func (j *Job) Wait() error {
	j.mu.Lock()
	if !j.started {
		j.mu.Unlock()
		slog.Error("wait called on a job that was never started")
		return ErrNotStarted
	}
	sess := j.sess
	j.mu.Unlock()

	err := sess.Wait()

	j.mu.Lock()
	copyErr := j.copyErr
	j.mu.Unlock()

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("job: wait failed: %w", err)
		}
	}
	if copyErr != nil && !errors.Is(copyErr, io.ErrClosedPipe) {
		slog.Warn("error draining child output", "error", copyErr)
	}
	return nil
}

// Terminate broadcasts SIGTERM to the job's session. Always safe to call;
// a no-op if the job was never started.
func (j *Job) Terminate() error {
	j.mu.Lock()
	sess := j.sess
	j.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Terminate()
}

// Kill broadcasts SIGKILL to the job's session, guaranteeing teardown. It is
// called when the job is removed from the registry; always safe to call.
func (j *Job) Kill() error {
	j.mu.Lock()
	sess := j.sess
	j.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Kill()
}

// Done reports the advisory "is this job done" predicate: OutFile and
// InpFile both exist, and OutFile's mtime is at least InpFile's. This is a
// best-effort check used by surrounding tooling; the registry itself never
// consults it.
func (j *Job) Done() bool {
	inPath := j.InpFilePath()
	outPath := j.OutFilePath()

	inInfo, err := os.Stat(inPath)
	if err != nil {
		return false
	}
	outInfo, err := os.Stat(outPath)
	if err != nil {
		return false
	}
	return !outInfo.ModTime().Before(inInfo.ModTime())
}
