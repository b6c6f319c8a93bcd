// Package job materializes a submitted computation into a private scratch
// directory and supervises its execution as a process-group session.
package job

import (
	"errors"
)

// ErrAlreadyStarted is returned by Start when the job has already been
// started.
var ErrAlreadyStarted = errors.New("job: already started")

// ErrNotStarted is returned by Wait when called on a job that was never
// started.
var ErrNotStarted = errors.New("job: not started")

const (
	defaultRunFile = "run"
	defaultInpFile = "job.inp"
	defaultOutFile = "job.out"
	defaultErrFile = "job.err"
)

// Spec is the submitted form of a job: everything a client supplies before
// the registry materializes it into a working directory.
type Spec struct {
	// Script is the full text of the executable run file.
	Script string `json:"script"`
	// StdinInput is streamed to the child's stdin at start.
	StdinInput []byte `json:"input"`

	RunFile string `json:"run_file"`
	InpFile string `json:"inp_file"`
	OutFile string `json:"out_file"`
	ErrFile string `json:"err_file"`

	// ExtraFiles are relative paths, inside the working directory, of
	// additional required input files. Order is preserved; duplicates are
	// dropped with a warning rather than rejected outright (see Normalize).
	ExtraFiles []string `json:"extra_files"`
}

// Normalize fills in default file names and deduplicates ExtraFiles,
// returning the warnings produced (callers typically log these). Normalize
// does not touch the names of files the caller already set explicitly.
func (s *Spec) Normalize() []string {
	if s.RunFile == "" {
		s.RunFile = defaultRunFile
	}
	if s.InpFile == "" {
		s.InpFile = defaultInpFile
	}
	if s.OutFile == "" {
		s.OutFile = defaultOutFile
	}
	if s.ErrFile == "" {
		s.ErrFile = defaultErrFile
	}

	var warnings []string
	seen := make(map[string]bool, len(s.ExtraFiles))
	deduped := s.ExtraFiles[:0]
	for _, f := range s.ExtraFiles {
		if seen[f] {
			warnings = append(warnings, "duplicate extra file ignored: "+f)
			continue
		}
		seen[f] = true
		deduped = append(deduped, f)
	}
	s.ExtraFiles = deduped
	return warnings
}
