// Package procinspect enumerates live processes and filters them by POSIX
// session id. It is a pure read: it never signals a process, only reports
// what is currently alive, so callers can recheck a pid's start time
// immediately before acting on it.
package procinspect

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrInspection is returned when the process table cannot be enumerated.
var ErrInspection = fmt.Errorf("procinspect: failed to enumerate processes")

// Identity uniquely names a process instance. The pid alone is not stable
// across the lifetime of a long-running server because pids are reused;
// StartTime disambiguates a live process from a dead one that happened to
// get the same pid reassigned to it later.
type Identity struct {
	PID       int32
	StartTime int64 // milliseconds since the Unix epoch, per gopsutil's CreateTime.
}

// ProcessesInSession returns the identity of every live process whose POSIX
// session id equals sid. Processes that disappear between enumeration and
// the per-process read are silently skipped, per spec.
func ProcessesInSession(sid int32) ([]Identity, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInspection, err)
	}

	var out []Identity
	for _, p := range procs {
		psid, err := sessionID(p.Pid)
		if err != nil {
			// Process exited between enumeration and read; skip it.
			continue
		}
		if psid != sid {
			continue
		}
		createTime, err := p.CreateTime()
		if err != nil {
			continue
		}
		out = append(out, Identity{PID: p.Pid, StartTime: createTime})
	}
	return out, nil
}

// IdentityForPID re-resolves a single pid's current identity. It is used
// immediately before signalling a stored pid to guard against pid reuse: if
// the freshly read identity doesn't match the one the caller remembers, the
// process behind that pid is not the one the caller intended to signal.
func IdentityForPID(pid int32) (Identity, bool) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return Identity{}, false
	}
	createTime, err := p.CreateTime()
	if err != nil {
		return Identity{}, false
	}
	return Identity{PID: pid, StartTime: createTime}, true
}

// sessionID reads the POSIX session id (field 6 of /proc/<pid>/stat) for
// pid. gopsutil does not expose the session id field publicly, so it is read
// directly from the same procfs file gopsutil itself parses internally.
func sessionID(pid int32) (int32, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}

	// The comm field (2nd field) is parenthesized and may itself contain
	// spaces or parens, so split on the last ')' rather than whitespace.
	line := string(data)
	end := strings.LastIndexByte(line, ')')
	if end < 0 || end+2 >= len(line) {
		return 0, fmt.Errorf("procinspect: malformed stat line for pid %d", pid)
	}

	fields := strings.Fields(line[end+2:])
	// After the comm field, fields[0] is state, fields[1] ppid, fields[2] pgrp,
	// fields[3] session.
	if len(fields) < 4 {
		return 0, fmt.Errorf("procinspect: short stat line for pid %d", pid)
	}

	sid, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("procinspect: bad session field for pid %d: %w", pid, err)
	}
	return int32(sid), nil
}
