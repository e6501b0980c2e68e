package model

import (
	"strings"
	"time"
)

type State string

const (
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
	StateCancelled   State = "CANCELLED"
	StateTimeout     State = "TIMEOUT"
	StateOutOfMemory State = "OUT_OF_MEMORY"
	StateNodeFail    State = "NODE_FAIL"
	StatePreempted   State = "PREEMPTED"
	StateUnknown     State = "UNKNOWN"
)

// States lists every value of the enumeration, UNKNOWN last.
var States = []State{
	StateCompleted,
	StateFailed,
	StateCancelled,
	StateTimeout,
	StateOutOfMemory,
	StateNodeFail,
	StatePreempted,
	StateUnknown,
}

// activeStates are backend states of jobs that have not finished yet.
var activeStates = map[string]bool{
	"PENDING":       true,
	"RUNNING":       true,
	"REQUEUED":      true,
	"REQUEUE_FED":   true,
	"REQUEUE_HOLD":  true,
	"RESIZING":      true,
	"SUSPENDED":     true,
	"STOPPED":       true,
	"CONFIGURING":   true,
	"COMPLETING":    true,
	"SIGNALING":     true,
	"STAGE_OUT":     true,
	"RESV_DEL_HOLD": true,
}

// normalizeState strips the decorations the backend adds to state strings:
// "CANCELLED by 1234" and the column-truncated "CANCELLED+".
func normalizeState(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		s = s[:i]
	}
	return strings.ToUpper(strings.TrimRight(s, "+"))
}

// ParseState maps a backend state string onto the enumeration.
// Anything unrecognized becomes StateUnknown.
func ParseState(raw string) State {
	s := State(normalizeState(raw))
	for _, known := range States {
		if s == known && s != StateUnknown {
			return s
		}
	}
	if s == "OOM" {
		return StateOutOfMemory
	}
	return StateUnknown
}

// LookupState resolves a user supplied state name, including UNKNOWN.
func LookupState(name string) (State, bool) {
	s := State(normalizeState(name))
	for _, known := range States {
		if s == known {
			return s, true
		}
	}
	if s == "OOM" {
		return StateOutOfMemory, true
	}
	return "", false
}

// IsActiveState reports whether raw names a job that is still queued or running.
func IsActiveState(raw string) bool {
	return activeStates[normalizeState(raw)]
}

type JobRecord struct {
	JobID     string
	Name      string
	User      string
	State     State
	RawState  string
	StartTime *time.Time
	EndTime   *time.Time
	ExitCode  *int
}

// IsArrayTask reports whether the id carries an array index suffix ("123_4").
func (j JobRecord) IsArrayTask() bool {
	return strings.Contains(j.JobID, "_")
}
