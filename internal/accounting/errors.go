package accounting

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for backend invocations.
var (
	// ErrBackendUnavailable indicates the accounting command is not installed.
	ErrBackendUnavailable = errors.New("accounting backend unavailable")

	// ErrBackendQueryFailed indicates the command ran and exited non-zero.
	ErrBackendQueryFailed = errors.New("accounting query failed")

	// ErrBackendTimeout indicates the command did not finish in time.
	ErrBackendTimeout = errors.New("accounting query timed out")
)

// QueryError carries the backend's own diagnostics for a failed query.
type QueryError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *QueryError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, msg)
}

// Is lets errors.Is(err, ErrBackendQueryFailed) match a *QueryError.
func (e *QueryError) Is(target error) bool {
	return target == ErrBackendQueryFailed
}
