package cli

import (
	"errors"

	"jobsince/internal/accounting"
	"jobsince/internal/window"
)

var ErrInvalidState = errors.New("invalid state")

const (
	ExitOK                 = 0
	ExitError              = 1
	ExitInvalidInput       = 2
	ExitBackendUnavailable = 3
	ExitBackendFailed      = 4
	ExitBackendTimeout     = 5
)

// ExitCode maps an error returned by a command onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, window.ErrInvalidTimestamp),
		errors.Is(err, window.ErrInvalidDuration),
		errors.Is(err, ErrInvalidState):
		return ExitInvalidInput
	case errors.Is(err, accounting.ErrBackendUnavailable):
		return ExitBackendUnavailable
	case errors.Is(err, accounting.ErrBackendQueryFailed):
		return ExitBackendFailed
	case errors.Is(err, accounting.ErrBackendTimeout):
		return ExitBackendTimeout
	default:
		return ExitError
	}
}
