package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"jobsince/internal/accounting"
	"jobsince/internal/window"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"timestamp", fmt.Errorf("%w: %q", window.ErrInvalidTimestamp, "x"), ExitInvalidInput},
		{"duration", fmt.Errorf("%w: %q", window.ErrInvalidDuration, "-1"), ExitInvalidInput},
		{"state", fmt.Errorf("%w: %q", ErrInvalidState, "NOPE"), ExitInvalidInput},
		{"unavailable", fmt.Errorf("%w: sacct", accounting.ErrBackendUnavailable), ExitBackendUnavailable},
		{"query failed", &accounting.QueryError{Command: "sacct", ExitCode: 1}, ExitBackendFailed},
		{"timeout", accounting.ErrBackendTimeout, ExitBackendTimeout},
		{"other", errors.New("disk full"), ExitError},
		{"canceled", context.Canceled, ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
