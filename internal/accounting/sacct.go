package accounting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobsince/internal/model"
)

const (
	DefaultCommand = "sacct"
	DefaultTimeout = 30 * time.Second

	// Delimiter separates fields in --parsable2 output.
	Delimiter = "|"

	// timeLayout is how the backend reads -S and writes Start/End.
	timeLayout = "2006-01-02T15:04:05"
)

// Fields is the column order requested from the backend.
var Fields = []string{"JobID", "JobName", "User", "State", "Start", "End", "ExitCode"}

// backendStateNames maps the enumeration onto names accepted by --state.
var backendStateNames = map[model.State]string{
	model.StateCompleted:   "COMPLETED",
	model.StateFailed:      "FAILED",
	model.StateCancelled:   "CANCELLED",
	model.StateTimeout:     "TIMEOUT",
	model.StateOutOfMemory: "OUT_OF_MEMORY",
	model.StateNodeFail:    "NODE_FAIL",
	model.StatePreempted:   "PREEMPTED",
}

type Query struct {
	Since  time.Time
	User   string
	States []model.State
}

// Querier runs one accounting query and returns the raw delimited output.
type Querier interface {
	Query(ctx context.Context, q Query) ([]byte, error)
}

// Sacct queries Slurm accounting through the sacct command line tool.
type Sacct struct {
	Command  string
	Timeout  time.Duration
	Location *time.Location
	Logger   *zap.Logger
}

func NewSacct(command string, timeout time.Duration, logger *zap.Logger) *Sacct {
	if command == "" {
		command = DefaultCommand
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sacct{Command: command, Timeout: timeout, Location: time.Local, Logger: logger}
}

// Args builds the command line for q, without the command itself.
func (s *Sacct) Args(q Query) []string {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}

	args := []string{
		"-X",
		"-n",
		"--parsable2",
		"-S", q.Since.In(loc).Format(timeLayout),
		"-E", "now",
		"--format=" + strings.Join(Fields, ","),
	}
	if q.User != "" {
		args = append(args, "-u", q.User)
	}
	if states := pushdownStates(q.States); len(states) > 0 {
		args = append(args, "--state="+strings.Join(states, ","))
	}
	return args
}

// pushdownStates returns nil when the filter cannot be expressed to the
// backend. UNKNOWN matches strings the backend would not select by name.
func pushdownStates(states []model.State) []string {
	var names []string
	for _, st := range states {
		name, ok := backendStateNames[st]
		if !ok {
			return nil
		}
		names = append(names, name)
	}
	return names
}

func (s *Sacct) Query(ctx context.Context, q Query) ([]byte, error) {
	path, err := exec.LookPath(s.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, s.Command, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	args := s.Args(q)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.Logger.Debug("running accounting query",
		zap.String("command", path),
		zap.Strings("args", args),
		zap.Duration("timeout", s.Timeout))

	start := time.Now()
	err = cmd.Run()
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return nil, fmt.Errorf("%w after %s", ErrBackendTimeout, s.Timeout)
	case context.Canceled:
		return nil, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &QueryError{Command: s.Command, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, s.Command, err)
		}
		return nil, fmt.Errorf("run %s: %w", s.Command, err)
	}

	s.Logger.Debug("accounting query finished",
		zap.Int("bytes", stdout.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return stdout.Bytes(), nil
}
