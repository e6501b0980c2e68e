package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobsince/internal/model"
)

const (
	fileName      = "session.json"
	schemaVersion = 1
)

type fileFormat struct {
	Version            int    `json:"version"`
	LastInvocationTime string `json:"last_invocation_time"`
	OwnerUser          string `json:"owner_user"`
}

// Store keeps the last successful invocation time in <dir>/session.json.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: strings.TrimSpace(dir), logger: logger}
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, fileName)
}

// Load returns nil when there is no usable state. A missing file is silent;
// an unreadable or corrupt one is logged and otherwise ignored.
func (s *Store) Load() *model.SessionState {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("cannot read session state, starting fresh", zap.String("path", s.Path()), zap.Error(err))
		}
		return nil
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		s.logger.Warn("session state file is empty, starting fresh", zap.String("path", s.Path()))
		return nil
	}

	var f fileFormat
	if err := json.Unmarshal([]byte(trimmed), &f); err != nil {
		s.logger.Warn("session state file is corrupt, starting fresh", zap.String("path", s.Path()), zap.Error(err))
		return nil
	}

	ts, err := time.Parse(time.RFC3339Nano, f.LastInvocationTime)
	if err != nil {
		s.logger.Warn("session state has an unreadable timestamp, starting fresh",
			zap.String("path", s.Path()), zap.String("last_invocation_time", f.LastInvocationTime))
		return nil
	}

	return &model.SessionState{LastInvocationTime: ts, OwnerUser: f.OwnerUser}
}

// Save writes the state through a temp file in the same directory and renames
// it into place, so readers only ever see a complete file.
func (s *Store) Save(state model.SessionState) error {
	if s.dir == "" {
		return fmt.Errorf("session state dir is empty")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	b, err := json.MarshalIndent(fileFormat{
		Version:            schemaVersion,
		LastInvocationTime: state.LastInvocationTime.Format(time.RFC3339Nano),
		OwnerUser:          state.OwnerUser,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(s.dir, fileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// Remove deletes the state file. A missing file is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
