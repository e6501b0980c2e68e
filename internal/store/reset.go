package store

import (
	"context"
)

func (s *Store) ResetHistory(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_history;`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs;`); err != nil {
		return err
	}
	return tx.Commit()
}
