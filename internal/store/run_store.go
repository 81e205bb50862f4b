package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vrsandeep/oilspill-go/internal/models"
)

// CreateRun inserts a run in the running state.
func (s *Store) CreateRun(fileID, fileName string, startedAt time.Time) (*models.Run, error) {
	res, err := s.db.Exec(
		"INSERT INTO runs (file_id, file_name, status, started_at) VALUES (?, ?, ?, ?)",
		fileID, fileName, models.RunRunning, startedAt.UTC(),
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Run{
		ID:        id,
		FileID:    fileID,
		FileName:  fileName,
		Status:    models.RunRunning,
		StartedAt: startedAt.UTC(),
	}, nil
}

// FinishRun sets the final status of a running run.
func (s *Store) FinishRun(id int64, status string, logCount int, finishedAt time.Time) error {
	res, err := s.db.Exec(
		"UPDATE runs SET status = ?, log_count = ?, finished_at = ? WHERE id = ? AND status = ?",
		status, logCount, finishedAt.UTC(), id, models.RunRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun fetches a single run.
func (s *Store) GetRun(id int64) (*models.Run, error) {
	row := s.db.QueryRow(
		"SELECT id, file_id, file_name, status, started_at, finished_at, log_count FROM runs WHERE id = ?", id,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	return r, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*models.Run, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, file_name, status, started_at, finished_at, log_count FROM runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*models.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StopInterruptedRuns marks runs left running by a previous process as
// stopped. The pipeline state does not survive a restart.
func (s *Store) StopInterruptedRuns(now time.Time) (int64, error) {
	res, err := s.db.Exec(
		"UPDATE runs SET status = ?, finished_at = ? WHERE status = ?",
		models.RunStopped, now.UTC(), models.RunRunning,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var r models.Run
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.FileID, &r.FileName, &r.Status, &r.StartedAt, &finished, &r.LogCount); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
