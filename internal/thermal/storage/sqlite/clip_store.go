package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ClipRun is one processed clip: its statistics, and either the rejection
// reason or the number of tracks extracted and kept.
type ClipRun struct {
	RunID                  string    `json:"run_id"`
	Source                 string    `json:"source"`
	StartTime              time.Time `json:"start_time"`
	LocalTime              time.Time `json:"local_time"`
	FrameCount             int       `json:"frame_count"`
	MeanTemp               int       `json:"mean_temp"`
	MaxTemp                int       `json:"max_temp"`
	MinTemp                int       `json:"min_temp"`
	IsNight                bool      `json:"is_night"`
	IsStaticBackground     bool      `json:"is_static_background"`
	AutoThreshold          float64   `json:"auto_threshold"`
	AverageBackgroundDelta float64   `json:"average_background_delta"`
	RejectedReason         string    `json:"rejected_reason,omitempty"`
	TrackCount             int       `json:"track_count"`
	SurvivorCount          int       `json:"survivor_count"`
	CreatedAt              int64     `json:"created_at"`
}

// ClipStore persists ClipRun rows.
type ClipStore struct {
	db *sql.DB
}

// NewClipStore creates a ClipStore on an open, migrated database.
func NewClipStore(db *DB) *ClipStore {
	return &ClipStore{db: db.DB}
}

// Insert persists a run. If RunID is empty, a UUID is generated.
func (s *ClipStore) Insert(run *ClipRun) error {
	prepareRun(run)
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := insertRunTx(tx, run); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("inserting clip run %s: %w", run.RunID, err)
	}
	return nil
}

func prepareRun(run *ClipRun) {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
}

func insertRunTx(tx *sql.Tx, run *ClipRun) error {
	var localTime interface{}
	if !run.LocalTime.IsZero() {
		localTime = run.LocalTime.Format(time.RFC3339)
	}
	_, err := tx.Exec(`
		INSERT INTO clip_runs (
			run_id, source, start_time, local_time, frame_count,
			mean_temp, max_temp, min_temp, is_night, is_static_background,
			auto_threshold, average_background_delta, rejected_reason,
			track_count, survivor_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.StartTime.UTC().Format(time.RFC3339Nano), localTime, run.FrameCount,
		run.MeanTemp, run.MaxTemp, run.MinTemp, boolToInt(run.IsNight), boolToInt(run.IsStaticBackground),
		run.AutoThreshold, run.AverageBackgroundDelta, nullStr(run.RejectedReason),
		run.TrackCount, run.SurvivorCount, run.CreatedAt,
	)
	return err
}

const clipRunColumns = `run_id, source, start_time, local_time, frame_count,
	mean_temp, max_temp, min_temp, is_night, is_static_background,
	auto_threshold, average_background_delta, rejected_reason,
	track_count, survivor_count, created_at`

// Get returns the run with the given id, or ErrNotFound.
func (s *ClipStore) Get(runID string) (*ClipRun, error) {
	row := s.db.QueryRow(`SELECT `+clipRunColumns+` FROM clip_runs WHERE run_id = ?`, runID)
	run, err := scanClipRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("clip run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get clip run %s: %w", runID, err)
	}
	return run, nil
}

// ListBySource returns every run of a source, newest first.
func (s *ClipStore) ListBySource(source string) ([]*ClipRun, error) {
	rows, err := s.db.Query(`SELECT `+clipRunColumns+` FROM clip_runs
		WHERE source = ? ORDER BY created_at DESC`, source)
	if err != nil {
		return nil, fmt.Errorf("list clip runs for %s: %w", source, err)
	}
	defer rows.Close()

	var runs []*ClipRun
	for rows.Next() {
		run, err := scanClipRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClipRun(row rowScanner) (*ClipRun, error) {
	var (
		run                 ClipRun
		startTime           string
		localTime, rejected sql.NullString
		isNight, isStatic   int
	)
	err := row.Scan(&run.RunID, &run.Source, &startTime, &localTime, &run.FrameCount,
		&run.MeanTemp, &run.MaxTemp, &run.MinTemp, &isNight, &isStatic,
		&run.AutoThreshold, &run.AverageBackgroundDelta, &rejected,
		&run.TrackCount, &run.SurvivorCount, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	if run.StartTime, err = time.Parse(time.RFC3339Nano, startTime); err != nil {
		return nil, fmt.Errorf("parse start_time %q: %w", startTime, err)
	}
	if localTime.Valid {
		if run.LocalTime, err = time.Parse(time.RFC3339, localTime.String); err != nil {
			return nil, fmt.Errorf("parse local_time %q: %w", localTime.String, err)
		}
	}
	run.RejectedReason = rejected.String
	run.IsNight = isNight != 0
	run.IsStaticBackground = isStatic != 0
	return &run, nil
}
