package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrackBounds is one persisted bounding box of a track's history.
type TrackBounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Mass   int `json:"mass"`
}

// TrackRecord is a surviving track of a clip run with its ranking and,
// when identification ran, its best label.
type TrackRecord struct {
	TrackUUID      string        `json:"track_uuid"`
	RunID          string        `json:"run_id"`
	TrackID        int           `json:"track_id"`
	Rank           int           `json:"rank"`
	Score          float64       `json:"score"`
	Movement       float64       `json:"movement"`
	MaxOffset      float64       `json:"max_offset"`
	AverageMass    float64       `json:"average_mass"`
	Duration       float64       `json:"duration"`
	OriginX        float64       `json:"origin_x"`
	OriginY        float64       `json:"origin_y"`
	FirstFrame     int           `json:"first_frame"`
	FrameCount     int           `json:"frame_count"`
	MassHistory    []int         `json:"mass_history,omitempty"`
	BoundsHistory  []TrackBounds `json:"bounds_history,omitempty"`
	BestLabel      string        `json:"best_label,omitempty"`
	BestScore      float64       `json:"best_score,omitempty"`
	AverageNovelty float64       `json:"average_novelty,omitempty"`
	CreatedAt      int64         `json:"created_at"`
}

// TrackStore persists TrackRecord rows.
type TrackStore struct {
	db *sql.DB
}

// NewTrackStore creates a TrackStore on an open, migrated database.
func NewTrackStore(db *DB) *TrackStore {
	return &TrackStore{db: db.DB}
}

// InsertBatch persists all tracks of one run in a single transaction.
// Records without a TrackUUID are assigned one.
func (s *TrackStore) InsertBatch(runID string, tracks []*TrackRecord) error {
	if len(tracks) == 0 {
		return nil
	}
	prepareTracks(runID, tracks)
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := insertTracksTx(tx, tracks); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("inserting %d tracks for run %s: %w", len(tracks), runID, err)
	}
	return nil
}

func prepareTracks(runID string, tracks []*TrackRecord) {
	now := time.Now().UnixNano()
	for _, tr := range tracks {
		tr.RunID = runID
		if tr.TrackUUID == "" {
			tr.TrackUUID = uuid.New().String()
		}
		if tr.CreatedAt == 0 {
			tr.CreatedAt = now
		}
	}
}

func insertTracksTx(tx *sql.Tx, tracks []*TrackRecord) error {
	if len(tracks) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO tracks (
			track_uuid, run_id, track_id, rank, score, movement, max_offset,
			average_mass, duration, origin_x, origin_y, first_frame, frame_count,
			mass_history_json, bounds_history_json, best_label, best_score,
			average_novelty, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, tr := range tracks {
		massJSON, err := json.Marshal(tr.MassHistory)
		if err != nil {
			return err
		}
		boundsJSON, err := json.Marshal(tr.BoundsHistory)
		if err != nil {
			return err
		}
		var bestScore, novelty interface{}
		if tr.BestLabel != "" {
			bestScore, novelty = tr.BestScore, tr.AverageNovelty
		}
		if _, err := stmt.Exec(
			tr.TrackUUID, tr.RunID, tr.TrackID, tr.Rank, tr.Score, tr.Movement, tr.MaxOffset,
			tr.AverageMass, tr.Duration, tr.OriginX, tr.OriginY, tr.FirstFrame, tr.FrameCount,
			string(massJSON), string(boundsJSON), nullStr(tr.BestLabel), bestScore,
			novelty, tr.CreatedAt,
		); err != nil {
			return fmt.Errorf("track %d: %w", tr.TrackID, err)
		}
	}
	return nil
}

// ListByRun returns the tracks of a run in rank order.
func (s *TrackStore) ListByRun(runID string) ([]*TrackRecord, error) {
	rows, err := s.db.Query(`
		SELECT track_uuid, run_id, track_id, rank, score, movement, max_offset,
			average_mass, duration, origin_x, origin_y, first_frame, frame_count,
			mass_history_json, bounds_history_json, best_label, best_score,
			average_novelty, created_at
		FROM tracks WHERE run_id = ? ORDER BY rank ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tracks for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []*TrackRecord
	for rows.Next() {
		var (
			tr                   TrackRecord
			massJSON, boundsJSON sql.NullString
			label                sql.NullString
			bestScore, novelty   sql.NullFloat64
		)
		if err := rows.Scan(&tr.TrackUUID, &tr.RunID, &tr.TrackID, &tr.Rank, &tr.Score, &tr.Movement, &tr.MaxOffset,
			&tr.AverageMass, &tr.Duration, &tr.OriginX, &tr.OriginY, &tr.FirstFrame, &tr.FrameCount,
			&massJSON, &boundsJSON, &label, &bestScore, &novelty, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		if massJSON.Valid {
			if err := json.Unmarshal([]byte(massJSON.String), &tr.MassHistory); err != nil {
				return nil, fmt.Errorf("decode mass history of track %d: %w", tr.TrackID, err)
			}
		}
		if boundsJSON.Valid {
			if err := json.Unmarshal([]byte(boundsJSON.String), &tr.BoundsHistory); err != nil {
				return nil, fmt.Errorf("decode bounds history of track %d: %w", tr.TrackID, err)
			}
		}
		tr.BestLabel = label.String
		tr.BestScore = bestScore.Float64
		tr.AverageNovelty = novelty.Float64
		out = append(out, &tr)
	}
	return out, rows.Err()
}

// CountByLabel returns how many stored tracks carry each best label.
// Tracks that were never identified are not counted.
func (s *TrackStore) CountByLabel() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT best_label, COUNT(*) FROM tracks
		WHERE best_label IS NOT NULL GROUP BY best_label`)
	if err != nil {
		return nil, fmt.Errorf("count tracks by label: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}
