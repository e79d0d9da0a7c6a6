package sqlite

import (
	"database/sql"
	"fmt"
)

// Store groups the clip and track stores of one database.
type Store struct {
	Clips  *ClipStore
	Tracks *TrackStore

	db *sql.DB
}

// NewStore creates both stores on db.
func NewStore(db *DB) *Store {
	return &Store{Clips: NewClipStore(db), Tracks: NewTrackStore(db), db: db.DB}
}

// SaveRun inserts run and its tracks in one transaction; a failed track
// leaves no run behind. run.RunID is assigned when empty and copied onto
// every track.
func (s *Store) SaveRun(run *ClipRun, tracks []*TrackRecord) error {
	prepareRun(run)
	prepareTracks(run.RunID, tracks)
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := insertRunTx(tx, run); err != nil {
			return err
		}
		if err := insertTracksTx(tx, tracks); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}
