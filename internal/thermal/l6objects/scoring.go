package l6objects

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
)

// Rejection reasons recorded by the filter.
const (
	RejectTooShort    = "too_short"
	RejectNotMoving   = "not_moving"
	RejectOverMaximum = "over_max_tracks"
)

// ScoreResult is the outcome of scoring one clip's tracks.
type ScoreResult struct {
	// Tracks are the survivors, best score first.
	Tracks []*l5tracks.Track
	// Rejected maps track id to the reason it was filtered out.
	Rejected map[int]string
}

// Scorer computes per-track statistics and filters and ranks tracks.
type Scorer struct {
	cfg *ScorerConfig
}

// NewScorer returns a scorer with the given configuration.
func NewScorer(cfg *ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// ScoreTrack fills the post-hoc statistics of track from its history.
func (s *Scorer) ScoreTrack(track *l5tracks.Track, history []l5tracks.HistoryEntry) {
	track.Movement = 0
	track.MaxOffset = 0
	track.MassHistory = make([]int, len(history))
	masses := make([]float64, len(history))
	for i, h := range history {
		track.Movement += math.Hypot(h.VX, h.VY)
		track.MaxOffset = math.Max(track.MaxOffset, math.Hypot(h.OffsetX, h.OffsetY))
		track.MassHistory[i] = h.Mass
		masses[i] = float64(h.Mass)
	}
	track.Score = track.Movement + track.MaxOffset
	track.AverageMass = 0
	if len(masses) > 0 {
		track.AverageMass = stat.Mean(masses, nil)
	}
	track.Duration = float64(len(history)) / s.cfg.FrameRate
}

// Score computes statistics for every track, drops tracks that are too
// short or never leave their origin, and returns the survivors sorted by
// score (ties keep id order), truncated to MaxTracks when set.
func (s *Scorer) Score(tracks []*l5tracks.Track, history map[int][]l5tracks.HistoryEntry) ScoreResult {
	res := ScoreResult{Rejected: make(map[int]string)}
	minFrames := s.cfg.MinFrames()

	for _, track := range tracks {
		h := history[track.ID]
		s.ScoreTrack(track, h)
		switch {
		case len(h) < minFrames:
			res.Rejected[track.ID] = RejectTooShort
		case track.MaxOffset < s.cfg.MinMaxOffset:
			res.Rejected[track.ID] = RejectNotMoving
		default:
			res.Tracks = append(res.Tracks, track)
		}
	}

	sort.SliceStable(res.Tracks, func(i, j int) bool {
		a, b := res.Tracks[i], res.Tracks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})

	if s.cfg.MaxTracks > 0 && len(res.Tracks) > s.cfg.MaxTracks {
		for _, track := range res.Tracks[s.cfg.MaxTracks:] {
			res.Rejected[track.ID] = RejectOverMaximum
		}
		res.Tracks = res.Tracks[:s.cfg.MaxTracks]
	}
	return res
}
