package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/thermal.tracker/internal/monitoring"
	"github.com/banshee-data/thermal.tracker/internal/thermal/debug"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l6objects"
	"github.com/banshee-data/thermal.tracker/internal/thermal/storage/sqlite"
)

// Result is everything produced for one clip.
type Result struct {
	Source string
	// RunID is set when the run was persisted.
	RunID string
	Stats l2frames.ClipStats
	// Rejected is the admission reason of a skipped clip. A rejected clip
	// has no tracks and is not an error.
	Rejected string

	// Run holds the per-frame artefacts and the full track history.
	Run *l5tracks.Tracker
	// Tracks are the survivors of scoring, ranked by score.
	Tracks []*l5tracks.Track
	// Filtered maps discarded track ids to their rejection reason.
	Filtered map[int]string

	Exports     []*l6objects.TrackExport
	Predictions []*l6objects.TrackPrediction
	// ClipLabels ranks the classifier labels across all tracks.
	ClipLabels []l6objects.LabelScore
	Statistics *l6objects.RunStatistics

	Debug   *debug.DebugCollector
	Elapsed time.Duration
}

// ProcessClip loads a clip from src and runs extraction, scoring, export
// and the optional identification, persistence, metrics and preview
// steps configured in opts.
func ProcessClip(ctx context.Context, src l2frames.Source, opts *Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	clock := opts.clock()
	start := clock.Now()

	res, err := process(ctx, src, opts)
	if err != nil {
		if opts.Metrics != nil {
			opts.Metrics.ClipErrors.Inc()
		}
		return nil, err
	}
	res.Elapsed = clock.Since(start)
	if opts.Metrics != nil {
		opts.Metrics.ObserveClip(res.Elapsed)
	}

	if opts.Store != nil {
		run, tracks := runRecords(res, clock.Now())
		if err := opts.Store.SaveRun(run, tracks); err != nil {
			return nil, fmt.Errorf("persist %s: %w", res.Source, err)
		}
		res.RunID = run.RunID
	}

	if opts.Preview && res.Rejected == "" {
		if err := opts.Renderer.Render(ctx, res); err != nil {
			return nil, fmt.Errorf("preview %s: %w", res.Source, err)
		}
	}
	return res, nil
}

func process(ctx context.Context, src l2frames.Source, opts *Options) (*Result, error) {
	clip, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load clip: %w", err)
	}

	// Step 1: extraction.
	tracker := l5tracks.NewTracker(clip, opts.Tracker)
	res := &Result{Source: clip.Source, Run: tracker}
	if opts.Debug {
		res.Debug = debug.NewDebugCollector()
		res.Debug.SetEnabled(true)
		tracker.SetDebugCollector(res.Debug)
	}
	if err := tracker.Extract(ctx); err != nil {
		return nil, err
	}
	res.Stats = tracker.Stats

	m := opts.Metrics
	if m != nil {
		m.AutoThreshold.Observe(tracker.Background.AutoThreshold)
	}
	if tracker.Rejected != "" {
		res.Rejected = tracker.Rejected
		if m != nil {
			m.ClipsRejected.WithLabelValues(tracker.RejectedCode).Inc()
		}
		return res, nil
	}

	// Step 2: score and filter.
	scored := l6objects.NewScorer(opts.Scorer).Score(tracker.Tracks, tracker.History)
	res.Tracks = scored.Tracks
	res.Filtered = scored.Rejected
	res.Statistics = l6objects.ComputeRunStatistics(tracker.Tracks, scored)

	// Step 3: export windows for every survivor.
	for _, tr := range res.Tracks {
		exp, err := l6objects.ExportTrack(tracker, tr, opts.Scorer)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", clip.Source, err)
		}
		res.Exports = append(res.Exports, exp)
	}

	// Step 4: identification.
	if opts.Identify {
		for _, exp := range res.Exports {
			pred, err := l6objects.IdentifyTrack(opts.Classifier, exp)
			if err != nil {
				return nil, fmt.Errorf("identify %s: %w", clip.Source, err)
			}
			res.Predictions = append(res.Predictions, pred)
		}
		res.ClipLabels = l6objects.ClipPrediction(opts.Classifier.Labels(), res.Predictions)
	}

	if m != nil {
		m.ClipsProcessed.Inc()
		m.FramesProcessed.Add(float64(len(clip.Frames)))
		m.TracksCreated.Add(float64(len(tracker.Tracks)))
		m.TracksKept.Add(float64(len(res.Tracks)))
		for _, reason := range res.Filtered {
			m.TracksFiltered.WithLabelValues(reason).Inc()
		}
	}
	monitoring.Logf("[%s] kept %d of %d tracks", clip.Source, len(res.Tracks), len(tracker.Tracks))
	return res, nil
}

// runRecords maps a result onto storage rows. Tracks are ranked in
// result order.
func runRecords(res *Result, now time.Time) (*sqlite.ClipRun, []*sqlite.TrackRecord) {
	run := &sqlite.ClipRun{
		Source:                 res.Source,
		StartTime:              res.Run.Clip.StartTime,
		LocalTime:              res.Stats.LocalTime,
		FrameCount:             len(res.Run.Clip.Frames),
		MeanTemp:               res.Stats.MeanTemp,
		MaxTemp:                res.Stats.MaxTemp,
		MinTemp:                res.Stats.MinTemp,
		IsNight:                res.Stats.IsNight,
		IsStaticBackground:     res.Stats.IsStaticBackground,
		AutoThreshold:          res.Stats.AutoThreshold,
		AverageBackgroundDelta: res.Stats.AverageBackgroundDelta,
		RejectedReason:         res.Rejected,
		TrackCount:             len(res.Run.Tracks),
		SurvivorCount:          len(res.Tracks),
		CreatedAt:              now.UnixNano(),
	}

	records := make([]*sqlite.TrackRecord, len(res.Tracks))
	for rank, tr := range res.Tracks {
		history := res.Run.HistoryFor(tr.ID)
		rec := &sqlite.TrackRecord{
			TrackID:     tr.ID,
			Rank:        rank,
			Score:       tr.Score,
			Movement:    tr.Movement,
			MaxOffset:   tr.MaxOffset,
			AverageMass: tr.AverageMass,
			Duration:    tr.Duration,
			OriginX:     tr.OriginX,
			OriginY:     tr.OriginY,
			FirstFrame:  tr.FirstFrame,
			FrameCount:  len(history),
			MassHistory: tr.MassHistory,
			CreatedAt:   now.UnixNano(),
		}
		for _, h := range history {
			rec.BoundsHistory = append(rec.BoundsHistory, boundsRecord(h.Bounds))
		}
		if rank < len(res.Predictions) {
			p := res.Predictions[rank]
			rec.BestLabel, rec.BestScore = p.BestLabel()
			rec.AverageNovelty = p.AverageNovelty()
		}
		records[rank] = rec
	}
	return run, records
}

func boundsRecord(b l4perception.Box) sqlite.TrackBounds {
	return sqlite.TrackBounds{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height, Mass: b.Mass}
}
