package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/thermal.tracker/internal/config"
	"github.com/banshee-data/thermal.tracker/internal/metrics"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l6objects"
	"github.com/banshee-data/thermal.tracker/internal/thermal/storage/sqlite"
	"github.com/banshee-data/thermal.tracker/internal/timeutil"
)

var (
	// ErrRendererRequired is returned when a preview is requested without
	// a Renderer.
	ErrRendererRequired = errors.New("preview requested without a renderer")
	// ErrClassifierRequired is returned when identification is requested
	// without a Classifier.
	ErrClassifierRequired = errors.New("identification requested without a classifier")
)

// Renderer draws a preview of a processed clip.
type Renderer interface {
	Render(ctx context.Context, res *Result) error
}

// PersistenceSink stores a processed clip and its ranked tracks.
// *sqlite.Store implements it.
type PersistenceSink interface {
	SaveRun(run *sqlite.ClipRun, tracks []*sqlite.TrackRecord) error
}

var _ PersistenceSink = (*sqlite.Store)(nil)

// Options configures ProcessClip. Only Tracker and Scorer are required;
// every sink is optional.
type Options struct {
	Tracker *l5tracks.TrackerConfig
	Scorer  *l6objects.ScorerConfig

	// Identify runs Classifier over every exported track.
	Identify   bool
	Classifier l6objects.Classifier

	// Preview hands the result to Renderer once processing completes.
	Preview  bool
	Renderer Renderer

	// Debug attaches a per-frame association collector to the tracker.
	Debug bool

	Metrics *metrics.Metrics
	Store   PersistenceSink
	Clock   timeutil.Clock
}

// DefaultOptions builds options from the embedded tuning defaults.
func DefaultOptions() *Options {
	return OptionsFromTuning(config.MustLoadDefaultConfig())
}

// OptionsFromTuning builds the layer configs from a tuning config.
func OptionsFromTuning(cfg *config.TuningConfig) *Options {
	return &Options{
		Tracker: l5tracks.TrackerConfigFromTuning(cfg),
		Scorer:  l6objects.ScorerConfigFromTuning(cfg),
		Clock:   timeutil.RealClock{},
	}
}

// Validate checks the options before any frame is read.
func (o *Options) Validate() error {
	if o.Tracker == nil || o.Scorer == nil {
		return errors.New("tracker and scorer configs are required")
	}
	if err := o.Tracker.Validate(); err != nil {
		return fmt.Errorf("tracker config: %w", err)
	}
	if err := o.Scorer.Validate(); err != nil {
		return fmt.Errorf("scorer config: %w", err)
	}
	if o.Preview && o.Renderer == nil {
		return ErrRendererRequired
	}
	if o.Identify && o.Classifier == nil {
		return ErrClassifierRequired
	}
	return nil
}

func (o *Options) clock() timeutil.Clock {
	if o.Clock == nil {
		return timeutil.RealClock{}
	}
	return o.Clock
}
