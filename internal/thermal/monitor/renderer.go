package monitor

import (
	"context"
	"fmt"
	"os"

	"github.com/banshee-data/thermal.tracker/internal/monitoring"
	"github.com/banshee-data/thermal.tracker/internal/thermal/pipeline"
)

// PreviewRenderer writes the trajectory plot and score chart of every
// processed clip into Dir.
type PreviewRenderer struct {
	Dir        string
	Trajectory TrajectoryPlotter
	Scores     ScoreChart
}

var _ pipeline.Renderer = (*PreviewRenderer)(nil)

// NewPreviewRenderer creates a renderer writing into dir.
func NewPreviewRenderer(dir string) *PreviewRenderer {
	return &PreviewRenderer{
		Dir:        dir,
		Trajectory: TrajectoryPlotter{OutputDir: dir},
		Scores:     ScoreChart{OutputDir: dir},
	}
}

// Render implements pipeline.Renderer.
func (r *PreviewRenderer) Render(ctx context.Context, res *pipeline.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("create preview dir: %w", err)
	}
	png, err := r.Trajectory.Plot(res.Run, res.Tracks)
	if err != nil {
		return err
	}
	html, err := r.Scores.Write(res.Run, res.Tracks)
	if err != nil {
		return err
	}
	monitoring.Logf("[%s] preview written to %s and %s", res.Source, png, html)
	return nil
}
