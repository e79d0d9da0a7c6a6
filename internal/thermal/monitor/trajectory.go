package monitor

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/thermal.tracker/internal/security"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
)

// TrajectoryPlotter draws the centre path of every track over the clip's
// image plane.
type TrajectoryPlotter struct {
	OutputDir string
	// IncludeFiltered also draws tracks removed by scoring.
	IncludeFiltered bool
}

// Plot writes <source>_tracks.png and returns its path. Image rows grow
// downward, so y is flipped to keep the plot oriented like the frame.
func (tp *TrajectoryPlotter) Plot(run *l5tracks.Tracker, kept []*l5tracks.Track) (string, error) {
	tracks := kept
	if tp.IncludeFiltered {
		tracks = run.Tracks
	}
	width, height := float64(run.Clip.Width()), float64(run.Clip.Height())

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %d tracks", run.Clip.Source, len(tracks))
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px from bottom)"
	p.X.Min, p.X.Max = 0, width
	p.Y.Min, p.Y.Max = 0, height
	p.Add(plotter.NewGrid())

	colors := trackColors(len(tracks))
	for i, tr := range tracks {
		history := run.HistoryFor(tr.ID)
		if len(history) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(history))
		for j, h := range history {
			pts[j] = plotter.XY{X: h.Bounds.MidX(), Y: height - h.Bounds.MidY()}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("track %d: %w", tr.ID, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)

		start, err := plotter.NewScatter(pts[:1])
		if err != nil {
			return "", fmt.Errorf("track %d: %w", tr.ID, err)
		}
		start.GlyphStyle.Color = colors[i]
		start.GlyphStyle.Shape = draw.CircleGlyph{}
		start.GlyphStyle.Radius = vg.Points(3)

		p.Add(line, start)
		p.Legend.Add(fmt.Sprintf("track %d (%s)", tr.ID, tr.State), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	path, err := security.ArtifactPath(tp.OutputDir, run.Clip.Source, "_tracks.png")
	if err != nil {
		return "", err
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save trajectory plot: %w", err)
	}
	return path, nil
}
