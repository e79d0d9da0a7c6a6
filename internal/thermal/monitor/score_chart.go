package monitor

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/thermal.tracker/internal/security"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
)

// ScoreChart renders an HTML page with the score breakdown of the kept
// tracks and the per-frame mass of each track.
type ScoreChart struct {
	OutputDir string
	// AssetsHost overrides the echarts asset location; empty uses the
	// go-echarts default.
	AssetsHost string
}

// Write renders <source>_scores.html and returns its path.
func (sc *ScoreChart) Write(run *l5tracks.Tracker, kept []*l5tracks.Track) (string, error) {
	page := components.NewPage()
	if sc.AssetsHost != "" {
		page.SetAssetsHost(sc.AssetsHost)
	}
	page.AddCharts(sc.scoreBar(run, kept), sc.massLine(run, kept))

	path, err := security.ArtifactPath(sc.OutputDir, run.Clip.Source, "_scores.html")
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create score chart: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", fmt.Errorf("render score chart: %w", err)
	}
	return path, nil
}

func (sc *ScoreChart) initOpts(title string) opts.Initialization {
	return opts.Initialization{PageTitle: title, Width: "900px", Height: "480px", AssetsHost: sc.AssetsHost}
}

// scoreBar stacks movement and max offset, which sum to the score.
func (sc *ScoreChart) scoreBar(run *l5tracks.Tracker, kept []*l5tracks.Track) *charts.Bar {
	x := make([]string, len(kept))
	movement := make([]opts.BarData, len(kept))
	offset := make([]opts.BarData, len(kept))
	for i, tr := range kept {
		x[i] = "track " + strconv.Itoa(tr.ID)
		movement[i] = opts.BarData{Value: tr.Movement}
		offset[i] = opts.BarData{Value: tr.MaxOffset}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(sc.initOpts("Track scores")),
		charts.WithTitleOpts(opts.Title{
			Title:    "Track scores",
			Subtitle: fmt.Sprintf("%s kept=%d created=%d", run.Clip.Source, len(kept), len(run.Tracks)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("movement", movement, charts.WithBarChartOpts(opts.BarChart{Stack: "score"})).
		AddSeries("max offset", offset, charts.WithBarChartOpts(opts.BarChart{Stack: "score"}))
	return bar
}

// massLine plots the region mass of each kept track by frame number.
// Frames outside a track's life are left as gaps.
func (sc *ScoreChart) massLine(run *l5tracks.Tracker, kept []*l5tracks.Track) *charts.Line {
	frames := len(run.Clip.Frames)
	x := make([]string, frames)
	for i := range x {
		x[i] = strconv.Itoa(i)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(sc.initOpts("Track mass")),
		charts.WithTitleOpts(opts.Title{Title: "Track mass", Subtitle: "region pixel count per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mass (px)"}),
	)
	line.SetXAxis(x)

	colors := trackColors(len(kept))
	for i, tr := range kept {
		data := make([]opts.LineData, frames)
		for f := range data {
			data[f] = opts.LineData{Value: "-"}
		}
		for _, h := range run.HistoryFor(tr.ID) {
			data[h.FrameNumber] = opts.LineData{Value: h.Mass}
		}
		line.AddSeries(fmt.Sprintf("track %d", tr.ID), data,
			charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(colors[i])}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colors[i])}),
		)
	}
	return line
}
