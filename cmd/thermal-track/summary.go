package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

var summaryHeader = table.Row{"clip", "frames", "threshold", "static", "tracks", "kept", "best", "label", "status"}

// renderSummary formats one row per clip. styled selects rounded box
// drawing for terminals and plain ASCII otherwise.
func renderSummary(outcomes []outcome, styled bool) string {
	tw := table.NewWriter()
	if styled {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	tw.AppendHeader(summaryHeader)

	kept := 0
	for i, o := range outcomes {
		if o.err != nil {
			tw.AppendRow(table.Row{fmt.Sprintf("#%d", i), "", "", "", "", "", "", "", "error: " + o.err.Error()})
			continue
		}
		r := o.res
		status := "ok"
		if r.Rejected != "" {
			status = "skipped: " + r.Rejected
		}
		best, label := "", ""
		if len(r.Tracks) > 0 {
			best = strconv.FormatFloat(r.Tracks[0].Score, 'f', 1, 64)
		}
		if len(r.ClipLabels) > 0 {
			label = r.ClipLabels[0].Label
		}
		kept += len(r.Tracks)
		tw.AppendRow(table.Row{
			r.Source,
			len(r.Run.Clip.Frames),
			strconv.FormatFloat(r.Stats.AutoThreshold, 'f', 1, 64),
			r.Stats.IsStaticBackground,
			len(r.Run.Tracks),
			len(r.Tracks),
			best,
			label,
			status,
		})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d clips", len(outcomes)), "", "", "", "", kept, "", "", ""})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	return tw.Render()
}

func shouldStyle(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
