package render

import (
	"bufio"
	"fmt"
	"html"
	"io"

	"buildtrack/internal/gantt"
	"buildtrack/internal/models"
)

// SVGOptions sizes the exported chart in pixels.
type SVGOptions struct {
	Width        int
	HeaderHeight int
	LaneHeight   int
	MarkerRadius int
}

// DefaultSVGOptions returns a layout suited to A4 landscape prints.
func DefaultSVGOptions() SVGOptions {
	return SVGOptions{Width: 1400, HeaderHeight: 28, LaneHeight: 40, MarkerRadius: 6}
}

var statusFill = map[string]string{
	models.StatusNotStarted: "#94a3b8",
	models.StatusInProgress: "#2563eb",
	models.StatusCompleted:  "#059669",
	models.StatusBlocked:    "#dc2626",
}

var markerFill = map[gantt.MarkerType]string{
	gantt.MarkerMilestone:        "#7c3aed",
	gantt.MarkerWeather:          "#0ea5e9",
	gantt.MarkerResourceConflict: "#ea580c",
	gantt.MarkerCriticalPath:     "#dc2626",
	gantt.MarkerCompound:         "#d97706",
	gantt.MarkerCluster:          "#475569",
}

// SVG writes the view as a standalone SVG document. The task panel uses
// the view's panel width; the timeline takes the rest.
func SVG(w io.Writer, v gantt.View, opts SVGOptions) error {
	panel := v.Preferences.PanelWidth
	chart := opts.Width - panel
	if chart <= 0 {
		return fmt.Errorf("render: width %d leaves no room for the timeline next to a %d panel", opts.Width, panel)
	}
	rowHeight := v.Viewport.RowHeight
	if rowHeight <= 0 {
		rowHeight = 40
	}
	top := opts.HeaderHeight + opts.LaneHeight
	height := top + len(v.Rows)*rowHeight

	x := func(pct float64) float64 { return float64(panel) + pct/100*float64(chart) }

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="12">`+"\n",
		opts.Width, height, opts.Width, height)
	fmt.Fprintf(bw, `<rect width="%d" height="%d" fill="#ffffff"/>`+"\n", opts.Width, height)

	for _, col := range v.Columns {
		fmt.Fprintf(bw, `<line x1="%.2f" y1="0" x2="%.2f" y2="%d" stroke="#e2e8f0"/>`+"\n", x(col.Left), x(col.Left), height)
		fmt.Fprintf(bw, `<text x="%.2f" y="%d" fill="#475569">%s</text>`+"\n", x(col.Left)+3, opts.HeaderHeight-9, html.EscapeString(col.Label))
	}

	for i, row := range v.Rows {
		y := top + i*rowHeight
		fmt.Fprintf(bw, `<text x="8" y="%d" fill="#0f172a">%s</text>`+"\n", y+rowHeight/2+4, html.EscapeString(row.Task.Title))
		if row.Bar == nil || !row.Bar.Visible {
			continue
		}
		fill, ok := statusFill[row.Task.Status]
		if !ok {
			fill = statusFill[models.StatusNotStarted]
		}
		barY := y + rowHeight/4
		barH := rowHeight / 2
		left := x(max(row.Bar.Left, 0))
		right := x(min(row.Bar.Left+row.Bar.Width, 100))
		fmt.Fprintf(bw, `<rect x="%.2f" y="%d" width="%.2f" height="%d" rx="3" fill="%s" fill-opacity="0.35"/>`+"\n",
			left, barY, right-left, barH, fill)
		done := (right - left) * float64(row.Task.Progress) / 100
		fmt.Fprintf(bw, `<rect x="%.2f" y="%d" width="%.2f" height="%d" rx="3" fill="%s"><title>%s</title></rect>`+"\n",
			left, barY, done, barH, fill, html.EscapeString(fmt.Sprintf("%s: %d%%", row.Task.Title, row.Task.Progress)))
	}

	if v.Today.Visible {
		fmt.Fprintf(bw, `<line x1="%.2f" y1="%d" x2="%.2f" y2="%d" stroke="#dc2626" stroke-width="2"/>`+"\n",
			x(v.Today.Left), opts.HeaderHeight, x(v.Today.Left), height)
	}

	marker := func(m gantt.Marker) {
		if !m.Visible() {
			return
		}
		fill, ok := markerFill[m.Type]
		if !ok {
			fill = "#000000"
		}
		title := string(m.Type)
		if m.Tooltip != nil {
			title = m.Tooltip.Title
		}
		fmt.Fprintf(bw, `<circle cx="%.2f" cy="%.2f" r="%d" fill="%s"><title>%s</title></circle>`+"\n",
			x(m.Position.X), float64(opts.HeaderHeight)+m.Position.Y, opts.MarkerRadius, fill, html.EscapeString(title))
	}
	for _, m := range v.Markers.Resolved {
		marker(m)
	}
	for _, g := range v.Markers.Clusters {
		if g.Glyph != nil {
			marker(*g.Glyph)
		}
	}

	fmt.Fprintln(bw, `</svg>`)
	return bw.Flush()
}
