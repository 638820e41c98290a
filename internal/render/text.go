// Package render draws Gantt views for export: SVG for documents and
// styled text for terminals.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"buildtrack/internal/gantt"
	"buildtrack/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	todayStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	statusStyles = map[string]lipgloss.Style{
		models.StatusNotStarted: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		models.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		models.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		models.StatusBlocked:    lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
	}
)

// DisableColor strips all styling from text output.
func DisableColor() {
	headerStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	todayStyle = lipgloss.NewStyle()
	markerStyle = lipgloss.NewStyle()
	statusStyles = map[string]lipgloss.Style{}
}

var markerGlyphs = map[gantt.MarkerType]rune{
	gantt.MarkerMilestone:        '◆',
	gantt.MarkerWeather:          '~',
	gantt.MarkerResourceConflict: '!',
	gantt.MarkerCriticalPath:     '*',
	gantt.MarkerCompound:         '+',
	gantt.MarkerCluster:          '#',
}

// TextOptions sizes the terminal chart.
type TextOptions struct {
	// TitleWidth is the width of the task title column in cells.
	TitleWidth int
	// ChartWidth is the width of the timeline in cells.
	ChartWidth int
}

// DefaultTextOptions fits an 120 column terminal.
func DefaultTextOptions() TextOptions {
	return TextOptions{TitleWidth: 28, ChartWidth: 90}
}

// Text writes the view as a terminal Gantt chart: a header, a marker lane,
// then one bar per row.
func Text(w io.Writer, v gantt.View, opts TextOptions) error {
	if opts.TitleWidth <= 0 || opts.ChartWidth <= 0 {
		return fmt.Errorf("render: invalid text size %dx%d", opts.TitleWidth, opts.ChartWidth)
	}

	lines := []string{
		headerStyle.Render(fmt.Sprintf("%s  %s (%s)", pad("Task", opts.TitleWidth), v.Range, v.Mode)),
		pad("", opts.TitleWidth) + "  " + dimStyle.Render(markerLane(v, opts.ChartWidth)),
	}

	if len(v.Rows) == 0 {
		lines = append(lines, dimStyle.Render("No tasks found."))
	}
	for _, row := range v.Rows {
		style, ok := statusStyles[row.Task.Status]
		if !ok {
			style = lipgloss.NewStyle()
		}
		title := pad(truncate(row.Task.Title, opts.TitleWidth), opts.TitleWidth)
		bar := dimStyle.Render(strings.Repeat("·", opts.ChartWidth))
		if row.Bar != nil {
			bar = barLine(*row.Bar, v.Today, row.Task.Progress, opts.ChartWidth, style)
		}
		lines = append(lines, title+"  "+bar)
	}

	for _, id := range v.Unscheduled {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("unscheduled: task %d", id)))
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
	return err
}

// barLine draws one row: filled cells for completed progress, hollow
// cells for the remainder, and a today rule where it crosses.
func barLine(b gantt.Bar, today gantt.Position, progress, width int, style lipgloss.Style) string {
	from, to := cellRange(b.Left, b.Left+b.Width, width)
	done := from + int(math.Round(float64(to-from)*float64(progress)/100))
	todayCell := -1
	if today.Visible {
		todayCell = min(int(today.Left/100*float64(width)), width-1)
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i >= from && i < done:
			sb.WriteString(style.Render("█"))
		case i >= from && i < to:
			sb.WriteString(style.Render("░"))
		case i == todayCell:
			sb.WriteString(todayStyle.Render("│"))
		default:
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

// markerLane places every resolved marker glyph on a single line.
func markerLane(v gantt.View, width int) string {
	lane := []rune(strings.Repeat(" ", width))
	place := func(m gantt.Marker) {
		if !m.Visible() {
			return
		}
		cell := min(int(m.Position.X/100*float64(width)), width-1)
		glyph, ok := markerGlyphs[m.Type]
		if !ok {
			glyph = '?'
		}
		lane[cell] = glyph
	}
	for _, m := range v.Markers.Resolved {
		place(m)
	}
	for _, g := range v.Markers.Clusters {
		if g.Glyph != nil {
			place(*g.Glyph)
		}
	}
	return markerStyle.Render(string(lane))
}

// cellRange converts a percent span to half-open cell indexes, keeping at
// least one cell for any visible bar.
func cellRange(left, right float64, width int) (int, int) {
	from := int(math.Floor(left / 100 * float64(width)))
	to := int(math.Ceil(right / 100 * float64(width)))
	from = max(0, min(from, width))
	to = max(0, min(to, width))
	if to == from && right > 0 && left < 100 {
		if from == width {
			from--
		}
		to = from + 1
	}
	return from, to
}

func pad(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
