package commands

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/benvon/smart-reminders/internal/handlers"
	"github.com/benvon/smart-reminders/internal/search"
	"github.com/benvon/smart-reminders/internal/timeslots"
	"github.com/charmbracelet/lipgloss"
)

const progressWidth = 20

// Styles holds the terminal styles for card and search output
type Styles struct {
	Title     lipgloss.Style
	Status    lipgloss.Style
	Active    lipgloss.Style
	Completed lipgloss.Style
	Overdue   lipgloss.Style
	Muted     lipgloss.Style
	Match     lipgloss.Style
	Border    lipgloss.Style
}

// NewStyles builds styles for the color profile of w
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Title:     r.NewStyle().Bold(true),
		Status:    r.NewStyle().Foreground(lipgloss.Color("205")),
		Active:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Completed: r.NewStyle().Foreground(lipgloss.Color("42")).Strikethrough(true),
		Overdue:   r.NewStyle().Foreground(lipgloss.Color("196")),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("240")),
		Match:     r.NewStyle().Reverse(true),
		Border:    r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// progressBar renders fraction (0..1) as a fixed-width bar
func progressBar(fraction float64, width int) string {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(math.Round(fraction * float64(width)))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// slotMarker is the leading glyph for a slot row
func slotMarker(s timeslots.SlotView) string {
	switch {
	case s.Active:
		return "▶"
	case s.Status == "completed":
		return "✓"
	default:
		return " "
	}
}

// RenderCard draws one reminder card
func RenderCard(st Styles, v timeslots.CardView) string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		st.Title.Render(v.Title), "  ", st.Status.Render(v.StatusText))

	lines := []string{header}
	bar := fmt.Sprintf("%s %3.0f%%", progressBar(v.Progress, progressWidth), v.Progress*100)
	if v.Overdue {
		bar = st.Overdue.Render(bar + " overdue")
	}
	lines = append(lines, bar)

	for _, s := range v.Slots {
		row := fmt.Sprintf("%s %-7s %s", slotMarker(s), s.FormattedTime, s.Status)
		if s.Description != nil {
			row += "  " + *s.Description
		}
		switch {
		case s.Active:
			row = st.Active.Render(row)
		case s.Status == "completed":
			row = st.Completed.Render(row)
		case s.Overdue:
			row = st.Overdue.Render(row)
		}
		lines = append(lines, row)
	}
	lines = append(lines, st.Muted.Render("as of "+v.At.Format("Mon Jan 2 15:04 MST")))

	return st.Border.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderSegments joins highlighted text runs
func RenderSegments(st Styles, segments []search.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.Match {
			b.WriteString(st.Match.Render(seg.Text))
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// RenderList draws one page of search or list results
func RenderList(st Styles, resp handlers.ListRemindersResponse) string {
	if len(resp.Reminders) == 0 {
		if resp.Query != "" {
			return st.Muted.Render(fmt.Sprintf("No reminders match %q", resp.Query))
		}
		return st.Muted.Render("No reminders")
	}

	lines := make([]string, 0, len(resp.Reminders)+1)
	for _, item := range resp.Reminders {
		title := item.Title
		if len(item.TitleSegments) > 0 {
			title = RenderSegments(st, item.TitleSegments)
		}
		line := fmt.Sprintf("%s  %s  %s", st.Muted.Render(item.ID.String()[:8]), title,
			st.Status.Render(timeslots.DisplayStatusText(item.Reminder)))
		if resp.Query != "" && item.Description != "" {
			if excerpt := search.Excerpt(item.Description, resp.Query, 60); excerpt != "" {
				line += "\n          " + RenderSegments(st, search.Highlight(excerpt, resp.Query))
			}
		}
		lines = append(lines, line)
	}
	lines = append(lines, st.Muted.Render(fmt.Sprintf("page %d of %d, %d total", resp.Page, resp.TotalPages, resp.Total)))
	return strings.Join(lines, "\n")
}
