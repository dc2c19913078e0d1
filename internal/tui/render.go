package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/internal/rotation"
)

const (
	defaultWidth = 100
	barWidth     = 20
)

// Renderer draws frames. It holds one progress bar per urgency level so the
// fill color follows the level.
type Renderer struct {
	bars map[domain.UrgencyLevel]progress.Model
}

// NewRenderer creates a renderer with level colored bars
func NewRenderer() *Renderer {
	newBar := func(c lipgloss.Color) progress.Model {
		return progress.New(
			progress.WithSolidFill(string(c)),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		)
	}
	return &Renderer{
		bars: map[domain.UrgencyLevel]progress.Model{
			domain.UrgencyNormal:  newBar(ColorGreen),
			domain.UrgencyWarning: newBar(ColorYellow),
			domain.UrgencyLate:    newBar(ColorRed),
			"":                    newBar(ColorDim),
		},
	}
}

// Bar renders the percent-consumed bar for an urgency
func (r *Renderer) Bar(u domain.Urgency) string {
	if !u.HasDeadline {
		return StyleDim.Render(strings.Repeat("·", barWidth))
	}
	bar, ok := r.bars[u.Level]
	if !ok {
		bar = r.bars[""]
	}
	return bar.ViewAs(u.PercentConsumed)
}

// Frame renders one display frame
func (r *Renderer) Frame(frame *projection.Frame, width int) string {
	if frame == nil {
		return StyleDim.Render("Waiting for data...")
	}
	if width <= 0 {
		width = defaultWidth
	}

	var b strings.Builder
	b.WriteString(StyleHeader.Render(frameTitle(frame)))
	b.WriteString("\n\n")

	if strings.HasPrefix(frame.Filter, string(domain.FilterKindWarehouse)+":") {
		b.WriteString(r.requests(frame.Requests, width))
		return b.String()
	}

	if len(frame.Board.Buckets) == 0 {
		b.WriteString(StyleDim.Render("No stages in this view"))
		return b.String()
	}
	for _, bucket := range frame.Board.Buckets {
		b.WriteString(r.bucket(bucket, width))
		b.WriteString("\n")
	}
	if frame.Board.Finished != nil && len(frame.Board.Finished.Entries) > 0 {
		b.WriteString(r.bucket(*frame.Board.Finished, width))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func frameTitle(frame *projection.Frame) string {
	if frame.Filter == domain.FilterAll || frame.Filter == "" {
		return "ALL STAGES"
	}
	_, value, _ := strings.Cut(frame.Filter, ":")
	return strings.ToUpper(value)
}

func (r *Renderer) bucket(bucket projection.Bucket, width int) string {
	title := bucket.DisplayName
	if title == "" {
		title = bucket.Name
	}
	header := StyleHeader.Render(title) + "  " + StyleDim.Render(fmt.Sprintf("%d items", len(bucket.Entries)))
	if bucket.LateCount > 0 {
		header += "  " + StyleRed.Render(fmt.Sprintf("%d late", bucket.LateCount))
	}
	if bucket.WarningCount > 0 {
		header += "  " + StyleYellow.Render(fmt.Sprintf("%d warning", bucket.WarningCount))
	}

	lines := []string{header}
	if len(bucket.Entries) == 0 {
		lines = append(lines, StyleDim.Render("empty"))
	}
	for _, e := range bucket.Entries {
		lines = append(lines, r.entry(e))
	}

	return StyleBucket.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (r *Renderer) entry(e projection.Entry) string {
	if e.Item == nil {
		return ""
	}
	ref := e.Item.ReferenceNumber
	if e.FastTrack {
		ref = StyleBlue.Render("» ") + ref
	}
	cols := []string{
		lipgloss.NewStyle().Width(18).Render(ref),
		lipgloss.NewStyle().Width(14).Render(StyleFg.Render(e.Item.ItemCode)),
		lipgloss.NewStyle().Width(6).Align(lipgloss.Right).Render(fmt.Sprintf("%d", e.Item.Quantity)),
		" " + r.Bar(e.Urgency),
		" " + lipgloss.NewStyle().Width(10).Render(Remaining(e.Urgency)),
		LevelIndicator(e.Urgency.Level),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (r *Renderer) requests(entries []projection.RequestEntry, width int) string {
	if len(entries) == 0 {
		return StyleBucket.Width(width - 2).Render(StyleDim.Render("No pending requests"))
	}
	lines := []string{StyleHeader.Render("Pending requests") + "  " + StyleDim.Render(fmt.Sprintf("%d", len(entries)))}
	for _, e := range entries {
		if e.Request == nil {
			continue
		}
		cols := []string{
			lipgloss.NewStyle().Width(14).Render(e.Request.ItemCode),
			lipgloss.NewStyle().Width(6).Align(lipgloss.Right).Render(fmt.Sprintf("%d", e.Request.Quantity)),
			"  " + lipgloss.NewStyle().Width(14).Render(StyleDim.Render(e.Request.Requester)),
			r.Bar(e.Urgency),
			" " + lipgloss.NewStyle().Width(10).Render(Remaining(e.Urgency)),
			LevelIndicator(e.Urgency.Level),
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}
	return StyleBucket.Width(width - 2).Render(strings.Join(lines, "\n"))
}

// Remaining formats the time left, or the overrun as "+12m" once late
func Remaining(u domain.Urgency) string {
	if !u.HasDeadline {
		return "-"
	}
	d := time.Duration(u.RemainingSeconds) * time.Second
	if d < 0 {
		return "+" + shortDuration(-d)
	}
	return shortDuration(d)
}

func shortDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// StatusLine renders the rotation footer
func StatusLine(snap rotation.Snapshot, filterCount int) string {
	parts := []string{fmt.Sprintf("%s  %d/%d", snap.Filter, snap.Index+1, filterCount)}
	if snap.Rotating {
		parts = append(parts, "next in "+snap.TimeToNext.Round(time.Second).String())
	} else {
		parts = append(parts, StyleYellow.Render("paused"))
	}
	if snap.Err != nil {
		parts = append(parts, StyleRed.Render("refresh failed: "+snap.Err.Error()))
	}
	parts = append(parts, "space pause/resume · n next · r refresh · q quit")
	return StyleStatusBar.Render(strings.Join(parts, "  │  "))
}
