// Package ui renders stored timelines for the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	COLOR_GREY      = "241"
	COLOR_MAGENTA   = "170"
	COLOR_LIGHTBLUE = "69"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	postStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	authorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	verbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_LIGHTBLUE))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_MAGENTA))

	contentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_GREY)).
			Faint(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(COLOR_GREY)).
			Italic(true)
)

// Timeline is a printable page of stored activities, newest first.
type Timeline struct {
	Title string
	Items []db.TimelineItem
	// Width limits the content line, 80 when zero.
	Width int
	Now   time.Time
}

func (t Timeline) View() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", t.Title, len(t.Items))))
	s.WriteString("\n")

	if len(t.Items) == 0 {
		s.WriteString(emptyStyle.Render("Nothing here yet. Run \"fedsync sync\" to fetch your timelines."))
		s.WriteString("\n")
		return s.String()
	}

	width := t.Width
	if width <= 0 {
		width = 80
	}
	now := t.Now
	if now.IsZero() {
		now = time.Now()
	}
	for _, item := range t.Items {
		s.WriteString(postStyle.Render(itemView(item, now, width)))
		s.WriteString("\n")
	}
	return s.String()
}

func itemView(item db.TimelineItem, now time.Time, width int) string {
	who := item.ActorName
	if who == "" {
		who = item.AuthorName
	}
	header := authorStyle.Render(who)
	if item.Type != domain.ActivityCreate && item.Type != domain.ActivityUpdate {
		header += " " + verbStyle.Render(strings.ToLower(item.Type.String()))
		if item.AuthorName != "" && item.AuthorName != who {
			header += " " + authorStyle.Render(item.AuthorName)
		}
	}
	if !item.Event.IsEmpty() {
		header += " " + eventStyle.Render("["+item.Event.String()+"]")
	}

	text := item.Summary
	if text == "" {
		text = util.StripHTML(item.Content)
	}
	text = strings.Join(strings.Fields(text), " ")

	lines := []string{header}
	if text != "" {
		lines = append(lines, contentStyle.Render(util.Truncate(text, width)))
	}
	lines = append(lines, timeStyle.Render(fmt.Sprintf("%s · %s",
		humanize.RelTime(item.UpdatedDate, now, "ago", "from now"),
		item.UpdatedDate.Local().Format(util.DateTimeFormat()))))
	return strings.Join(lines, "\n")
}
