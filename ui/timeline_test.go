package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
)

func TestTimelineViewEmpty(t *testing.T) {
	view := Timeline{Title: "home"}.View()
	if !strings.Contains(view, "home (0)") {
		t.Errorf("Expected header with count, got %q", view)
	}
	if !strings.Contains(view, "Nothing here yet") {
		t.Errorf("Expected empty notice, got %q", view)
	}
}

func TestTimelineViewItems(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []db.TimelineItem{
		{
			Type:        domain.ActivityLike,
			UpdatedDate: now.Add(-2 * time.Minute),
			Event:       domain.EventLike,
			ActorName:   "alice@social.example",
			AuthorName:  "me@social.example",
			Content:     "my note",
		},
		{
			Type:        domain.ActivityUpdate,
			UpdatedDate: now.Add(-3 * time.Hour),
			AuthorName:  "bob@social.example",
			Content:     "<p>hello   <b>world</b></p>",
		},
	}

	view := Timeline{Title: "notifications", Items: items, Now: now}.View()

	for _, want := range []string{
		"notifications (2)",
		"alice@social.example",
		"like",
		"me@social.example",
		"[like]",
		"2 minutes ago",
		"bob@social.example",
		"hello world",
		"3 hours ago",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected %q in view:\n%s", want, view)
		}
	}
	if strings.Contains(view, "<p>") {
		t.Error("Expected html to be stripped")
	}
}

func TestItemViewTruncatesContent(t *testing.T) {
	now := time.Now()
	item := db.TimelineItem{
		Type:        domain.ActivityCreate,
		UpdatedDate: now,
		AuthorName:  "bob",
		Content:     strings.Repeat("a", 50),
	}

	view := itemView(item, now, 10)
	if !strings.Contains(view, "aaaaaaaaa…") {
		t.Errorf("Expected truncated content, got %q", view)
	}
	if strings.Contains(view, " create") {
		t.Error("Create activities should not repeat the verb")
	}
}
