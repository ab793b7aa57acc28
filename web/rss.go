package web

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/gorilla/feeds"
	log "github.com/sirupsen/logrus"
)

var errNotFound = errors.New("not found")

func baseURL(conf *util.AppConfig) string {
	return fmt.Sprintf("http://%s:%d", conf.Conf.Host, conf.Conf.HttpPort)
}

func feedTitle(q db.TimelineQuery) string {
	switch {
	case q.SubscribedOnly:
		return "fedsync home timeline"
	case q.NotificationsOnly:
		return "fedsync notifications"
	}
	return "fedsync activities"
}

// itemTitle is e.g. "alice@social.example: like".
func itemTitle(item db.TimelineItem) string {
	who := item.ActorName
	if who == "" {
		who = item.AuthorName
	}
	if item.Summary != "" {
		return fmt.Sprintf("%s: %s", who, item.Summary)
	}
	if item.Type == domain.ActivityUpdate || item.Type == domain.ActivityCreate {
		return fmt.Sprintf("%s: %s", who, util.Truncate(util.StripHTML(item.Content), 60))
	}
	return fmt.Sprintf("%s: %s", who, strings.ToLower(item.Type.String()))
}

// GetRSS renders the stored timeline selected by q.
func GetRSS(ctx context.Context, conf *util.AppConfig, database *db.DB, q db.TimelineQuery) (string, error) {
	items, err := database.ReadTimeline(ctx, q)
	if err != nil {
		log.Errorf("Web: could not read timeline for feed: %v", err)
		return "", err
	}

	link := baseURL(conf) + "/feed"
	feed := &feeds.Feed{
		Title:       feedTitle(q),
		Link:        &feeds.Link{Href: link},
		Description: "Activities stored by " + util.GetNameAndVersion(),
		Author:      &feeds.Author{Name: util.Name},
		Created:     time.Now(),
	}

	for _, item := range items {
		href := item.NoteURL
		if href == "" && item.NoteID != 0 {
			href = fmt.Sprintf("%s/feed/%d", baseURL(conf), item.NoteID)
		}
		feedItem := &feeds.Item{
			Id:          fmt.Sprintf("%s/api/activities/%d", baseURL(conf), item.ActivityID),
			Title:       itemTitle(item),
			Link:        &feeds.Link{Href: href},
			Description: item.UpdatedDate.Format(util.DateTimeFormat()),
			Content:     item.Content,
			Author:      &feeds.Author{Name: item.AuthorName},
			Created:     item.UpdatedDate,
		}
		feed.Items = append(feed.Items, feedItem)
	}
	return feed.ToRss()
}

// GetRSSItem renders a feed with the single note noteID.
func GetRSSItem(ctx context.Context, conf *util.AppConfig, database *db.DB, noteID int64) (string, error) {
	note, err := database.ReadNote(ctx, noteID)
	if err != nil {
		log.Errorf("Web: could not read note %d: %v", noteID, err)
		return "", err
	}
	if note == nil {
		return "", errNotFound
	}
	var authorName string
	if note.AuthorID != 0 {
		if author, err := database.ReadActor(ctx, note.AuthorID); err == nil && author != nil {
			authorName = author.NamesString()
		}
	}

	url := fmt.Sprintf("%s/feed/%d", baseURL(conf), noteID)
	if note.URL != "" {
		url = note.URL
	}
	feed := &feeds.Feed{
		Title:   "Single note",
		Link:    &feeds.Link{Href: url},
		Author:  &feeds.Author{Name: authorName},
		Created: time.Now(),
	}
	title := note.Name
	if title == "" {
		title = note.UpdatedDate.Format(util.DateTimeFormat())
	}
	feed.Items = []*feeds.Item{{
		Id:          note.OID,
		Title:       title,
		Link:        &feeds.Link{Href: url},
		Description: note.Summary,
		Content:     note.Content,
		Author:      &feeds.Author{Name: authorName},
		Created:     note.UpdatedDate,
	}}
	return feed.ToRss()
}
