package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const maxTimelineLimit = 200

type ActorView struct {
	ID          int64               `json:"id"`
	OID         string              `json:"oid"`
	Username    string              `json:"username,omitempty"`
	WebFingerID string              `json:"webfingerId,omitempty"`
	RealName    string              `json:"realName,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	ProfileURL  string              `json:"profileUrl,omitempty"`
	AvatarURL   string              `json:"avatarUrl,omitempty"`
	Followers   int64               `json:"followersCount"`
	Following   int64               `json:"followingCount"`
	Notes       int64               `json:"notesCount"`
	UpdatedDate *time.Time          `json:"updatedDate,omitempty"`
	Endpoints   map[string][]string `json:"endpoints,omitempty"`
}

func actorView(a *domain.Actor) ActorView {
	v := ActorView{
		ID:          a.ActorID,
		OID:         a.OID,
		Username:    a.Username(),
		WebFingerID: a.WebFingerID(),
		RealName:    a.RealName,
		Summary:     a.Summary,
		ProfileURL:  a.ProfileURL(),
		AvatarURL:   a.AvatarURL,
		Followers:   a.FollowersCount,
		Following:   a.FollowingCount,
		Notes:       a.NotesCount,
		UpdatedDate: optionalTime(a.UpdatedDate),
	}
	if all := a.Endpoints.All(); len(all) > 0 {
		v.Endpoints = make(map[string][]string, len(all))
		for t, urls := range all {
			v.Endpoints[t.String()] = urls
		}
	}
	return v
}

type AttachmentView struct {
	URI        string `json:"uri"`
	MimeType   string `json:"mimeType,omitempty"`
	MediaType  string `json:"mediaType"`
	PreviewURI string `json:"previewUri,omitempty"`
}

type NoteView struct {
	ID               int64            `json:"id"`
	OID              string           `json:"oid"`
	Status           string           `json:"status"`
	URL              string           `json:"url,omitempty"`
	Name             string           `json:"name,omitempty"`
	Summary          string           `json:"summary,omitempty"`
	Content          string           `json:"content"`
	Sensitive        bool             `json:"sensitive,omitempty"`
	Visibility       string           `json:"visibility"`
	AuthorID         int64            `json:"authorId,omitempty"`
	InReplyToNoteID  int64            `json:"inReplyToNoteId,omitempty"`
	InReplyToActorID int64            `json:"inReplyToActorId,omitempty"`
	AudienceIDs      []int64          `json:"audience,omitempty"`
	Attachments      []AttachmentView `json:"attachments,omitempty"`
	Favorited        bool             `json:"favorited"`
	LikesCount       int64            `json:"likesCount"`
	RepliesCount     int64            `json:"repliesCount"`
	ReblogsCount     int64            `json:"reblogsCount"`
	UpdatedDate      *time.Time       `json:"updatedDate,omitempty"`
}

func noteView(n *db.StoredNote, audience []int64) NoteView {
	v := NoteView{
		ID:               n.NoteID,
		OID:              n.OID,
		Status:           n.Status.String(),
		URL:              n.URL,
		Name:             n.Name,
		Summary:          n.Summary,
		Content:          n.Content,
		Sensitive:        n.Sensitive,
		Visibility:       n.Visibility().String(),
		AuthorID:         n.AuthorID,
		InReplyToNoteID:  n.InReplyToNoteID,
		InReplyToActorID: n.InReplyToActorID,
		AudienceIDs:      audience,
		Favorited:        n.FavoritedByMe == domain.True,
		LikesCount:       n.LikesCount,
		RepliesCount:     n.RepliesCount,
		ReblogsCount:     n.ReblogsCount,
		UpdatedDate:      optionalTime(n.UpdatedDate),
	}
	for _, a := range n.Attachments {
		v.Attachments = append(v.Attachments, AttachmentView{
			URI:        a.URI,
			MimeType:   a.MimeType,
			MediaType:  a.MediaType.String(),
			PreviewURI: a.PreviewURI,
		})
	}
	return v
}

type TimelineItemView struct {
	ActivityID  int64     `json:"activityId"`
	Type        string    `json:"type"`
	UpdatedDate time.Time `json:"updatedDate"`
	Event       string    `json:"event,omitempty"`
	Notified    bool      `json:"notified,omitempty"`
	ActorID     int64     `json:"actorId,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	NoteID      int64     `json:"noteId,omitempty"`
	NoteOID     string    `json:"noteOid,omitempty"`
	NoteURL     string    `json:"noteUrl,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Content     string    `json:"content,omitempty"`
	AuthorID    int64     `json:"authorId,omitempty"`
	Author      string    `json:"author,omitempty"`
	Visibility  string    `json:"visibility,omitempty"`
	Favorited   bool      `json:"favorited,omitempty"`
}

func timelineItemView(item db.TimelineItem) TimelineItemView {
	v := TimelineItemView{
		ActivityID:  item.ActivityID,
		Type:        item.Type.String(),
		UpdatedDate: item.UpdatedDate,
		Notified:    item.Notified == domain.True,
		ActorID:     item.ActorID,
		Actor:       item.ActorName,
		NoteID:      item.NoteID,
		NoteOID:     item.NoteOID,
		NoteURL:     item.NoteURL,
		Summary:     item.Summary,
		Content:     item.Content,
		AuthorID:    item.AuthorID,
		Author:      item.AuthorName,
		Favorited:   item.Favorited == domain.True,
	}
	if !item.Event.IsEmpty() {
		v.Event = item.Event.String()
	}
	if item.NoteID != 0 {
		v.Visibility = item.Visibility.String()
	}
	return v
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// timelineQuery reads account, kind, before and limit query parameters.
// kind is home, notifications or all.
func timelineQuery(c *gin.Context) (db.TimelineQuery, bool) {
	var q db.TimelineQuery
	if s := c.Query("account"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return q, false
		}
		q.AccountID = id
	}
	switch c.DefaultQuery("kind", "all") {
	case "home":
		q.SubscribedOnly = true
	case "notifications":
		q.NotificationsOnly = true
	case "all":
	default:
		return q, false
	}
	if s := c.Query("before"); s != "" {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			q.Before = time.UnixMilli(ms)
		} else if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.Before = t
		} else {
			return q, false
		}
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return q, false
		}
		q.Limit = min(n, maxTimelineLimit)
	}
	return q, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

type api struct {
	db     *db.DB
	worker *worker.Worker
}

func (a *api) timeline(c *gin.Context) {
	q, ok := timelineQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timeline query"})
		return
	}
	items, err := a.db.ReadTimeline(c.Request.Context(), q)
	if err != nil {
		log.Errorf("Web: read timeline: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read timeline"})
		return
	}
	views := make([]TimelineItemView, 0, len(items))
	for _, item := range items {
		views = append(views, timelineItemView(item))
	}
	c.JSON(http.StatusOK, views)
}

func (a *api) actor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid actor ID"})
		return
	}
	actor, err := a.db.ReadActor(c.Request.Context(), id)
	if err != nil {
		log.Errorf("Web: read actor %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read actor"})
		return
	}
	if actor == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Actor not found"})
		return
	}
	c.JSON(http.StatusOK, actorView(actor))
}

func (a *api) note(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid note ID"})
		return
	}
	ctx := c.Request.Context()
	note, err := a.db.ReadNote(ctx, id)
	if err == nil && note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	var audience []int64
	if err == nil {
		audience, err = a.db.ReadAudience(ctx, id)
	}
	if err != nil {
		log.Errorf("Web: read note %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read note"})
		return
	}
	c.JSON(http.StatusOK, noteView(note, audience))
}

type accountView struct {
	ActorView
	Origin    string   `json:"origin"`
	Timelines []string `json:"timelines"`
}

func (a *api) accounts(c *gin.Context) {
	views := []accountView{}
	for _, acc := range a.worker.Accounts() {
		v := accountView{ActorView: actorView(acc.Conn.Account()), Origin: acc.Conn.Origin().Name}
		for _, r := range acc.Routines {
			v.Timelines = append(v.Timelines, r.String())
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, views)
}

type commandRequest struct {
	Account int64               `json:"account" binding:"required"`
	Action  string              `json:"action" binding:"required"`
	OID     string              `json:"oid"`
	Note    *worker.NotePayload `json:"note"`
}

func (a *api) enqueue(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid command"})
		return
	}
	routine := worker.ParseAction(req.Action)
	cmd, err := a.worker.Enqueue(c.Request.Context(), req.Account, routine, req.OID, req.Note)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": cmd.ID.String(), "action": cmd.Action})
}

func (a *api) command(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid command ID"})
		return
	}
	cmd, err := a.db.ReadCommand(c.Request.Context(), id)
	if err != nil {
		log.Errorf("Web: read command %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not read command"})
		return
	}
	if cmd == nil {
		// Done or given up.
		c.JSON(http.StatusNotFound, gin.H{"error": "Command not queued"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          cmd.ID.String(),
		"action":      cmd.Action,
		"oid":         cmd.OID,
		"attempts":    cmd.Attempts,
		"nextRetryAt": cmd.NextRetryAt,
		"lastError":   cmd.LastError,
	})
}
