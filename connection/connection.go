package connection

import (
	"context"
	"io"
	"time"

	"github.com/andstatus/fedsync/domain"
)

// TimelineRequest selects a page of a timeline. Youngest asks for items
// newer than the position, Oldest for items older than it.
type TimelineRequest struct {
	Routine  ApiRoutine
	Youngest domain.TimelinePosition
	Oldest   domain.TimelinePosition
	Limit    int
	// Actor is the subject of actor timelines; the account when nil.
	Actor *domain.Actor
	Query string
}

type Page = domain.InputPage[*domain.Activity]

// OriginConfig is what an origin tells about its limits.
type OriginConfig struct {
	TextLimit       int
	UploadSizeLimit int64
}

// RateLimit is the remaining request allowance of the account.
type RateLimit struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// UploadedMedia is a media item the server accepted.
type UploadedMedia struct {
	ID         string
	Attachment domain.Attachment
}

// Connection is the single interface every backend is reached through.
// Routines a backend lacks fail with ErrUnsupportedAPI before any request is
// made; check IsAPISupported first for optional features.
type Connection interface {
	Origin() *domain.Origin
	Account() *domain.Actor
	IsAPISupported(routine ApiRoutine) bool

	Timeline(ctx context.Context, req TimelineRequest) (*Page, error)
	SearchNotes(ctx context.Context, query string, req TimelineRequest) (*Page, error)
	SearchActors(ctx context.Context, query string, limit int) ([]*domain.Actor, error)
	GetNote(ctx context.Context, noteOID string) (*domain.Activity, error)
	GetConversation(ctx context.Context, noteOID string) ([]*domain.Activity, error)

	GetActor(ctx context.Context, actor *domain.Actor) (*domain.Actor, error)
	GetFriendsOrFollowers(ctx context.Context, routine ApiRoutine, actor *domain.Actor) ([]*domain.Actor, error)
	VerifyCredentials(ctx context.Context) (*domain.Actor, error)

	UpdateNote(ctx context.Context, note *domain.Note, mediaIDs ...string) (*domain.Activity, error)
	DeleteNote(ctx context.Context, noteOID string) (*domain.Activity, error)
	Like(ctx context.Context, noteOID string) (*domain.Activity, error)
	UndoLike(ctx context.Context, noteOID string) (*domain.Activity, error)
	Announce(ctx context.Context, noteOID string) (*domain.Activity, error)
	UndoAnnounce(ctx context.Context, noteOID string) (*domain.Activity, error)
	Follow(ctx context.Context, actorOID string) (*domain.Activity, error)
	UndoFollow(ctx context.Context, actorOID string) (*domain.Activity, error)
	UploadMedia(ctx context.Context, filename string, content io.Reader) (*UploadedMedia, error)

	GetConfig(ctx context.Context) (*OriginConfig, error)
	RateLimitStatus(ctx context.Context) (*RateLimit, error)
}
