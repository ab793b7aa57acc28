package domain

import (
	"fmt"
	"time"
)

// DownloadStatus is the lifecycle state of a note.
type DownloadStatus int

const (
	StatusUnknown DownloadStatus = iota
	StatusLoading
	StatusLoaded
	StatusDraft
	StatusSending
	StatusDeleted
)

var downloadStatusNames = []string{"unknown", "loading", "loaded", "draft", "sending", "deleted"}

func (s DownloadStatus) String() string {
	if int(s) < 0 || int(s) >= len(downloadStatusNames) {
		return "unknown"
	}
	return downloadStatusNames[s]
}

func ParseDownloadStatus(s string) DownloadStatus {
	for i, name := range downloadStatusNames {
		if name == s {
			return DownloadStatus(i)
		}
	}
	return StatusUnknown
}

// IsUnsent reports whether the note only exists locally so far.
func (s DownloadStatus) IsUnsent() bool {
	return s == StatusDraft || s == StatusSending
}

// Note is a post.
type Note struct {
	Origin *Origin
	NoteID int64
	OID    string
	Status DownloadStatus

	Name        string
	Summary     string
	Content     string
	Sensitive   bool
	Attachments Attachments

	audience *Audience

	// InReplyTo is the activity that created the note this one answers.
	InReplyTo *Activity

	ConversationID  int64
	ConversationOID string
	Via             string
	URL             string
	UpdatedDate     time.Time

	FavoritedByMe TriState
	LikesCount    int64
	RepliesCount  int64
	ReblogsCount  int64
}

func NewNote(origin *Origin, oid string) *Note {
	return &Note{Origin: origin, OID: oid, audience: NewAudience(VisibilityUnknown)}
}

// Audience never returns nil for a non-nil note.
func (n *Note) Audience() *Audience {
	if n == nil {
		return nil
	}
	if n.audience == nil {
		n.audience = NewAudience(VisibilityUnknown)
	}
	return n.audience
}

func (n *Note) SetAudience(a *Audience) *Note {
	n.audience = a
	return n
}

func (n *Note) Visibility() Visibility {
	return n.Audience().Visibility()
}

// IsEmpty reports whether the note carries nothing worth storing. A note
// without a real oid counts only while it is a draft or being sent and has
// some name, content or attachment.
func (n *Note) IsEmpty() bool {
	if n == nil || !n.Origin.IsValid() {
		return true
	}
	if IsRealOid(n.OID) {
		return false
	}
	if !n.Status.IsUnsent() {
		return true
	}
	return n.Name == "" && n.Content == "" && n.Attachments.IsEmpty()
}

func (n *Note) NonEmpty() bool { return !n.IsEmpty() }

// InReplyToNote is the note this one answers, if known.
func (n *Note) InReplyToNote() *Note {
	if n == nil || n.InReplyTo == nil {
		return nil
	}
	return n.InReplyTo.Note()
}

// InReplyToActor is the author of the note this one answers, if known.
func (n *Note) InReplyToActor() *Actor {
	if n == nil || n.InReplyTo == nil {
		return nil
	}
	return n.InReplyTo.Author()
}

// AddFavorited updates the favorited flag from a like or undo-like seen for
// the account.
func (n *Note) AddFavorited(actingIsMe bool, t ActivityType) {
	if !actingIsMe {
		return
	}
	switch t {
	case ActivityLike:
		n.FavoritedByMe = True
	case ActivityUndoLike:
		n.FavoritedByMe = False
	}
}

func (n *Note) String() string {
	if n == nil {
		return "Note:EMPTY"
	}
	return fmt.Sprintf("Note{id:%d oid:%q status:%s origin:%s}", n.NoteID, n.OID, n.Status, n.Origin)
}
