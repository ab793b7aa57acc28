package connection

// ApiRoutine names one call a backend may support.
type ApiRoutine int

const (
	RoutineUnknown ApiRoutine = iota
	HomeTimeline
	NotificationsTimeline
	MentionsTimeline
	PublicTimeline
	ActorTimeline
	LikedTimeline
	SearchNotes
	SearchActors
	GetNote
	GetConversation
	UpdateNote
	DeleteNote
	Like
	UndoLike
	Announce
	UndoAnnounce
	Follow
	UndoFollow
	GetActor
	GetFriends
	GetFollowers
	VerifyCredentials
	UploadMedia
	GetConfig
	RateLimitStatus
)

var routineNames = []string{
	"unknown", "home_timeline", "notifications_timeline", "mentions_timeline", "public_timeline",
	"actor_timeline", "liked_timeline", "search_notes", "search_actors", "get_note",
	"get_conversation", "update_note", "delete_note", "like", "undo_like", "announce",
	"undo_announce", "follow", "undo_follow", "get_actor", "get_friends", "get_followers",
	"verify_credentials", "upload_media", "get_config", "rate_limit_status",
}

func (r ApiRoutine) String() string {
	if int(r) < 0 || int(r) >= len(routineNames) {
		return "unknown"
	}
	return routineNames[r]
}

// ParseRoutine accepts the names printed by String.
func ParseRoutine(s string) ApiRoutine {
	for i, name := range routineNames {
		if name == s {
			return ApiRoutine(i)
		}
	}
	return RoutineUnknown
}

// IsTimeline reports whether the routine returns a page of activities.
func (r ApiRoutine) IsTimeline() bool {
	switch r {
	case HomeTimeline, NotificationsTimeline, MentionsTimeline, PublicTimeline,
		ActorTimeline, LikedTimeline, SearchNotes:
		return true
	}
	return false
}

// TimelineRoutines are synced periodically for every account.
var TimelineRoutines = []ApiRoutine{HomeTimeline, NotificationsTimeline, MentionsTimeline}
