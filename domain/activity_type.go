package domain

import "strings"

// ActivityType is the verb of an activity.
type ActivityType int

const (
	ActivityEmpty ActivityType = iota
	ActivityCreate
	ActivityUpdate
	ActivityDelete
	ActivityFollow
	ActivityUndoFollow
	ActivityLike
	ActivityUndoLike
	ActivityAnnounce
	ActivityUndoAnnounce
	ActivityJoin
	// ActivityUndo is only produced while parsing, before the undone verb is
	// known.
	ActivityUndo
)

var activityTypeNames = []string{
	"Empty", "Create", "Update", "Delete", "Follow", "UndoFollow",
	"Like", "UndoLike", "Announce", "UndoAnnounce", "Join", "Undo",
}

func (t ActivityType) String() string {
	if int(t) < 0 || int(t) >= len(activityTypeNames) {
		return "Empty"
	}
	return activityTypeNames[t]
}

// ActivityTypeFrom maps an Activity Streams verb name to a type.
func ActivityTypeFrom(s string) ActivityType {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "post":
		return ActivityCreate
	case "share":
		return ActivityAnnounce
	case "favorite", "favourite":
		return ActivityLike
	case "unfavorite", "unfavourite":
		return ActivityUndoLike
	case "reblog", "repost":
		return ActivityAnnounce
	}
	for i, name := range activityTypeNames {
		if strings.EqualFold(name, s) {
			return ActivityType(i)
		}
	}
	return ActivityEmpty
}

// UndoOf returns the verb that undoes t, or ActivityUndo when t has no
// dedicated undo verb.
func UndoOf(t ActivityType) ActivityType {
	switch t {
	case ActivityFollow:
		return ActivityUndoFollow
	case ActivityLike:
		return ActivityUndoLike
	case ActivityAnnounce:
		return ActivityUndoAnnounce
	}
	return ActivityUndo
}

func (t ActivityType) IsUndo() bool {
	switch t {
	case ActivityUndo, ActivityUndoFollow, ActivityUndoLike, ActivityUndoAnnounce:
		return true
	}
	return false
}

// IsLikeOrUndo covers the favorite toggle.
func (t ActivityType) IsLikeOrUndo() bool {
	return t == ActivityLike || t == ActivityUndoLike
}

func (t ActivityType) IsAnnounceOrUndo() bool {
	return t == ActivityAnnounce || t == ActivityUndoAnnounce
}

func (t ActivityType) IsFollowOrUndo() bool {
	return t == ActivityFollow || t == ActivityUndoFollow
}

// IsCreateOrUpdate covers verbs whose object is authored by the actor.
func (t ActivityType) IsCreateOrUpdate() bool {
	return t == ActivityCreate || t == ActivityUpdate
}

// ObjectType names which object slot of an activity is filled.
type ObjectType int

const (
	ObjectEmpty ObjectType = iota
	ObjectNote
	ObjectActor
	ObjectActivity
)

func (t ObjectType) String() string {
	switch t {
	case ObjectNote:
		return "Note"
	case ObjectActor:
		return "Actor"
	case ObjectActivity:
		return "Activity"
	}
	return "Empty"
}

// NotificationEventType is why an activity is shown as a notification.
type NotificationEventType int

const (
	EventEmpty NotificationEventType = iota
	EventMention
	EventAnnounce
	EventLike
	EventFollow
	EventPrivate
)

var eventNames = []string{"empty", "mention", "announce", "like", "follow", "private"}

func (e NotificationEventType) String() string {
	if int(e) < 0 || int(e) >= len(eventNames) {
		return "empty"
	}
	return eventNames[e]
}

func ParseNotificationEventType(s string) NotificationEventType {
	for i, name := range eventNames {
		if strings.EqualFold(name, s) {
			return NotificationEventType(i)
		}
	}
	return EventEmpty
}

func (e NotificationEventType) IsEmpty() bool { return e == EventEmpty }
