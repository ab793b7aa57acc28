package merge

import (
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/identity"
)

// NotificationChecker tells whether events of a type should be flagged as
// notified.
type NotificationChecker func(domain.NotificationEventType) bool

// AllNotifications enables every event type.
func AllNotifications(domain.NotificationEventType) bool { return true }

// EnabledEvents enables only the listed event types.
func EnabledEvents(events ...domain.NotificationEventType) NotificationChecker {
	enabled := make(map[domain.NotificationEventType]bool, len(events))
	for _, e := range events {
		enabled[e] = true
	}
	return func(e domain.NotificationEventType) bool { return enabled[e] }
}

// CalculateNotification classifies act for the local user. The first
// matching rule wins:
//
//  1. acting actor is me: none
//  2. private note: PRIVATE, for the addressed account or the timeline's account
//  3. note addressed to me, authored by someone else: MENTION
//  4. announce or undo of my note: ANNOUNCE, for the author
//  5. like or undo of my note: LIKE, for the author
//  6. follow or undo of me: FOLLOW, for the followed account
func CalculateNotification(act *domain.Activity, users *identity.Users) (domain.NotificationEventType, *domain.Actor) {
	if act.IsEmpty() || users.IsMe(act.Actor) {
		return domain.EventEmpty, nil
	}
	note := act.Note()
	author := act.Author()

	if note.NonEmpty() {
		me := users.MeIn(note.Audience().Actors())
		// only direct messages count as private, notes of unknown visibility do not
		if note.Visibility().IsPrivate() {
			if me == nil {
				me = act.AccountActor
			}
			return domain.EventPrivate, me
		}
		if me != nil && !users.IsMe(author) {
			return domain.EventMention, me
		}
	}

	switch {
	case act.Type.IsAnnounceOrUndo() && users.IsMe(author):
		return domain.EventAnnounce, author
	case act.Type.IsLikeOrUndo() && users.IsMe(author):
		return domain.EventLike, author
	case act.Type.IsFollowOrUndo() && users.IsMe(act.ObjActor()):
		return domain.EventFollow, act.ObjActor()
	}
	return domain.EventEmpty, nil
}
