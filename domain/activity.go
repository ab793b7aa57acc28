package domain

import (
	"fmt"
	"time"
)

// Activity is a verb applied by an actor to exactly one object: a note, an
// actor or another activity. A nil *Activity means "no activity".
type Activity struct {
	ID int64

	// AccountActor is the account whose view this activity is processed for.
	AccountActor *Actor
	Actor        *Actor
	Type         ActivityType

	OID         string
	position    TimelinePosition
	UpdatedDate time.Time

	note     *Note
	objActor *Actor
	activity *Activity

	// author is used when the object is a note the actor did not create,
	// e.g. a like of someone else's status carrying its author.
	author *Actor

	Subscribed       TriState
	Interacted       TriState
	Notified         TriState
	InteractionEvent NotificationEventType
	NotifiedActor    *Actor
}

func NewActivity(accountActor *Actor, t ActivityType) *Activity {
	return &Activity{AccountActor: accountActor, Type: t}
}

// FromInner wraps inner, e.g. an announce of a create.
func FromInner(actor *Actor, t ActivityType, inner *Activity) *Activity {
	a := &Activity{Actor: actor, Type: t}
	if inner != nil {
		a.AccountActor = inner.AccountActor
	}
	a.SetActivity(inner)
	return a
}

// NewNoteActivity is an activity by actor on a note with the given oid.
func NewNoteActivity(accountActor, actor *Actor, t ActivityType, oid string, updated time.Time) *Activity {
	a := NewActivity(accountActor, t)
	a.Actor = actor
	a.OID = oid
	a.UpdatedDate = updated
	origin := actor.originOrNil()
	if origin == nil {
		origin = accountActor.originOrNil()
	}
	a.SetNote(NewNote(origin, oid))
	return a
}

func (a *Actor) originOrNil() *Origin {
	if a == nil {
		return nil
	}
	return a.Origin
}

// Position is the timeline cursor of the activity, defaulting to its oid.
func (a *Activity) Position() TimelinePosition {
	if a == nil {
		return EmptyPosition
	}
	if a.position.IsEmpty() {
		return NewPosition(a.OID)
	}
	return a.position
}

func (a *Activity) SetPosition(p TimelinePosition) *Activity {
	a.position = p
	return a
}

func (a *Activity) Origin() *Origin {
	if a == nil {
		return nil
	}
	if o := a.AccountActor.originOrNil(); o != nil {
		return o
	}
	return a.Actor.originOrNil()
}

// SetNote fills the note slot.
func (a *Activity) SetNote(n *Note) *Activity {
	a.note = n
	return a
}

func (a *Activity) SetObjActor(actor *Actor) *Activity {
	a.objActor = actor
	return a
}

// SetActivity fills the nested activity slot. The nested activity inherits
// the account actor when it has none.
func (a *Activity) SetActivity(inner *Activity) *Activity {
	if inner == a {
		return a
	}
	if inner != nil && inner.AccountActor == nil {
		inner.AccountActor = a.AccountActor
	}
	a.activity = inner
	return a
}

func (a *Activity) SetAuthor(author *Actor) *Activity {
	a.author = author
	return a
}

// ObjectType follows the precedence Note > Actor > Activity.
func (a *Activity) ObjectType() ObjectType {
	switch {
	case a == nil:
		return ObjectEmpty
	case a.note.NonEmpty():
		return ObjectNote
	case a.objActor.NonEmpty():
		return ObjectActor
	case a.activity.NonEmpty():
		return ObjectActivity
	}
	return ObjectEmpty
}

// Note returns the note this activity is about, looking into the nested
// activity when the own slot is empty.
func (a *Activity) Note() *Note {
	if a == nil {
		return nil
	}
	if a.note.NonEmpty() {
		return a.note
	}
	if a.activity != nil {
		if n := a.activity.Note(); n != nil {
			return n
		}
	}
	return a.note
}

// ObjActor returns the actor object, looking into the nested activity.
func (a *Activity) ObjActor() *Actor {
	if a == nil {
		return nil
	}
	if a.objActor.NonEmpty() || a.activity == nil {
		return a.objActor
	}
	return a.activity.ObjActor()
}

// Activity is the nested activity, or nil.
func (a *Activity) Activity() *Activity {
	if a == nil {
		return nil
	}
	return a.activity
}

// Author is the actor who wrote the note the activity is about.
func (a *Activity) Author() *Actor {
	if a == nil {
		return nil
	}
	switch a.ObjectType() {
	case ObjectNote:
		switch a.Type {
		case ActivityCreate, ActivityUpdate, ActivityDelete:
			return a.Actor
		}
		return a.author
	case ObjectActivity:
		return a.activity.Author()
	}
	return nil
}

// IsEmpty holds unless the verb, the object and the account actor are all
// present.
func (a *Activity) IsEmpty() bool {
	return a == nil || a.Type == ActivityEmpty || a.ObjectType() == ObjectEmpty || a.AccountActor.IsEmpty()
}

func (a *Activity) NonEmpty() bool { return !a.IsEmpty() }

// ForEachActivity visits a and then its nested activities.
func (a *Activity) ForEachActivity(fn func(*Activity)) {
	for cur := a; cur != nil; cur = cur.activity {
		fn(cur)
	}
}

func (a *Activity) String() string {
	if a == nil {
		return "Activity:EMPTY"
	}
	return fmt.Sprintf("Activity{id:%d %s oid:%q pos:%q actor:%s object:%s}",
		a.ID, a.Type, a.OID, a.Position(), a.Actor.NamesString(), a.ObjectType())
}
