package activitypub

import (
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Activity maps any Activity Streams object found in a timeline or inbox.
// Bare notes and actors become Update activities, so every item of a
// collection ends up as an activity.
func (m *Mapper) Activity(obj util.JSONObject) (*domain.Activity, error) {
	typ := util.FirstString(obj, "type")
	switch {
	case noteTypes[typ]:
		return m.Note(obj)
	case actorTypes[typ]:
		actor, err := m.Actor(obj)
		if err != nil {
			return nil, err
		}
		act := domain.NewActivity(m.Account, domain.ActivityUpdate)
		act.Actor = actor
		act.OID = actor.OID
		act.UpdatedDate = actor.UpdatedDate
		return act.SetObjActor(actor), nil
	}

	t := domain.ActivityTypeFrom(typ)
	if t == domain.ActivityEmpty {
		log.Printf("Inbox: Unsupported activity type: %s", typ)
		return domain.NewActivity(m.Account, domain.ActivityEmpty), nil
	}

	act := domain.NewActivity(m.Account, t)
	act.OID = util.FirstString(obj, "id")
	act.Actor = m.ActorFromRef(obj["actor"])
	act.UpdatedDate = util.ParseDate(util.FirstString(obj, "updated", "published"))

	// Object can be either a string URI or an embedded object
	object, objectID := util.ObjectOrID(obj["object"])
	if object == nil && objectID == "" {
		return nil, errors.Wrapf(ErrNotAnObject, "%s %s without object", typ, act.OID)
	}

	var err error
	switch t {
	case domain.ActivityUndo:
		err = m.undo(act, object, objectID)
	case domain.ActivityFollow:
		act.SetObjActor(m.ActorFromRef(obj["object"]))
	case domain.ActivityAnnounce:
		err = m.announce(act, object, objectID)
	case domain.ActivityDelete:
		m.deleteObject(act, object, objectID)
	default:
		err = m.noteObject(act, object, objectID)
	}
	if err != nil {
		return nil, err
	}
	if act.UpdatedDate.IsZero() {
		if n := act.Note(); n != nil {
			act.UpdatedDate = n.UpdatedDate
		}
	}
	return act, nil
}

// noteObject fills the note slot for Create, Update, Like and friends. An
// embedded actor turns the activity into an actor activity.
func (m *Mapper) noteObject(act *domain.Activity, object util.JSONObject, objectID string) error {
	if object == nil {
		act.SetNote(m.noteStub(objectID))
		return nil
	}
	if actorTypes[util.FirstString(object, "type")] {
		actor, err := m.Actor(object)
		if err != nil {
			return err
		}
		act.SetObjActor(actor)
		return nil
	}
	inner, err := m.Note(object)
	if err != nil {
		return err
	}
	act.SetNote(inner.Note())
	if !act.Type.IsCreateOrUpdate() {
		act.SetAuthor(inner.Actor)
	}
	return nil
}

// announce nests the shared note as an Update by its author.
func (m *Mapper) announce(act *domain.Activity, object util.JSONObject, objectID string) error {
	if object == nil {
		inner := domain.NewActivity(m.Account, domain.ActivityUpdate)
		inner.OID = objectID
		act.SetActivity(inner.SetNote(m.noteStub(objectID)))
		return nil
	}
	inner, err := m.Activity(object)
	if err != nil {
		return err
	}
	act.SetActivity(inner)
	return nil
}

// undo resolves "Undo X" into the matching undo verb with X's object.
func (m *Mapper) undo(act *domain.Activity, object util.JSONObject, objectID string) error {
	if object == nil {
		return errors.Wrapf(ErrNotAnObject, "undo %s of unknown type", objectID)
	}
	inner, err := m.Activity(object)
	if err != nil {
		return err
	}
	act.Type = domain.UndoOf(inner.Type)
	if act.Type == domain.ActivityUndo {
		return errors.Wrapf(ErrNotAnObject, "undo of %s is not supported", inner.Type)
	}
	if act.Actor.IsEmpty() {
		act.Actor = inner.Actor
	}
	switch inner.ObjectType() {
	case domain.ObjectNote:
		act.SetNote(inner.Note())
		act.SetAuthor(inner.Author())
	case domain.ObjectActor:
		act.SetObjActor(inner.ObjActor())
	case domain.ObjectActivity:
		act.SetActivity(inner.Activity())
	}
	return nil
}

func (m *Mapper) deleteObject(act *domain.Activity, object util.JSONObject, objectID string) {
	if object != nil && actorTypes[util.FirstString(object, "type")] {
		actor, _ := m.Actor(object)
		act.SetObjActor(actor)
		return
	}
	if act.Actor != nil && objectID == act.Actor.OID {
		act.SetObjActor(act.Actor)
		return
	}
	note := m.noteStub(objectID)
	note.Status = domain.StatusDeleted
	act.SetNote(note)
}

func (m *Mapper) noteStub(oid string) *domain.Note {
	return domain.NewNote(m.Origin, oid)
}
