// Package merge stores activities read from the backends. Saves are
// idempotent: an activity seen again, or an older version of it, changes
// nothing.
package merge

import (
	"context"
	"time"

	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/identity"
	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Store is the row store the updater writes to.
type Store interface {
	identity.ActorStore
	SaveActor(ctx context.Context, actor *domain.Actor) (int64, error)

	NoteIDByOID(ctx context.Context, originID int64, oid string) (int64, error)
	SaveNote(ctx context.Context, note *domain.Note, refs db.NoteRefs) (int64, error)
	SetAudience(ctx context.Context, noteID int64, visibility domain.Visibility, actorIDs []int64) error
	ReplaceAttachments(ctx context.Context, noteID int64, attachments domain.Attachments) error
	SetNoteFavorited(ctx context.Context, noteID int64, favorited domain.TriState) error

	ActivityIDByOID(ctx context.Context, originID int64, oid string) (int64, error)
	ActivityIDByNoteAndType(ctx context.Context, noteID int64, t domain.ActivityType) (int64, error)
	ActivityUpdatedDate(ctx context.Context, id int64) (time.Time, error)
	LastActivityType(ctx context.Context, noteID, accountID int64, types ...domain.ActivityType) (domain.ActivityType, error)
	SaveActivityRow(ctx context.Context, row *db.ActivityRow) (int64, error)
}

// Updater persists activities together with the actors, notes and nested
// activities they refer to.
type Updater struct {
	store    Store
	users    *identity.Users
	resolver *identity.Resolver
	notify   NotificationChecker
}

type Option func(*Updater)

func WithNotificationChecker(check NotificationChecker) Option {
	return func(u *Updater) {
		if check != nil {
			u.notify = check
		}
	}
}

func NewUpdater(store Store, users *identity.Users, cache *identity.Cache, opts ...Option) *Updater {
	u := &Updater{
		store:    store,
		users:    users,
		resolver: identity.NewResolver(store, cache),
		notify:   AllNotifications,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Updater) Users() *identity.Users { return u.users }

func (u *Updater) Resolver() *identity.Resolver { return u.resolver }

// SaveActor resolves the local id of actor, stores what is known about it
// and puts it into the actor cache.
func (u *Updater) SaveActor(ctx context.Context, actor *domain.Actor) (int64, error) {
	if err := checkBackground(ctx, "save actor"); err != nil {
		return 0, err
	}
	if actor.IsEmpty() || actor.Origin == nil {
		return 0, nil
	}
	if _, err := u.resolver.LookupActorID(ctx, actor); err != nil {
		return 0, err
	}
	id, err := u.store.SaveActor(ctx, actor)
	if err != nil {
		return 0, errors.Wrapf(err, "save %s", actor.NamesString())
	}
	u.resolver.Cache().Put(actor)
	return id, nil
}

// OnActivity stores the actors, the note, the nested activity and finally
// act itself. It returns the local id of act, or 0 when it was skipped.
func (u *Updater) OnActivity(ctx context.Context, act *domain.Activity) (int64, error) {
	if err := checkBackground(ctx, "merge activity"); err != nil {
		return 0, err
	}
	if act.IsEmpty() {
		log.Debugf("Merge: skipping empty %s", act)
		return 0, nil
	}
	return u.onActivity(ctx, act)
}

func (u *Updater) onActivity(ctx context.Context, act *domain.Activity) (int64, error) {
	if _, err := u.SaveActor(ctx, act.Actor); err != nil {
		return 0, err
	}
	if _, err := u.SaveActor(ctx, act.ObjActor()); err != nil {
		return 0, err
	}

	inner := act.Activity()
	note := act.Note()
	if note.NonEmpty() && (inner == nil || inner.Note() != note) {
		if err := u.saveNote(ctx, act, note); err != nil {
			return 0, err
		}
	}
	if inner.NonEmpty() {
		if _, err := u.onActivity(ctx, inner); err != nil {
			return 0, errors.Wrapf(err, "nested %s", inner.Type)
		}
	}
	return u.SaveActivity(ctx, act)
}

func (u *Updater) saveNote(ctx context.Context, act *domain.Activity, note *domain.Note) error {
	author := act.Author()
	authorID, err := u.SaveActor(ctx, author)
	if err != nil {
		return err
	}
	refs := db.NoteRefs{AuthorID: authorID}

	if reply := note.InReplyTo; reply.NonEmpty() {
		if _, err := u.onActivity(ctx, reply); err != nil {
			return errors.Wrap(err, "in-reply-to")
		}
		if n := reply.Note(); n != nil {
			refs.InReplyToNoteID = n.NoteID
		}
		if a := reply.Author(); a != nil {
			refs.InReplyToActorID = a.ActorID
		}
	}

	if note.OID == "" {
		note.OID = domain.NewTempOid()
	}
	noteID, err := u.store.SaveNote(ctx, note, refs)
	if err != nil {
		return errors.Wrapf(err, "save %s", note)
	}

	// stubs carry no audience or attachments worth replacing stored ones
	if note.Status != domain.StatusLoaded && !note.Status.IsUnsent() {
		return nil
	}
	audience := note.Audience()
	if len(audience.Actors()) == 0 && note.Content != "" {
		mentioned, err := u.resolver.ExtractActorsFromContent(ctx, util.StripHTML(note.Content), author, note.InReplyToActor())
		if err != nil {
			return errors.Wrap(err, "mentions")
		}
		for _, a := range mentioned {
			audience.Add(a)
		}
	}
	var actorIDs []int64
	for _, a := range audience.Actors() {
		id, err := u.SaveActor(ctx, a)
		if err != nil {
			return err
		}
		actorIDs = append(actorIDs, id)
	}
	if err := u.store.SetAudience(ctx, noteID, audience.Visibility(), actorIDs); err != nil {
		return err
	}
	if !note.Attachments.IsEmpty() {
		return u.store.ReplaceAttachments(ctx, noteID, note.Attachments)
	}
	return nil
}

// SaveActivity writes the activity row. Objects must have been stored
// before, see OnActivity. It returns the id of the stored row, which is 0
// when a repeated like or announce was suppressed.
func (u *Updater) SaveActivity(ctx context.Context, act *domain.Activity) (int64, error) {
	if err := checkBackground(ctx, "save activity"); err != nil {
		return 0, err
	}
	if act.IsEmpty() {
		return 0, nil
	}
	accountID, err := u.resolver.LookupActorID(ctx, act.AccountActor)
	if err != nil {
		return 0, err
	}
	if accountID == 0 {
		return 0, errors.Wrapf(ErrPrecondition, "account %s is not stored", act.AccountActor.NamesString())
	}

	skip := func(reason string) (int64, error) {
		log.Debugf("Merge: skipping %s, %s", act, reason)
		return act.ID, nil
	}
	if act.Type == domain.ActivityUpdate && act.ObjectType() == domain.ObjectActor {
		return skip("actor updates are not stored")
	}
	pos := act.Position()
	if act.ID != 0 && !domain.IsTempOid(act.OID) && pos.IsEmpty() {
		return skip("no timeline position")
	}

	var noteID int64
	note := act.Note()
	if note != nil {
		noteID = note.NoteID
	}
	actorID, err := u.resolver.LookupActorID(ctx, act.Actor)
	if err != nil {
		return 0, err
	}

	if act.ID == 0 {
		if act.ID, err = u.findActivity(ctx, act, noteID); err != nil {
			return 0, err
		}
	}
	if act.ID != 0 {
		if pos.IsTemp() {
			return skip("temporary position")
		}
		stored, err := u.store.ActivityUpdatedDate(ctx, act.ID)
		if err != nil {
			return 0, err
		}
		if !act.UpdatedDate.Truncate(time.Millisecond).After(stored) {
			return skip("not newer than stored")
		}
	}
	if toggles := toggleTypes(act.Type); toggles != nil && noteID != 0 {
		last, err := u.store.LastActivityType(ctx, noteID, accountID, toggles...)
		if err != nil {
			return 0, err
		}
		if last == act.Type {
			return skip("same as the last " + last.String())
		}
	}

	if act.OID == "" {
		act.OID = domain.NewTempOid()
	}
	if !act.UpdatedDate.IsZero() {
		event, notified := CalculateNotification(act, u.users)
		act.InteractionEvent = event
		act.NotifiedActor = notified
		if !event.IsEmpty() {
			act.Interacted = domain.True
			act.Notified = domain.FromBool(u.notify(event))
		}
	}

	row := &db.ActivityRow{
		ID:              act.ID,
		OriginID:        originID(act),
		OID:             act.OID,
		AccountID:       accountID,
		ActorID:         actorID,
		Type:            act.Type,
		Position:        act.Position().String(),
		NoteID:          noteID,
		UpdatedDate:     act.UpdatedDate,
		Subscribed:      act.Subscribed,
		Interacted:      act.Interacted,
		Notified:        act.Notified,
		Event:           act.InteractionEvent,
		NotifiedActorID: idOf(act.NotifiedActor),
	}
	if objActor := act.ObjActor(); objActor != nil {
		row.ObjActorID = objActor.ActorID
	}
	if inner := act.Activity(); inner != nil {
		row.ObjActivityID = inner.ID
	}
	if act.ID, err = u.store.SaveActivityRow(ctx, row); err != nil {
		return 0, errors.Wrapf(err, "save %s", act)
	}

	if act.Type.IsLikeOrUndo() && noteID != 0 && u.users.IsMe(act.Actor) {
		note.AddFavorited(true, act.Type)
		if err := u.store.SetNoteFavorited(ctx, noteID, note.FavoritedByMe); err != nil {
			return act.ID, err
		}
	}
	log.Debugf("Merge: saved %s", act)
	return act.ID, nil
}

// findActivity looks for a stored row of act, first by its timeline
// position, then by oid, then, for creates and updates, by the note it is
// about.
func (u *Updater) findActivity(ctx context.Context, act *domain.Activity, noteID int64) (int64, error) {
	oids := []string{act.Position().String()}
	if act.OID != oids[0] {
		oids = append(oids, act.OID)
	}
	for _, oid := range oids {
		id, err := u.store.ActivityIDByOID(ctx, originID(act), oid)
		if err != nil || id != 0 {
			return id, err
		}
	}
	if act.Type.IsCreateOrUpdate() && noteID != 0 {
		return u.store.ActivityIDByNoteAndType(ctx, noteID, act.Type)
	}
	return 0, nil
}

func toggleTypes(t domain.ActivityType) []domain.ActivityType {
	switch {
	case t.IsLikeOrUndo():
		return []domain.ActivityType{domain.ActivityLike, domain.ActivityUndoLike}
	case t.IsAnnounceOrUndo():
		return []domain.ActivityType{domain.ActivityAnnounce, domain.ActivityUndoAnnounce}
	}
	return nil
}

func originID(act *domain.Activity) int64 {
	if o := act.Origin(); o != nil {
		return o.ID
	}
	return 0
}

func idOf(actor *domain.Actor) int64 {
	if actor == nil {
		return 0
	}
	return actor.ActorID
}
