package merge

import (
	"context"
	"testing"
	"time"

	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOrigin = &domain.Origin{ID: 1, Name: "social", Type: domain.OriginMastodon, Host: "social.example"}

func newActor(username string) *domain.Actor {
	a := domain.NewActor(testOrigin, "https://social.example/users/"+username)
	a.SetUsername(username)
	return a
}

type fixture struct {
	ctx     context.Context
	store   *db.DB
	updater *Updater
	me      *domain.Actor
	alice   *domain.Actor
	base    time.Time
}

func newFixture(t *testing.T) *fixture {
	store, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	store.RegisterOrigin(testOrigin)

	f := &fixture{
		ctx:   context.Background(),
		store: store,
		me:    newActor("me"),
		alice: newActor("alice"),
		base:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.updater = NewUpdater(store, identity.NewUsers(f.me), identity.NewCache(time.Minute))
	_, err = f.updater.SaveActor(f.ctx, f.me)
	require.NoError(t, err)
	return f
}

// noteBy is a loaded note as the backends map it: an update whose oid is
// the note oid.
func (f *fixture) noteBy(author *domain.Actor, oid string, updated time.Time, content string) *domain.Activity {
	act := domain.NewNoteActivity(f.me, author, domain.ActivityUpdate, oid, updated)
	note := act.Note()
	note.Status = domain.StatusLoaded
	note.Content = content
	note.UpdatedDate = updated
	return act
}

func (f *fixture) toggle(actor *domain.Actor, t domain.ActivityType, noteOID string, updated time.Time) *domain.Activity {
	act := domain.NewActivity(f.me, t)
	act.Actor = actor
	act.UpdatedDate = updated
	act.SetNote(domain.NewNote(testOrigin, noteOID)).SetAuthor(f.alice)
	return act
}

func (f *fixture) count(t *testing.T) int64 {
	n, err := f.store.CountActivities(f.ctx)
	require.NoError(t, err)
	return n
}

func TestSaveTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	oid := "https://social.example/notes/1"

	act := f.noteBy(f.alice, oid, f.base, "hello")
	id, err := f.updater.OnActivity(f.ctx, act)
	require.NoError(t, err)
	require.NotZero(t, id)
	require.EqualValues(t, 1, f.count(t))

	again, err := f.updater.OnActivity(f.ctx, act)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	copied, err := f.updater.OnActivity(f.ctx, f.noteBy(f.alice, oid, f.base, "hello"))
	require.NoError(t, err)
	assert.Equal(t, id, copied)
	assert.EqualValues(t, 1, f.count(t))

	updated, err := f.store.ActivityUpdatedDate(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, updated.Equal(f.base))
}

func TestOlderOrEqualUpdateIsNoop(t *testing.T) {
	f := newFixture(t)
	oid := "https://social.example/notes/2"

	first := f.noteBy(f.alice, oid, f.base, "edited")
	id, err := f.updater.OnActivity(f.ctx, first)
	require.NoError(t, err)

	for _, at := range []time.Time{f.base, f.base.Add(-time.Hour)} {
		got, err := f.updater.OnActivity(f.ctx, f.noteBy(f.alice, oid, at, "stale"))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	stored, err := f.store.ReadNote(f.ctx, first.Note().NoteID)
	require.NoError(t, err)
	assert.Equal(t, "edited", stored.Content)
	updated, _ := f.store.ActivityUpdatedDate(f.ctx, id)
	assert.True(t, updated.Equal(f.base))
	assert.EqualValues(t, 1, f.count(t))
}

func TestNewerUpdateWins(t *testing.T) {
	f := newFixture(t)
	oid := "https://social.example/notes/3"

	id, err := f.updater.OnActivity(f.ctx, f.noteBy(f.alice, oid, f.base, "v1"))
	require.NoError(t, err)

	newer := f.noteBy(f.alice, oid, f.base.Add(time.Minute), "v2")
	got, err := f.updater.OnActivity(f.ctx, newer)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	stored, _ := f.store.ReadNote(f.ctx, newer.Note().NoteID)
	assert.Equal(t, "v2", stored.Content)
	updated, _ := f.store.ActivityUpdatedDate(f.ctx, id)
	assert.True(t, updated.Equal(f.base.Add(time.Minute)))
}

func TestToggleSuppression(t *testing.T) {
	type step struct {
		t         domain.ActivityType
		stored    bool
		favorited domain.TriState
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "like",
			steps: []step{
				{domain.ActivityLike, true, domain.True},
				{domain.ActivityLike, false, domain.True},
				{domain.ActivityUndoLike, true, domain.False},
				{domain.ActivityLike, true, domain.True},
			},
		},
		{
			name: "announce",
			steps: []step{
				{domain.ActivityAnnounce, true, domain.Unknown},
				{domain.ActivityAnnounce, false, domain.Unknown},
				{domain.ActivityUndoAnnounce, true, domain.Unknown},
				{domain.ActivityAnnounce, true, domain.Unknown},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			oid := "https://social.example/notes/4"
			note := f.noteBy(f.alice, oid, f.base, "toggle me")
			_, err := f.updater.OnActivity(f.ctx, note)
			require.NoError(t, err)
			noteID := note.Note().NoteID

			want := f.count(t)
			for i, st := range tt.steps {
				id, err := f.updater.OnActivity(f.ctx, f.toggle(f.me, st.t, oid, f.base.Add(time.Duration(i+1)*time.Minute)))
				require.NoError(t, err)
				if st.stored {
					want++
					assert.NotZero(t, id, "step %d", i)
				} else {
					assert.Zero(t, id, "step %d", i)
				}
				assert.Equal(t, want, f.count(t), "step %d", i)

				stored, err := f.store.ReadNote(f.ctx, noteID)
				require.NoError(t, err)
				assert.Equal(t, st.favorited, stored.FavoritedByMe, "step %d", i)
			}
		})
	}
}

func TestToggleSuppressionIsPerAccount(t *testing.T) {
	f := newFixture(t)
	oid := "https://social.example/notes/13"
	_, err := f.updater.OnActivity(f.ctx, f.noteBy(f.alice, oid, f.base, "popular"))
	require.NoError(t, err)
	before := f.count(t)

	mine, err := f.updater.OnActivity(f.ctx, f.toggle(f.me, domain.ActivityLike, oid, f.base.Add(time.Minute)))
	require.NoError(t, err)
	require.NotZero(t, mine)

	theirs, err := f.updater.OnActivity(f.ctx, f.toggle(newActor("bob"), domain.ActivityLike, oid, f.base.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Zero(t, theirs)
	assert.Equal(t, before+1, f.count(t))
}

func TestTemporaryPositionKeepsStoredRow(t *testing.T) {
	f := newFixture(t)
	oid := "https://social.example/notes/14"

	first := f.noteBy(f.alice, oid, f.base, "v1")
	first.SetPosition(domain.NewPosition("cursor-100"))
	id, err := f.updater.OnActivity(f.ctx, first)
	require.NoError(t, err)
	require.NotZero(t, id)

	again := f.noteBy(f.alice, oid, f.base.Add(time.Minute), "v2")
	again.SetPosition(domain.NewPosition(domain.NewTempOid()))
	got, err := f.updater.OnActivity(f.ctx, again)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	row, err := f.store.ReadActivityRow(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cursor-100", row.Position)
	assert.True(t, row.UpdatedDate.Equal(f.base))
	assert.EqualValues(t, 1, f.count(t))
}

func TestActivityIsFoundByPosition(t *testing.T) {
	f := newFixture(t)
	follow := func(oid, position string, at time.Time) *domain.Activity {
		act := domain.NewActivity(f.me, domain.ActivityFollow)
		act.Actor = f.alice
		act.OID = oid
		act.UpdatedDate = at
		act.SetObjActor(f.me)
		if position != "" {
			act.SetPosition(domain.NewPosition(position))
		}
		return act
	}

	id, err := f.updater.OnActivity(f.ctx, follow("https://social.example/follows/1", "", f.base))
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := f.updater.OnActivity(f.ctx, follow("notification:77", "https://social.example/follows/1", f.base.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.EqualValues(t, 1, f.count(t))

	row, err := f.store.ReadActivityRow(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, row.UpdatedDate.Equal(f.base.Add(time.Minute)))
}

func TestAnnounceOfMyNoteNotifiesAuthor(t *testing.T) {
	f := newFixture(t)
	mine := f.noteBy(f.me, "https://social.example/notes/5", f.base, "my note")
	mine.Type = domain.ActivityCreate

	announce := domain.FromInner(f.alice, domain.ActivityAnnounce, mine)
	announce.OID = "https://social.example/users/alice/statuses/9/activity"
	announce.UpdatedDate = f.base.Add(time.Hour)

	id, err := f.updater.OnActivity(f.ctx, announce)
	require.NoError(t, err)
	assert.Equal(t, domain.EventAnnounce, announce.InteractionEvent)
	assert.Same(t, f.me, announce.NotifiedActor)
	assert.Equal(t, domain.True, announce.Notified)

	row, err := f.store.ReadActivityRow(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventAnnounce, row.Event)
	assert.Equal(t, f.me.ActorID, row.NotifiedActorID)
	assert.Equal(t, mine.ID, row.ObjActivityID)
	assert.NotZero(t, row.ObjActivityID)
	assert.Equal(t, domain.EventEmpty, mine.InteractionEvent)
}

func TestMentionsBecomeAudience(t *testing.T) {
	f := newFixture(t)
	act := f.noteBy(f.alice, "https://social.example/notes/6", f.base, "<p>hi <a href=\"https://social.example/@me\">@me</a></p>")

	_, err := f.updater.OnActivity(f.ctx, act)
	require.NoError(t, err)

	ids, err := f.store.ReadAudience(f.ctx, act.Note().NoteID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.me.ActorID}, ids)
	assert.Equal(t, domain.EventMention, act.InteractionEvent)
	assert.Same(t, f.me, act.NotifiedActor)
}

func TestReplyStubIsCompletedLater(t *testing.T) {
	f := newFixture(t)
	bob := newActor("bob")
	parentOID := "https://social.example/notes/7"

	reply := f.noteBy(f.alice, "https://social.example/notes/8", f.base, "answer")
	reply.Note().InReplyTo = domain.NewNoteActivity(f.me, bob, domain.ActivityUpdate, parentOID, time.Time{})
	_, err := f.updater.OnActivity(f.ctx, reply)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.count(t))

	stored, _ := f.store.ReadNote(f.ctx, reply.Note().NoteID)
	require.NotZero(t, stored.InReplyToNoteID)
	assert.Equal(t, bob.ActorID, stored.InReplyToActorID)

	parent := f.noteBy(bob, parentOID, f.base.Add(-time.Hour), "question")
	_, err = f.updater.OnActivity(f.ctx, parent)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.count(t))
	assert.Equal(t, stored.InReplyToNoteID, parent.Note().NoteID)

	parentNote, _ := f.store.ReadNote(f.ctx, parent.Note().NoteID)
	assert.Equal(t, "question", parentNote.Content)
}

func TestSkipConditions(t *testing.T) {
	f := newFixture(t)

	profile := domain.NewActivity(f.me, domain.ActivityUpdate)
	profile.Actor = f.alice
	profile.UpdatedDate = f.base
	profile.SetObjActor(f.alice)
	id, err := f.updater.SaveActivity(f.ctx, profile)
	require.NoError(t, err)
	assert.Zero(t, id)

	id, err = f.updater.SaveActivity(f.ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, id)

	placeholder := f.noteBy(f.alice, "https://social.example/notes/9", f.base, "x")
	placeholder.ID = 42
	placeholder.SetPosition(domain.NewPosition(domain.NewTempOid()))
	id, err = f.updater.SaveActivity(f.ctx, placeholder)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	assert.Zero(t, f.count(t))
}

func TestPreconditions(t *testing.T) {
	f := newFixture(t)
	act := f.noteBy(f.alice, "https://social.example/notes/10", f.base, "x")

	_, err := f.updater.OnActivity(ForegroundContext(f.ctx), act)
	assert.ErrorIs(t, err, ErrPrecondition)
	_, err = f.updater.SaveActor(ForegroundContext(f.ctx), f.alice)
	assert.ErrorIs(t, err, ErrPrecondition)

	stranger := domain.NewNoteActivity(newActor("ghost"), f.alice, domain.ActivityUpdate, "https://social.example/notes/11", f.base)
	_, err = f.updater.SaveActivity(f.ctx, stranger)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, f.count(t))
}

func TestCalculateNotification(t *testing.T) {
	me := newActor("me")
	alice := newActor("alice")
	bob := newActor("bob")
	users := identity.NewUsers(me)
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	note := func(author *domain.Actor) *domain.Activity {
		return domain.NewNoteActivity(me, author, domain.ActivityCreate, "https://social.example/notes/1", at)
	}
	on := func(t domain.ActivityType, actor *domain.Actor, fill func(*domain.Activity)) *domain.Activity {
		act := domain.NewActivity(me, t)
		act.Actor = actor
		fill(act)
		return act
	}

	private := note(alice)
	private.Note().Audience().SetVisibility(domain.VisibilityPrivate)
	privateToMe := note(alice)
	privateToMe.Note().Audience().SetVisibility(domain.VisibilityPrivate).Add(me)
	followersOnly := note(alice)
	followersOnly.Note().Audience().SetVisibility(domain.VisibilityFollowers)
	mention := note(alice)
	mention.Note().Audience().AddVisibility(domain.VisibilityPublic).Add(bob).Add(me)

	tests := []struct {
		name     string
		act      *domain.Activity
		event    domain.NotificationEventType
		notified *domain.Actor
	}{
		{"my own note", note(me), domain.EventEmpty, nil},
		{"private note", private, domain.EventPrivate, me},
		{"private note to me", privateToMe, domain.EventPrivate, me},
		{"mention", mention, domain.EventMention, me},
		{"public note", note(alice), domain.EventEmpty, nil},
		{"followers only note", followersOnly, domain.EventEmpty, nil},
		{"like of my note", on(domain.ActivityLike, alice, func(a *domain.Activity) {
			a.SetNote(domain.NewNote(testOrigin, "https://social.example/notes/2")).SetAuthor(me)
		}), domain.EventLike, me},
		{"undo like of my note", on(domain.ActivityUndoLike, alice, func(a *domain.Activity) {
			a.SetNote(domain.NewNote(testOrigin, "https://social.example/notes/2")).SetAuthor(me)
		}), domain.EventLike, me},
		{"like of bob's note", on(domain.ActivityLike, alice, func(a *domain.Activity) {
			a.SetNote(domain.NewNote(testOrigin, "https://social.example/notes/3")).SetAuthor(bob)
		}), domain.EventEmpty, nil},
		{"announce of my note", domain.FromInner(alice, domain.ActivityAnnounce, note(me)), domain.EventAnnounce, me},
		{"follow of me", on(domain.ActivityFollow, alice, func(a *domain.Activity) { a.SetObjActor(me) }), domain.EventFollow, me},
		{"follow of bob", on(domain.ActivityFollow, alice, func(a *domain.Activity) { a.SetObjActor(bob) }), domain.EventEmpty, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, notified := CalculateNotification(tt.act, users)
			assert.Equal(t, tt.event, event)
			if tt.notified == nil {
				assert.Nil(t, notified)
			} else {
				assert.Same(t, tt.notified, notified)
			}
		})
	}
}

func TestEnabledEvents(t *testing.T) {
	check := EnabledEvents(domain.EventMention, domain.EventPrivate)
	assert.True(t, check(domain.EventMention))
	assert.False(t, check(domain.EventLike))
	assert.True(t, AllNotifications(domain.EventFollow))
}
