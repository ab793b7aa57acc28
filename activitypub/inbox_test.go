package activitypub

import (
	"testing"

	"github.com/andstatus/fedsync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createJSON = `{
	"id": "https://mastodon.social/users/alice/statuses/123/activity",
	"type": "Create",
	"actor": "https://mastodon.social/users/alice",
	"published": "2025-11-14T10:00:00Z",
	"object": {
		"id": "https://mastodon.social/users/alice/statuses/123",
		"type": "Note",
		"content": "<p>Hello from <a href=\"https://mastodon.social/@bob\">@bob</a>!</p>",
		"published": "2025-11-14T10:00:00Z",
		"attributedTo": "https://mastodon.social/users/alice",
		"inReplyTo": "https://example.com/notes/1",
		"to": ["https://www.w3.org/ns/activitystreams#Public"],
		"cc": ["https://mastodon.social/users/alice/followers", "https://mastodon.social/users/bob"],
		"tag": [{"type": "Mention", "href": "https://mastodon.social/users/bob", "name": "@bob@mastodon.social"}],
		"attachment": [{"type": "Document", "mediaType": "image/png", "url": "https://mastodon.social/media/1.png"}]
	}
}`

func TestMapCreate(t *testing.T) {
	act, err := testMapper().Activity(mustObject(t, createJSON))
	require.NoError(t, err)

	assert.Equal(t, domain.ActivityCreate, act.Type)
	assert.Equal(t, domain.ObjectNote, act.ObjectType())
	assert.False(t, act.IsEmpty())
	assert.Equal(t, "alice", act.Actor.Username())
	assert.Same(t, act.Actor, act.Author())
	assert.Equal(t, 2025, act.UpdatedDate.Year())

	note := act.Note()
	assert.Equal(t, "https://mastodon.social/users/alice/statuses/123", note.OID)
	assert.Equal(t, "Hello from @bob!", note.Content)
	assert.Equal(t, domain.StatusLoaded, note.Status)
	assert.Equal(t, domain.VisibilityPublicAndFollowers, note.Visibility())
	require.Len(t, note.Audience().Actors(), 1)
	assert.Equal(t, "bob@mastodon.social", note.Audience().Actors()[0].WebFingerID())
	require.Len(t, note.Attachments, 1)
	assert.Equal(t, domain.MediaImage, note.Attachments[0].MediaType)
	require.NotNil(t, note.InReplyToNote())
	assert.Equal(t, "https://example.com/notes/1", note.InReplyToNote().OID)
}

func TestMapBareNoteIsUpdate(t *testing.T) {
	act, err := testMapper().Activity(mustObject(t, `{
		"id": "https://example.com/notes/7",
		"type": "Note",
		"attributedTo": "https://example.com/users/carol",
		"content": "hi",
		"to": ["https://example.com/users/me"]
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityUpdate, act.Type)
	assert.Equal(t, domain.ObjectNote, act.ObjectType())
	assert.Equal(t, domain.VisibilityPrivate, act.Note().Visibility())
}

func TestMapAnnounceNestsOriginal(t *testing.T) {
	act, err := testMapper().Activity(mustObject(t, `{
		"id": "https://example.com/activities/9",
		"type": "Announce",
		"actor": "https://example.com/users/dave",
		"object": {
			"id": "https://mastodon.social/users/alice/statuses/123",
			"type": "Note",
			"attributedTo": "https://mastodon.social/users/alice",
			"content": "original"
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, domain.ActivityAnnounce, act.Type)
	assert.Equal(t, domain.ObjectActivity, act.ObjectType())
	assert.Equal(t, "dave", act.Actor.Username())
	assert.Equal(t, "alice", act.Author().Username())
	assert.Equal(t, "original", act.Note().Content)
}

func TestMapUndo(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    domain.ActivityType
		objType domain.ObjectType
	}{
		{
			name: "undo like",
			json: `{"type": "Undo", "actor": "https://example.com/users/dave",
				"object": {"type": "Like", "actor": "https://example.com/users/dave", "object": "https://example.com/notes/1"}}`,
			want:    domain.ActivityUndoLike,
			objType: domain.ObjectNote,
		},
		{
			name: "undo follow",
			json: `{"type": "Undo", "actor": "https://example.com/users/dave",
				"object": {"type": "Follow", "id": "https://example.com/follows/123", "object": "https://mastodon.social/users/me"}}`,
			want:    domain.ActivityUndoFollow,
			objType: domain.ObjectActor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := testMapper().Activity(mustObject(t, tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.want, act.Type)
			assert.Equal(t, tt.objType, act.ObjectType())
		})
	}

	_, err := testMapper().Activity(mustObject(t, `{"type": "Undo", "actor": "https://example.com/users/dave", "object": "https://example.com/activities/1"}`))
	assert.ErrorIs(t, err, ErrNotAnObject)
}

func TestMapFollowAndDelete(t *testing.T) {
	follow, err := testMapper().Activity(mustObject(t, `{
		"id": "https://example.com/follows/1", "type": "Follow",
		"actor": "https://example.com/users/dave", "object": "https://mastodon.social/users/me"
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ObjectActor, follow.ObjectType())
	assert.Equal(t, "https://mastodon.social/users/me", follow.ObjActor().OID)

	del, err := testMapper().Activity(mustObject(t, `{
		"id": "https://example.com/deletes/1", "type": "Delete",
		"actor": "https://example.com/users/dave",
		"object": {"id": "https://example.com/notes/5", "type": "Tombstone"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ObjectNote, del.ObjectType())
	assert.Equal(t, domain.StatusDeleted, del.Note().Status)
}

func TestMapUnsupportedTypeIsEmpty(t *testing.T) {
	act, err := testMapper().Activity(mustObject(t, `{"type": "Accept", "actor": "https://example.com/users/dave", "object": "x"}`))
	require.NoError(t, err)
	assert.True(t, act.IsEmpty())

	_, err = testMapper().Activity(mustObject(t, `{"type": "Like", "actor": "https://example.com/users/dave"}`))
	assert.Error(t, err)
}

func TestNoteFieldsNeverReportActor(t *testing.T) {
	act, err := testMapper().Activity(mustObject(t, `{
		"id": "https://example.com/notes/8", "type": "Article", "name": "Title",
		"attributedTo": {"id": "https://example.com/users/erin", "type": "Person", "preferredUsername": "erin", "inbox": "https://example.com/users/erin/inbox"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ObjectNote, act.ObjectType())
	assert.NotEqual(t, domain.ObjectActor, act.ObjectType())
	assert.NotEqual(t, domain.ObjectActivity, act.ObjectType())
	assert.Equal(t, "erin", act.Author().Username())
}
