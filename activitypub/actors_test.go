package activitypub

import (
	"context"
	"errors"
	"testing"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOrigin = &domain.Origin{ID: 1, Name: "mastodon.social", Type: domain.OriginActivityPub, Host: "mastodon.social"}

func testMapper() *Mapper {
	me := domain.NewActor(testOrigin, "https://mastodon.social/users/me")
	me.ActorID = 1
	me.SetUsername("me")
	return NewMapper(testOrigin, me)
}

func mustObject(t *testing.T, s string) util.JSONObject {
	t.Helper()
	obj, err := util.ParseJSONObject([]byte(s))
	require.NoError(t, err)
	return obj
}

const aliceJSON = `{
	"@context": "https://www.w3.org/ns/activitystreams",
	"id": "https://mastodon.social/users/alice",
	"type": "Person",
	"preferredUsername": "alice",
	"name": "Alice Example",
	"summary": "<p>Just a <b>test</b> user</p>",
	"url": "https://mastodon.social/@alice",
	"inbox": "https://mastodon.social/users/alice/inbox",
	"outbox": "https://mastodon.social/users/alice/outbox",
	"followers": "https://mastodon.social/users/alice/followers",
	"following": {"id": "https://mastodon.social/users/alice/following", "totalItems": 12},
	"endpoints": {"sharedInbox": "https://mastodon.social/inbox"},
	"icon": {"type": "Image", "mediaType": "image/png", "url": "https://mastodon.social/avatars/alice.png"},
	"published": "2017-04-01T00:00:00Z"
}`

func TestMapActor(t *testing.T) {
	actor, err := testMapper().Actor(mustObject(t, aliceJSON))
	require.NoError(t, err)

	assert.Equal(t, "https://mastodon.social/users/alice", actor.OID)
	assert.Equal(t, "alice", actor.Username())
	assert.Equal(t, "alice@mastodon.social", actor.WebFingerID())
	assert.Equal(t, "Alice Example", actor.RealName)
	assert.Equal(t, "Just a test user", actor.Summary)
	assert.Equal(t, "https://mastodon.social/avatars/alice.png", actor.AvatarURL)
	assert.Equal(t, int64(12), actor.FollowingCount)
	assert.Equal(t, 2017, actor.CreatedDate.Year())

	assert.Equal(t, "https://mastodon.social/users/alice/inbox", actor.Endpoints.FindFirst(domain.EndpointInbox))
	assert.Equal(t, "https://mastodon.social/users/alice/followers", actor.Endpoints.FindFirst(domain.EndpointFollowers))
	assert.Equal(t, "https://mastodon.social/inbox", actor.Endpoints.FindFirst(domain.EndpointSharedInbox))
}

func TestActorFromBareID(t *testing.T) {
	actor := testMapper().ActorFromRef("https://example.com/users/bob")
	require.NotNil(t, actor)
	assert.Equal(t, "bob", actor.Username())
	assert.Equal(t, "bob@example.com", actor.WebFingerID())
	assert.Nil(t, testMapper().ActorFromRef(42))
}

func TestExtractUsername(t *testing.T) {
	tests := map[string]string{
		"https://example.com/users/alice":  "alice",
		"https://example.com/@alice":       "alice",
		"https://example.com/users/alice/": "alice",
		"https://example.com/u/bob?x=1":    "bob",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractUsername(in), in)
	}
}

type stubFetcher struct {
	docs  map[string]string
	calls int
}

func (f *stubFetcher) GetJSON(_ context.Context, url string) (util.JSONObject, error) {
	f.calls++
	doc, ok := f.docs[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return util.ParseJSONObject([]byte(doc))
}

func TestGetOrFetchActorCaches(t *testing.T) {
	f := &stubFetcher{docs: map[string]string{"https://mastodon.social/users/alice": aliceJSON}}
	fetcher := NewActorFetcher(f, testMapper())

	first, err := fetcher.GetOrFetchActor(context.Background(), "https://mastodon.social/users/alice")
	require.NoError(t, err)
	second, err := fetcher.GetOrFetchActor(context.Background(), "https://mastodon.social/users/alice")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.calls)
}

func TestFetchActorMissingFields(t *testing.T) {
	f := &stubFetcher{docs: map[string]string{"https://example.com/users/x": `{"id": "https://example.com/users/x", "type": "Person"}`}}
	_, err := NewActorFetcher(f, testMapper()).FetchActor(context.Background(), "https://example.com/users/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAnObject)

	_, err = NewActorFetcher(f, testMapper()).FetchActor(context.Background(), "https://example.com/users/none")
	assert.Error(t, err)
}

func TestWebFinger(t *testing.T) {
	u, err := WebFingerURL("alice@mastodon.social")
	require.NoError(t, err)
	assert.Equal(t, "https://mastodon.social/.well-known/webfinger?resource=acct%3Aalice%40mastodon.social", u)

	_, err = WebFingerURL("not-an-id")
	assert.Error(t, err)

	f := &stubFetcher{docs: map[string]string{u: `{
		"subject": "acct:alice@mastodon.social",
		"links": [
			{"rel": "http://webfinger.net/rel/profile-page", "type": "text/html", "href": "https://mastodon.social/@alice"},
			{"rel": "self", "type": "application/activity+json", "href": "https://mastodon.social/users/alice"}
		]
	}`}}
	actorURL, err := ResolveActorURL(context.Background(), f, "alice@mastodon.social")
	require.NoError(t, err)
	assert.Equal(t, "https://mastodon.social/users/alice", actorURL)

	_, err = ActorURLFromWebFinger(util.JSONObject{"subject": "acct:x@y.z"})
	assert.Error(t, err)
}
