package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apNote(base, id string) string {
	return `{"type": "Create", "id": "` + base + `/activities/` + id + `", "actor": "` + base + `/users/alice",
		"object": {"type": "Note", "id": "` + base + `/notes/` + id + `", "attributedTo": "` + base + `/users/alice",
		"content": "note ` + id + `", "to": ["https://www.w3.org/ns/activitystreams#Public"]}}`
}

func newAPClient(t *testing.T, mux *http.ServeMux) (*Client, string) {
	client, srv := newTestClient(t, domain.OriginActivityPub, mux)
	account := client.Account()
	account.OID = srv.URL + "/users/me"
	account.AddEndpoint(domain.EndpointInbox, srv.URL+"/users/me/inbox")
	account.AddEndpoint(domain.EndpointOutbox, srv.URL+"/users/me/outbox")
	return client, srv.URL
}

func TestActivityPubTimelineFollowsFirstPage(t *testing.T) {
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/users/me/inbox", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/activity+json", r.Header.Get("Accept"))
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"type": "OrderedCollectionPage", "id": "` + base + `/users/me/inbox?page=1",
				"next": "` + base + `/users/me/inbox?page=2",
				"orderedItems": [` + apNote(base, "2") + `, ` + apNote(base, "1") + `]}`))
			return
		}
		_, _ = w.Write([]byte(`{"type": "OrderedCollection", "id": "` + base + `/users/me/inbox",
			"totalItems": 2, "first": "` + base + `/users/me/inbox?page=1"}`))
	})
	client, url := newAPClient(t, mux)
	base = url

	page, err := client.Timeline(context.Background(), TimelineRequest{Routine: HomeTimeline})
	require.NoError(t, err)
	assert.Equal(t, []string{base + "/notes/1", base + "/notes/2"}, oids(page.Items))
	assert.Equal(t, base+"/users/me/inbox?page=2", page.OlderPosition.String())
	assert.False(t, page.AllLoaded)
}

func TestActivityPubMissingEndpointIsUnsupported(t *testing.T) {
	origin := testOrigin(domain.OriginActivityPub, "https://social.example/")
	client, err := New(origin, testAccount(origin, "https://social.example/users/me"), noNetwork{t})
	require.NoError(t, err)

	assert.True(t, client.IsAPISupported(HomeTimeline))
	_, err = client.Timeline(context.Background(), TimelineRequest{Routine: HomeTimeline})
	assert.ErrorIs(t, err, ErrUnsupportedAPI)
	_, err = client.Timeline(context.Background(), TimelineRequest{Routine: PublicTimeline})
	assert.ErrorIs(t, err, ErrUnsupportedAPI)
}

func TestActivityPubLikePostsToOutbox(t *testing.T) {
	mux := http.NewServeMux()
	var posted util.JSONObject
	mux.HandleFunc("/users/me/outbox", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/activity+json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.Header().Set("Location", "https://social.example/activities/9")
		w.WriteHeader(http.StatusCreated)
	})
	client, base := newAPClient(t, mux)

	like, err := client.Like(context.Background(), "https://other.example/notes/5")
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityLike, like.Type)
	assert.Equal(t, "https://social.example/activities/9", like.OID)
	assert.Equal(t, "https://other.example/notes/5", like.Note().OID)

	assert.Equal(t, "Like", posted["type"])
	assert.Equal(t, base+"/users/me", posted["actor"])
	assert.Equal(t, "https://other.example/notes/5", posted["object"])
}

func TestActivityPubUndoFollowWrapsFollow(t *testing.T) {
	mux := http.NewServeMux()
	var posted util.JSONObject
	mux.HandleFunc("/users/me/outbox", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.WriteHeader(http.StatusCreated)
	})
	client, _ := newAPClient(t, mux)

	undo, err := client.UndoFollow(context.Background(), "https://other.example/users/bob")
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityUndoFollow, undo.Type)
	assert.Equal(t, "https://other.example/users/bob", undo.ObjActor().OID)
	assert.Equal(t, domain.False, undo.ObjActor().IsMyFriend)

	assert.Equal(t, "Undo", posted["type"])
	inner, ok := posted["object"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Follow", inner["type"])
	assert.NotContains(t, inner, "@context")
}
