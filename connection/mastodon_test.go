package connection

import (
	"context"
	"net/http"
	"testing"

	"github.com/andstatus/fedsync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tootJSON = `{
	"id": "103270115826048975",
	"created_at": "2019-12-08T03:48:33.901Z",
	"visibility": "unlisted",
	"sensitive": true,
	"spoiler_text": "cw",
	"content": "<p>Hi <span class=\"h-card\">@bob</span></p>",
	"url": "https://social.example/@alice/103270115826048975",
	"favourited": false,
	"favourites_count": 4,
	"in_reply_to_id": "103270115826040000",
	"in_reply_to_account_id": "14",
	"account": {"id": "13", "username": "alice", "acct": "alice", "url": "https://social.example/@alice", "display_name": "Alice"},
	"mentions": [{"id": "14", "username": "bob", "acct": "bob@other.example", "url": "https://other.example/@bob"}],
	"media_attachments": [{"id": "22", "type": "image", "url": "https://files.social.example/a.png", "preview_url": "https://files.social.example/a_small.png"}],
	"application": {"name": "Web"}
}`

func mastodonTestMapper() *mastodonMapper {
	origin := testOrigin(domain.OriginMastodon, "")
	origin.HTMLContentAllowed = true
	return &mastodonMapper{origin: origin, account: testAccount(origin, "42")}
}

func TestMastodonStatus(t *testing.T) {
	act, err := mastodonTestMapper().Activity(mustObject(t, tootJSON))
	require.NoError(t, err)

	assert.Equal(t, domain.ActivityUpdate, act.Type)
	assert.Equal(t, "alice@social.example", act.Actor.WebFingerID())
	assert.Equal(t, 2019, act.UpdatedDate.Year())

	note := act.Note()
	assert.Equal(t, "103270115826048975", note.OID)
	assert.Equal(t, "cw", note.Summary)
	assert.True(t, note.Sensitive)
	assert.Equal(t, domain.False, note.FavoritedByMe)
	assert.Equal(t, "Web", note.Via)
	assert.Equal(t, domain.VisibilityPublic, note.Visibility())
	require.Len(t, note.Attachments, 1)
	assert.Equal(t, "https://files.social.example/a_small.png", note.Attachments[0].PreviewURI)
	require.Len(t, note.Audience().Actors(), 1)
	assert.Equal(t, "bob@other.example", note.Audience().Actors()[0].WebFingerID())
	assert.Equal(t, "103270115826040000", note.InReplyToNote().OID)
}

func TestMastodonVisibility(t *testing.T) {
	assert.Equal(t, domain.VisibilityPublicAndFollowers, VisibilityFromMastodon("public"))
	assert.Equal(t, domain.VisibilityPublic, VisibilityFromMastodon("unlisted"))
	assert.Equal(t, domain.VisibilityFollowers, VisibilityFromMastodon("private"))
	assert.Equal(t, domain.VisibilityPrivate, VisibilityFromMastodon("direct"))
	assert.Equal(t, domain.VisibilityUnknown, VisibilityFromMastodon("local"))
	for _, v := range []string{"public", "unlisted", "private", "direct"} {
		assert.Equal(t, v, visibilityToMastodon(VisibilityFromMastodon(v)))
	}
}

func TestMastodonReblogNestsOriginal(t *testing.T) {
	act, err := mastodonTestMapper().Activity(mustObject(t, `{
		"id": "500",
		"created_at": "2019-12-09T00:00:00Z",
		"account": {"id": "42", "username": "me", "acct": "me"},
		"reblog": `+tootJSON+`
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityAnnounce, act.Type)
	assert.Equal(t, "500", act.OID)
	assert.Equal(t, "103270115826048975", act.Note().OID)
	assert.Equal(t, "alice", act.Author().Username())
}

const notificationsJSON = `[
	{"id": "95", "type": "poll", "created_at": "2019-12-10T00:00:00Z", "account": {"id": "15", "username": "dan", "acct": "dan"}},
	{"id": "94", "type": "follow", "created_at": "2019-12-09T04:00:00Z", "account": {"id": "15", "username": "dan", "acct": "dan"}},
	{"id": "93", "type": "reblog", "created_at": "2019-12-09T03:00:00Z", "account": {"id": "16", "username": "eve", "acct": "eve"}, "status": ` + tootJSON + `},
	{"id": "92", "type": "favourite", "created_at": "2019-12-09T02:00:00Z", "account": {"id": "17", "username": "fay", "acct": "fay"}, "status": ` + tootJSON + `},
	{"id": "91", "type": "mention", "created_at": "2019-12-09T01:00:00Z", "account": {"id": "13", "username": "alice", "acct": "alice"}, "status": ` + tootJSON + `}
]`

func TestMastodonNotificationsAreClassified(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `<https://social.example/api/v1/notifications?max_id=91>; rel="next"`)
		_, _ = w.Write([]byte(notificationsJSON))
	})
	client, _ := newTestClient(t, domain.OriginMastodon, mux)

	page, err := client.Timeline(context.Background(), TimelineRequest{Routine: NotificationsTimeline})
	require.NoError(t, err)
	require.Len(t, page.Items, 4)

	mention, like, reblog, follow := page.Items[0], page.Items[1], page.Items[2], page.Items[3]

	assert.Equal(t, domain.ActivityUpdate, mention.Type)
	assert.Equal(t, "103270115826048975", mention.OID)
	assert.Equal(t, "91", mention.Position().String())

	assert.Equal(t, domain.ActivityLike, like.Type)
	assert.Equal(t, "notification:92", like.OID)
	assert.Equal(t, "fay", like.Actor.Username())
	assert.Equal(t, "103270115826048975", like.Note().OID)
	assert.Equal(t, "alice", like.Author().Username())

	assert.Equal(t, domain.ActivityAnnounce, reblog.Type)
	assert.Equal(t, "eve", reblog.Actor.Username())
	assert.Equal(t, domain.ObjectActivity, reblog.ObjectType())
	assert.Equal(t, "93", reblog.Position().String())

	assert.Equal(t, domain.ActivityFollow, follow.Type)
	assert.True(t, follow.ObjActor().Equals(client.Account()))
	assert.Equal(t, "94", follow.Position().String())

	assert.Equal(t, "91", page.OlderPosition.String())
	assert.Equal(t, "94", page.YoungerPosition.String())
	assert.False(t, page.AllLoaded)
}

func TestMastodonNoNextLinkMeansAllLoaded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timelines/home", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[` + tootJSON + `]`))
	})
	client, _ := newTestClient(t, domain.OriginMastodon, mux)

	page, err := client.Timeline(context.Background(), TimelineRequest{Routine: HomeTimeline, Limit: 40})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.AllLoaded)
}

func TestMastodonMentionsFilterNotifications(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"mention"}, r.URL.Query()["types[]"])
		_, _ = w.Write([]byte(`[]`))
	})
	client, _ := newTestClient(t, domain.OriginMastodon, mux)

	page, err := client.Timeline(context.Background(), TimelineRequest{Routine: MentionsTimeline})
	require.NoError(t, err)
	assert.True(t, page.IsEmpty())
	assert.True(t, page.AllLoaded)
}

func TestMastodonConversationAndConfig(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses/7/context", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ancestors": [` + tootJSON + `], "descendants": []}`))
	})
	mux.HandleFunc("/api/v1/instance", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"configuration": {"statuses": {"max_characters": 1000}}}`))
	})
	client, _ := newTestClient(t, domain.OriginMastodon, mux)

	acts, err := client.GetConversation(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"103270115826048975"}, oids(acts))

	conf, err := client.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000, conf.TextLimit)
}

func TestMastodonActorLookupByAcct(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/lookup", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bob@other.example", r.URL.Query().Get("acct"))
		_, _ = w.Write([]byte(`{"id": "14", "username": "bob", "acct": "bob@other.example"}`))
	})
	client, _ := newTestClient(t, domain.OriginMastodon, mux)

	actor, err := client.GetActor(context.Background(), domain.ActorFromWebFingerID(client.Origin(), "bob@other.example"))
	require.NoError(t, err)
	assert.Equal(t, "14", actor.OID)
	assert.Equal(t, "bob@other.example", actor.WebFingerID())
}
