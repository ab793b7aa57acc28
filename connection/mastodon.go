package connection

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type mastodonMapper struct {
	origin  *domain.Origin
	account *domain.Actor
}

// Activity maps a status or a notification.
func (m *mastodonMapper) Activity(obj util.JSONObject) (*domain.Activity, error) {
	if util.Has(obj, "type") && util.Has(obj, "account") && !util.Has(obj, "content") {
		return m.notification(obj)
	}
	return m.status(obj)
}

func (m *mastodonMapper) status(obj util.JSONObject) (*domain.Activity, error) {
	oid := util.FirstString(obj, "id")
	if oid == "" {
		return nil, errors.New("status without id")
	}
	author, err := m.Actor(util.Object(obj, "account"))
	if err != nil {
		return nil, errors.Wrap(err, "status account")
	}
	created := util.ParseDate(util.FirstString(obj, "created_at"))

	if reblog := util.Object(obj, "reblog"); reblog != nil {
		inner, err := m.status(reblog)
		if err != nil {
			return nil, errors.Wrap(err, "reblogged status")
		}
		act := domain.FromInner(author, domain.ActivityAnnounce, inner)
		act.AccountActor = m.account
		act.OID = oid
		act.UpdatedDate = created
		return act, nil
	}

	updated := created
	if edited := util.ParseDate(util.FirstString(obj, "edited_at")); edited.After(updated) {
		updated = edited
	}
	act := domain.NewNoteActivity(m.account, author, domain.ActivityUpdate, oid, updated)
	note := act.Note()
	note.Origin = m.origin
	note.Status = domain.StatusLoaded
	note.UpdatedDate = updated
	note.Summary = util.FirstString(obj, "spoiler_text")
	note.Content = util.FirstString(obj, "content")
	if m.origin.ShouldStripHTML() {
		note.Content = util.StripHTML(note.Content)
	}
	note.Sensitive, _ = util.Bool(obj, "sensitive")
	note.URL = util.FirstString(obj, "url", "uri")
	note.ConversationOID = util.FirstString(obj, "conversation_id")
	if app := util.Object(obj, "application"); app != nil {
		note.Via = util.FirstString(app, "name")
	}
	if fav, ok := util.Bool(obj, "favourited"); ok {
		note.FavoritedByMe = domain.FromBool(fav)
	}
	note.LikesCount = util.FirstInt(obj, "favourites_count")
	note.ReblogsCount = util.FirstInt(obj, "reblogs_count")
	note.RepliesCount = util.FirstInt(obj, "replies_count")

	if replyOID := util.FirstString(obj, "in_reply_to_id"); replyOID != "" {
		var replyAuthor *domain.Actor
		if accountOID := util.FirstString(obj, "in_reply_to_account_id"); accountOID != "" {
			replyAuthor = domain.NewActor(m.origin, accountOID)
		}
		note.InReplyTo = domain.NewNoteActivity(m.account, replyAuthor, domain.ActivityUpdate, replyOID, time.Time{})
		note.InReplyTo.Note().Origin = m.origin
	}

	for _, item := range util.Array(obj, "media_attachments") {
		media, ok := item.(map[string]any)
		if !ok {
			continue
		}
		att := domain.NewAttachment(util.FirstString(media, "url", "remote_url"), "")
		if att.MimeType == "" {
			att.MediaType = mastodonMediaType(util.FirstString(media, "type"))
		}
		att.PreviewURI = util.FirstString(media, "preview_url")
		note.Attachments = note.Attachments.Add(att)
	}
	note.SetAudience(m.audience(obj, author, note.InReplyToActor()))
	return act, nil
}

func mastodonMediaType(t string) domain.MediaType {
	switch t {
	case "image", "gifv":
		return domain.MediaImage
	case "video":
		return domain.MediaVideo
	case "audio":
		return domain.MediaAudio
	}
	return domain.MediaUnknown
}

// VisibilityFromMastodon maps the status visibility names.
func VisibilityFromMastodon(v string) domain.Visibility {
	switch v {
	case "public":
		return domain.VisibilityPublicAndFollowers
	case "unlisted":
		return domain.VisibilityPublic
	case "private":
		return domain.VisibilityFollowers
	case "direct":
		return domain.VisibilityPrivate
	}
	return domain.VisibilityUnknown
}

func visibilityToMastodon(v domain.Visibility) string {
	switch v {
	case domain.VisibilityPublic:
		return "unlisted"
	case domain.VisibilityFollowers:
		return "private"
	case domain.VisibilityPrivate:
		return "direct"
	}
	return "public"
}

func (m *mastodonMapper) audience(obj util.JSONObject, author, replyTo *domain.Actor) *domain.Audience {
	audience := domain.NewAudience(VisibilityFromMastodon(util.FirstString(obj, "visibility")))
	for _, item := range util.Array(obj, "mentions") {
		mention, ok := item.(map[string]any)
		if !ok {
			continue
		}
		actor := domain.NewActor(m.origin, util.FirstString(mention, "id"))
		actor.SetProfileURL(util.FirstString(mention, "url"))
		actor.SetUsername(util.FirstString(mention, "username"))
		actor.SetWebFingerID(m.webFingerID(util.FirstString(mention, "acct")))
		audience.Add(actor)
	}
	if replyTo.NonEmpty() && !replyTo.Equals(author) {
		audience.Add(replyTo)
	}
	return audience
}

// webFingerID completes a local acct with the origin host.
func (m *mastodonMapper) webFingerID(acct string) string {
	if acct == "" || strings.Contains(acct, "@") || m.origin == nil {
		return acct
	}
	return acct + "@" + m.origin.Host
}

// notification classifies a notification; unknown types map to an empty
// activity, which callers drop.
func (m *mastodonMapper) notification(obj util.JSONObject) (*domain.Activity, error) {
	id := util.FirstString(obj, "id")
	actor, err := m.Actor(util.Object(obj, "account"))
	if err != nil {
		return nil, errors.Wrap(err, "notification account")
	}
	created := util.ParseDate(util.FirstString(obj, "created_at"))
	var status *domain.Activity
	if s := util.Object(obj, "status"); s != nil {
		if status, err = m.status(s); err != nil {
			return nil, errors.Wrap(err, "notification status")
		}
	}

	typ := util.FirstString(obj, "type")
	var act *domain.Activity
	switch typ {
	case "mention", "status", "update":
		if status == nil {
			return nil, errors.Errorf("%s notification without status", typ)
		}
		act = status
	case "favourite":
		if status == nil {
			return nil, errors.New("favourite notification without status")
		}
		act = domain.NewActivity(m.account, domain.ActivityLike)
		act.Actor = actor
		act.SetNote(status.Note())
		act.SetAuthor(status.Author())
	case "reblog":
		if status == nil {
			return nil, errors.New("reblog notification without status")
		}
		act = domain.FromInner(actor, domain.ActivityAnnounce, status)
	case "follow":
		act = domain.NewActivity(m.account, domain.ActivityFollow)
		act.Actor = actor
		act.SetObjActor(m.account)
	default:
		log.Debugf("Connection: Skipping mastodon notification of type %q", typ)
		act = domain.NewActivity(m.account, domain.ActivityEmpty)
		act.Actor = actor
	}
	if act != status {
		act.OID = "notification:" + id
		act.UpdatedDate = created
	}
	act.AccountActor = m.account
	act.SetPosition(domain.NewPosition(id))
	return act, nil
}

func (m *mastodonMapper) Actor(obj util.JSONObject) (*domain.Actor, error) {
	oid := util.FirstString(obj, "id")
	if oid == "" {
		return nil, errors.New("account without id")
	}
	a := domain.NewActor(m.origin, oid)
	a.SetProfileURL(util.FirstString(obj, "url"))
	a.SetUsername(util.FirstString(obj, "username"))
	a.SetWebFingerID(m.webFingerID(util.FirstString(obj, "acct")))
	a.RealName = util.FirstString(obj, "display_name")
	a.Summary = util.StripHTML(util.FirstString(obj, "note"))
	a.AvatarURL = util.FirstString(obj, "avatar_static", "avatar")
	a.BannerURL = util.FirstString(obj, "header_static", "header")
	a.NotesCount = util.FirstInt(obj, "statuses_count")
	a.FollowingCount = util.FirstInt(obj, "following_count")
	a.FollowersCount = util.FirstInt(obj, "followers_count")
	a.CreatedDate = util.ParseDate(util.FirstString(obj, "created_at"))
	a.UpdatedDate = util.ParseDate(util.FirstString(obj, "last_status_at"))
	if a.UpdatedDate.IsZero() {
		a.UpdatedDate = a.CreatedDate
	}
	for _, item := range util.Array(obj, "fields") {
		field, ok := item.(map[string]any)
		if ok && a.HomepageURL == "" && util.FirstString(field, "verified_at") != "" {
			a.HomepageURL = util.StripHTML(util.FirstString(field, "value"))
		}
	}
	a.AddEndpoint(domain.EndpointProfile, a.ProfileURL())
	a.AddEndpoint(domain.EndpointBanner, a.BannerURL)
	return a, nil
}

func (m *mastodonMapper) Timeline(resp *Response, routine ApiRoutine) (*Page, error) {
	if routine == GetConversation {
		obj, err := resp.JSONObject()
		if err != nil {
			return nil, err
		}
		items := append(util.Array(obj, "ancestors"), util.Array(obj, "descendants")...)
		return domain.NewInputPage(mapItems(routine, items, m.status)), nil
	}
	items, err := listOf(resp, "statuses")
	if err != nil {
		return nil, err
	}
	acts := mapItems(routine, items, m.Activity)
	kept := acts[:0]
	for _, act := range acts {
		if act.Type != domain.ActivityEmpty {
			kept = append(kept, act)
		}
	}
	return domain.NewInputPage(kept), nil
}

func (m *mastodonMapper) Actors(resp *Response, routine ApiRoutine) ([]*domain.Actor, error) {
	items, err := listOf(resp, "accounts")
	if err != nil {
		return nil, err
	}
	return mapItems(routine, items, m.Actor), nil
}

// Config reads /api/v1/instance; Pleroma reports max_toot_chars.
func (m *mastodonMapper) Config(obj util.JSONObject) *OriginConfig {
	conf := &OriginConfig{TextLimit: 500}
	configuration := util.Object(obj, "configuration")
	if limit := util.FirstInt(util.Object(configuration, "statuses"), "max_characters"); limit > 0 {
		conf.TextLimit = int(limit)
	} else if limit := util.FirstInt(obj, "max_toot_chars"); limit > 0 {
		conf.TextLimit = int(limit)
	}
	conf.UploadSizeLimit = util.FirstInt(util.Object(configuration, "media_attachments"), "image_size_limit")
	return conf
}

type mastodonEncoder struct{}

func (mastodonEncoder) Note(note *domain.Note, mediaIDs []string) *Request {
	form := url.Values{}
	form.Set("status", note.Content)
	if note.Summary != "" {
		form.Set("spoiler_text", note.Summary)
	}
	if note.Sensitive {
		form.Set("sensitive", "true")
	}
	form.Set("visibility", visibilityToMastodon(note.Visibility()))
	if reply := note.InReplyToNote(); reply != nil && domain.IsRealOid(reply.OID) {
		form.Set("in_reply_to_id", reply.OID)
	}
	for _, id := range mediaIDs {
		form.Add("media_ids[]", id)
	}
	return &Request{Method: http.MethodPost, Form: form}
}

func (mastodonEncoder) Action(ApiRoutine, string) *Request { return nil }

// ActorLookup uses accounts/lookup when the account id is not known.
func (mastodonEncoder) ActorLookup(actor *domain.Actor) (string, url.Values) {
	if actor.IsOidReal() {
		return actor.OID, nil
	}
	acct := actor.WebFingerID()
	if acct == "" {
		acct = actor.Username()
	}
	return "lookup", url.Values{"acct": {acct}}
}

func (mastodonEncoder) MediaField() string { return "file" }

func mastodonRoutes() Routes {
	return Routes{
		HomeTimeline:          get("v1/timelines/home"),
		NotificationsTimeline: get("v1/notifications"),
		MentionsTimeline:      {Method: http.MethodGet, Path: "v1/notifications", Params: url.Values{"types[]": {"mention"}}},
		PublicTimeline:        get("v1/timelines/public"),
		ActorTimeline:         get("v1/accounts/{id}/statuses"),
		LikedTimeline:         get("v1/favourites"),
		SearchNotes:           {Method: http.MethodGet, Path: "v2/search", Params: url.Values{"type": {"statuses"}, "resolve": {"true"}}},
		SearchActors:          get("v1/accounts/search"),
		GetNote:               get("v1/statuses/{id}"),
		GetConversation:       get("v1/statuses/{id}/context"),
		UpdateNote:            post("v1/statuses"),
		DeleteNote:            {Method: http.MethodDelete, Path: "v1/statuses/{id}"},
		Like:                  post("v1/statuses/{id}/favourite"),
		UndoLike:              post("v1/statuses/{id}/unfavourite"),
		Announce:              post("v1/statuses/{id}/reblog"),
		UndoAnnounce:          post("v1/statuses/{id}/unreblog"),
		Follow:                post("v1/accounts/{id}/follow"),
		UndoFollow:            post("v1/accounts/{id}/unfollow"),
		GetActor:              get("v1/accounts/{id}"),
		GetFriends:            get("v1/accounts/{id}/following"),
		GetFollowers:          get("v1/accounts/{id}/followers"),
		VerifyCredentials:     get("v1/accounts/verify_credentials"),
		UploadMedia:           post("v2/media"),
		GetConfig:             get("v1/instance"),
	}
}

func newMastodonBackend(origin *domain.Origin, account *domain.Actor) Backend {
	return Backend{
		Name:    "mastodon",
		APIBase: "api/",
		Routes:  mastodonRoutes(),
		Mapper:  &mastodonMapper{origin: origin, account: account},
		Encoder: mastodonEncoder{},
		Paging:  linkPaging{ids: idPaging{limitParam: "limit"}},
	}
}
