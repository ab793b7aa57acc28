package connection

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
)

// twitterMapper reads the Twitter v1 JSON dialect, which GNU Social extends.
type twitterMapper struct {
	origin  *domain.Origin
	account *domain.Actor
	// gnuSocial enables the StatusNet extensions: HTML content, attachments,
	// attentions and conversation ids.
	gnuSocial bool
}

func (m *twitterMapper) Activity(obj util.JSONObject) (*domain.Activity, error) {
	return m.status(obj)
}

func (m *twitterMapper) status(obj util.JSONObject) (*domain.Activity, error) {
	oid := util.FirstString(obj, "id_str", "id")
	if oid == "" {
		return nil, errors.New("status without id")
	}
	var author *domain.Actor
	if user := util.Object(obj, "user"); user != nil {
		a, err := m.Actor(user)
		if err != nil {
			return nil, errors.Wrap(err, "status author")
		}
		author = a
	}
	created := util.ParseDate(util.FirstString(obj, "created_at"))

	if retweeted := util.Object(obj, "retweeted_status"); retweeted != nil {
		inner, err := m.status(retweeted)
		if err != nil {
			return nil, errors.Wrap(err, "retweeted status")
		}
		act := domain.FromInner(author, domain.ActivityAnnounce, inner)
		act.AccountActor = m.account
		act.OID = oid
		act.UpdatedDate = created
		return act, nil
	}

	act := domain.NewNoteActivity(m.account, author, domain.ActivityUpdate, oid, created)
	note := act.Note()
	note.Origin = m.origin
	note.Status = domain.StatusLoaded
	note.UpdatedDate = created
	note.Content = util.FirstString(obj, "full_text", "text")
	if m.gnuSocial && !m.origin.ShouldStripHTML() {
		if html := util.FirstString(obj, "statusnet_html"); html != "" {
			note.Content = html
		}
	}
	if m.origin.ShouldStripHTML() {
		note.Content = util.StripHTML(note.Content)
	}
	note.Sensitive, _ = util.Bool(obj, "possibly_sensitive")
	note.Via = util.StripHTML(util.FirstString(obj, "source"))
	note.ConversationOID = util.FirstString(obj, "statusnet_conversation_id", "conversation_id_str", "conversation_id")
	note.URL = util.FirstString(obj, "external_url")
	if note.URL == "" && !m.gnuSocial && author.Username() != "" {
		note.URL = "https://twitter.com/" + author.Username() + "/status/" + oid
	}
	if fav, ok := util.Bool(obj, "favorited"); ok {
		note.FavoritedByMe = domain.FromBool(fav)
	}
	note.LikesCount = util.FirstInt(obj, "favorite_count", "fave_num")
	note.ReblogsCount = util.FirstInt(obj, "retweet_count", "repeat_num")

	if replyOID := util.FirstString(obj, "in_reply_to_status_id_str", "in_reply_to_status_id"); replyOID != "" {
		var replyAuthor *domain.Actor
		if userOID := util.FirstString(obj, "in_reply_to_user_id_str", "in_reply_to_user_id"); userOID != "" {
			replyAuthor = domain.NewActor(m.origin, userOID)
			replyAuthor.SetUsername(util.FirstString(obj, "in_reply_to_screen_name"))
		}
		note.InReplyTo = domain.NewNoteActivity(m.account, replyAuthor, domain.ActivityUpdate, replyOID, time.Time{})
		note.InReplyTo.Note().Origin = m.origin
	}

	m.attachments(note, obj)
	note.SetAudience(m.audience(obj, author, note.InReplyToActor()))
	return act, nil
}

func (m *twitterMapper) attachments(note *domain.Note, obj util.JSONObject) {
	for _, key := range []string{"extended_entities", "entities"} {
		for _, item := range util.Array(util.Object(obj, key), "media") {
			media, ok := item.(map[string]any)
			if !ok {
				continue
			}
			uri := util.FirstString(media, "media_url_https", "media_url")
			att := domain.NewAttachment(uri, "")
			if util.FirstString(media, "type") == "video" || util.FirstString(media, "type") == "animated_gif" {
				if variant := bestVideoVariant(util.Object(media, "video_info")); variant != "" {
					att = domain.NewAttachment(variant, "")
					att.PreviewURI = uri
				}
			}
			note.Attachments = note.Attachments.Add(att)
		}
	}
	if !m.gnuSocial {
		return
	}
	for _, item := range util.Array(obj, "attachments") {
		a, ok := item.(map[string]any)
		if !ok {
			continue
		}
		att := domain.NewAttachment(util.FirstString(a, "url"), util.FirstString(a, "mimetype"))
		if thumb := util.Object(a, "thumb_url"); thumb != nil {
			att.PreviewURI = util.FirstString(thumb, "url")
		}
		note.Attachments = note.Attachments.Add(att)
	}
}

func bestVideoVariant(info util.JSONObject) string {
	best, bitrate := "", int64(-1)
	for _, item := range util.Array(info, "variants") {
		v, ok := item.(map[string]any)
		if !ok || util.FirstString(v, "content_type") != "video/mp4" {
			continue
		}
		if b := util.FirstInt(v, "bitrate"); b > bitrate {
			best, bitrate = util.FirstString(v, "url"), b
		}
	}
	return best
}

// audience holds the mentioned users. Statuses of protected users reach
// followers only.
func (m *twitterMapper) audience(obj util.JSONObject, author, replyTo *domain.Actor) *domain.Audience {
	visibility := domain.VisibilityPublicAndFollowers
	if protected, _ := util.Bool(util.Object(obj, "user"), "protected"); protected {
		visibility = domain.VisibilityFollowers
	}
	audience := domain.NewAudience(visibility)
	for _, item := range util.Array(util.Object(obj, "entities"), "user_mentions") {
		mention, ok := item.(map[string]any)
		if !ok {
			continue
		}
		actor := domain.NewActor(m.origin, util.FirstString(mention, "id_str", "id"))
		actor.SetUsername(util.FirstString(mention, "screen_name"))
		audience.Add(actor)
	}
	if m.gnuSocial {
		for _, item := range util.Array(obj, "attentions") {
			attention, ok := item.(map[string]any)
			if !ok {
				continue
			}
			actor := domain.NewActor(m.origin, util.FirstString(attention, "id"))
			actor.SetProfileURL(util.FirstString(attention, "profileurl"))
			actor.SetUsername(util.FirstString(attention, "screen_name"))
			audience.Add(actor)
		}
	}
	if replyTo.NonEmpty() && !replyTo.Equals(author) {
		audience.Add(replyTo)
	}
	return audience
}

func (m *twitterMapper) Actor(obj util.JSONObject) (*domain.Actor, error) {
	oid := util.FirstString(obj, "id_str", "id")
	username := util.FirstString(obj, "screen_name")
	if oid == "" && username == "" {
		return nil, errors.New("user without id")
	}
	a := domain.NewActor(m.origin, oid)
	profileURL := util.FirstString(obj, "statusnet_profile_url")
	if profileURL == "" && !m.gnuSocial && username != "" {
		profileURL = "https://twitter.com/" + username
	}
	a.SetProfileURL(profileURL)
	a.SetUsername(username)
	a.RealName = util.FirstString(obj, "name")
	a.Summary = util.FirstString(obj, "description")
	a.Location = util.FirstString(obj, "location")
	a.HomepageURL = util.FirstString(obj, "url")
	a.AvatarURL = util.FirstString(obj, "profile_image_url_https", "profile_image_url")
	a.BannerURL = util.FirstString(obj, "profile_banner_url", "cover_photo")
	a.NotesCount = util.FirstInt(obj, "statuses_count")
	a.FavoritesCount = util.FirstInt(obj, "favourites_count")
	a.FollowingCount = util.FirstInt(obj, "friends_count")
	a.FollowersCount = util.FirstInt(obj, "followers_count")
	a.CreatedDate = util.ParseDate(util.FirstString(obj, "created_at"))
	if following, ok := util.Bool(obj, "following"); ok {
		a.IsMyFriend = domain.FromBool(following)
	}
	if status := util.Object(obj, "status"); status != nil {
		a.UpdatedDate = util.ParseDate(util.FirstString(status, "created_at"))
	}
	if a.UpdatedDate.IsZero() {
		a.UpdatedDate = a.CreatedDate
	}
	a.AddEndpoint(domain.EndpointProfile, profileURL)
	a.AddEndpoint(domain.EndpointBanner, a.BannerURL)
	return a, nil
}

func (m *twitterMapper) Timeline(resp *Response, routine ApiRoutine) (*Page, error) {
	items, err := listOf(resp, "statuses", "results")
	if err != nil {
		return nil, err
	}
	return domain.NewInputPage(mapItems(routine, items, m.status)), nil
}

func (m *twitterMapper) Actors(resp *Response, routine ApiRoutine) ([]*domain.Actor, error) {
	items, err := listOf(resp, "users")
	if err != nil {
		return nil, err
	}
	return mapItems(routine, items, m.Actor), nil
}

// Config reads StatusNet's config.json or Twitter's help/configuration.
func (m *twitterMapper) Config(obj util.JSONObject) *OriginConfig {
	conf := &OriginConfig{TextLimit: 280}
	if m.origin != nil && m.origin.Type == domain.OriginTwitter10 {
		conf.TextLimit = 140
	}
	if site := util.Object(obj, "site"); site != nil {
		if limit := util.FirstInt(site, "textlimit"); limit > 0 {
			conf.TextLimit = int(limit)
		}
	}
	conf.UploadSizeLimit = util.FirstInt(util.Object(obj, "attachments"), "file_quota")
	if conf.UploadSizeLimit == 0 {
		conf.UploadSizeLimit = util.FirstInt(obj, "photo_size_limit")
	}
	return conf
}

type twitterEncoder struct {
	origin *domain.Origin
}

func (e twitterEncoder) Note(note *domain.Note, mediaIDs []string) *Request {
	form := url.Values{}
	content := note.Content
	if note.Name != "" {
		content = note.Name + "\n\n" + content
	}
	form.Set("status", util.StripHTML(content))
	if reply := note.InReplyToNote(); reply != nil && domain.IsRealOid(reply.OID) {
		form.Set("in_reply_to_status_id", reply.OID)
	}
	if len(mediaIDs) > 0 {
		form.Set("media_ids", strings.Join(mediaIDs, ","))
	}
	if note.Sensitive {
		form.Set("possibly_sensitive", "true")
	}
	return &Request{Method: http.MethodPost, Form: form}
}

func (e twitterEncoder) Action(ApiRoutine, string) *Request { return nil }

func (e twitterEncoder) ActorLookup(actor *domain.Actor) (string, url.Values) {
	if actor.IsOidReal() {
		return "", url.Values{"user_id": {actor.OID}}
	}
	return "", url.Values{"screen_name": {actor.Username()}}
}

func (e twitterEncoder) MediaField() string { return "media" }

func get(path string) Route { return Route{Method: http.MethodGet, Path: path} }

func post(path string) Route { return Route{Method: http.MethodPost, Path: path} }

func withID(r Route, param string) Route {
	r.IDParam = param
	return r
}

func twitter11Routes() Routes {
	return Routes{
		HomeTimeline:      get("statuses/home_timeline.json"),
		MentionsTimeline:  get("statuses/mentions_timeline.json"),
		ActorTimeline:     withID(get("statuses/user_timeline.json"), "user_id"),
		LikedTimeline:     withID(get("favorites/list.json"), "user_id"),
		SearchNotes:       {Method: http.MethodGet, Path: "search/tweets.json", Params: url.Values{"tweet_mode": {"extended"}}},
		SearchActors:      get("users/search.json"),
		GetNote:           withID(get("statuses/show.json"), "id"),
		UpdateNote:        post("statuses/update.json"),
		DeleteNote:        post("statuses/destroy/{id}.json"),
		Like:              withID(post("favorites/create.json"), "id"),
		UndoLike:          withID(post("favorites/destroy.json"), "id"),
		Announce:          post("statuses/retweet/{id}.json"),
		UndoAnnounce:      post("statuses/unretweet/{id}.json"),
		Follow:            withID(post("friendships/create.json"), "user_id"),
		UndoFollow:        withID(post("friendships/destroy.json"), "user_id"),
		GetActor:          get("users/show.json"),
		GetFriends:        withID(get("friends/list.json"), "user_id"),
		GetFollowers:      withID(get("followers/list.json"), "user_id"),
		VerifyCredentials: get("account/verify_credentials.json"),
		UploadMedia:       {Method: http.MethodPost, Path: "https://upload.twitter.com/1.1/media/upload.json", Absolute: true},
		GetConfig:         get("help/configuration.json"),
		RateLimitStatus:   get("application/rate_limit_status.json"),
	}
}

func twitter10Routes() Routes {
	return Routes{
		HomeTimeline:      get("statuses/home_timeline.json"),
		MentionsTimeline:  get("statuses/mentions.json"),
		PublicTimeline:    get("statuses/public_timeline.json"),
		ActorTimeline:     withID(get("statuses/user_timeline.json"), "user_id"),
		LikedTimeline:     withID(get("favorites.json"), "id"),
		GetNote:           get("statuses/show/{id}.json"),
		UpdateNote:        post("statuses/update.json"),
		DeleteNote:        post("statuses/destroy/{id}.json"),
		Like:              post("favorites/create/{id}.json"),
		UndoLike:          post("favorites/destroy/{id}.json"),
		Announce:          post("statuses/retweet/{id}.json"),
		Follow:            withID(post("friendships/create.json"), "user_id"),
		UndoFollow:        withID(post("friendships/destroy.json"), "user_id"),
		GetActor:          get("users/show.json"),
		GetFriends:        withID(get("statuses/friends.json"), "user_id"),
		GetFollowers:      withID(get("statuses/followers.json"), "user_id"),
		VerifyCredentials: get("account/verify_credentials.json"),
		RateLimitStatus:   get("account/rate_limit_status.json"),
	}
}

func gnuSocialRoutes() Routes {
	routes := twitter10Routes()
	routes[SearchNotes] = get("search.json")
	routes[GetConversation] = Route{Method: http.MethodGet, Path: "statusnet/conversation/{id}.json", ByConversation: true}
	routes[UploadMedia] = post("statusnet/media/upload")
	routes[GetConfig] = get("statusnet/config.json")
	return routes
}

func newTwitterBackend(origin *domain.Origin, account *domain.Actor) Backend {
	b := Backend{
		Mapper:  &twitterMapper{origin: origin, account: account},
		Encoder: twitterEncoder{origin: origin},
		Paging:  idPaging{limitParam: "count"},
	}
	switch origin.Type {
	case domain.OriginTwitter10:
		b.Name, b.APIBase, b.Routes = "twitter10", "1/", twitter10Routes()
	case domain.OriginGNUSocial:
		b.Name, b.APIBase, b.Routes = "gnusocial", "api/", gnuSocialRoutes()
		b.Mapper = &twitterMapper{origin: origin, account: account, gnuSocial: true}
	default:
		b.Name, b.APIBase, b.Routes = "twitter11", "1.1/", twitter11Routes()
	}
	return b
}
