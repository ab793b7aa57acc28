package connection

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andstatus/fedsync/activitypub"
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	log "github.com/sirupsen/logrus"
)

// Client is the Connection of one account, composed of a transport and the
// strategies of its backend.
type Client struct {
	origin    *domain.Origin
	account   *domain.Actor
	transport Transport
	backend   Backend
	// actors caches fetched actor documents of ActivityPub origins.
	actors *activitypub.ActorFetcher
}

var _ Connection = (*Client)(nil)

func NewClient(origin *domain.Origin, account *domain.Actor, transport Transport, backend Backend) *Client {
	return &Client{origin: origin, account: account, transport: transport, backend: backend}
}

// New returns the connection of account, choosing the backend by the origin
// type.
func New(origin *domain.Origin, account *domain.Actor, transport Transport) (*Client, error) {
	if !origin.IsValid() {
		return nil, &Error{Kind: KindUnsupported, Message: "invalid origin " + origin.String()}
	}
	var backend Backend
	switch origin.Type {
	case domain.OriginTwitter10, domain.OriginTwitter11, domain.OriginGNUSocial:
		backend = newTwitterBackend(origin, account)
	case domain.OriginMastodon:
		backend = newMastodonBackend(origin, account)
	case domain.OriginActivityPub:
		backend = newActivityPubBackend(origin, account)
	default:
		return nil, &Error{Kind: KindUnsupported, Message: "no backend for " + origin.Type.String()}
	}
	c := NewClient(origin, account, transport, backend)
	if origin.Type == domain.OriginActivityPub {
		c.actors = activitypub.NewActorFetcher(transportFetcher{transport}, activitypub.NewMapper(origin, account))
	}
	return c, nil
}

func (c *Client) Origin() *domain.Origin { return c.origin }

func (c *Client) Account() *domain.Actor { return c.account }

func (c *Client) Backend() Backend { return c.backend }

func (c *Client) IsAPISupported(routine ApiRoutine) bool {
	_, ok := c.backend.Routes[routine]
	return ok
}

func (c *Client) baseURL() string {
	base := c.origin.URL
	if base == "" {
		base = "https://" + c.origin.Host + "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + c.backend.APIBase
}

// request resolves the url of a routine for object id and subject actor.
func (c *Client) request(routine ApiRoutine, id string, subject *domain.Actor) (*Request, error) {
	route, ok := c.backend.Routes[routine]
	if !ok {
		return nil, newError(KindUnsupported, routine, nil)
	}
	req := &Request{Routine: routine, Method: route.Method, Form: url.Values{}, Accept: c.backend.Accept}
	for k, vs := range route.Params {
		req.Form[k] = append([]string(nil), vs...)
	}
	switch {
	case route.Endpoint != 0:
		if subject == nil {
			subject = c.account
		}
		req.URL = subject.Endpoints.FindFirst(route.Endpoint)
		if req.URL == "" {
			e := newError(KindUnsupported, routine, nil)
			e.Message = "no " + route.Endpoint.String() + " endpoint for " + subject.NamesString()
			return nil, e
		}
	case route.Path == "{id}":
		req.URL = id
	default:
		path := strings.ReplaceAll(route.Path, "{id}", url.PathEscape(id))
		if route.Absolute {
			req.URL = path
		} else {
			req.URL = c.baseURL() + path
		}
	}
	if route.IDParam != "" && id != "" {
		req.Form.Set(route.IDParam, id)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		var connErr *Error
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, &Error{Kind: KindNetwork, Routine: req.Routine, URL: req.URL, Err: err}
	}
	return resp, nil
}

func (c *Client) object(ctx context.Context, req *Request) (util.JSONObject, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	obj, err := resp.JSONObject()
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Routine: req.Routine, URL: req.URL, Err: err}
	}
	return obj, nil
}

func malformed(routine ApiRoutine, err error) error {
	var connErr *Error
	if errors.As(err, &connErr) {
		return err
	}
	return newError(KindMalformed, routine, err)
}

func (c *Client) Timeline(ctx context.Context, tr TimelineRequest) (*Page, error) {
	subject := tr.Actor
	if subject == nil {
		subject = c.account
	}
	var id string
	if tr.Routine == ActorTimeline || tr.Routine == LikedTimeline {
		id = subject.OID
	}
	req, err := c.request(tr.Routine, id, subject)
	if err != nil {
		return nil, err
	}
	params, pageURL := c.backend.Paging.Params(tr)
	if pageURL != "" {
		req.URL, req.Form = pageURL, url.Values{}
	}
	for k, vs := range params {
		req.Form[k] = vs
	}
	if tr.Query != "" {
		req.Form.Set("q", tr.Query)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	page, err := c.backend.Mapper.Timeline(resp, tr.Routine)
	if err != nil {
		return nil, malformed(tr.Routine, err)
	}
	// Collections often link their first page instead of embedding items.
	if page.IsEmpty() && pageURL == "" && page.FirstPosition.IsPresent() && page.FirstPosition.String() != req.URL {
		first := &Request{Routine: tr.Routine, URL: page.FirstPosition.String(), Accept: c.backend.Accept}
		if resp, err = c.do(ctx, first); err != nil {
			return nil, err
		}
		if page, err = c.backend.Mapper.Timeline(resp, tr.Routine); err != nil {
			return nil, malformed(tr.Routine, err)
		}
	}

	if c.backend.Paging.NewestFirst() {
		reverse(page.Items)
	}
	if tr.Routine == LikedTimeline {
		for i, act := range page.Items {
			page.Items[i] = c.likedBy(subject, act)
		}
	}
	c.backend.Paging.Positions(page, resp, tr)
	log.Debugf("Connection: %s %s read %d items", c.account.NamesString(), tr.Routine, page.Len())
	return page, nil
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

func (c *Client) likedBy(actor *domain.Actor, act *domain.Activity) *domain.Activity {
	like := domain.NewActivity(c.account, domain.ActivityLike)
	like.Actor = actor
	like.UpdatedDate = act.UpdatedDate
	like.SetPosition(act.Position())
	like.SetNote(act.Note())
	like.SetAuthor(act.Author())
	return like
}

func (c *Client) SearchNotes(ctx context.Context, query string, tr TimelineRequest) (*Page, error) {
	tr.Routine = SearchNotes
	tr.Query = query
	return c.Timeline(ctx, tr)
}

func (c *Client) SearchActors(ctx context.Context, query string, limit int) ([]*domain.Actor, error) {
	req, err := c.request(SearchActors, "", nil)
	if err != nil {
		return nil, err
	}
	params, _ := c.backend.Paging.Params(TimelineRequest{Routine: SearchActors, Limit: limit})
	for k, vs := range params {
		req.Form[k] = vs
	}
	req.Form.Set("q", query)
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	actors, err := c.backend.Mapper.Actors(resp, SearchActors)
	if err != nil {
		return nil, malformed(SearchActors, err)
	}
	return actors, nil
}

func (c *Client) GetNote(ctx context.Context, noteOID string) (*domain.Activity, error) {
	req, err := c.request(GetNote, noteOID, nil)
	if err != nil {
		return nil, err
	}
	obj, err := c.object(ctx, req)
	if err != nil {
		return nil, err
	}
	act, err := c.backend.Mapper.Activity(obj)
	if err != nil {
		return nil, malformed(GetNote, err)
	}
	return act, nil
}

// GetConversation returns the notes of the conversation in the order the
// backend lists them.
func (c *Client) GetConversation(ctx context.Context, noteOID string) ([]*domain.Activity, error) {
	id := noteOID
	if route, ok := c.backend.Routes[GetConversation]; ok && route.ByConversation {
		act, err := c.GetNote(ctx, noteOID)
		if err != nil {
			return nil, err
		}
		if id = act.Note().ConversationOID; id == "" {
			return nil, newError(KindNotFound, GetConversation, errors.New("note has no conversation"))
		}
	}
	req, err := c.request(GetConversation, id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	page, err := c.backend.Mapper.Timeline(resp, GetConversation)
	if err != nil {
		return nil, malformed(GetConversation, err)
	}
	return page.Items, nil
}

func (c *Client) GetActor(ctx context.Context, actor *domain.Actor) (*domain.Actor, error) {
	id, params := c.backend.Encoder.ActorLookup(actor)
	if id == "" && params == nil && actor.IsWebFingerIDValid() {
		resolved, err := activitypub.ResolveActorURL(ctx, transportFetcher{c.transport}, actor.WebFingerID())
		if err != nil {
			return nil, &Error{Kind: KindNotFound, Routine: GetActor, Message: actor.WebFingerID(), Err: err}
		}
		id = resolved
	}
	if c.actors != nil && domain.IsRealOid(id) {
		got, err := c.actors.GetOrFetchActor(ctx, id)
		if err != nil {
			return nil, malformed(GetActor, err)
		}
		return got, nil
	}
	req, err := c.request(GetActor, id, actor)
	if err != nil {
		return nil, err
	}
	for k, vs := range params {
		req.Form[k] = vs
	}
	obj, err := c.object(ctx, req)
	if err != nil {
		return nil, err
	}
	got, err := c.backend.Mapper.Actor(obj)
	if err != nil {
		return nil, malformed(GetActor, err)
	}
	return got, nil
}

func (c *Client) GetFriendsOrFollowers(ctx context.Context, routine ApiRoutine, actor *domain.Actor) ([]*domain.Actor, error) {
	if routine != GetFriends && routine != GetFollowers {
		return nil, newError(KindUnsupported, routine, nil)
	}
	if actor == nil {
		actor = c.account
	}
	req, err := c.request(routine, actor.OID, actor)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	actors, err := c.backend.Mapper.Actors(resp, routine)
	if err != nil {
		return nil, malformed(routine, err)
	}
	return actors, nil
}

func (c *Client) VerifyCredentials(ctx context.Context) (*domain.Actor, error) {
	req, err := c.request(VerifyCredentials, c.account.OID, c.account)
	if err != nil {
		return nil, err
	}
	obj, err := c.object(ctx, req)
	if err != nil {
		return nil, err
	}
	actor, err := c.backend.Mapper.Actor(obj)
	if err != nil {
		return nil, malformed(VerifyCredentials, err)
	}
	return actor, nil
}

func mergeBody(req, body *Request) {
	if body == nil {
		return
	}
	if body.Method != "" {
		req.Method = body.Method
	}
	for k, vs := range body.Form {
		req.Form[k] = vs
	}
	req.JSON = body.JSON
	if body.Upload != nil {
		req.Upload = body.Upload
	}
}

// send runs an outgoing routine and returns the decoded response object,
// which is nil when the server answered without a JSON object. The Location
// header is returned for servers that create resources without a body.
func (c *Client) send(ctx context.Context, routine ApiRoutine, id string, body *Request) (util.JSONObject, string, error) {
	req, err := c.request(routine, id, nil)
	if err != nil {
		return nil, "", err
	}
	if req.Method == "" {
		req.Method = http.MethodPost
	}
	mergeBody(req, body)
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, "", err
	}
	location := resp.Header.Get("Location")
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, location, nil
	}
	obj, err := resp.JSONObject()
	if err != nil {
		log.WithError(err).Debugf("Connection: %s answered without an object", routine)
		return nil, location, nil
	}
	return obj, location, nil
}

func (c *Client) UpdateNote(ctx context.Context, note *domain.Note, mediaIDs ...string) (*domain.Activity, error) {
	obj, location, err := c.send(ctx, UpdateNote, "", c.backend.Encoder.Note(note, mediaIDs))
	if err != nil {
		return nil, err
	}
	if obj != nil {
		if act, err := c.backend.Mapper.Activity(obj); err == nil && act.Note().NonEmpty() {
			return act, nil
		}
	}
	// The server created the note without echoing it.
	t := domain.ActivityCreate
	oid := location
	if domain.IsRealOid(note.OID) {
		t = domain.ActivityUpdate
		if oid == "" {
			oid = note.OID
		}
	}
	act := domain.NewNoteActivity(c.account, c.account, t, oid, time.Now().UTC())
	sent := act.Note()
	*sent = *note
	sent.OID = oid
	sent.Status = domain.StatusSending
	if domain.IsRealOid(oid) {
		sent.Status = domain.StatusLoaded
	}
	return act, nil
}

// accountActivity is the result of an action the account performed on a note.
func (c *Client) accountActivity(t domain.ActivityType, noteOID string, obj util.JSONObject) *domain.Activity {
	act := domain.NewActivity(c.account, t)
	act.Actor = c.account
	act.UpdatedDate = time.Now().UTC()
	var inner *domain.Activity
	if obj != nil {
		if mapped, err := c.backend.Mapper.Activity(obj); err == nil {
			inner = mapped
		}
	}
	// Servers answer an undo of a repost with the original status.
	if inner != nil && inner.Type == domain.ActivityAnnounce && t != domain.ActivityAnnounce {
		inner = inner.Activity()
	}
	note := inner.Note()
	if note.IsEmpty() {
		note = domain.NewNote(c.origin, noteOID)
	}
	act.SetNote(note)
	act.SetAuthor(inner.Author())
	return act
}

func (c *Client) noteAction(ctx context.Context, routine ApiRoutine, t domain.ActivityType, noteOID string) (*domain.Activity, error) {
	obj, location, err := c.send(ctx, routine, noteOID, c.backend.Encoder.Action(routine, noteOID))
	if err != nil {
		return nil, err
	}
	act := c.accountActivity(t, noteOID, obj)
	act.OID = location
	return act, nil
}

func (c *Client) Like(ctx context.Context, noteOID string) (*domain.Activity, error) {
	return c.noteAction(ctx, Like, domain.ActivityLike, noteOID)
}

func (c *Client) UndoLike(ctx context.Context, noteOID string) (*domain.Activity, error) {
	return c.noteAction(ctx, UndoLike, domain.ActivityUndoLike, noteOID)
}

func (c *Client) UndoAnnounce(ctx context.Context, noteOID string) (*domain.Activity, error) {
	return c.noteAction(ctx, UndoAnnounce, domain.ActivityUndoAnnounce, noteOID)
}

func (c *Client) DeleteNote(ctx context.Context, noteOID string) (*domain.Activity, error) {
	act, err := c.noteAction(ctx, DeleteNote, domain.ActivityDelete, noteOID)
	if err != nil {
		return nil, err
	}
	deleted := domain.NewNote(c.origin, noteOID)
	deleted.Status = domain.StatusDeleted
	act.SetNote(deleted)
	return act, nil
}

// Announce returns the repost as the server created it, with the original
// note nested.
func (c *Client) Announce(ctx context.Context, noteOID string) (*domain.Activity, error) {
	obj, location, err := c.send(ctx, Announce, noteOID, c.backend.Encoder.Action(Announce, noteOID))
	if err != nil {
		return nil, err
	}
	var inner *domain.Activity
	if obj != nil {
		if act, err := c.backend.Mapper.Activity(obj); err == nil {
			if act.Type == domain.ActivityAnnounce {
				if act.Actor.IsEmpty() {
					act.Actor = c.account
				}
				return act, nil
			}
			if act.Note().NonEmpty() {
				inner = act
			}
		}
	}
	if inner == nil {
		inner = domain.NewActivity(c.account, domain.ActivityUpdate)
		inner.SetNote(domain.NewNote(c.origin, noteOID))
	}
	announce := domain.FromInner(c.account, domain.ActivityAnnounce, inner)
	announce.OID = location
	announce.UpdatedDate = time.Now().UTC()
	return announce, nil
}

func (c *Client) followAction(ctx context.Context, routine ApiRoutine, t domain.ActivityType, actorOID string) (*domain.Activity, error) {
	obj, location, err := c.send(ctx, routine, actorOID, c.backend.Encoder.Action(routine, actorOID))
	if err != nil {
		return nil, err
	}
	var objActor *domain.Actor
	if obj != nil {
		if actor, err := c.backend.Mapper.Actor(obj); err == nil && actor.Username() != "" {
			objActor = actor
		}
	}
	if objActor == nil {
		objActor = domain.NewActor(c.origin, actorOID)
	}
	objActor.IsMyFriend = domain.FromBool(t == domain.ActivityFollow)
	act := domain.NewActivity(c.account, t)
	act.Actor = c.account
	act.OID = location
	act.UpdatedDate = time.Now().UTC()
	act.SetObjActor(objActor)
	return act, nil
}

func (c *Client) Follow(ctx context.Context, actorOID string) (*domain.Activity, error) {
	return c.followAction(ctx, Follow, domain.ActivityFollow, actorOID)
}

func (c *Client) UndoFollow(ctx context.Context, actorOID string) (*domain.Activity, error) {
	return c.followAction(ctx, UndoFollow, domain.ActivityUndoFollow, actorOID)
}

func (c *Client) UploadMedia(ctx context.Context, filename string, content io.Reader) (*UploadedMedia, error) {
	body := &Request{Upload: &Upload{Field: c.backend.Encoder.MediaField(), Filename: filename, Content: content}}
	obj, location, err := c.send(ctx, UploadMedia, "", body)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		if location == "" {
			return nil, newError(KindMalformed, UploadMedia, errors.New("no media id in response"))
		}
		return &UploadedMedia{ID: location, Attachment: domain.NewAttachment(location, domain.MimeTypeFromURL(filename))}, nil
	}
	id := util.FirstString(obj, "media_id_string", "media_id", "id")
	if id == "" {
		return nil, newError(KindMalformed, UploadMedia, errors.New("no media id in response"))
	}
	uri := util.FirstString(obj, "url", "remote_url", "preview_url")
	mime := util.FirstString(obj, "mimetype", "mediaType")
	if mime == "" {
		mime = domain.MimeTypeFromURL(filename)
	}
	media := &UploadedMedia{ID: id, Attachment: domain.NewAttachment(uri, mime)}
	media.Attachment.PreviewURI = util.FirstString(obj, "preview_url")
	return media, nil
}

func (c *Client) GetConfig(ctx context.Context) (*OriginConfig, error) {
	req, err := c.request(GetConfig, "", nil)
	if err != nil {
		return nil, err
	}
	obj, err := c.object(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.backend.Mapper.Config(obj), nil
}

func (c *Client) RateLimitStatus(ctx context.Context) (*RateLimit, error) {
	req, err := c.request(RateLimitStatus, "", nil)
	if err != nil {
		return nil, err
	}
	obj, err := c.object(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseRateLimit(obj), nil
}

// parseRateLimit understands the StatusNet account/rate_limit_status and the
// Twitter application/rate_limit_status shapes.
func parseRateLimit(obj util.JSONObject) *RateLimit {
	if util.Has(obj, "remaining_hits") {
		return &RateLimit{
			Remaining: int(util.FirstInt(obj, "remaining_hits")),
			Limit:     int(util.FirstInt(obj, "hourly_limit")),
			Reset:     time.Unix(util.FirstInt(obj, "reset_time_in_seconds"), 0).UTC(),
		}
	}
	limit := &RateLimit{}
	statuses := util.Object(util.Object(obj, "resources"), "statuses")
	if home := util.Object(statuses, "/statuses/home_timeline"); home != nil {
		limit.Remaining = int(util.FirstInt(home, "remaining"))
		limit.Limit = int(util.FirstInt(home, "limit"))
		limit.Reset = time.Unix(util.FirstInt(home, "reset"), 0).UTC()
	}
	return limit
}
