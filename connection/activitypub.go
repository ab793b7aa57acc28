package connection

import (
	"context"
	"net/http"
	"net/url"

	"github.com/andstatus/fedsync/activitypub"
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
)

// apMapper adapts the Activity Streams mapper to list responses.
type apMapper struct {
	*activitypub.Mapper
}

func (m apMapper) collection(resp *Response) (*activitypub.Collection, error) {
	obj, err := resp.JSONObject()
	if err != nil {
		return nil, err
	}
	c := activitypub.ParseCollection(obj)
	if c == nil {
		return nil, errors.New("not a collection")
	}
	return c, nil
}

func (m apMapper) Timeline(resp *Response, _ ApiRoutine) (*Page, error) {
	c, err := m.collection(resp)
	if err != nil {
		return nil, err
	}
	return activitypub.PageFrom(c, activitypub.MapObjects(c, m.Activity)), nil
}

func (m apMapper) Actors(resp *Response, _ ApiRoutine) ([]*domain.Actor, error) {
	c, err := m.collection(resp)
	if err != nil {
		return nil, err
	}
	fromID := func(id string) (*domain.Actor, error) { return m.ActorFromRef(id), nil }
	return activitypub.MapAll(c, m.Actor, fromID), nil
}

func (m apMapper) Config(util.JSONObject) *OriginConfig {
	return &OriginConfig{TextLimit: 5000}
}

// apEncoder posts client-to-server activities to the account's outbox.
type apEncoder struct {
	account *domain.Actor
}

func (e apEncoder) post(activity util.JSONObject) *Request {
	return &Request{Method: http.MethodPost, JSON: activity}
}

func (e apEncoder) Note(note *domain.Note, mediaIDs []string) *Request {
	withMedia := *note
	for _, id := range mediaIDs {
		withMedia.Attachments = withMedia.Attachments.Add(domain.NewAttachment(id, ""))
	}
	followers := e.account.Endpoints.FindFirst(domain.EndpointFollowers)
	if domain.IsRealOid(note.OID) {
		return e.post(activitypub.NewUpdate(&withMedia, e.account.OID, followers))
	}
	return e.post(activitypub.NewCreate(&withMedia, e.account.OID, followers))
}

func (e apEncoder) Action(routine ApiRoutine, oid string) *Request {
	actor := e.account.OID
	switch routine {
	case Like:
		return e.post(activitypub.NewLike(actor, oid))
	case UndoLike:
		return e.post(activitypub.NewUndo(actor, activitypub.NewLike(actor, oid)))
	case Announce:
		return e.post(activitypub.NewAnnounce(actor, oid))
	case UndoAnnounce:
		return e.post(activitypub.NewUndo(actor, activitypub.NewAnnounce(actor, oid)))
	case Follow:
		return e.post(activitypub.NewFollow(actor, oid))
	case UndoFollow:
		return e.post(activitypub.NewUndo(actor, activitypub.NewFollow(actor, oid)))
	case DeleteNote:
		return e.post(activitypub.NewDelete(actor, oid))
	}
	return nil
}

func (e apEncoder) ActorLookup(actor *domain.Actor) (string, url.Values) {
	if actor.IsOidReal() {
		return actor.OID, nil
	}
	return "", nil
}

func (e apEncoder) MediaField() string { return "file" }

func outbox(method string) Route {
	return Route{Method: method, Endpoint: domain.EndpointOutbox}
}

func activityPubRoutes() Routes {
	byID := Route{Method: http.MethodGet, Path: "{id}"}
	return Routes{
		HomeTimeline:      {Method: http.MethodGet, Endpoint: domain.EndpointInbox},
		ActorTimeline:     outbox(http.MethodGet),
		LikedTimeline:     {Method: http.MethodGet, Endpoint: domain.EndpointLiked},
		GetNote:           byID,
		GetActor:          byID,
		GetFriends:        {Method: http.MethodGet, Endpoint: domain.EndpointFollowing},
		GetFollowers:      {Method: http.MethodGet, Endpoint: domain.EndpointFollowers},
		VerifyCredentials: byID,
		UpdateNote:        outbox(http.MethodPost),
		DeleteNote:        outbox(http.MethodPost),
		Like:              outbox(http.MethodPost),
		UndoLike:          outbox(http.MethodPost),
		Announce:          outbox(http.MethodPost),
		UndoAnnounce:      outbox(http.MethodPost),
		Follow:            outbox(http.MethodPost),
		UndoFollow:        outbox(http.MethodPost),
		UploadMedia:       {Method: http.MethodPost, Endpoint: domain.EndpointUploadMedia},
	}
}

func newActivityPubBackend(origin *domain.Origin, account *domain.Actor) Backend {
	return Backend{
		Name:    "activitypub",
		Accept:  activitypub.ContentType,
		Routes:  activityPubRoutes(),
		Mapper:  apMapper{activitypub.NewMapper(origin, account)},
		Encoder: apEncoder{account: account},
		Paging:  collectionPaging{},
	}
}

const fetchAccept = activitypub.ContentType + ", application/ld+json, application/jrd+json, application/json"

// transportFetcher lets the activitypub package fetch through a Transport.
type transportFetcher struct {
	transport Transport
}

func (f transportFetcher) GetJSON(ctx context.Context, u string) (util.JSONObject, error) {
	resp, err := f.transport.Do(ctx, &Request{Routine: GetActor, URL: u, Accept: fetchAccept})
	if err != nil {
		return nil, err
	}
	obj, err := resp.JSONObject()
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Routine: GetActor, URL: u, Err: err}
	}
	return obj, nil
}
