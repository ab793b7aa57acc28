package connection

import (
	"bytes"
	"net/url"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Route is where a routine lives on a backend.
type Route struct {
	Method string
	// Path is relative to the origin's api base; "{id}" is replaced by the
	// escaped object id. A Path of exactly "{id}" uses the id as the url.
	Path string
	// IDParam, when set, sends the id as this parameter instead.
	IDParam string
	// Endpoint resolves the url from the subject actor's endpoints.
	Endpoint domain.EndpointType
	// Params are sent with every call.
	Params url.Values
	// Absolute marks Path as a full url.
	Absolute bool
	// ByConversation addresses the route by the conversation oid of the
	// note instead of the note oid.
	ByConversation bool
}

// mapItems maps the objects of a list, skipping and logging those that fail.
func mapItems[T any](routine ApiRoutine, items []any, fn func(util.JSONObject) (T, error)) []T {
	out := make([]T, 0, len(items))
	skipped := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		mapped, err := fn(obj)
		if err != nil {
			log.WithError(err).Debugf("Connection: %s skipped an item", routine)
			skipped++
			continue
		}
		out = append(out, mapped)
	}
	if skipped > 0 {
		log.Warnf("Connection: %s read %d items, skipped %d", routine, len(out), skipped)
	}
	return out
}

// listOf returns the array body of resp, or the array under the first
// present key of an object body.
func listOf(resp *Response, keys ...string) ([]any, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) > 0 && body[0] == '[' {
		return resp.JSONArray()
	}
	obj, err := resp.JSONObject()
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if util.Has(obj, k) {
			return util.Array(obj, k), nil
		}
	}
	return nil, errors.Errorf("no list under %v", keys)
}

// Routes maps the routines a backend supports.
type Routes map[ApiRoutine]Route

// Mapper turns backend JSON into the domain model.
type Mapper interface {
	Activity(obj util.JSONObject) (*domain.Activity, error)
	Actor(obj util.JSONObject) (*domain.Actor, error)
	// Timeline maps a list response in backend order.
	Timeline(resp *Response, routine ApiRoutine) (*Page, error)
	Actors(resp *Response, routine ApiRoutine) ([]*domain.Actor, error)
	Config(obj util.JSONObject) *OriginConfig
}

// Encoder builds request bodies for outgoing calls.
type Encoder interface {
	Note(note *domain.Note, mediaIDs []string) *Request
	// Action is the body of like, announce, follow, delete and their undo
	// variants; nil when the route carries everything.
	Action(routine ApiRoutine, oid string) *Request
	// ActorLookup tells how to address actor in GetActor.
	ActorLookup(actor *domain.Actor) (id string, params url.Values)
	MediaField() string
}

// Paging is the cursor dialect of a backend.
type Paging interface {
	// Params adds cursor parameters for req; a non-empty url replaces the
	// route url, as for page links.
	Params(req TimelineRequest) (url.Values, string)
	// Positions fills the cursors of a page whose items are chronological.
	Positions(page *Page, resp *Response, req TimelineRequest)
	NewestFirst() bool
}

// Backend composes the strategies of one backend family.
type Backend struct {
	Name    string
	APIBase string
	// Accept overrides the Accept header of every request.
	Accept  string
	Routes  Routes
	Mapper  Mapper
	Encoder Encoder
	Paging  Paging
}
