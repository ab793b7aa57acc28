package activitypub

import (
	"strings"
	"time"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/pkg/errors"
)

const (
	PublicCollection = "https://www.w3.org/ns/activitystreams#Public"
	ContentType      = "application/activity+json"
	contextURL       = "https://www.w3.org/ns/activitystreams"
)

var (
	actorTypes = map[string]bool{
		"Person": true, "Service": true, "Application": true, "Group": true, "Organization": true,
	}
	noteTypes = map[string]bool{
		"Note": true, "Article": true, "Question": true, "Page": true, "Event": true, "Video": true,
		"Image": true, "Tombstone": true,
	}
)

// ErrNotAnObject is returned when JSON has no usable id or type.
var ErrNotAnObject = errors.New("not an activity streams object")

// Mapper turns Activity Streams JSON into the domain model, as seen by one
// account on one origin.
type Mapper struct {
	Origin  *domain.Origin
	Account *domain.Actor
}

func NewMapper(origin *domain.Origin, account *domain.Actor) *Mapper {
	return &Mapper{Origin: origin, Account: account}
}

func IsPublic(recipient string) bool {
	return recipient == PublicCollection || recipient == "as:Public" || recipient == "Public"
}

// ActorFromRef maps an actor given inline or as a bare id.
func (m *Mapper) ActorFromRef(v any) *domain.Actor {
	obj, id := util.ObjectOrID(v)
	if obj != nil {
		a, err := m.Actor(obj)
		if err == nil {
			return a
		}
	}
	if id == "" {
		return nil
	}
	a := domain.NewActor(m.Origin, id)
	a.SetProfileURL(id)
	if username := extractUsername(id); username != "" && m.Origin.IsUsernameValid(username) {
		a.SetUsername(username)
	}
	return a
}

// Actor maps a Person-like object.
func (m *Mapper) Actor(obj util.JSONObject) (*domain.Actor, error) {
	id := util.FirstString(obj, "id")
	if id == "" {
		return nil, errors.Wrap(ErrNotAnObject, "actor without id")
	}
	a := domain.NewActor(m.Origin, id)
	a.SetProfileURL(firstURL(obj["url"], id))
	username := util.FirstString(obj, "preferredUsername")
	if username == "" {
		username = extractUsername(id)
	}
	a.SetUsername(username)
	a.RealName = util.FirstString(obj, "name")
	a.Summary = util.StripHTML(util.FirstString(obj, "summary"))
	a.AvatarURL = firstURL(obj["icon"], "")
	a.BannerURL = firstURL(obj["image"], "")
	a.CreatedDate = util.ParseDate(util.FirstString(obj, "published"))
	a.UpdatedDate = util.ParseDate(util.FirstString(obj, "updated"))

	a.AddEndpoint(domain.EndpointProfile, a.ProfileURL())
	a.AddEndpoint(domain.EndpointInbox, util.FirstString(obj, "inbox"))
	a.AddEndpoint(domain.EndpointOutbox, util.FirstString(obj, "outbox"))
	a.AddEndpoint(domain.EndpointBanner, a.BannerURL)
	if followers := CollectionFrom(obj["followers"]); followers != nil {
		a.AddEndpoint(domain.EndpointFollowers, followers.ID)
		a.FollowersCount = followers.TotalItems
	}
	if following := CollectionFrom(obj["following"]); following != nil {
		a.AddEndpoint(domain.EndpointFollowing, following.ID)
		a.FollowingCount = following.TotalItems
	}
	a.AddEndpoint(domain.EndpointLiked, util.FirstString(obj, "liked"))
	if endpoints := util.Object(obj, "endpoints"); endpoints != nil {
		a.AddEndpoint(domain.EndpointSharedInbox, util.FirstString(endpoints, "sharedInbox"))
		a.AddEndpoint(domain.EndpointUploadMedia, util.FirstString(endpoints, "uploadMedia"))
	}
	return a, nil
}

// Note maps a Note-like object. The returned activity is an Update by the
// note's author, which is how a bare object observed in a timeline is stored.
func (m *Mapper) Note(obj util.JSONObject) (*domain.Activity, error) {
	id := util.FirstString(obj, "id")
	if id == "" {
		return nil, errors.Wrap(ErrNotAnObject, "note without id")
	}
	author := m.ActorFromRef(obj["attributedTo"])
	updated := util.ParseDate(util.FirstString(obj, "updated", "published"))
	act := domain.NewNoteActivity(m.Account, author, domain.ActivityUpdate, id, updated)

	note := act.Note()
	note.Origin = m.Origin
	note.Status = domain.StatusLoaded
	if util.FirstString(obj, "type") == "Tombstone" {
		note.Status = domain.StatusDeleted
	}
	note.Name = util.FirstString(obj, "name")
	note.Summary = util.FirstString(obj, "summary")
	note.Content = util.FirstString(obj, "content")
	if m.Origin.ShouldStripHTML() {
		note.Content = util.StripHTML(note.Content)
		note.Summary = util.StripHTML(note.Summary)
	}
	note.Sensitive, _ = util.Bool(obj, "sensitive")
	note.URL = firstURL(obj["url"], "")
	note.UpdatedDate = updated
	note.ConversationOID = util.FirstString(obj, "conversation", "context")
	if generator := util.Object(obj, "generator"); generator != nil {
		note.Via = util.FirstString(generator, "name")
	}
	if _, replyID := util.ObjectOrID(obj["inReplyTo"]); replyID != "" {
		note.InReplyTo = m.replyTarget(obj["inReplyTo"], replyID)
	}
	for _, item := range util.Array(obj, "attachment") {
		att, ok := item.(map[string]any)
		if !ok {
			continue
		}
		note.Attachments = note.Attachments.Add(domain.NewAttachment(
			firstURL(att["url"], util.FirstString(att, "href")),
			util.FirstString(att, "mediaType"),
		))
	}
	if replies := CollectionFrom(obj["replies"]); replies != nil {
		note.RepliesCount = replies.TotalItems
	}
	note.SetAudience(m.audience(obj, author))
	return act, nil
}

func (m *Mapper) replyTarget(v any, id string) *domain.Activity {
	if obj, _ := util.ObjectOrID(v); obj != nil {
		if act, err := m.Note(obj); err == nil {
			return act
		}
	}
	act := domain.NewNoteActivity(m.Account, nil, domain.ActivityUpdate, id, time.Time{})
	act.Note().Origin = m.Origin
	return act
}

// audience collects recipients from to, cc, bto, bcc and mention tags.
func (m *Mapper) audience(obj util.JSONObject, author *domain.Actor) *domain.Audience {
	audience := domain.NewAudience(domain.VisibilityUnknown)
	var followersURL string
	if author != nil {
		followersURL = author.Endpoints.FindFirst(domain.EndpointFollowers)
	}
	var public, followers bool
	for _, key := range []string{"to", "cc", "bto", "bcc"} {
		for _, v := range util.Array(obj, key) {
			_, id := util.ObjectOrID(v)
			switch {
			case id == "":
			case IsPublic(id):
				public = true
			case id == followersURL || strings.HasSuffix(id, "/followers"):
				followers = true
			default:
				audience.Add(m.ActorFromRef(v))
			}
		}
	}
	for _, v := range util.Array(obj, "tag") {
		tag, ok := v.(map[string]any)
		if !ok || util.FirstString(tag, "type") != "Mention" {
			continue
		}
		href := util.FirstString(tag, "href")
		if href == "" {
			continue
		}
		actor := m.ActorFromRef(href)
		actor.SetWebFingerID(util.FirstString(tag, "name"))
		audience.Add(actor)
	}

	switch {
	case public && followers:
		audience.SetVisibility(domain.VisibilityPublicAndFollowers)
	case public:
		audience.SetVisibility(domain.VisibilityPublic)
	case followers:
		audience.SetVisibility(domain.VisibilityFollowers)
	case len(audience.Actors()) > 0:
		audience.SetVisibility(domain.VisibilityPrivate)
	}
	return audience
}

// firstURL reads a url that may be a string, a Link object or a list of
// either.
func firstURL(v any, fallback string) string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case map[string]any:
		if u := util.FirstString(t, "href"); u != "" {
			return u
		}
		if u := firstURL(t["url"], ""); u != "" {
			return u
		}
	case []any:
		for _, item := range t {
			if u := firstURL(item, ""); u != "" {
				return u
			}
		}
	}
	return fallback
}
