package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goware/urlx"
)

var webFingerIDRegex = regexp.MustCompile(`^[_A-Za-z0-9\-+]+(\.[_A-Za-z0-9\-]+)*@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)*(\.[A-Za-z]{2,})$`)

// IsWebFingerIDValid reports whether id looks like user@host.
func IsWebFingerIDValid(id string) bool {
	return webFingerIDRegex.MatchString(id)
}

// Actor is a social-network identity. A nil *Actor means "no actor".
type Actor struct {
	Origin  *Origin
	ActorID int64
	OID     string

	username    string
	webFingerID string
	profileURL  string

	RealName    string
	Summary     string
	Location    string
	HomepageURL string
	AvatarURL   string
	BannerURL   string

	NotesCount     int64
	FavoritesCount int64
	FollowingCount int64
	FollowersCount int64

	CreatedDate        time.Time
	UpdatedDate        time.Time
	AvatarDownloadDate time.Time

	// IsMyFriend is set when the backend tells whether the account follows
	// this actor.
	IsMyFriend TriState

	Endpoints *ActorEndpoints
}

func NewActor(origin *Origin, oid string) *Actor {
	return &Actor{Origin: origin, OID: oid, Endpoints: NewActorEndpoints(nil)}
}

// ActorFromWebFingerID builds a partial actor known only by user@host.
func ActorFromWebFingerID(origin *Origin, webFingerID string) *Actor {
	a := NewActor(origin, "")
	if i := strings.Index(webFingerID, "@"); i > 0 {
		a.username = webFingerID[:i]
	}
	a.SetWebFingerID(webFingerID)
	return a
}

func ActorFromUsername(origin *Origin, username string) *Actor {
	a := NewActor(origin, "")
	a.SetUsername(username)
	return a
}

func (a *Actor) Username() string {
	if a == nil {
		return ""
	}
	return a.username
}

func (a *Actor) WebFingerID() string {
	if a == nil {
		return ""
	}
	return a.webFingerID
}

func (a *Actor) ProfileURL() string {
	if a == nil {
		return ""
	}
	return a.profileURL
}

// SetUsername drops a leading "@" and recomputes the WebFinger id.
func (a *Actor) SetUsername(username string) *Actor {
	a.username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	a.fixWebFingerID()
	return a
}

func (a *Actor) SetProfileURL(profileURL string) *Actor {
	a.profileURL = strings.TrimSpace(profileURL)
	a.fixWebFingerID()
	return a
}

// SetWebFingerID keeps the current value when id is not valid.
func (a *Actor) SetWebFingerID(id string) *Actor {
	id = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "@"))
	if IsWebFingerIDValid(id) {
		a.webFingerID = id
	}
	return a
}

func (a *Actor) fixWebFingerID() {
	if a.username == "" {
		return
	}
	if strings.Contains(a.username, "@") {
		a.SetWebFingerID(a.username)
		return
	}
	host := hostOf(a.profileURL)
	if host == "" && a.Origin != nil {
		host = a.Origin.Host
	}
	if host != "" {
		a.SetWebFingerID(a.username + "@" + host)
	}
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := urlx.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Host is the domain part of the WebFinger id, the profile host, or the
// origin host, whichever is known first.
func (a *Actor) Host() string {
	if a == nil {
		return ""
	}
	if i := strings.LastIndex(a.webFingerID, "@"); i >= 0 {
		return a.webFingerID[i+1:]
	}
	if h := hostOf(a.profileURL); h != "" {
		return h
	}
	if a.Origin != nil {
		return a.Origin.Host
	}
	return ""
}

func (a *Actor) IsWebFingerIDValid() bool {
	return a != nil && IsWebFingerIDValid(a.webFingerID)
}

func (a *Actor) IsUsernameValid() bool {
	return a != nil && a.Origin.IsUsernameValid(a.username)
}

func (a *Actor) IsOidReal() bool {
	return a != nil && IsRealOid(a.OID)
}

// IsEmpty reports whether the actor carries no identifying information.
func (a *Actor) IsEmpty() bool {
	return a == nil ||
		(a.ActorID == 0 && !a.IsOidReal() && !a.IsWebFingerIDValid() && !a.IsUsernameValid())
}

func (a *Actor) NonEmpty() bool { return !a.IsEmpty() }

func (a *Actor) IsFullyDefined() bool {
	return a != nil && a.ActorID != 0 && a.IsOidReal() && a.IsUsernameValid() && a.IsWebFingerIDValid()
}

// TempOid is derived from the WebFinger id, falling back to the username.
func (a *Actor) TempOid() string {
	if a.IsWebFingerIDValid() {
		return ToTempOid(a.webFingerID)
	}
	return ToTempOid(a.Username())
}

// AltTempOid is the username-only variant, used when it differs from TempOid.
func (a *Actor) AltTempOid() string {
	if a == nil || a.username == "" || a.username == a.webFingerID {
		return ""
	}
	return ToTempOid(a.username)
}

// Equals compares by local id, then real oid, then WebFinger id, then
// username, within one origin.
func (a *Actor) Equals(b *Actor) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if !a.Origin.Equals(b.Origin) {
		return false
	}
	switch {
	case a.ActorID != 0:
		return a.ActorID == b.ActorID
	case a.IsOidReal():
		return a.OID == b.OID
	case a.IsWebFingerIDValid():
		return a.webFingerID == b.webFingerID
	}
	return a.username == b.username
}

// Key is a map key consistent with Equals.
func (a *Actor) Key() string {
	if a == nil {
		return "actor:none"
	}
	origin := "0"
	if a.Origin != nil {
		origin = strconv.FormatInt(a.Origin.ID, 10)
	}
	switch {
	case a.ActorID != 0:
		return origin + ":id:" + strconv.FormatInt(a.ActorID, 10)
	case a.IsOidReal():
		return origin + ":oid:" + a.OID
	case a.IsWebFingerIDValid():
		return origin + ":wf:" + a.webFingerID
	}
	return origin + ":u:" + a.username
}

// IsBetterToCacheThan decides whether a should replace other in a cache.
func (a *Actor) IsBetterToCacheThan(other *Actor) bool {
	if a == other || a.IsEmpty() {
		return false
	}
	if other.IsEmpty() || (a.IsFullyDefined() && !other.IsFullyDefined()) {
		return true
	}
	if !a.IsFullyDefined() && other.IsFullyDefined() {
		return false
	}
	if a.ActorID != other.ActorID || !a.Origin.Equals(other.Origin) {
		return false
	}
	if !a.UpdatedDate.Equal(other.UpdatedDate) {
		return a.UpdatedDate.After(other.UpdatedDate)
	}
	if !a.AvatarDownloadDate.Equal(other.AvatarDownloadDate) {
		return a.AvatarDownloadDate.After(other.AvatarDownloadDate)
	}
	return a.NotesCount > other.NotesCount
}

// NamesString is a short human readable identity.
func (a *Actor) NamesString() string {
	if a.IsEmpty() {
		return "(empty)"
	}
	switch {
	case a.IsWebFingerIDValid():
		return a.webFingerID
	case a.username != "":
		return a.username
	}
	return a.OID
}

func (a *Actor) String() string {
	if a == nil {
		return "Actor:EMPTY"
	}
	return fmt.Sprintf("Actor{id:%d oid:%q username:%q webfinger:%q origin:%s}",
		a.ActorID, a.OID, a.username, a.webFingerID, a.Origin)
}

// AddEndpoint records a typed url, creating the endpoints holder on demand.
func (a *Actor) AddEndpoint(t EndpointType, url string) *Actor {
	if a.Endpoints == nil {
		a.Endpoints = NewActorEndpoints(nil)
	}
	a.Endpoints.Add(t, url)
	return a
}
