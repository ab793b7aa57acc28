package domain

import (
	"regexp"
	"strings"
)

// OriginType selects the backend family an origin speaks.
type OriginType int

const (
	OriginUnknown OriginType = iota
	OriginTwitter10
	OriginTwitter11
	OriginGNUSocial
	OriginMastodon
	OriginActivityPub
)

var originTypeNames = map[OriginType]string{
	OriginUnknown:     "unknown",
	OriginTwitter10:   "twitter1.0",
	OriginTwitter11:   "twitter",
	OriginGNUSocial:   "gnusocial",
	OriginMastodon:    "mastodon",
	OriginActivityPub: "activitypub",
}

func (t OriginType) String() string { return originTypeNames[t] }

// ParseOriginType accepts the names used in configuration files.
func ParseOriginType(s string) OriginType {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "twitter1.1", "twitter11":
		return OriginTwitter11
	case "twitter10", "twitter1":
		return OriginTwitter10
	case "statusnet", "gnu social", "gnu-social":
		return OriginGNUSocial
	case "pleroma":
		return OriginMastodon
	}
	for t, name := range originTypeNames {
		if name == s {
			return t
		}
	}
	return OriginUnknown
}

var (
	twitterUsernameRegex   = regexp.MustCompile(`^[a-zA-Z_0-9]+$`)
	fediverseUsernameRegex = regexp.MustCompile(`^[a-zA-Z_0-9][a-zA-Z_0-9.\-]*$`)
)

// Origin is one backend instance an account connects to.
type Origin struct {
	ID                 int64
	Name               string
	Type               OriginType
	Host               string
	URL                string
	HTMLContentAllowed bool
}

func (o *Origin) IsValid() bool {
	return o != nil && o.ID != 0 && o.Type != OriginUnknown
}

func (o *Origin) Equals(other *Origin) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.ID == other.ID
}

func (o *Origin) IsUsernameValid(username string) bool {
	if o == nil || username == "" {
		return false
	}
	switch o.Type {
	case OriginTwitter10, OriginTwitter11:
		return twitterUsernameRegex.MatchString(username)
	}
	return fediverseUsernameRegex.MatchString(username)
}

// ShouldStripHTML reports whether note content from this origin is stored as
// plain text.
func (o *Origin) ShouldStripHTML() bool {
	return o == nil || !o.HTMLContentAllowed
}

func (o *Origin) String() string {
	if o == nil {
		return "origin:none"
	}
	return o.Name
}
