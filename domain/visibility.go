package domain

import "strings"

// Visibility classifies who may see a note.
type Visibility int

const (
	VisibilityUnknown Visibility = iota
	VisibilityPublicAndFollowers
	VisibilityPublic
	VisibilityFollowers
	VisibilityPrivate
)

func (v Visibility) IsPublic() bool {
	return v == VisibilityPublic || v == VisibilityPublicAndFollowers
}

func (v Visibility) IsFollowers() bool {
	return v == VisibilityFollowers || v == VisibilityPublicAndFollowers
}

func (v Visibility) IsPrivate() bool { return v == VisibilityPrivate }

func (v Visibility) IsKnown() bool { return v != VisibilityUnknown }

// Add merges two classifications; public and followers flags accumulate.
func (v Visibility) Add(other Visibility) Visibility {
	switch {
	case v == other, !other.IsKnown():
		return v
	case !v.IsKnown():
		return other
	}
	public := v.IsPublic() || other.IsPublic()
	followers := v.IsFollowers() || other.IsFollowers()
	switch {
	case public && followers:
		return VisibilityPublicAndFollowers
	case public:
		return VisibilityPublic
	case followers:
		return VisibilityFollowers
	}
	return VisibilityPrivate
}

func (v Visibility) String() string {
	switch v {
	case VisibilityPublicAndFollowers:
		return "public_and_followers"
	case VisibilityPublic:
		return "public"
	case VisibilityFollowers:
		return "followers"
	case VisibilityPrivate:
		return "private"
	}
	return "unknown"
}

func ParseVisibility(s string) Visibility {
	for v := VisibilityUnknown; v <= VisibilityPrivate; v++ {
		if strings.EqualFold(v.String(), s) {
			return v
		}
	}
	return VisibilityUnknown
}
