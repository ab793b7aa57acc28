package domain

// Audience is the set of recipients of a note plus its visibility.
type Audience struct {
	actors     []*Actor
	visibility Visibility
}

func NewAudience(visibility Visibility) *Audience {
	return &Audience{visibility: visibility}
}

func (a *Audience) Visibility() Visibility {
	if a == nil {
		return VisibilityUnknown
	}
	return a.visibility
}

func (a *Audience) SetVisibility(v Visibility) *Audience {
	a.visibility = v
	return a
}

// AddVisibility merges v into the current classification.
func (a *Audience) AddVisibility(v Visibility) *Audience {
	a.visibility = a.visibility.Add(v)
	return a
}

// Add appends a recipient; an actor equal to a present one replaces it when
// the new instance is better defined.
func (a *Audience) Add(actor *Actor) *Audience {
	if actor.IsEmpty() {
		return a
	}
	for i, existing := range a.actors {
		if existing.Equals(actor) || actor.Equals(existing) {
			if actor.IsBetterToCacheThan(existing) {
				a.actors[i] = actor
			}
			return a
		}
	}
	a.actors = append(a.actors, actor)
	return a
}

// Merge adds recipients and visibility of other.
func (a *Audience) Merge(other *Audience) *Audience {
	if other == nil {
		return a
	}
	for _, actor := range other.actors {
		a.Add(actor)
	}
	a.AddVisibility(other.visibility)
	return a
}

func (a *Audience) Actors() []*Actor {
	if a == nil {
		return nil
	}
	return append([]*Actor(nil), a.actors...)
}

func (a *Audience) Contains(actor *Actor) bool {
	if a == nil || actor.IsEmpty() {
		return false
	}
	for _, existing := range a.actors {
		if existing.Equals(actor) || actor.Equals(existing) {
			return true
		}
	}
	return false
}

func (a *Audience) IsEmpty() bool {
	return a == nil || (len(a.actors) == 0 && !a.visibility.IsKnown())
}
