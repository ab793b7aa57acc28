package domain

// TimelinePosition is an opaque backend cursor.
type TimelinePosition struct {
	value string
}

var EmptyPosition = TimelinePosition{}

func NewPosition(s string) TimelinePosition {
	return TimelinePosition{value: s}
}

func (p TimelinePosition) String() string { return p.value }

func (p TimelinePosition) IsEmpty() bool { return p.value == "" }

// IsTemp reports whether the position was synthesized locally. Such a
// position must never be stored as a sync cursor.
func (p TimelinePosition) IsTemp() bool { return IsTempOid(p.value) }

// IsPresent reports whether the position can be used as a durable cursor.
func (p TimelinePosition) IsPresent() bool { return !p.IsEmpty() && !p.IsTemp() }
