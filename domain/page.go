package domain

// InputPage is one page of items read from a backend together with the
// cursors around it.
type InputPage[T any] struct {
	Items           []T
	ThisPosition    TimelinePosition
	FirstPosition   TimelinePosition
	YoungerPosition TimelinePosition
	OlderPosition   TimelinePosition
	AllLoaded       bool
}

func NewInputPage[T any](items []T) *InputPage[T] {
	return &InputPage[T]{Items: items}
}

func (p *InputPage[T]) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

func (p *InputPage[T]) IsEmpty() bool { return p.Len() == 0 }
