package domain

import "sync"

// TriState is a boolean that may be not yet known.
type TriState int

const (
	Unknown TriState = iota
	True
	False
)

func FromBool(b bool) TriState {
	if b {
		return True
	}
	return False
}

func (t TriState) Known() bool { return t != Unknown }

// ToBool returns def when the value is unknown.
func (t TriState) ToBool(def bool) bool {
	switch t {
	case True:
		return true
	case False:
		return false
	}
	return def
}

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// LazyTriState computes its value on first use and caches a known result.
// An Unknown result is not cached, so the next Get computes again.
type LazyTriState struct {
	mu      sync.Mutex
	value   TriState
	compute func() TriState
}

func NewLazyTriState(compute func() TriState) *LazyTriState {
	return &LazyTriState{compute: compute}
}

func (l *LazyTriState) Get() TriState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.value.Known() && l.compute != nil {
		l.value = l.compute()
	}
	return l.value
}

// Set overrides the computed value, e.g. after the user toggled it.
func (l *LazyTriState) Set(v TriState) {
	l.mu.Lock()
	l.value = v
	l.mu.Unlock()
}
