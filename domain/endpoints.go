package domain

import (
	"sync"
	"sync/atomic"
)

// EndpointType names a typed URL an actor exposes.
type EndpointType int

const (
	EndpointInbox EndpointType = iota + 1
	EndpointOutbox
	EndpointProfile
	EndpointBanner
	EndpointFollowers
	EndpointFollowing
	EndpointLiked
	EndpointSharedInbox
	EndpointUploadMedia
)

var endpointNames = map[EndpointType]string{
	EndpointInbox:       "inbox",
	EndpointOutbox:      "outbox",
	EndpointProfile:     "profile",
	EndpointBanner:      "banner",
	EndpointFollowers:   "followers",
	EndpointFollowing:   "following",
	EndpointLiked:       "liked",
	EndpointSharedInbox: "sharedInbox",
	EndpointUploadMedia: "uploadMedia",
}

func (t EndpointType) String() string { return endpointNames[t] }

const (
	endpointsEmpty int32 = iota
	endpointsAdding
	endpointsLazyLoad
	endpointsLoaded
)

// EndpointsLoader reads stored endpoints of an actor.
type EndpointsLoader func() map[EndpointType][]string

// ActorEndpoints holds typed endpoint URLs. Its state moves EMPTY -> ADDING
// -> LOADED when filled from a network response, or EMPTY -> LAZYLOAD ->
// LOADED when read from storage; only one goroutine runs the lazy load.
type ActorEndpoints struct {
	state  atomic.Int32
	loader EndpointsLoader

	mu   sync.RWMutex
	urls map[EndpointType][]string
}

func NewActorEndpoints(loader EndpointsLoader) *ActorEndpoints {
	return &ActorEndpoints{loader: loader, urls: make(map[EndpointType][]string)}
}

// Add appends a url unless it is empty or already present.
func (e *ActorEndpoints) Add(t EndpointType, url string) *ActorEndpoints {
	if url == "" {
		return e
	}
	e.state.CompareAndSwap(endpointsEmpty, endpointsAdding)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range e.urls[t] {
		if u == url {
			return e
		}
	}
	e.urls[t] = append(e.urls[t], url)
	return e
}

// MarkLoaded is called once added endpoints were stored.
func (e *ActorEndpoints) MarkLoaded() {
	e.state.CompareAndSwap(endpointsAdding, endpointsLoaded)
}

func (e *ActorEndpoints) lazyLoad() {
	if e.loader == nil || !e.state.CompareAndSwap(endpointsEmpty, endpointsLazyLoad) {
		return
	}
	loaded := e.loader()
	e.mu.Lock()
	for t, urls := range loaded {
		e.urls[t] = append(e.urls[t], urls...)
	}
	e.mu.Unlock()
	e.state.Store(endpointsLoaded)
}

func (e *ActorEndpoints) Find(t EndpointType) []string {
	if e == nil {
		return nil
	}
	e.lazyLoad()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.urls[t]...)
}

// FindFirst returns the first url of the type or "".
func (e *ActorEndpoints) FindFirst(t EndpointType) string {
	if urls := e.Find(t); len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// All returns a copy of every known endpoint.
func (e *ActorEndpoints) All() map[EndpointType][]string {
	if e == nil {
		return nil
	}
	e.lazyLoad()
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[EndpointType][]string, len(e.urls))
	for t, urls := range e.urls {
		out[t] = append([]string(nil), urls...)
	}
	return out
}

func (e *ActorEndpoints) IsEmpty() bool {
	return len(e.All()) == 0
}
