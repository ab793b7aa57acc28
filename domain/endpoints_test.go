package domain

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointsAddThenLoaded(t *testing.T) {
	e := NewActorEndpoints(func() map[EndpointType][]string {
		t.Fatal("loader must not run once endpoints were added")
		return nil
	})
	e.Add(EndpointInbox, "https://example.com/inbox")
	e.Add(EndpointInbox, "https://example.com/inbox")
	e.Add(EndpointOutbox, "")
	e.MarkLoaded()

	assert.Equal(t, []string{"https://example.com/inbox"}, e.Find(EndpointInbox))
	assert.Empty(t, e.Find(EndpointOutbox))
	assert.Equal(t, endpointsLoaded, e.state.Load())
}

func TestEndpointsLazyLoadRunsOnce(t *testing.T) {
	var calls atomic.Int32
	e := NewActorEndpoints(func() map[EndpointType][]string {
		calls.Add(1)
		return map[EndpointType][]string{EndpointOutbox: {"https://example.com/outbox"}}
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Find(EndpointOutbox)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "https://example.com/outbox", e.FindFirst(EndpointOutbox))
	assert.False(t, e.IsEmpty())
}

func TestEndpointsNil(t *testing.T) {
	var e *ActorEndpoints
	assert.Nil(t, e.Find(EndpointInbox))
	assert.Equal(t, "", e.FindFirst(EndpointInbox))
	assert.True(t, e.IsEmpty())
}
