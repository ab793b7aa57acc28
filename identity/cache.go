package identity

import (
	"strconv"
	"time"

	"github.com/andstatus/fedsync/domain"
	"github.com/patrickmn/go-cache"
)

// Cache holds actors by local id. Concurrent writers race; the better
// defined actor usually wins, which is good enough for display and lookups.
type Cache struct {
	actors *cache.Cache
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{actors: cache.New(ttl, ttl*2)}
}

func key(id int64) string { return strconv.FormatInt(id, 10) }

// Get returns nil for unknown or expired ids.
func (c *Cache) Get(id int64) *domain.Actor {
	if c == nil || id == 0 {
		return nil
	}
	if v, ok := c.actors.Get(key(id)); ok {
		return v.(*domain.Actor)
	}
	return nil
}

// Put stores actor unless the cached instance is better, and returns the
// instance that is cached afterwards.
func (c *Cache) Put(actor *domain.Actor) *domain.Actor {
	if c == nil || actor == nil || actor.ActorID == 0 {
		return actor
	}
	existing := c.Get(actor.ActorID)
	if existing != nil && !actor.IsBetterToCacheThan(existing) {
		return existing
	}
	c.actors.SetDefault(key(actor.ActorID), actor)
	return actor
}

func (c *Cache) Delete(id int64) {
	if c != nil {
		c.actors.Delete(key(id))
	}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.actors.ItemCount()
}
