package activitypub

import (
	"context"
	"strings"
	"time"

	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/util"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ActorStaleAfter is how long a fetched actor is served from memory.
const ActorStaleAfter = 24 * time.Hour

// Fetcher performs an authenticated GET returning a JSON object.
type Fetcher interface {
	GetJSON(ctx context.Context, url string) (util.JSONObject, error)
}

// ActorFetcher resolves actor documents, keeping recently fetched ones.
type ActorFetcher struct {
	fetcher Fetcher
	mapper  *Mapper
	cache   *cache.Cache
}

func NewActorFetcher(fetcher Fetcher, mapper *Mapper) *ActorFetcher {
	return &ActorFetcher{
		fetcher: fetcher,
		mapper:  mapper,
		cache:   cache.New(ActorStaleAfter, time.Hour),
	}
}

// FetchActor fetches an actor from its server, bypassing the cache.
func (f *ActorFetcher) FetchActor(ctx context.Context, actorURI string) (*domain.Actor, error) {
	obj, err := f.fetcher.GetJSON(ctx, actorURI)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch actor %s", actorURI)
	}

	// Validate required fields
	if util.FirstString(obj, "id") == "" || util.FirstString(obj, "inbox") == "" {
		return nil, errors.Wrapf(ErrNotAnObject, "actor %s missing required fields", actorURI)
	}

	actor, err := f.mapper.Actor(obj)
	if err != nil {
		return nil, err
	}
	f.cache.SetDefault(actorURI, actor)
	log.Debugf("Actors: Fetched %s", actor.NamesString())
	return actor, nil
}

// GetOrFetchActor returns a cached actor unless it is stale.
func (f *ActorFetcher) GetOrFetchActor(ctx context.Context, actorURI string) (*domain.Actor, error) {
	if cached, ok := f.cache.Get(actorURI); ok {
		return cached.(*domain.Actor), nil
	}
	return f.FetchActor(ctx, actorURI)
}

// extractUsername extracts username from various URI formats
// Examples:
// - "https://example.com/users/alice" -> "alice"
// - "https://example.com/@alice" -> "alice"
func extractUsername(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	parts := strings.Split(uri, "/")
	if len(parts) > 0 {
		username := parts[len(parts)-1]
		// Remove @ prefix if present
		return strings.TrimPrefix(username, "@")
	}
	return ""
}
