// Package identity matches actors seen in backend responses to the actors
// already stored, and tells which of them are the local user's accounts.
package identity

import (
	"context"

	"github.com/andstatus/fedsync/domain"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ActorStore answers the lookups the resolver needs. Each method returns 0
// when nothing matches.
type ActorStore interface {
	ActorIDByOID(ctx context.Context, originID int64, oid string) (int64, error)
	ActorIDByWebFingerID(ctx context.Context, originID int64, webFingerID string) (int64, error)
	ActorIDByUsername(ctx context.Context, originID int64, username string) (int64, error)
}

type Resolver struct {
	store ActorStore
	cache *Cache
}

func NewResolver(store ActorStore, cache *Cache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

func (r *Resolver) Cache() *Cache { return r.cache }

// LookupActorID finds the local id of actor by real oid, then WebFinger id,
// then username, then the temporary oids, and stores it in actor.ActorID.
func (r *Resolver) LookupActorID(ctx context.Context, actor *domain.Actor) (int64, error) {
	if actor.IsEmpty() || actor.Origin == nil {
		return 0, nil
	}
	if actor.ActorID != 0 {
		return actor.ActorID, nil
	}
	originID := actor.Origin.ID

	type step struct {
		by    string
		value string
		fn    func(context.Context, int64, string) (int64, error)
	}
	var steps []step
	if actor.IsOidReal() {
		steps = append(steps, step{"oid", actor.OID, r.store.ActorIDByOID})
	}
	if actor.IsWebFingerIDValid() {
		steps = append(steps, step{"webfinger", actor.WebFingerID(), r.store.ActorIDByWebFingerID})
	}
	if actor.IsUsernameValid() {
		steps = append(steps, step{"username", actor.Username(), r.store.ActorIDByUsername})
	}
	temp := actor.TempOid()
	if temp != "" {
		steps = append(steps, step{"temp oid", temp, r.store.ActorIDByOID})
	}
	if alt := actor.AltTempOid(); alt != "" && alt != temp {
		steps = append(steps, step{"alt temp oid", alt, r.store.ActorIDByOID})
	}

	for _, s := range steps {
		id, err := s.fn(ctx, originID, s.value)
		if err != nil {
			return 0, errors.Wrapf(err, "lookup actor by %s %q", s.by, s.value)
		}
		if id != 0 {
			log.Debugf("Identity: %s found by %s as %d", actor.NamesString(), s.by, id)
			actor.ActorID = id
			return id, nil
		}
	}
	return 0, nil
}

// Known returns the cached instance for a resolved actor, or actor itself.
func (r *Resolver) Known(actor *domain.Actor) *domain.Actor {
	if actor == nil || actor.ActorID == 0 {
		return actor
	}
	if cached := r.cache.Get(actor.ActorID); cached != nil {
		return cached
	}
	return actor
}
