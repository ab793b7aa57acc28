package identity

import (
	"sync"

	"github.com/andstatus/fedsync/domain"
)

// Users is the set of accounts the local user owns, one or more per origin.
type Users struct {
	mu       sync.RWMutex
	accounts []*domain.Actor
}

func NewUsers(accounts ...*domain.Actor) *Users {
	u := &Users{}
	for _, a := range accounts {
		u.Add(a)
	}
	return u
}

func (u *Users) Add(account *domain.Actor) {
	if account.IsEmpty() {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, existing := range u.accounts {
		if existing.Equals(account) {
			u.accounts[i] = account
			return
		}
	}
	u.accounts = append(u.accounts, account)
}

func (u *Users) Accounts() []*domain.Actor {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]*domain.Actor(nil), u.accounts...)
}

// Account returns the first account of the origin.
func (u *Users) Account(originID int64) *domain.Actor {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, a := range u.accounts {
		if a.Origin != nil && a.Origin.ID == originID {
			return a
		}
	}
	return nil
}

// IsMe reports whether actor is one of the accounts.
func (u *Users) IsMe(actor *domain.Actor) bool {
	if u == nil || actor.IsEmpty() {
		return false
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, a := range u.accounts {
		if isSame(a, actor) {
			return true
		}
	}
	return false
}

// MeIn returns the first of actors that is one of the accounts, or nil.
func (u *Users) MeIn(actors []*domain.Actor) *domain.Actor {
	for _, actor := range actors {
		if u.IsMe(actor) {
			return actor
		}
	}
	return nil
}

// isSame matches by local id when both sides have one, as partial actors
// seen in responses often miss the fields Equals looks at first.
func isSame(a, b *domain.Actor) bool {
	if a.ActorID != 0 && b.ActorID != 0 {
		return a.ActorID == b.ActorID
	}
	if !a.Origin.Equals(b.Origin) {
		return false
	}
	switch {
	case a.IsOidReal() && b.IsOidReal():
		return a.OID == b.OID
	case a.IsWebFingerIDValid() && b.IsWebFingerIDValid():
		return a.WebFingerID() == b.WebFingerID()
	}
	return a.Username() != "" && a.Username() == b.Username()
}
