// Package worker keeps the stored timelines of every account in sync and
// sends queued commands to the backends.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andstatus/fedsync/connection"
	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/merge"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const commandQueueInterval = 10 * time.Second

// Account is a connection together with the timelines synced for it.
type Account struct {
	Conn     connection.Connection
	Routines []connection.ApiRoutine
}

// ID is the local id of the account actor.
func (a *Account) ID() int64 { return a.Conn.Account().ActorID }

type Worker struct {
	db        *db.DB
	updater   *merge.Updater
	pageLimit int

	mu       sync.RWMutex
	accounts map[int64]*Account
}

func New(database *db.DB, updater *merge.Updater, pageLimit int) *Worker {
	return &Worker{
		db:        database,
		updater:   updater,
		pageLimit: pageLimit,
		accounts:  make(map[int64]*Account),
	}
}

// AddAccount stores the account actor and registers it as one of the local
// user's accounts. Without routines the supported default timelines are
// synced.
func (w *Worker) AddAccount(ctx context.Context, conn connection.Connection, routines ...connection.ApiRoutine) (*Account, error) {
	account := conn.Account()
	id, err := w.updater.SaveActor(ctx, account)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, errors.Errorf("account %s has no identity", account.NamesString())
	}
	w.updater.Users().Add(account)

	if len(routines) == 0 {
		routines = connection.TimelineRoutines
	}
	acc := &Account{Conn: conn}
	for _, r := range routines {
		if conn.IsAPISupported(r) {
			acc.Routines = append(acc.Routines, r)
		} else {
			log.Debugf("Worker: %s does not support %s", account.NamesString(), r)
		}
	}

	w.mu.Lock()
	w.accounts[id] = acc
	w.mu.Unlock()
	log.Infof("Worker: added account %s (%d) syncing %v", account.NamesString(), id, acc.Routines)
	return acc, nil
}

func (w *Worker) Account(id int64) *Account {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.accounts[id]
}

// Accounts returns the registered accounts ordered by id.
func (w *Worker) Accounts() []*Account {
	w.mu.RLock()
	accounts := make([]*Account, 0, len(w.accounts))
	for _, acc := range w.accounts {
		accounts = append(accounts, acc)
	}
	w.mu.RUnlock()
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID() < accounts[j].ID() })
	return accounts
}

// Start syncs every interval and drains the command queue until ctx is
// cancelled. It returns at once.
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	log.Infof("Starting sync worker, interval %s", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		w.SyncAll(ctx)
		for {
			select {
			case <-ctx.Done():
				log.Info("Worker: sync stopped")
				return
			case <-ticker.C:
				w.SyncAll(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(commandQueueInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("Worker: command queue stopped")
				return
			case <-ticker.C:
				w.ProcessCommandQueue(ctx)
			}
		}
	}()
}

// SyncAll runs one sync pass over every timeline of every account and
// returns the number of items read.
func (w *Worker) SyncAll(ctx context.Context) int {
	total := 0
	for _, acc := range w.Accounts() {
		for _, routine := range acc.Routines {
			if ctx.Err() != nil {
				return total
			}
			n, err := w.SyncTimeline(ctx, acc, routine)
			total += n
			if err != nil {
				log.Warnf("Worker: sync of %s %s failed: %v", acc.Conn.Account().NamesString(), routine, err)
			}
		}
	}
	return total
}
