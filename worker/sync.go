package worker

import (
	"context"
	"time"

	"github.com/andstatus/fedsync/connection"
	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const maxPagesPerSync = 5

// SyncTimeline reads the items younger than the stored cursor and saves
// them oldest first. The cursor moves only after a whole page was saved, so
// a failed page is read again on the next pass.
func (w *Worker) SyncTimeline(ctx context.Context, acc *Account, routine connection.ApiRoutine) (int, error) {
	if !acc.Conn.IsAPISupported(routine) {
		return 0, errors.Wrap(connection.ErrUnsupportedAPI, routine.String())
	}
	state, err := w.db.ReadSyncState(ctx, acc.ID(), routine.String())
	if err != nil {
		return 0, err
	}

	total := 0
	for i := 0; i < maxPagesPerSync; i++ {
		page, err := acc.Conn.Timeline(ctx, connection.TimelineRequest{
			Routine:  routine,
			Youngest: state.YoungestPosition,
			Limit:    w.pageLimit,
		})
		if err != nil {
			return total, err
		}
		for _, act := range page.Items {
			if routine == connection.HomeTimeline {
				act.Subscribed = domain.True
			}
			if _, err := w.updater.OnActivity(ctx, act); err != nil {
				return total, errors.Wrapf(err, "%s item %s", routine, act.OID)
			}
		}
		total += page.Len()

		next := db.SyncState{
			AccountID:        state.AccountID,
			Routine:          state.Routine,
			YoungestPosition: page.YoungerPosition,
			SyncedDate:       time.Now(),
			ItemsCount:       int64(page.Len()),
		}
		if state.OldestPosition.IsEmpty() {
			next.OldestPosition = page.OlderPosition
		}
		if err := w.db.SaveSyncState(ctx, next); err != nil {
			return total, err
		}

		moved := page.YoungerPosition.IsPresent() && page.YoungerPosition != state.YoungestPosition
		if page.IsEmpty() || !moved {
			break
		}
		state.YoungestPosition = page.YoungerPosition
		if state.OldestPosition.IsEmpty() {
			state.OldestPosition = next.OldestPosition
		}
	}
	log.Debugf("Worker: %s %s synced %d items", acc.Conn.Account().NamesString(), routine, total)
	return total, nil
}
