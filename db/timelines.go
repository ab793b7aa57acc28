package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andstatus/fedsync/domain"
	"github.com/huandu/go-sqlbuilder"
)

// SyncState is the stored cursor of one timeline of one account.
type SyncState struct {
	AccountID        int64
	Routine          string
	YoungestPosition domain.TimelinePosition
	OldestPosition   domain.TimelinePosition
	SyncedDate       time.Time
	ItemsCount       int64
}

const (
	sqlSelectSyncState = `SELECT youngest_position, oldest_position, synced_date, items_count
		FROM timelines WHERE account_id = ? AND routine = ?`
	// temporary or empty positions never replace stored ones
	sqlUpsertSyncState = `INSERT INTO timelines(account_id, routine, youngest_position, oldest_position, synced_date, items_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, routine) DO UPDATE SET
			youngest_position = COALESCE(NULLIF(excluded.youngest_position, ''), timelines.youngest_position),
			oldest_position = COALESCE(NULLIF(excluded.oldest_position, ''), timelines.oldest_position),
			synced_date = excluded.synced_date,
			items_count = timelines.items_count + excluded.items_count`
)

// ReadSyncState returns an empty state for a timeline never synced.
func (db *DB) ReadSyncState(ctx context.Context, accountID int64, routine string) (SyncState, error) {
	state := SyncState{AccountID: accountID, Routine: routine}
	var youngest, oldest string
	var synced int64
	err := db.db.QueryRowContext(ctx, sqlSelectSyncState, accountID, routine).
		Scan(&youngest, &oldest, &synced, &state.ItemsCount)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("select timeline %s of account %d: %w", routine, accountID, err)
	}
	state.YoungestPosition = domain.NewPosition(youngest)
	state.OldestPosition = domain.NewPosition(oldest)
	state.SyncedDate = fromMillis(synced)
	return state, nil
}

// SaveSyncState stores the cursors and adds ItemsCount to the stored count.
func (db *DB) SaveSyncState(ctx context.Context, state SyncState) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpsertSyncState,
			state.AccountID,
			state.Routine,
			durable(state.YoungestPosition),
			durable(state.OldestPosition),
			millis(state.SyncedDate),
			state.ItemsCount,
		)
		if err != nil {
			return fmt.Errorf("save timeline %s of account %d: %w", state.Routine, state.AccountID, err)
		}
		return nil
	})
}

func durable(p domain.TimelinePosition) string {
	if !p.IsPresent() {
		return ""
	}
	return p.String()
}

// TimelineQuery selects stored activities for display. Zero fields do not
// restrict the result.
type TimelineQuery struct {
	AccountID         int64
	Types             []domain.ActivityType
	SubscribedOnly    bool
	NotificationsOnly bool
	Before            time.Time
	Limit             int
}

// TimelineItem is one activity joined with its actor and note.
type TimelineItem struct {
	ActivityID  int64
	Type        domain.ActivityType
	UpdatedDate time.Time
	Event       domain.NotificationEventType
	Notified    domain.TriState
	ActorID     int64
	ActorName   string
	NoteID      int64
	NoteOID     string
	NoteURL     string
	Summary     string
	Content     string
	AuthorID    int64
	AuthorName  string
	Visibility  domain.Visibility
	Favorited   domain.TriState
}

const defaultTimelineLimit = 40

// ReadTimeline returns matching activities, newest first.
func (db *DB) ReadTimeline(ctx context.Context, q TimelineQuery) ([]TimelineItem, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(
		"a.id", "a.type", "a.updated_date", "a.event", "a.notified", "a.actor_id",
		"COALESCE(NULLIF(ac.webfinger_id, ''), ac.username, '')",
		"a.note_id", "COALESCE(n.oid, '')", "COALESCE(n.url, '')",
		"COALESCE(n.summary, '')", "COALESCE(n.content, '')", "COALESCE(n.author_id, 0)",
		"COALESCE(NULLIF(au.webfinger_id, ''), au.username, '')",
		"COALESCE(n.visibility, 0)", "COALESCE(n.favorited, 0)",
	)
	sb.From("activities a")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "actors ac", "ac.id = a.actor_id")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "notes n", "n.id = a.note_id")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "actors au", "au.id = n.author_id")

	var where []string
	if q.AccountID != 0 {
		where = append(where, sb.Equal("a.account_id", q.AccountID))
	}
	if len(q.Types) > 0 {
		values := make([]interface{}, len(q.Types))
		for i, t := range q.Types {
			values[i] = int64(t)
		}
		where = append(where, sb.In("a.type", values...))
	}
	if q.SubscribedOnly {
		where = append(where, sb.Equal("a.subscribed", int64(domain.True)))
	}
	if q.NotificationsOnly {
		where = append(where, sb.NotEqual("a.event", int64(domain.EventEmpty)))
	}
	if !q.Before.IsZero() {
		where = append(where, sb.LessThan("a.updated_date", millis(q.Before)))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	query, args := sb.OrderBy("a.updated_date DESC", "a.id DESC").Limit(limit).Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select timeline: %w", err)
	}
	defer rows.Close()

	var items []TimelineItem
	for rows.Next() {
		var (
			item                                  TimelineItem
			t, updated, event, notified, vis, fav int64
		)
		err := rows.Scan(
			&item.ActivityID, &t, &updated, &event, &notified, &item.ActorID, &item.ActorName,
			&item.NoteID, &item.NoteOID, &item.NoteURL, &item.Summary, &item.Content,
			&item.AuthorID, &item.AuthorName, &vis, &fav,
		)
		if err != nil {
			return items, fmt.Errorf("scan timeline: %w", err)
		}
		item.Type = domain.ActivityType(t)
		item.UpdatedDate = fromMillis(updated)
		item.Event = domain.NotificationEventType(event)
		item.Notified = domain.TriState(notified)
		item.Visibility = domain.Visibility(vis)
		item.Favorited = domain.TriState(fav)
		items = append(items, item)
	}
	return items, rows.Err()
}
