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

// ActivityRow is the stored form of an activity, its objects reduced to
// local ids.
type ActivityRow struct {
	ID              int64
	OriginID        int64
	OID             string
	AccountID       int64
	ActorID         int64
	Type            domain.ActivityType
	Position        string
	NoteID          int64
	ObjActorID      int64
	ObjActivityID   int64
	UpdatedDate     time.Time
	Subscribed      domain.TriState
	Interacted      domain.TriState
	Notified        domain.TriState
	Event           domain.NotificationEventType
	NotifiedActorID int64
	InsertedDate    time.Time
}

const (
	sqlSelectActivityIDByOID = `SELECT id FROM activities WHERE origin_id = ? AND oid = ? ORDER BY id LIMIT 1`
	sqlSelectActivityByNote  = `SELECT id FROM activities WHERE note_id = ? AND type = ? ORDER BY id LIMIT 1`
	sqlSelectActivityUpdated = `SELECT updated_date FROM activities WHERE id = ?`
	sqlInsertActivity        = `INSERT INTO activities(origin_id, oid, account_id, actor_id, type, position, note_id,
		obj_actor_id, obj_activity_id, updated_date, subscribed, interacted, notified, event, notified_actor_id,
		inserted_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateActivity = `UPDATE activities SET oid = ?, actor_id = ?, type = ?, position = ?, note_id = ?,
		obj_actor_id = ?, obj_activity_id = ?, updated_date = ?, subscribed = ?, interacted = ?, notified = ?,
		event = ?, notified_actor_id = ?
		WHERE id = ?`
	sqlSelectActivityByID = `SELECT origin_id, oid, account_id, actor_id, type, position, note_id, obj_actor_id,
		obj_activity_id, updated_date, subscribed, interacted, notified, event, notified_actor_id, inserted_date
		FROM activities WHERE id = ?`
	sqlCountActivities = `SELECT COUNT(*) FROM activities`
)

func (db *DB) ActivityIDByOID(ctx context.Context, originID int64, oid string) (int64, error) {
	if oid == "" {
		return 0, nil
	}
	id, err := queryID(ctx, db.db, sqlSelectActivityIDByOID, originID, oid)
	if err != nil {
		return 0, fmt.Errorf("select activity by oid: %w", err)
	}
	return id, nil
}

// ActivityIDByNoteAndType finds the activity that created or updated a note
// seen before through another timeline.
func (db *DB) ActivityIDByNoteAndType(ctx context.Context, noteID int64, t domain.ActivityType) (int64, error) {
	if noteID == 0 {
		return 0, nil
	}
	id, err := queryID(ctx, db.db, sqlSelectActivityByNote, noteID, int64(t))
	if err != nil {
		return 0, fmt.Errorf("select activity by note: %w", err)
	}
	return id, nil
}

// ActivityUpdatedDate is the zero time for unknown ids.
func (db *DB) ActivityUpdatedDate(ctx context.Context, id int64) (time.Time, error) {
	var updated int64
	err := db.db.QueryRowContext(ctx, sqlSelectActivityUpdated, id).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("select activity %d: %w", id, err)
	}
	return fromMillis(updated), nil
}

// LastActivityType returns the type of the latest activity on the note seen
// by the account among types, or ActivityEmpty.
func (db *DB) LastActivityType(ctx context.Context, noteID, accountID int64, types ...domain.ActivityType) (domain.ActivityType, error) {
	if noteID == 0 || len(types) == 0 {
		return domain.ActivityEmpty, nil
	}
	values := make([]interface{}, len(types))
	for i, t := range types {
		values[i] = int64(t)
	}
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("type").
		From("activities").
		Where(
			sb.Equal("note_id", noteID),
			sb.Equal("account_id", accountID),
			sb.In("type", values...),
		).
		OrderBy("updated_date DESC", "id DESC").
		Limit(1).
		Build()

	var t int64
	err := db.db.QueryRowContext(ctx, query, args...).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ActivityEmpty, nil
	}
	if err != nil {
		return domain.ActivityEmpty, fmt.Errorf("select last activity of note %d: %w", noteID, err)
	}
	return domain.ActivityType(t), nil
}

// SaveActivityRow inserts a row without id, updates it otherwise.
func (db *DB) SaveActivityRow(ctx context.Context, row *ActivityRow) (int64, error) {
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		if row.ID != 0 {
			_, err := tx.ExecContext(ctx, sqlUpdateActivity,
				row.OID, row.ActorID, int64(row.Type), row.Position, row.NoteID,
				row.ObjActorID, row.ObjActivityID, millis(row.UpdatedDate),
				int64(row.Subscribed), int64(row.Interacted), int64(row.Notified),
				int64(row.Event), row.NotifiedActorID,
				row.ID,
			)
			if err != nil {
				return fmt.Errorf("update activity %d: %w", row.ID, err)
			}
			return nil
		}

		if row.InsertedDate.IsZero() {
			row.InsertedDate = time.Now()
		}
		res, err := tx.ExecContext(ctx, sqlInsertActivity,
			row.OriginID, row.OID, row.AccountID, row.ActorID, int64(row.Type), row.Position, row.NoteID,
			row.ObjActorID, row.ObjActivityID, millis(row.UpdatedDate),
			int64(row.Subscribed), int64(row.Interacted), int64(row.Notified),
			int64(row.Event), row.NotifiedActorID, millis(row.InsertedDate),
		)
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
		row.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

// ReadActivityRow returns nil when there is no such activity.
func (db *DB) ReadActivityRow(ctx context.Context, id int64) (*ActivityRow, error) {
	row := ActivityRow{ID: id}
	var t, subscribed, interacted, notified, event, updated, inserted int64
	err := db.db.QueryRowContext(ctx, sqlSelectActivityByID, id).Scan(
		&row.OriginID, &row.OID, &row.AccountID, &row.ActorID, &t, &row.Position, &row.NoteID,
		&row.ObjActorID, &row.ObjActivityID, &updated, &subscribed, &interacted, &notified,
		&event, &row.NotifiedActorID, &inserted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select activity %d: %w", id, err)
	}
	row.Type = domain.ActivityType(t)
	row.UpdatedDate = fromMillis(updated)
	row.InsertedDate = fromMillis(inserted)
	row.Subscribed = domain.TriState(subscribed)
	row.Interacted = domain.TriState(interacted)
	row.Notified = domain.TriState(notified)
	row.Event = domain.NotificationEventType(event)
	return &row, nil
}

func (db *DB) CountActivities(ctx context.Context) (int64, error) {
	var n int64
	err := db.db.QueryRowContext(ctx, sqlCountActivities).Scan(&n)
	return n, err
}
