package db

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const (
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin_id INTEGER NOT NULL,
		oid TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		webfinger_id TEXT NOT NULL DEFAULT '',
		profile_url TEXT NOT NULL DEFAULT '',
		real_name TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		homepage_url TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		banner_url TEXT NOT NULL DEFAULT '',
		notes_count INTEGER NOT NULL DEFAULT 0,
		favorites_count INTEGER NOT NULL DEFAULT 0,
		following_count INTEGER NOT NULL DEFAULT 0,
		followers_count INTEGER NOT NULL DEFAULT 0,
		created_date INTEGER NOT NULL DEFAULT 0,
		updated_date INTEGER NOT NULL DEFAULT 0,
		avatar_date INTEGER NOT NULL DEFAULT 0,
		is_my_friend INTEGER NOT NULL DEFAULT 0
	)`

	sqlCreateActorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_actors_oid ON actors(origin_id, oid);
		CREATE INDEX IF NOT EXISTS idx_actors_webfinger_id ON actors(origin_id, webfinger_id);
		CREATE INDEX IF NOT EXISTS idx_actors_username ON actors(origin_id, username);
	`

	sqlCreateActorEndpointsTable = `CREATE TABLE IF NOT EXISTS actor_endpoints (
		actor_id INTEGER NOT NULL,
		type INTEGER NOT NULL,
		url TEXT NOT NULL,
		idx INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (actor_id, type, url)
	)`

	sqlCreateNotesTable = `CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin_id INTEGER NOT NULL,
		oid TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		sensitive INTEGER NOT NULL DEFAULT 0,
		author_id INTEGER NOT NULL DEFAULT 0,
		in_reply_to_note_id INTEGER NOT NULL DEFAULT 0,
		in_reply_to_actor_id INTEGER NOT NULL DEFAULT 0,
		conversation_oid TEXT NOT NULL DEFAULT '',
		via TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		updated_date INTEGER NOT NULL DEFAULT 0,
		visibility INTEGER NOT NULL DEFAULT 0,
		favorited INTEGER NOT NULL DEFAULT 0,
		likes_count INTEGER NOT NULL DEFAULT 0,
		replies_count INTEGER NOT NULL DEFAULT 0,
		reblogs_count INTEGER NOT NULL DEFAULT 0
	)`

	sqlCreateNotesIndices = `
		CREATE INDEX IF NOT EXISTS idx_notes_oid ON notes(origin_id, oid);
		CREATE INDEX IF NOT EXISTS idx_notes_author_id ON notes(author_id);
	`

	sqlCreateAudienceTable = `CREATE TABLE IF NOT EXISTS audience (
		note_id INTEGER NOT NULL,
		actor_id INTEGER NOT NULL,
		PRIMARY KEY (note_id, actor_id)
	)`

	sqlCreateAttachmentsTable = `CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		note_id INTEGER NOT NULL,
		idx INTEGER NOT NULL DEFAULT 0,
		uri TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		media_type INTEGER NOT NULL DEFAULT 0,
		preview_uri TEXT NOT NULL DEFAULT ''
	)`

	sqlCreateAttachmentsIndices = `
		CREATE INDEX IF NOT EXISTS idx_attachments_note_id ON attachments(note_id);
	`

	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin_id INTEGER NOT NULL,
		oid TEXT NOT NULL,
		account_id INTEGER NOT NULL,
		actor_id INTEGER NOT NULL DEFAULT 0,
		type INTEGER NOT NULL,
		position TEXT NOT NULL DEFAULT '',
		note_id INTEGER NOT NULL DEFAULT 0,
		obj_actor_id INTEGER NOT NULL DEFAULT 0,
		obj_activity_id INTEGER NOT NULL DEFAULT 0,
		updated_date INTEGER NOT NULL DEFAULT 0,
		subscribed INTEGER NOT NULL DEFAULT 0,
		interacted INTEGER NOT NULL DEFAULT 0,
		notified INTEGER NOT NULL DEFAULT 0,
		event INTEGER NOT NULL DEFAULT 0,
		notified_actor_id INTEGER NOT NULL DEFAULT 0,
		inserted_date INTEGER NOT NULL DEFAULT 0
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_oid ON activities(origin_id, oid);
		CREATE INDEX IF NOT EXISTS idx_activities_note ON activities(note_id, type);
		CREATE INDEX IF NOT EXISTS idx_activities_updated_date ON activities(updated_date DESC);
	`

	sqlCreateTimelinesTable = `CREATE TABLE IF NOT EXISTS timelines (
		account_id INTEGER NOT NULL,
		routine TEXT NOT NULL,
		youngest_position TEXT NOT NULL DEFAULT '',
		oldest_position TEXT NOT NULL DEFAULT '',
		synced_date INTEGER NOT NULL DEFAULT 0,
		items_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, routine)
	)`

	sqlCreateCommandQueueTable = `CREATE TABLE IF NOT EXISTS command_queue (
		id TEXT NOT NULL PRIMARY KEY,
		account_id INTEGER NOT NULL,
		command TEXT NOT NULL,
		oid TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		next_retry_at INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0
	)`

	sqlCreateCommandQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_command_queue_next_retry ON command_queue(next_retry_at);
	`
)

// RunMigrations creates the tables and indices that do not exist yet.
func (db *DB) RunMigrations(ctx context.Context) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		tables := []struct {
			name    string
			create  string
			indices string
		}{
			{"actors", sqlCreateActorsTable, sqlCreateActorsIndices},
			{"actor_endpoints", sqlCreateActorEndpointsTable, ""},
			{"notes", sqlCreateNotesTable, sqlCreateNotesIndices},
			{"audience", sqlCreateAudienceTable, ""},
			{"attachments", sqlCreateAttachmentsTable, sqlCreateAttachmentsIndices},
			{"activities", sqlCreateActivitiesTable, sqlCreateActivitiesIndices},
			{"timelines", sqlCreateTimelinesTable, ""},
			{"command_queue", sqlCreateCommandQueueTable, sqlCreateCommandQueueIndices},
		}
		for _, t := range tables {
			if err := createTableIfNotExists(ctx, tx, t.create, t.name); err != nil {
				return err
			}
			if t.indices == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, t.indices); err != nil {
				log.Warnf("Database: failed to create %s indices: %v", t.name, err)
			}
		}
		return nil
	})
}

func createTableIfNotExists(ctx context.Context, tx *sql.Tx, createSQL string, tableName string) error {
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}
	log.Debugf("Database: table %s created or already exists", tableName)
	return nil
}
