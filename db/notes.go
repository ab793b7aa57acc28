package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andstatus/fedsync/domain"
	"github.com/huandu/go-sqlbuilder"
)

// NoteRefs are the local ids a note row points to.
type NoteRefs struct {
	AuthorID         int64
	InReplyToNoteID  int64
	InReplyToActorID int64
}

const (
	sqlSelectNoteIDByOID = `SELECT id FROM notes WHERE origin_id = ? AND oid = ? ORDER BY id LIMIT 1`
	sqlInsertNote        = `INSERT INTO notes(origin_id, oid, status, name, summary, content, sensitive, author_id,
		in_reply_to_note_id, in_reply_to_actor_id, conversation_oid, via, url, updated_date, visibility,
		favorited, likes_count, replies_count, reblogs_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectNoteUpdatedDate = `SELECT updated_date FROM notes WHERE id = ?`
	sqlSelectNoteByID        = `SELECT origin_id, oid, status, name, summary, content, sensitive, author_id,
		in_reply_to_note_id, in_reply_to_actor_id, conversation_oid, via, url, updated_date, visibility,
		favorited, likes_count, replies_count, reblogs_count
		FROM notes WHERE id = ?`
	sqlUpdateNoteFavorited  = `UPDATE notes SET favorited = ? WHERE id = ?`
	sqlUpdateNoteVisibility = `UPDATE notes SET visibility = ? WHERE id = ?`
	sqlDeleteAudience       = `DELETE FROM audience WHERE note_id = ?`
	sqlInsertAudience       = `INSERT OR IGNORE INTO audience(note_id, actor_id) VALUES (?, ?)`
	sqlSelectAudience       = `SELECT actor_id FROM audience WHERE note_id = ? ORDER BY actor_id`
	sqlDeleteAttachments    = `DELETE FROM attachments WHERE note_id = ?`
	sqlInsertAttachment     = `INSERT INTO attachments(note_id, idx, uri, mime_type, media_type, preview_uri) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectAttachments    = `SELECT uri, mime_type, media_type, preview_uri FROM attachments WHERE note_id = ? ORDER BY idx`
)

func (db *DB) NoteIDByOID(ctx context.Context, originID int64, oid string) (int64, error) {
	if oid == "" {
		return 0, nil
	}
	id, err := queryID(ctx, db.db, sqlSelectNoteIDByOID, originID, oid)
	if err != nil {
		return 0, fmt.Errorf("select note by oid: %w", err)
	}
	return id, nil
}

// SaveNote inserts or updates the note row and sets note.NoteID. An
// existing row keeps its text unless the incoming note is newer, and never
// loses a field the incoming note lacks.
func (db *DB) SaveNote(ctx context.Context, note *domain.Note, refs NoteRefs) (int64, error) {
	if note == nil || note.Origin == nil || note.OID == "" {
		return 0, errors.New("save note: note without origin or oid")
	}
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		id := note.NoteID
		if id == 0 {
			found, err := queryID(ctx, tx, sqlSelectNoteIDByOID, note.Origin.ID, note.OID)
			if err != nil {
				return fmt.Errorf("select note by oid: %w", err)
			}
			id = found
		}
		if id != 0 {
			note.NoteID = id
			return updateNote(ctx, tx, note, refs)
		}

		res, err := tx.ExecContext(ctx, sqlInsertNote,
			note.Origin.ID,
			note.OID,
			int64(note.Status),
			note.Name,
			note.Summary,
			note.Content,
			boolInt(note.Sensitive),
			refs.AuthorID,
			refs.InReplyToNoteID,
			refs.InReplyToActorID,
			note.ConversationOID,
			note.Via,
			note.URL,
			millis(note.UpdatedDate),
			int64(note.Visibility()),
			int64(note.FavoritedByMe),
			note.LikesCount,
			note.RepliesCount,
			note.ReblogsCount,
		)
		if err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		note.NoteID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return note.NoteID, nil
}

func updateNote(ctx context.Context, tx *sql.Tx, note *domain.Note, refs NoteRefs) error {
	var stored int64
	if err := tx.QueryRowContext(ctx, sqlSelectNoteUpdatedDate, note.NoteID).Scan(&stored); err != nil {
		return fmt.Errorf("select note %d: %w", note.NoteID, err)
	}

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("notes")
	assignments := []string{
		keepIfZero(ub, "author_id", refs.AuthorID),
		keepIfZero(ub, "in_reply_to_note_id", refs.InReplyToNoteID),
		keepIfZero(ub, "in_reply_to_actor_id", refs.InReplyToActorID),
		keepIfEmpty(ub, "conversation_oid", note.ConversationOID),
		keepIfEmpty(ub, "url", note.URL),
	}
	if note.Status == domain.StatusDeleted {
		assignments = append(assignments, ub.Assign("status", int64(note.Status)))
	}
	if updated := millis(note.UpdatedDate); updated > stored || stored == 0 {
		if note.Status != domain.StatusDeleted {
			assignments = append(assignments, keepIfZero(ub, "status", int64(note.Status)))
		}
		assignments = append(assignments,
			keepIfEmpty(ub, "name", note.Name),
			keepIfEmpty(ub, "summary", note.Summary),
			keepIfEmpty(ub, "content", note.Content),
			keepIfEmpty(ub, "via", note.Via),
			keepIfZero(ub, "sensitive", boolInt(note.Sensitive)),
			keepIfZero(ub, "visibility", int64(note.Visibility())),
			keepIfZero(ub, "favorited", int64(note.FavoritedByMe)),
			keepIfZero(ub, "likes_count", note.LikesCount),
			keepIfZero(ub, "replies_count", note.RepliesCount),
			keepIfZero(ub, "reblogs_count", note.ReblogsCount),
			ub.Assign("updated_date", updated),
		)
	}
	query, args := ub.Set(assignments...).Where(ub.Equal("id", note.NoteID)).Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update note %d: %w", note.NoteID, err)
	}
	return nil
}

// SetAudience replaces the addressed actors and the visibility of a note.
func (db *DB) SetAudience(ctx context.Context, noteID int64, visibility domain.Visibility, actorIDs []int64) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlDeleteAudience, noteID); err != nil {
			return fmt.Errorf("delete audience of note %d: %w", noteID, err)
		}
		for _, actorID := range actorIDs {
			if actorID == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, sqlInsertAudience, noteID, actorID); err != nil {
				return fmt.Errorf("insert audience of note %d: %w", noteID, err)
			}
		}
		if visibility.IsKnown() {
			if _, err := tx.ExecContext(ctx, sqlUpdateNoteVisibility, int64(visibility), noteID); err != nil {
				return fmt.Errorf("update visibility of note %d: %w", noteID, err)
			}
		}
		return nil
	})
}

func (db *DB) ReadAudience(ctx context.Context, noteID int64) ([]int64, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectAudience, noteID)
	if err != nil {
		return nil, fmt.Errorf("select audience of note %d: %w", noteID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) ReplaceAttachments(ctx context.Context, noteID int64, attachments domain.Attachments) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlDeleteAttachments, noteID); err != nil {
			return fmt.Errorf("delete attachments of note %d: %w", noteID, err)
		}
		for i, a := range attachments {
			if _, err := tx.ExecContext(ctx, sqlInsertAttachment,
				noteID, i, a.URI, a.MimeType, int64(a.MediaType), a.PreviewURI); err != nil {
				return fmt.Errorf("insert attachment of note %d: %w", noteID, err)
			}
		}
		return nil
	})
}

func (db *DB) SetNoteFavorited(ctx context.Context, noteID int64, favorited domain.TriState) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpdateNoteFavorited, int64(favorited), noteID)
		return err
	})
}

// StoredNote is a note row together with the ids it refers to.
type StoredNote struct {
	*domain.Note
	NoteRefs
}

// ReadNote returns nil when there is no such note.
func (db *DB) ReadNote(ctx context.Context, id int64) (*StoredNote, error) {
	var (
		originID, status, sensitive, updated, visibility, favorited int64
		oid                                                         string
		n                                                           domain.Note
		refs                                                        NoteRefs
	)
	err := db.db.QueryRowContext(ctx, sqlSelectNoteByID, id).Scan(
		&originID, &oid, &status, &n.Name, &n.Summary, &n.Content, &sensitive,
		&refs.AuthorID, &refs.InReplyToNoteID, &refs.InReplyToActorID,
		&n.ConversationOID, &n.Via, &n.URL, &updated, &visibility,
		&favorited, &n.LikesCount, &n.RepliesCount, &n.ReblogsCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select note %d: %w", id, err)
	}

	note := domain.NewNote(db.origin(originID), oid)
	note.NoteID = id
	note.Status = domain.DownloadStatus(status)
	note.Name, note.Summary, note.Content = n.Name, n.Summary, n.Content
	note.Sensitive = sensitive != 0
	note.ConversationOID, note.Via, note.URL = n.ConversationOID, n.Via, n.URL
	note.UpdatedDate = fromMillis(updated)
	note.Audience().SetVisibility(domain.Visibility(visibility))
	note.FavoritedByMe = domain.TriState(favorited)
	note.LikesCount, note.RepliesCount, note.ReblogsCount = n.LikesCount, n.RepliesCount, n.ReblogsCount

	if note.Attachments, err = db.readAttachments(ctx, id); err != nil {
		return nil, err
	}
	return &StoredNote{Note: note, NoteRefs: refs}, nil
}

func (db *DB) readAttachments(ctx context.Context, noteID int64) (domain.Attachments, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectAttachments, noteID)
	if err != nil {
		return nil, fmt.Errorf("select attachments of note %d: %w", noteID, err)
	}
	defer rows.Close()

	var attachments domain.Attachments
	for rows.Next() {
		var (
			a         domain.Attachment
			mediaType int64
		)
		if err := rows.Scan(&a.URI, &a.MimeType, &mediaType, &a.PreviewURI); err != nil {
			return attachments, err
		}
		a.MediaType = domain.MediaType(mediaType)
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
