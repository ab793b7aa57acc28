package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Command is an outbound action waiting to be sent by the worker.
type Command struct {
	ID          uuid.UUID
	AccountID   int64
	Action      string
	OID         string
	Payload     string
	Attempts    int
	NextRetryAt time.Time
	LastError   string
	CreatedAt   time.Time
}

const (
	sqlInsertCommand = `INSERT INTO command_queue(id, account_id, command, oid, payload, attempts, next_retry_at, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPendingCommands = `SELECT id, account_id, command, oid, payload, attempts, next_retry_at, last_error, created_at
		FROM command_queue WHERE next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlSelectCommandByID = `SELECT id, account_id, command, oid, payload, attempts, next_retry_at, last_error, created_at
		FROM command_queue WHERE id = ?`
	sqlUpdateCommandAttempt = `UPDATE command_queue SET attempts = ?, next_retry_at = ?, last_error = ? WHERE id = ?`
	sqlDeleteCommand        = `DELETE FROM command_queue WHERE id = ?`
)

// EnqueueCommand stores cmd, assigning an id and dates when missing.
func (db *DB) EnqueueCommand(ctx context.Context, cmd *Command) error {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now()
	}
	if cmd.NextRetryAt.IsZero() {
		cmd.NextRetryAt = cmd.CreatedAt
	}
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertCommand,
			cmd.ID.String(),
			cmd.AccountID,
			cmd.Action,
			cmd.OID,
			cmd.Payload,
			cmd.Attempts,
			millis(cmd.NextRetryAt),
			cmd.LastError,
			millis(cmd.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("enqueue command: %w", err)
		}
		return nil
	})
}

// ReadPendingCommands returns commands due at now, oldest first.
func (db *DB) ReadPendingCommands(ctx context.Context, now time.Time, limit int) ([]Command, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectPendingCommands, millis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("select pending commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return commands, err
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

// ReadCommand returns nil when the command is gone.
func (db *DB) ReadCommand(ctx context.Context, id uuid.UUID) (*Command, error) {
	cmd, err := scanCommand(db.db.QueryRowContext(ctx, sqlSelectCommandByID, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}

func scanCommand(row interface{ Scan(...any) error }) (Command, error) {
	var (
		cmd                Command
		idStr              string
		nextRetry, created int64
	)
	if err := row.Scan(&idStr, &cmd.AccountID, &cmd.Action, &cmd.OID, &cmd.Payload,
		&cmd.Attempts, &nextRetry, &cmd.LastError, &created); err != nil {
		return cmd, err
	}
	cmd.ID, _ = uuid.Parse(idStr)
	cmd.NextRetryAt = fromMillis(nextRetry)
	cmd.CreatedAt = fromMillis(created)
	return cmd, nil
}

func (db *DB) UpdateCommandAttempt(ctx context.Context, id uuid.UUID, attempts int, nextRetry time.Time, lastError string) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpdateCommandAttempt, attempts, millis(nextRetry), lastError, id.String())
		return err
	})
}

func (db *DB) DeleteCommand(ctx context.Context, id uuid.UUID) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlDeleteCommand, id.String())
		return err
	})
}
