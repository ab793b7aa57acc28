package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/andstatus/fedsync/connection"
	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	maxCommandAttempts = 10
	commandBatchSize   = 50
)

var backoffMinutes = []int{1, 5, 15, 60, 240, 1440}

// Commands a queue entry may carry, named as the routines that run them.
var queueableRoutines = map[connection.ApiRoutine]bool{
	connection.Like:         true,
	connection.UndoLike:     true,
	connection.Announce:     true,
	connection.UndoAnnounce: true,
	connection.Follow:       true,
	connection.UndoFollow:   true,
	connection.DeleteNote:   true,
	connection.UpdateNote:   true,
}

// NotePayload is the note an update_note command sends.
type NotePayload struct {
	Content    string   `json:"content"`
	Summary    string   `json:"summary,omitempty"`
	InReplyTo  string   `json:"inReplyTo,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	Media      []string `json:"media,omitempty"`
}

// Enqueue stores a command for the account. oid is the note or actor the
// command acts on; it is empty for a new note.
func (w *Worker) Enqueue(ctx context.Context, accountID int64, routine connection.ApiRoutine, oid string, payload *NotePayload) (*db.Command, error) {
	if !queueableRoutines[routine] {
		return nil, errors.Errorf("%s cannot be queued", routine)
	}
	acc := w.Account(accountID)
	if acc == nil {
		return nil, errors.Errorf("unknown account %d", accountID)
	}
	if !acc.Conn.IsAPISupported(routine) {
		return nil, errors.Wrap(connection.ErrUnsupportedAPI, routine.String())
	}
	cmd := &db.Command{AccountID: accountID, Action: routine.String(), OID: oid}
	switch {
	case routine == connection.UpdateNote:
		if payload == nil || (payload.Content == "" && len(payload.Media) == 0) {
			return nil, errors.New("update_note needs content or media")
		}
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		cmd.Payload = string(buf)
	case oid == "":
		return nil, errors.Errorf("%s needs an oid", routine)
	}
	if err := w.db.EnqueueCommand(ctx, cmd); err != nil {
		return nil, err
	}
	log.Infof("Worker: queued %s %s for account %d", cmd.Action, cmd.OID, accountID)
	return cmd, nil
}

// ProcessCommandQueue runs the commands that are due. A failed command is
// retried with a growing delay; after maxCommandAttempts, or when the
// failure cannot go away by itself, it is dropped.
func (w *Worker) ProcessCommandQueue(ctx context.Context) {
	commands, err := w.db.ReadPendingCommands(ctx, time.Now(), commandBatchSize)
	if err != nil {
		log.Errorf("Worker: failed to read command queue: %v", err)
		return
	}
	if len(commands) == 0 {
		return
	}
	log.Infof("Worker: processing %d pending commands", len(commands))

	for i := range commands {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, &commands[i])
	}
}

// process runs cmd once and then deletes or reschedules it. It returns the
// error of the run and whether the command stays queued.
func (w *Worker) process(ctx context.Context, cmd *db.Command) (bool, error) {
	err := w.RunCommand(ctx, cmd)
	if err == nil {
		log.Infof("Worker: %s %s done", cmd.Action, cmd.OID)
		w.deleteCommand(ctx, cmd)
		return false, nil
	}

	cmd.Attempts++
	if cmd.Attempts >= maxCommandAttempts || !connection.IsRetryable(err) {
		log.Warnf("Worker: giving up on %s %s after %d attempts: %v", cmd.Action, cmd.OID, cmd.Attempts, err)
		w.deleteCommand(ctx, cmd)
		return false, err
	}
	delay := retryDelay(cmd.Attempts)
	cmd.NextRetryAt = time.Now().Add(delay)
	cmd.LastError = err.Error()
	log.Warnf("Worker: %s %s failed (attempt %d), retry in %s: %v", cmd.Action, cmd.OID, cmd.Attempts, delay, err)
	if err := w.db.UpdateCommandAttempt(ctx, cmd.ID, cmd.Attempts, cmd.NextRetryAt, cmd.LastError); err != nil {
		log.Errorf("Worker: failed to reschedule %s: %v", cmd.ID, err)
	}
	return true, err
}

// Submit queues a command and runs it right away. When the run fails with a
// retryable error the command stays queued and Submit reports no error;
// cmd.Attempts tells the caller it is pending.
func (w *Worker) Submit(ctx context.Context, accountID int64, routine connection.ApiRoutine, oid string, payload *NotePayload) (*db.Command, error) {
	cmd, err := w.Enqueue(ctx, accountID, routine, oid, payload)
	if err != nil {
		return nil, err
	}
	if queued, err := w.process(ctx, cmd); err != nil && !queued {
		return cmd, err
	}
	return cmd, nil
}

func (w *Worker) deleteCommand(ctx context.Context, cmd *db.Command) {
	if err := w.db.DeleteCommand(ctx, cmd.ID); err != nil {
		log.Errorf("Worker: failed to delete command %s: %v", cmd.ID, err)
	}
}

func retryDelay(attempts int) time.Duration {
	i := min(attempts-1, len(backoffMinutes)-1)
	return time.Duration(backoffMinutes[max(i, 0)]) * time.Minute
}

// RunCommand sends cmd and saves the resulting activity.
func (w *Worker) RunCommand(ctx context.Context, cmd *db.Command) error {
	acc := w.Account(cmd.AccountID)
	if acc == nil {
		return &connection.Error{Kind: connection.KindUnsupported, Message: "account is not registered"}
	}
	act, err := w.execute(ctx, acc.Conn, cmd)
	if err != nil {
		return err
	}
	if _, err := w.updater.OnActivity(ctx, act); err != nil {
		// The server accepted the command; only the local copy lags.
		log.Errorf("Worker: failed to save result of %s %s: %v", cmd.Action, cmd.OID, err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, conn connection.Connection, cmd *db.Command) (*domain.Activity, error) {
	switch routine := connection.ParseRoutine(cmd.Action); routine {
	case connection.Like:
		return conn.Like(ctx, cmd.OID)
	case connection.UndoLike:
		return conn.UndoLike(ctx, cmd.OID)
	case connection.Announce:
		return conn.Announce(ctx, cmd.OID)
	case connection.UndoAnnounce:
		return conn.UndoAnnounce(ctx, cmd.OID)
	case connection.Follow:
		return conn.Follow(ctx, cmd.OID)
	case connection.UndoFollow:
		return conn.UndoFollow(ctx, cmd.OID)
	case connection.DeleteNote:
		return conn.DeleteNote(ctx, cmd.OID)
	case connection.UpdateNote:
		return w.updateNote(ctx, conn, cmd)
	default:
		return nil, &connection.Error{Kind: connection.KindUnsupported, Routine: routine, Message: "unknown command " + cmd.Action}
	}
}

func (w *Worker) updateNote(ctx context.Context, conn connection.Connection, cmd *db.Command) (*domain.Activity, error) {
	var payload NotePayload
	if err := json.Unmarshal([]byte(cmd.Payload), &payload); err != nil {
		return nil, &connection.Error{Kind: connection.KindMalformed, Routine: connection.UpdateNote, Err: err}
	}
	note := domain.NewNote(conn.Origin(), cmd.OID)
	note.Status = domain.StatusSending
	note.Content = payload.Content
	note.Summary = payload.Summary
	note.UpdatedDate = time.Now().UTC()
	if v := domain.ParseVisibility(payload.Visibility); v.IsKnown() {
		note.Audience().SetVisibility(v)
	}
	if payload.InReplyTo != "" {
		reply := domain.NewActivity(conn.Account(), domain.ActivityUpdate)
		reply.SetNote(domain.NewNote(conn.Origin(), payload.InReplyTo))
		note.InReplyTo = reply
	}

	var mediaIDs []string
	for _, path := range payload.Media {
		media, err := uploadFile(ctx, conn, path)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, media.ID)
		note.Attachments = append(note.Attachments, media.Attachment)
	}
	return conn.UpdateNote(ctx, note, mediaIDs...)
}

func uploadFile(ctx context.Context, conn connection.Connection, path string) (*connection.UploadedMedia, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &connection.Error{Kind: connection.KindNotFound, Routine: connection.UploadMedia, Err: err}
	}
	defer f.Close()
	return conn.UploadMedia(ctx, filepath.Base(path), f)
}

var actionAliases = map[string]connection.ApiRoutine{
	"like":       connection.Like,
	"unlike":     connection.UndoLike,
	"announce":   connection.Announce,
	"unannounce": connection.UndoAnnounce,
	"follow":     connection.Follow,
	"unfollow":   connection.UndoFollow,
	"delete":     connection.DeleteNote,
	"post":       connection.UpdateNote,
	"update":     connection.UpdateNote,
}

// ParseAction accepts short command names as well as routine names.
func ParseAction(s string) connection.ApiRoutine {
	if r, ok := actionAliases[s]; ok {
		return r
	}
	if r := connection.ParseRoutine(s); queueableRoutines[r] {
		return r
	}
	return connection.RoutineUnknown
}
