package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andstatus/fedsync/domain"
	log "github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the row store behind the merge layer and the read-only consumers.
type DB struct {
	db *sql.DB

	mu      sync.RWMutex
	origins map[int64]*domain.Origin
}

var (
	dbInstance *DB
	dbOnce     sync.Once
	dbErr      error
)

const maxBusyRetries = 5

// Open opens the sqlite database at path and runs the migrations.
// ":memory:" gives a private in-memory database.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if path == ":memory:" {
		// every pooled connection would see its own empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)

		var journalMode string
		if err := sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
			log.Warnf("Database: failed to enable WAL mode: %v", err)
		} else {
			log.Debugf("Database: journal mode %s", journalMode)
		}
		sqlDB.Exec("PRAGMA synchronous = NORMAL")
		sqlDB.Exec("PRAGMA temp_store = MEMORY")
	}
	sqlDB.Exec("PRAGMA busy_timeout = 5000")

	db := &DB{db: sqlDB, origins: make(map[int64]*domain.Origin)}
	if err := db.RunMigrations(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// GetDB opens the process-wide database once.
func GetDB(path string) (*DB, error) {
	dbOnce.Do(func() {
		dbInstance, dbErr = Open(path)
		if dbErr == nil {
			log.Infof("Database: %s ready", path)
		}
	})
	return dbInstance, dbErr
}

func (db *DB) Close() error {
	return db.db.Close()
}

// RegisterOrigin makes origin known to rows read back from storage.
func (db *DB) RegisterOrigin(origin *domain.Origin) {
	if origin == nil {
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.origins[origin.ID] = origin
}

func (db *DB) origin(id int64) *domain.Origin {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if o, ok := db.origins[id]; ok {
		return o
	}
	return &domain.Origin{ID: id}
}

// wrapTransaction runs f within a transaction, starting over while sqlite
// reports the database as busy.
func (db *DB) wrapTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= maxBusyRetries; attempt++ {
		err = db.runTransaction(ctx, f)
		if !isBusy(err) {
			break
		}
		log.Debugf("Database: busy, retrying transaction (%d)", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
	if err != nil {
		log.Debugf("Database: error in transaction: %v", err)
	}
	return err
}

func (db *DB) runTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlitelib.SQLITE_BUSY
}

// queryID scans a single id, returning 0 when there is no row.
func queryID(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// Dates are stored as unix milliseconds, 0 meaning unknown.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
