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

const (
	sqlInsertActor = `INSERT INTO actors(origin_id, oid, username, webfinger_id, profile_url, real_name, summary,
		location, homepage_url, avatar_url, banner_url, notes_count, favorites_count, following_count,
		followers_count, created_date, updated_date, avatar_date, is_my_friend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectActorByID = `SELECT origin_id, oid, username, webfinger_id, profile_url, real_name, summary,
		location, homepage_url, avatar_url, banner_url, notes_count, favorites_count, following_count,
		followers_count, created_date, updated_date, avatar_date, is_my_friend
		FROM actors WHERE id = ?`
	sqlInsertActorEndpoint  = `INSERT OR IGNORE INTO actor_endpoints(actor_id, type, url, idx) VALUES (?, ?, ?, ?)`
	sqlSelectActorEndpoints = `SELECT type, url FROM actor_endpoints WHERE actor_id = ? ORDER BY type, idx`
)

func (db *DB) actorIDBy(ctx context.Context, column string, originID int64, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("id").
		From("actors").
		Where(sb.Equal("origin_id", originID), sb.Equal(column, value)).
		OrderBy("id").
		Limit(1).
		Build()
	id, err := queryID(ctx, db.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("select actor by %s: %w", column, err)
	}
	return id, nil
}

func (db *DB) ActorIDByOID(ctx context.Context, originID int64, oid string) (int64, error) {
	return db.actorIDBy(ctx, "oid", originID, oid)
}

func (db *DB) ActorIDByWebFingerID(ctx context.Context, originID int64, webFingerID string) (int64, error) {
	return db.actorIDBy(ctx, "webfinger_id", originID, webFingerID)
}

func (db *DB) ActorIDByUsername(ctx context.Context, originID int64, username string) (int64, error) {
	return db.actorIDBy(ctx, "username", originID, username)
}

// storedOid is what the oid column holds: the real oid, or a temporary one
// derived from the WebFinger id or username so later lookups find the row.
func storedOid(actor *domain.Actor) string {
	if actor.IsOidReal() {
		return actor.OID
	}
	return actor.TempOid()
}

// SaveActor inserts the actor when it has no local id yet, otherwise fills
// the stored row with the non-empty fields of actor. Endpoints added since
// the last save are stored as well.
func (db *DB) SaveActor(ctx context.Context, actor *domain.Actor) (int64, error) {
	if actor.IsEmpty() || actor.Origin == nil {
		return 0, errors.New("save actor: empty actor")
	}
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		if actor.ActorID == 0 {
			res, err := tx.ExecContext(ctx, sqlInsertActor,
				actor.Origin.ID,
				storedOid(actor),
				actor.Username(),
				actor.WebFingerID(),
				actor.ProfileURL(),
				actor.RealName,
				actor.Summary,
				actor.Location,
				actor.HomepageURL,
				actor.AvatarURL,
				actor.BannerURL,
				actor.NotesCount,
				actor.FavoritesCount,
				actor.FollowingCount,
				actor.FollowersCount,
				millis(actor.CreatedDate),
				millis(actor.UpdatedDate),
				millis(actor.AvatarDownloadDate),
				int64(actor.IsMyFriend),
			)
			if err != nil {
				return fmt.Errorf("insert actor: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert actor: %w", err)
			}
			actor.ActorID = id
		} else if err := updateActor(ctx, tx, actor); err != nil {
			return err
		}
		return insertEndpoints(ctx, tx, actor)
	})
	if err != nil {
		return 0, err
	}
	if actor.Endpoints != nil {
		actor.Endpoints.MarkLoaded()
	}
	return actor.ActorID, nil
}

func updateActor(ctx context.Context, tx *sql.Tx, actor *domain.Actor) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("actors")
	assignments := []string{
		keepIfEmpty(ub, "username", actor.Username()),
		keepIfEmpty(ub, "webfinger_id", actor.WebFingerID()),
		keepIfEmpty(ub, "profile_url", actor.ProfileURL()),
		keepIfEmpty(ub, "real_name", actor.RealName),
		keepIfEmpty(ub, "summary", actor.Summary),
		keepIfEmpty(ub, "location", actor.Location),
		keepIfEmpty(ub, "homepage_url", actor.HomepageURL),
		keepIfEmpty(ub, "avatar_url", actor.AvatarURL),
		keepIfEmpty(ub, "banner_url", actor.BannerURL),
		keepIfZero(ub, "notes_count", actor.NotesCount),
		keepIfZero(ub, "favorites_count", actor.FavoritesCount),
		keepIfZero(ub, "following_count", actor.FollowingCount),
		keepIfZero(ub, "followers_count", actor.FollowersCount),
		keepIfZero(ub, "created_date", millis(actor.CreatedDate)),
		keepLater(ub, "updated_date", millis(actor.UpdatedDate)),
		keepLater(ub, "avatar_date", millis(actor.AvatarDownloadDate)),
		keepIfZero(ub, "is_my_friend", int64(actor.IsMyFriend)),
	}
	if actor.IsOidReal() {
		assignments = append(assignments, ub.Assign("oid", actor.OID))
	}
	query, args := ub.Set(assignments...).Where(ub.Equal("id", actor.ActorID)).Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update actor %d: %w", actor.ActorID, err)
	}
	return nil
}

func insertEndpoints(ctx context.Context, tx *sql.Tx, actor *domain.Actor) error {
	if actor.Endpoints == nil {
		return nil
	}
	for t, urls := range actor.Endpoints.All() {
		for i, url := range urls {
			if _, err := tx.ExecContext(ctx, sqlInsertActorEndpoint, actor.ActorID, int64(t), url, i); err != nil {
				return fmt.Errorf("insert %s endpoint of actor %d: %w", t, actor.ActorID, err)
			}
		}
	}
	return nil
}

// ReadActor returns nil when there is no such actor. Endpoints are read
// lazily on first use.
func (db *DB) ReadActor(ctx context.Context, id int64) (*domain.Actor, error) {
	var (
		originID                                 int64
		oid, username, webFingerID, profileURL   string
		created, updated, avatarDate, isMyFriend int64
		a                                        domain.Actor
	)
	err := db.db.QueryRowContext(ctx, sqlSelectActorByID, id).Scan(
		&originID, &oid, &username, &webFingerID, &profileURL,
		&a.RealName, &a.Summary, &a.Location, &a.HomepageURL, &a.AvatarURL, &a.BannerURL,
		&a.NotesCount, &a.FavoritesCount, &a.FollowingCount, &a.FollowersCount,
		&created, &updated, &avatarDate, &isMyFriend,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select actor %d: %w", id, err)
	}

	actor := domain.NewActor(db.origin(originID), oid)
	actor.ActorID = id
	actor.SetUsername(username).SetProfileURL(profileURL).SetWebFingerID(webFingerID)
	actor.RealName, actor.Summary, actor.Location = a.RealName, a.Summary, a.Location
	actor.HomepageURL, actor.AvatarURL, actor.BannerURL = a.HomepageURL, a.AvatarURL, a.BannerURL
	actor.NotesCount, actor.FavoritesCount = a.NotesCount, a.FavoritesCount
	actor.FollowingCount, actor.FollowersCount = a.FollowingCount, a.FollowersCount
	actor.CreatedDate = fromMillis(created)
	actor.UpdatedDate = fromMillis(updated)
	actor.AvatarDownloadDate = fromMillis(avatarDate)
	actor.IsMyFriend = domain.TriState(isMyFriend)
	actor.Endpoints = domain.NewActorEndpoints(db.endpointsLoader(id))
	return actor, nil
}

func (db *DB) endpointsLoader(actorID int64) domain.EndpointsLoader {
	return func() map[domain.EndpointType][]string {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		endpoints, err := db.ReadActorEndpoints(ctx, actorID)
		if err != nil {
			return nil
		}
		return endpoints
	}
}

func (db *DB) ReadActorEndpoints(ctx context.Context, actorID int64) (map[domain.EndpointType][]string, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectActorEndpoints, actorID)
	if err != nil {
		return nil, fmt.Errorf("select endpoints of actor %d: %w", actorID, err)
	}
	defer rows.Close()

	endpoints := make(map[domain.EndpointType][]string)
	for rows.Next() {
		var (
			t   int64
			url string
		)
		if err := rows.Scan(&t, &url); err != nil {
			return endpoints, err
		}
		endpoints[domain.EndpointType(t)] = append(endpoints[domain.EndpointType(t)], url)
	}
	return endpoints, rows.Err()
}

func keepIfEmpty(ub *sqlbuilder.UpdateBuilder, column, value string) string {
	return fmt.Sprintf("%s = COALESCE(NULLIF(%s, ''), %s)", column, ub.Var(value), column)
}

func keepIfZero(ub *sqlbuilder.UpdateBuilder, column string, value int64) string {
	return fmt.Sprintf("%s = COALESCE(NULLIF(%s, 0), %s)", column, ub.Var(value), column)
}

func keepLater(ub *sqlbuilder.UpdateBuilder, column string, value int64) string {
	return fmt.Sprintf("%s = MAX(%s, %s)", column, column, ub.Var(value))
}
