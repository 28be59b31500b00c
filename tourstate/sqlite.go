// CLAUDE:SUMMARY SQLite-backed tour state: one durable scope plus per-session scopes wiped when the session ends.
package tourstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/tourguide/dbopen"
)

// Schema for the tour_state table.
const Schema = `
CREATE TABLE IF NOT EXISTS tour_state (
	scope      TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (scope, key)
);
`

const durableScope = "durable"

// SQLite stores tour state in a database opened with dbopen. Durable returns
// the long-lived scope; Session returns one scope per browser session.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps db and ensures the schema exists.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("tourstate: schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Durable returns the backend that survives restarts.
func (s *SQLite) Durable() Backend { return &sqliteScope{db: s.db, scope: durableScope} }

// Session returns the backend scoped to sessionID.
func (s *SQLite) Session(sessionID string) Backend {
	return &sqliteScope{db: s.db, scope: "session:" + sessionID}
}

// EndSession drops every key of a session.
func (s *SQLite) EndSession(ctx context.Context, sessionID string) error {
	_, err := dbopen.Exec(ctx, s.db, `DELETE FROM tour_state WHERE scope = ?`, "session:"+sessionID)
	if err != nil {
		return fmt.Errorf("tourstate: end session: %w", err)
	}
	return nil
}

// PruneSessions removes session keys not touched since before.
func (s *SQLite) PruneSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := dbopen.Exec(ctx, s.db,
		`DELETE FROM tour_state WHERE scope LIKE 'session:%' AND updated_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("tourstate: prune sessions: %w", err)
	}
	return res.RowsAffected()
}

type sqliteScope struct {
	db    *sql.DB
	scope string
}

func (b *sqliteScope) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := b.db.QueryRowContext(ctx,
		`SELECT value FROM tour_state WHERE scope = ? AND key = ?`, b.scope, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("tourstate: get %s: %w", key, err)
	}
	return v, true, nil
}

func (b *sqliteScope) Set(ctx context.Context, key, value string) error {
	_, err := dbopen.Exec(ctx, b.db, `
		INSERT INTO tour_state (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		b.scope, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("tourstate: set %s: %w", key, err)
	}
	return nil
}

func (b *sqliteScope) Delete(ctx context.Context, key string) error {
	_, err := dbopen.Exec(ctx, b.db, `DELETE FROM tour_state WHERE scope = ? AND key = ?`, b.scope, key)
	if err != nil {
		return fmt.Errorf("tourstate: delete %s: %w", key, err)
	}
	return nil
}

func (b *sqliteScope) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM tour_state WHERE scope = ? ORDER BY key`, b.scope)
	if err != nil {
		return nil, fmt.Errorf("tourstate: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
