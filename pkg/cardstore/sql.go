package cardstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// currentSchemaVersion is stored in SQLite's user_version pragma.
// Increment this whenever the schema changes and add a migration step.
const currentSchemaVersion = 1

// sqliteBusyTimeout is the time SQLite waits when the database is locked.
// After this, operations return SQLITE_BUSY.
const sqliteBusyTimeout = 10000 // milliseconds

// sqliteDSN builds the connection string. Pragmas go into the DSN rather
// than a one-off PRAGMA statement because database/sql pools connections and
// foreign_keys is a per-connection setting.
func sqliteDSN(path string, foreignKeys bool) string {
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(sqliteBusyTimeout))
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "FULL")
	params.Set("_txlock", "immediate")

	if foreignKeys {
		params.Set("_foreign_keys", "1")
	} else {
		params.Set("_foreign_keys", "0")
	}

	return "file:" + path + "?" + params.Encode()
}

// openSQLite opens the card database with the configured pragmas.
func openSQLite(ctx context.Context, path string, foreignKeys bool) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", sqliteDSN(path, foreignKeys))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

// storedSchemaVersion reads the current SQLite PRAGMA user_version.
func storedSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, "PRAGMA user_version")

	var version int

	err := row.Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS cards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		column_id INTEGER NOT NULL,
		parent_id INTEGER REFERENCES cards(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'card',
		label_color TEXT,
		position INTEGER NOT NULL DEFAULT 0 CHECK (position >= 0),
		status TEXT NOT NULL DEFAULT 'active',
		attributes TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		card_id INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
		file_name TEXT NOT NULL,
		local_path TEXT,
		remote_url TEXT,
		mime_type TEXT,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS checklist_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		card_id INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
		parent_id INTEGER REFERENCES checklist_items(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		done INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS card_tags (
		card_id INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (card_id, tag_id)
	) WITHOUT ROWID`,
	"CREATE INDEX IF NOT EXISTS idx_cards_group ON cards(column_id, parent_id, position)",
	"CREATE INDEX IF NOT EXISTS idx_cards_parent ON cards(parent_id)",
	"CREATE INDEX IF NOT EXISTS idx_attachments_card ON attachments(card_id)",
	"CREATE INDEX IF NOT EXISTS idx_checklist_card ON checklist_items(card_id, parent_id, position)",
	"CREATE INDEX IF NOT EXISTS idx_card_tags_tag ON card_tags(tag_id)",
}

// migrations[i] upgrades a database from version i to i+1.
var migrations = [][]string{
	schemaV1,
}

// migrate brings the schema up to currentSchemaVersion in one transaction.
// It reports the version found on disk.
func migrate(ctx context.Context, db *sql.DB) (int, error) {
	version, err := storedSchemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	if version > currentSchemaVersion {
		return version, fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if version == currentSchemaVersion {
		return version, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return version, fmt.Errorf("begin migration: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	for v := version; v < currentSchemaVersion; v++ {
		for i, stmt := range migrations[v] {
			_, err = tx.ExecContext(ctx, stmt)
			if err != nil {
				return version, fmt.Errorf("migration %d statement %d: %w", v+1, i+1, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion))
	if err != nil {
		return version, fmt.Errorf("set user_version: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return version, fmt.Errorf("commit migration: %w", err)
	}

	return version, nil
}

// querier is satisfied by *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nullableID converts an optional id to a driver value.
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}

	return *id
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func idFromNull(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}

	return int64Ptr(n.Int64)
}
