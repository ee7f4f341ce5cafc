// Package db handles SQLite initialisation, schema migrations and the
// durable ledger.Store.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE: why modernc.org/sqlite instead of go-sqlite3?
// ────────────────────────────────────────────────────────────────────
// go-sqlite3 is a CGo binding and needs a C toolchain on the build
// machine. modernc.org/sqlite is a pure-Go port: no CGo, and it
// cross-compiles cleanly into scratch images. The driver registers
// itself under the name "sqlite".
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	// Blank import: the modernc driver registers itself with
	// database/sql under the name "sqlite" when this package loads.
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the SQLite database at dsn and runs all migrations.
//
// Recommended DSN formats for modernc.org/sqlite:
//   - Production file: "gigledger.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
//   - Tests:           "file:testXYZ?mode=memory&cache=shared&_pragma=foreign_keys(1)"
//
// Unless dsn names a _txlock mode, read-write transactions are opened with
// BEGIN IMMEDIATE. A deferred transaction that reads and then writes fails
// with SQLITE_BUSY_SNAPSHOT when another connection committed in between,
// and busy_timeout does not retry that. Read-only transactions stay deferred.
func Open(dsn string) (*sql.DB, error) {
	dsn = withTxLock(dsn)
	// sql.Open only validates the driver name; the first real connection
	// is made lazily by migrate.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Debug("database ready", "dsn", dsn)
	return db, nil
}

// withTxLock appends _txlock=immediate to dsn unless it already sets one.
func withTxLock(dsn string) string {
	if strings.Contains(dsn, "_txlock=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_txlock=immediate"
	}
	return dsn + "?_txlock=immediate"
}

// migrate runs each DDL statement in the schema individually.
// The drivers execute only the first statement of a multi-statement
// string, so the schema is split on ";".
func migrate(db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

// schema contains every CREATE TABLE statement for the application.
//
// LEARNING NOTE: schema design choices
//
//	system          key/value settings fixed at initialisation (the owner).
//
//	counters        process-wide counters; next_badge_id starts at 1.
//
//	accounts        one row per principal: eligibility flag and the
//	                  monotonic verified-project counter.
//
//	projects        append-only per-user list; (principal, idx) is the
//	                  stable identity of a project.
//
//	verified_hashes the global verification index. The PRIMARY KEY makes
//	                  a second insert of the same hash impossible.
//
//	reviews         append-only; seq keeps insertion order.
//
//	review_marks    reviewer×content-hash de-duplication set.
//
//	badges          minted tokens, id allocated from counters.
//
//	credentials     bcrypt password hashes used to issue JWTs. Not part
//	                  of the ledger state.
//
//	invites         one-time registration codes issued by the owner, stored
//	                  as bcrypt hashes and deleted once redeemed.
const schema = `
CREATE TABLE IF NOT EXISTS system (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS counters (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
    principal              TEXT PRIMARY KEY,
    verified               INTEGER NOT NULL DEFAULT 0,
    verified_project_count INTEGER NOT NULL DEFAULT 0 CHECK(verified_project_count >= 0),
    created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS projects (
    principal    TEXT NOT NULL REFERENCES accounts(principal),
    idx          INTEGER NOT NULL CHECK(idx >= 0),
    client       TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    link         TEXT NOT NULL DEFAULT '',
    verified     INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (principal, idx)
);

CREATE INDEX IF NOT EXISTS projects_content_hash ON projects(content_hash);

CREATE TABLE IF NOT EXISTS verified_hashes (
    content_hash TEXT PRIMARY KEY,
    verified_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reviews (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    freelancer   TEXT NOT NULL REFERENCES accounts(principal),
    reviewer     TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    rating       INTEGER NOT NULL CHECK(rating BETWEEN 0 AND 255),
    comment_hash TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS reviews_freelancer ON reviews(freelancer, seq);

CREATE TABLE IF NOT EXISTS review_marks (
    reviewer     TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    PRIMARY KEY (reviewer, content_hash)
);

CREATE TABLE IF NOT EXISTS badges (
    id         INTEGER PRIMARY KEY,
    owner      TEXT NOT NULL,
    uri        TEXT NOT NULL DEFAULT '',
    milestone  INTEGER NOT NULL DEFAULT 0,
    minted_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS badges_owner ON badges(owner, id);

CREATE TABLE IF NOT EXISTS credentials (
    principal     TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS invites (
    principal  TEXT PRIMARY KEY,
    code_hash  TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
