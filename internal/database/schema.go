package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Dates are kept as fixed-width YYYY-MM-DD text in both dialects so that
// range filters compare them as strings.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		display_name  VARCHAR(100) NOT NULL DEFAULT '',
		role          VARCHAR(16)  NOT NULL DEFAULT 'user',
		is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
		created_at    DATETIME(6)  NOT NULL,
		updated_at    DATETIME(6)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    CHAR(36)    NOT NULL,
		token_hash CHAR(64)    NOT NULL UNIQUE,
		expires_at DATETIME(6) NOT NULL,
		revoked_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS slot_counters (
		slot_key     VARCHAR(32) NOT NULL PRIMARY KEY,
		slot_date    CHAR(10)    NOT NULL,
		slot         VARCHAR(16) NOT NULL,
		booked_count INT         NOT NULL DEFAULT 0,
		capacity     INT         NOT NULL,
		updated_at   DATETIME(6) NOT NULL,
		UNIQUE KEY uq_counter_date_slot (slot_date, slot),
		CHECK (booked_count >= 0),
		CHECK (capacity >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id                 CHAR(36)     NOT NULL PRIMARY KEY,
		slot_date          CHAR(10)     NOT NULL,
		slot               VARCHAR(16)  NOT NULL,
		owner_id           CHAR(36)     NOT NULL,
		owner_display_name VARCHAR(100) NOT NULL DEFAULT '',
		status             VARCHAR(16)  NOT NULL DEFAULT 'active',
		notes              TEXT         NOT NULL,
		idempotency_key    VARCHAR(128) NULL,
		created_at         DATETIME(6)  NOT NULL,
		updated_at         DATETIME(6)  NOT NULL,
		INDEX idx_reservations_date_slot (slot_date, slot, status),
		INDEX idx_reservations_owner (owner_id),
		UNIQUE KEY uq_reservations_idempotency (owner_id, idempotency_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservation_history (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		reservation_id CHAR(36)    NOT NULL,
		action         VARCHAR(16) NOT NULL,
		before_state   TEXT        NULL,
		after_state    TEXT        NULL,
		changed_by     CHAR(36)    NOT NULL,
		changed_at     DATETIME(6) NOT NULL,
		INDEX idx_history_reservation (reservation_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT     NOT NULL PRIMARY KEY,
		email         TEXT     NOT NULL UNIQUE,
		password_hash TEXT     NOT NULL,
		display_name  TEXT     NOT NULL DEFAULT '',
		role          TEXT     NOT NULL DEFAULT 'user',
		is_active     BOOLEAN  NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         INTEGER  PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT     NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT     NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_user ON refresh_tokens(user_id)`,
	`CREATE TABLE IF NOT EXISTS slot_counters (
		slot_key     TEXT     NOT NULL PRIMARY KEY,
		slot_date    TEXT     NOT NULL,
		slot         TEXT     NOT NULL,
		booked_count INTEGER  NOT NULL DEFAULT 0 CHECK (booked_count >= 0),
		capacity     INTEGER  NOT NULL CHECK (capacity >= 0),
		updated_at   DATETIME NOT NULL,
		UNIQUE (slot_date, slot)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id                 TEXT     NOT NULL PRIMARY KEY,
		slot_date          TEXT     NOT NULL,
		slot               TEXT     NOT NULL,
		owner_id           TEXT     NOT NULL,
		owner_display_name TEXT     NOT NULL DEFAULT '',
		status             TEXT     NOT NULL DEFAULT 'active',
		notes              TEXT     NOT NULL DEFAULT '',
		idempotency_key    TEXT     NULL,
		created_at         DATETIME NOT NULL,
		updated_at         DATETIME NOT NULL,
		UNIQUE (owner_id, idempotency_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_date_slot ON reservations(slot_date, slot, status)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_owner ON reservations(owner_id)`,
	`CREATE TABLE IF NOT EXISTS reservation_history (
		id             INTEGER  PRIMARY KEY AUTOINCREMENT,
		reservation_id TEXT     NOT NULL,
		action         TEXT     NOT NULL,
		before_state   TEXT     NULL,
		after_state    TEXT     NULL,
		changed_by     TEXT     NOT NULL,
		changed_at     DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_reservation ON reservation_history(reservation_id)`,
}

// Migrate creates any missing table for the given driver.  Statements are
// idempotent so it is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts := mysqlSchema
	if driver == DriverSQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
