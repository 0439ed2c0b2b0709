package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// booking_claims is the uniqueness key space; bookings carries the same
// unique pair as a second line of defence.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id              BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name            VARCHAR(255) NOT NULL,
		total_seats     INT          NOT NULL,
		confirmed_count INT          NOT NULL DEFAULT 0,
		created_at      DATETIME(6)  NOT NULL,
		updated_at      DATETIME(6)  NOT NULL,
		CONSTRAINT chk_events_seats CHECK (total_seats > 0),
		CONSTRAINT chk_events_capacity CHECK (confirmed_count >= 0 AND confirmed_count <= total_seats)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_claims (
		event_id   BIGINT       NOT NULL,
		user_id    VARCHAR(191) NOT NULL,
		created_at DATETIME(6)  NOT NULL,
		PRIMARY KEY (event_id, user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		event_id   BIGINT       NOT NULL,
		user_id    VARCHAR(191) NOT NULL,
		created_at DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_bookings_event_user (event_id, user_id),
		KEY idx_bookings_user (user_id),
		CONSTRAINT fk_bookings_event FOREIGN KEY (event_id) REFERENCES events (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id              BIGSERIAL    PRIMARY KEY,
		name            TEXT         NOT NULL,
		total_seats     INTEGER      NOT NULL CHECK (total_seats > 0),
		confirmed_count INTEGER      NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ  NOT NULL,
		updated_at      TIMESTAMPTZ  NOT NULL,
		CONSTRAINT chk_events_capacity CHECK (confirmed_count >= 0 AND confirmed_count <= total_seats)
	)`,
	`CREATE TABLE IF NOT EXISTS booking_claims (
		event_id   BIGINT      NOT NULL,
		user_id    TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id         BIGSERIAL   PRIMARY KEY,
		event_id   BIGINT      NOT NULL REFERENCES events (id),
		user_id    TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_bookings_event_user UNIQUE (event_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings (user_id)`,
}

// MigrateMySQL creates the tables the MySQL store needs.
func MigrateMySQL(ctx context.Context, db *sql.DB) error {
	for i, stmt := range mysqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql schema step %d: %w", i+1, err)
		}
	}
	return nil
}

// MigratePostgres creates the tables the Postgres store needs.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema step %d: %w", i+1, err)
		}
	}
	return nil
}
