package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the database connection and bootstraps the schema.
func Connect(ctx context.Context, dsn string, log *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database schema ready")

	return db, nil
}

// The users and user_devices tables belong to the user service; they are
// created here only so a fresh database can serve the chat endpoints.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            ref TEXT NOT NULL UNIQUE,
            nickname TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS user_devices (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            fcm_token TEXT NOT NULL,
            device TEXT NOT NULL DEFAULT '',
            last_login TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS user_devices_user_idx ON user_devices(user_id, last_login DESC);`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
            id BIGSERIAL PRIMARY KEY,
            ref TEXT NOT NULL UNIQUE,
            user_a BIGINT NOT NULL REFERENCES users(id),
            user_b BIGINT NOT NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(user_a, user_b),
            CHECK (user_a < user_b)
        );`,
	`CREATE TABLE IF NOT EXISTS chat_room_views (
            id BIGSERIAL PRIMARY KEY,
            room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL REFERENCES users(id),
            title TEXT NOT NULL DEFAULT '',
            is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
            last_read BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(room_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS chats (
            id BIGSERIAL PRIMARY KEY,
            room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender BIGINT NOT NULL REFERENCES users(id),
            body TEXT NOT NULL,
            encoded BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS chats_room_id_idx ON chats(room_id, id DESC);`,
	`CREATE TABLE IF NOT EXISTS express_tickets (
            id BIGSERIAL PRIMARY KEY,
            sender BIGINT NOT NULL REFERENCES users(id),
            recipient BIGINT NOT NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS express_tickets_sender_idx ON express_tickets(sender, created_at);`,
	`CREATE TABLE IF NOT EXISTS notifications (
            id BIGSERIAL PRIMARY KEY,
            target BIGINT NOT NULL REFERENCES users(id),
            category TEXT NOT NULL,
            subject TEXT NOT NULL,
            title TEXT NOT NULL DEFAULT '',
            message TEXT NOT NULL DEFAULT '',
            payload JSONB NOT NULL DEFAULT '{}',
            read_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS notifications_target_idx ON notifications(target, id DESC);`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
