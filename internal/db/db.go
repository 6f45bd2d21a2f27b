package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect initializes the Postgres connection and runs migrations.
func Connect(dsn string, log *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info("database migrations applied")
	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
            id TEXT PRIMARY KEY,
            full_name TEXT,
            username TEXT UNIQUE,
            email TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            title TEXT,
            content TEXT NOT NULL,
            content_type TEXT NOT NULL DEFAULT 'text',
            audio_url TEXT,
            emotion_category TEXT NOT NULL DEFAULT '',
            is_public BOOLEAN NOT NULL DEFAULT FALSE,
            is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
            listener_type TEXT NOT NULL DEFAULT 'ai',
            ai_response TEXT,
            human_response TEXT,
            likes_count INT NOT NULL DEFAULT 0 CHECK (likes_count >= 0),
            comments_count INT NOT NULL DEFAULT 0 CHECK (comments_count >= 0),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            user_id TEXT NOT NULL REFERENCES profiles(id)
        );`,
		`CREATE TABLE IF NOT EXISTS comments (
            id TEXT PRIMARY KEY,
            message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL REFERENCES profiles(id),
            content TEXT NOT NULL,
            is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user ON messages (user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_public ON messages (is_public, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_message ON comments (message_id, created_at ASC);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// ConnectCassandra opens a gocql session against the razdel keyspace. Table
// creation is left to the keyspace owner; see the gateway package for the
// expected layout.
func ConnectCassandra(hosts []string, keyspace string, log *zap.Logger) (*gocql.Session, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect cassandra: %w", err)
	}
	log.Info("cassandra session established",
		zap.String("hosts", strings.Join(hosts, ",")), zap.String("keyspace", keyspace))
	return session, nil
}
