package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bot_config (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account TEXT UNIQUE NOT NULL,
		taken_name TEXT DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		source_id TEXT,
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		bot_id TEXT NOT NULL,
		raw_message TEXT NOT NULL,
		is_plain_text INTEGER DEFAULT 1,
		plain_text TEXT NOT NULL,
		keywords TEXT NOT NULL,
		time INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contexts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keywords TEXT UNIQUE NOT NULL,
		time INTEGER NOT NULL,
		trigger_count INTEGER DEFAULT 1,
		clear_time INTEGER DEFAULT 0,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		context_id INTEGER NOT NULL,
		keywords TEXT NOT NULL,
		group_id TEXT NOT NULL,
		count INTEGER DEFAULT 1,
		time INTEGER NOT NULL,
		messages TEXT DEFAULT '[]',
		FOREIGN KEY (context_id) REFERENCES contexts (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS bans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		context_id INTEGER NOT NULL,
		keywords TEXT NOT NULL,
		group_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		time INTEGER NOT NULL,
		FOREIGN KEY (context_id) REFERENCES contexts (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS blacklist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id TEXT UNIQUE NOT NULL,
		answers TEXT DEFAULT '[]',
		answers_reserve TEXT DEFAULT '[]',
		updated_at INTEGER NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_messages_time ON messages(time)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id, time)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_context ON answers(context_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bans_context ON bans(context_id)`,
	`CREATE INDEX IF NOT EXISTS idx_contexts_time ON contexts(time, trigger_count)`,
}

// OpenDB opens the sqlite database at dbPath and creates the schema
func OpenDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; serialize through a single connection
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, stmt := range indexes {
		_, _ = db.Exec(stmt)
	}

	return db, nil
}
