package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// maxOpenConns bounds the pool; every call checks out its own connection.
const maxOpenConns = 4

// DB wraps the SQLite connection pool. Writes are serialized through mu, reads are not.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// New creates and initializes a new SQLite database connection pool.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxOpenConns)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		camera TEXT NOT NULL,
		camera_name TEXT NOT NULL,
		location TEXT NOT NULL,
		label TEXT NOT NULL,
		confidence REAL NOT NULL,
		image TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alert_destinations (
		chat_id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_timestamp ON incidents(timestamp);
	CREATE INDEX IF NOT EXISTS idx_incidents_label_camera_ts ON incidents(label, camera, timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying pool for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires the write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}
