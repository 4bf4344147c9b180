package diagnostics

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog/log"
)

const schemaVersion = 1

// SQLiteSink persists every published lifecycle event to a local SQLite
// database, so a crash or restart doesn't lose the history of what went
// wrong mounting or unmounting components.
type SQLiteSink struct {
	id     string
	db     *sql.DB
	done   chan struct{}
	closed bool
}

// NewSQLiteSink opens (creating if necessary) a SQLite database at path and
// ensures its schema is current.
func NewSQLiteSink(id, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: open %s: %w", path, err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("diagnostics: enable WAL: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteSink{id: id, db: db, done: make(chan struct{})}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS lifecycle_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			type      TEXT NOT NULL,
			component TEXT,
			message   TEXT,
			occurred_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("diagnostics: migrate schema: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO schema_meta(key, value) VALUES('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", schemaVersion),
	)
	if err != nil {
		return fmt.Errorf("diagnostics: stamp schema version: %w", err)
	}
	return nil
}

// ID implements Subscriber.
func (s *SQLiteSink) ID() string { return s.id }

// Send implements Subscriber, persisting event.
func (s *SQLiteSink) Send(event Event) error {
	_, err := s.db.Exec(
		`INSERT INTO lifecycle_events(type, component, message, occurred_at) VALUES (?, ?, ?, ?)`,
		string(event.Type), event.Component, event.Message, event.Time,
	)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to persist lifecycle event")
	}
	return err
}

// Close implements Subscriber.
func (s *SQLiteSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return s.db.Close()
}

// Done implements Subscriber.
func (s *SQLiteSink) Done() <-chan struct{} { return s.done }
