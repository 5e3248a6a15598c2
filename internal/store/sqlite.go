package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"deferq/internal/domain"
)

const taskListKey = "tasks"

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL,
  version INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := db.Exec(schema)
	return err
}

type sqliteStore struct{ db *sql.DB }

// NewSQLite returns a Store backed by a single-row KV table. The backing
// medium only supports whole-value get/set, so every save rewrites the full
// serialized list.
func NewSQLite(db *sql.DB) Store { return &sqliteStore{db: db} }

func (s *sqliteStore) Load(ctx context.Context) ([]domain.Task, uint64, error) {
	row := s.db.QueryRowContext(ctx, "SELECT value, version FROM kv WHERE key=?", taskListKey)
	var blob []byte
	var version uint64
	if err := row.Scan(&blob, &version); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, nil
		}
		log.Warn().Err(err).Msg("task list read failed, starting empty")
		return nil, 0, nil
	}
	tasks, v, err := decodeTasks(blob)
	if err != nil {
		log.Warn().Err(err).Msg("task list corrupt, starting empty")
		return nil, 0, nil
	}
	if v < version {
		v = version
	}
	return tasks, v, nil
}

func (s *sqliteStore) Save(ctx context.Context, tasks []domain.Task, version uint64) error {
	blob, err := encodeTasks(tasks, version, time.Now())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var stored uint64
	row := tx.QueryRowContext(ctx, "SELECT version FROM kv WHERE key=?", taskListKey)
	switch scanErr := row.Scan(&stored); scanErr {
	case nil:
		if stored >= version {
			err = ErrStaleVersion
			return err
		}
	case sql.ErrNoRows:
		// first write
	default:
		err = scanErr
		return err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO kv (key, value, version, updated_at) VALUES (?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, version=excluded.version, updated_at=CURRENT_TIMESTAMP
`, taskListKey, blob, version)
	if err != nil {
		return err
	}
	return tx.Commit()
}
