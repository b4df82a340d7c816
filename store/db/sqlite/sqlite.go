package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/mindcare/internal/profile"
	"github.com/hrygo/mindcare/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data BLOB NOT NULL,
	updated_ts BIGINT NOT NULL,
	PRIMARY KEY (collection, id)
)`

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database named by profile.DSN.
func NewDB(profile *profile.Profile) (*DB, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// - No foreign key constraints: documents have none.
	// - Journal mode set to WAL: readers do not block the single writer.
	// Each pragma must be prefixed with `_pragma=` for modernc.org/sqlite.
	separator := "?"
	if strings.Contains(profile.DSN, "?") {
		separator = "&"
	}
	dsn := profile.DSN + separator + "_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite: single connection is optimal with WAL
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Name() string {
	return "sqlite"
}

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate documents table")
	}
	return nil
}

func (d *DB) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var data []byte
	err := d.db.QueryRowContext(ctx, "SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get document %s/%s", collection, id)
	}
	return data, nil
}

func (d *DB) Put(ctx context.Context, collection, id string, data []byte) error {
	stmt := `INSERT INTO documents (collection, id, data, updated_ts) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_ts = excluded.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt, collection, id, data, time.Now().Unix()); err != nil {
		return errors.Wrapf(err, "failed to put document %s/%s", collection, id)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, collection, id string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id); err != nil {
		return errors.Wrapf(err, "failed to delete document %s/%s", collection, id)
	}
	return nil
}

func (d *DB) List(ctx context.Context, collection string) (map[string][]byte, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, data FROM documents WHERE collection = ?", collection)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list collection %s", collection)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		out[id] = data
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to list collection %s", collection)
	}
	return out, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
