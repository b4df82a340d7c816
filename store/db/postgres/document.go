package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/mindcare/store"
)

func (d *DB) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var data []byte
	query := "SELECT data FROM documents WHERE collection = " + placeholder(1) + " AND id = " + placeholder(2)
	err := d.db.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get document %s/%s", collection, id)
	}
	return data, nil
}

func (d *DB) Put(ctx context.Context, collection, id string, data []byte) error {
	stmt := `INSERT INTO documents (collection, id, data, updated_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_ts = EXCLUDED.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt, collection, id, data, time.Now().Unix()); err != nil {
		return errors.Wrapf(err, "failed to put document %s/%s", collection, id)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, collection, id string) error {
	stmt := "DELETE FROM documents WHERE collection = " + placeholder(1) + " AND id = " + placeholder(2)
	if _, err := d.db.ExecContext(ctx, stmt, collection, id); err != nil {
		return errors.Wrapf(err, "failed to delete document %s/%s", collection, id)
	}
	return nil
}

func (d *DB) List(ctx context.Context, collection string) (map[string][]byte, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, data FROM documents WHERE collection = "+placeholder(1), collection)
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
