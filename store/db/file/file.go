// Package file stores each document as a JSON file under
// <root>/<collection>/<id>.json.
package file

import (
	"context"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/mindcare/store"
)

const (
	documentExt = ".json"
	dirPerm     = 0o700
	filePerm    = 0o600
)

type DB struct {
	root string
}

// NewDB uses root as the document directory, creating it if needed.
func NewDB(root string) (*DB, error) {
	if root == "" {
		return nil, errors.New("file driver root required")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, errors.Wrapf(err, "failed to create document root %s", root)
	}
	return &DB{root: root}, nil
}

func (d *DB) Name() string {
	return "file"
}

func (d *DB) Migrate(context.Context) error {
	return nil
}

func (d *DB) Get(_ context.Context, collection, id string) ([]byte, error) {
	data, err := os.ReadFile(d.path(collection, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s/%s", collection, id)
	}
	return data, nil
}

// Put writes to a temporary file in the same directory and renames it into
// place, so readers never observe a partial document.
func (d *DB) Put(_ context.Context, collection, id string, data []byte) error {
	dir := filepath.Join(d.root, collection)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errors.Wrapf(err, "failed to create collection dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s/%s", collection, id)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to sync %s/%s", collection, id)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s/%s", collection, id)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return errors.Wrapf(err, "failed to chmod %s/%s", collection, id)
	}
	if err := os.Rename(tmpName, d.path(collection, id)); err != nil {
		return errors.Wrapf(err, "failed to replace %s/%s", collection, id)
	}
	return nil
}

func (d *DB) Delete(_ context.Context, collection, id string) error {
	err := os.Remove(d.path(collection, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "failed to delete %s/%s", collection, id)
	}
	return nil
}

func (d *DB) List(_ context.Context, collection string) (map[string][]byte, error) {
	dir := filepath.Join(d.root, collection)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", collection)
	}

	out := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, documentExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, documentExt))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s/%s", collection, id)
		}
		out[id] = data
	}
	return out, nil
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) path(collection, id string) string {
	return filepath.Join(d.root, collection, url.PathEscape(id)+documentExt)
}
