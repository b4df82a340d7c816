// Package redis keeps each collection in one hash, keyed by document id.
package redis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hrygo/mindcare/internal/profile"
	"github.com/hrygo/mindcare/store"
)

const keyPrefix = "mindcare:"

type DB struct {
	client *redis.Client
}

// NewDB connects using profile.DSN, a redis:// URL.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}
	opts, err := redis.ParseURL(profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis dsn")
	}
	return NewDBWithClient(redis.NewClient(opts)), nil
}

func NewDBWithClient(client *redis.Client) *DB {
	return &DB{client: client}
}

func (d *DB) Name() string {
	return "redis"
}

// Migrate checks connectivity; hashes need no schema.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "failed to reach redis")
	}
	return nil
}

func (d *DB) Get(ctx context.Context, collection, id string) ([]byte, error) {
	data, err := d.client.HGet(ctx, collectionKey(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get document %s/%s", collection, id)
	}
	return data, nil
}

func (d *DB) Put(ctx context.Context, collection, id string, data []byte) error {
	if err := d.client.HSet(ctx, collectionKey(collection), id, data).Err(); err != nil {
		return errors.Wrapf(err, "failed to put document %s/%s", collection, id)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, collection, id string) error {
	if err := d.client.HDel(ctx, collectionKey(collection), id).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete document %s/%s", collection, id)
	}
	return nil
}

func (d *DB) List(ctx context.Context, collection string) (map[string][]byte, error) {
	values, err := d.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list collection %s", collection)
	}
	out := make(map[string][]byte, len(values))
	for id, v := range values {
		out[id] = []byte(v)
	}
	return out, nil
}

func (d *DB) Close() error {
	return d.client.Close()
}

func collectionKey(collection string) string {
	return keyPrefix + collection
}
