package db

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hrygo/mindcare/internal/profile"
	"github.com/hrygo/mindcare/store"
	"github.com/hrygo/mindcare/store/db/file"
	"github.com/hrygo/mindcare/store/db/memory"
	"github.com/hrygo/mindcare/store/db/postgres"
	"github.com/hrygo/mindcare/store/db/redis"
	"github.com/hrygo/mindcare/store/db/sqlite"
)

// NewDBDriver creates a document driver for profile.Driver.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "memory":
		driver = memory.NewDB()
	case "file":
		driver, err = file.NewDB(filepath.Join(profile.Data, "documents"))
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "redis":
		driver, err = redis.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
