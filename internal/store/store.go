package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is the key-value persistence the trackers read and write. Values are
// JSON documents; a missing key reports found == false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Closer is implemented by backends that hold connections.
type Closer interface {
	Close() error
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Options selects and configures a backend.
type Options struct {
	Driver    string
	DSN       string
	RedisAddr string
}

// Open builds the backend named by opts.Driver.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite, "sqlite3":
		dsn := opts.DSN
		if dsn == "" {
			dsn = "data/learngames.db"
		}
		return OpenSQL(DriverSQLite, dsn)
	case DriverPostgres, "postgresql":
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres store requires STORE_DSN")
		}
		return OpenSQL(DriverPostgres, opts.DSN)
	case DriverRedis:
		return NewRedis(opts.RedisAddr)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, opts.Driver)
	}
}

// Close releases the backend if it holds resources.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
