// Package kv provides the key-value backends that hold serialized collections.
// Every backend stores opaque byte values under string keys; callers own the
// encoding.
package kv

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Store is a get/set key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases resources held by the store.
	Close() error
}

// Error is the error type for sentinel kv errors.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrNotFound indicates the key holds no value.
	ErrNotFound Error = "kv: key not found"

	// ErrClosed indicates the store has been closed.
	ErrClosed Error = "kv: store closed"
)

// Options configures backends opened through Open.
type Options struct {
	// Prefix is prepended to every key by network backends (Redis).
	Prefix string
}

// Open returns a Store for rawURL. Supported schemes:
//
//	memory://
//	sqlite://path/to/file.db
//	redis://host:6379/0, rediss://...
//	mongodb://host:27017/dbname, mongodb+srv://...
func Open(ctx context.Context, rawURL string, opts Options) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("kv: parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "memory", "mem":
		return NewMemory(), nil
	case "sqlite", "sqlite3", "file":
		return NewSQLite(sqlitePath(u))
	case "redis", "rediss":
		return NewRedis(ctx, RedisOptions{URL: rawURL, Prefix: opts.Prefix})
	case "mongodb", "mongodb+srv":
		return NewMongo(ctx, MongoOptions{URI: rawURL})
	default:
		return nil, fmt.Errorf("kv: unsupported scheme %q", u.Scheme)
	}
}

// sqlitePath turns sqlite://data/x.db (host "data") and sqlite:///abs/x.db
// into a filesystem path.
func sqlitePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}

// Redact returns rawURL with any password replaced, for logging.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
