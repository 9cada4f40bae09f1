// Package kvstore is the key-value persistence collaborator: one JSON document per key.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var ErrNotFound = errors.New("kvstore: key not found")

// Store persists opaque documents by key. PutAll writes a batch as one unit:
// SQLiteStore and MemoryStore update every key or none, FileStore rolls back the
// keys it already replaced when a later one fails to commit.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	PutAll(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var validKey = regexp.MustCompile(`^[a-z0-9_\-]+$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("kvstore: invalid key %q", key)
	}
	return nil
}

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the store for a backend rooted at dir
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendFile:
		return OpenFileStore(dir)
	case BackendSQLite:
		return OpenSQLiteStore(SQLitePath(dir))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", backend)
	}
}
