package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps each key in <dir>/<key>.json. Writes go to a temp file and are renamed
// into place, so a crash never leaves a half-written document.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	return s.PutAll(ctx, map[string][]byte{key: value})
}

// PutAll stages every document first, then renames them into place.
// A failed stage leaves every existing document untouched. A failed rename
// restores the documents already committed in this batch.
func (s *FileStore) PutAll(_ context.Context, values map[string][]byte) error {
	for key := range values {
		if err := checkKey(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]string, len(values))
	cleanup := func() {
		for _, tmp := range staged {
			// Best-effort temp cleanup.
			_ = os.Remove(tmp)
		}
	}

	for key, value := range values {
		tmp, err := s.stage(key, value)
		if err != nil {
			cleanup()
			return err
		}
		staged[key] = tmp
	}

	previous := make(map[string][]byte, len(staged))
	for key := range staged {
		raw, err := os.ReadFile(s.path(key))
		switch {
		case err == nil:
			previous[key] = raw
		case !errors.Is(err, fs.ErrNotExist):
			cleanup()
			return fmt.Errorf("kvstore: read %s: %w", key, err)
		}
	}

	committed := make([]string, 0, len(staged))
	for key, tmp := range staged {
		if err := os.Rename(tmp, s.path(key)); err != nil {
			cleanup()
			commitErr := fmt.Errorf("kvstore: commit %s: %w", key, err)
			return errors.Join(commitErr, s.rollback(committed, previous))
		}
		delete(staged, key)
		committed = append(committed, key)
	}
	return nil
}

// Must be called with mu held. Puts back what the keys held before the batch.
func (s *FileStore) rollback(keys []string, previous map[string][]byte) error {
	var errs []error
	for _, key := range keys {
		old, existed := previous[key]
		if !existed {
			if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("kvstore: rollback %s: %w", key, err))
			}
			continue
		}
		tmp, err := s.stage(key, old)
		if err != nil {
			errs = append(errs, fmt.Errorf("kvstore: rollback %s: %w", key, err))
			continue
		}
		if err := os.Rename(tmp, s.path(key)); err != nil {
			_ = os.Remove(tmp)
			errs = append(errs, fmt.Errorf("kvstore: rollback %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *FileStore) stage(key string, value []byte) (string, error) {
	f, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("kvstore: stage %s: %w", key, err)
	}
	if _, err := f.Write(value); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("kvstore: write %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("kvstore: sync %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("kvstore: close %s: %w", key, err)
	}
	return f.Name(), nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) Close() error {
	return nil
}
