package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDB is a Store backed by a LevelDB database directory.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a LevelDB database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("leveldb store path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve leveldb store path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb store: %w", err)
	}
	return &LevelDB{db: db}, nil
}

func (s *LevelDB) Get(_ context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrClosed
	}
	value, err := s.db.Get([]byte(key), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return "", false, nil
	case errors.Is(err, leveldb.ErrClosed):
		return "", false, ErrClosed
	case err != nil:
		return "", false, fmt.Errorf("leveldb get %q: %w", key, err)
	}
	return string(value), true, nil
}

func (s *LevelDB) Set(_ context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if err := s.db.Put([]byte(key), []byte(value), nil); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("leveldb put %q: %w", key, err)
	}
	return nil
}

func (s *LevelDB) Delete(_ context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if err := s.db.Delete([]byte(key), nil); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("leveldb delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying LevelDB resources.
func (s *LevelDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
