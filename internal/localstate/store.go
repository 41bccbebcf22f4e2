// Package localstate persists small UI conveniences between runs: the
// theme, open campaign tabs, in-progress upload previews. Every operation is
// best-effort; failures are logged and never returned.
package localstate

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const bucketName = "local"

// Store is a bbolt-backed key/value store with JSON values. A nil *Store is
// valid and behaves as an empty store that discards writes.
type Store struct {
	db  *bbolt.DB
	log *zap.Logger
}

// Open opens (or creates) the state database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state bucket: %w", err)
	}
	return &Store{db: db, log: logger.Named("localstate")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get decodes the value stored under key into dest. It reports whether a
// value was found and decoded.
func (s *Store) Get(key string, dest any) bool {
	if s == nil || s.db == nil {
		return false
	}
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		payload := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if payload == nil {
			return nil
		}
		if err := json.Unmarshal(payload, dest); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		s.log.Warn("read local state", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

// Set stores value under key.
func (s *Store) Set(key string, value any) {
	if s == nil || s.db == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("encode local state", zap.String("key", key), zap.Error(err))
		return
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), payload)
	})
	if err != nil {
		s.log.Warn("write local state", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key.
func (s *Store) Delete(key string) {
	if s == nil || s.db == nil {
		return
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
	if err != nil {
		s.log.Warn("delete local state", zap.String("key", key), zap.Error(err))
	}
}

// Keys returns every key with the given prefix.
func (s *Store) Keys(prefix string) []string {
	if s == nil || s.db == nil {
		return nil
	}
	var keys []string
	_ = s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys
}
