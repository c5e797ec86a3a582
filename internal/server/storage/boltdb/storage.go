package boltdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketTokens     = []byte("refresh_tokens") // token -> JSON записи
	bucketUserTokens = []byte("user_tokens")    // user_id -> вложенный bucket с токенами
)

// ErrStorageClosed is returned by every operation after Close.
var ErrStorageClosed = errors.New("storage is closed")

// Storage implements storage.TokenStorage on a single bbolt file.
// Every mutation is one bbolt Update transaction, so revoke-all is atomic.
type Storage struct {
	db *bbolt.DB
}

// New opens (or creates) the BoltDB ledger file at dbPath
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database file. Safe to call twice.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketTokens, bucketUserTokens} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// Ping проверяет, что файл открыт и читается
func (s *Storage) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrStorageClosed
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketTokens) == nil {
			return fmt.Errorf("bucket %s is missing", bucketTokens)
		}
		return nil
	})
}
