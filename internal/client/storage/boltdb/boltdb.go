// Package boltdb implements the durable session slot on a BoltDB file.
package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/portalkeeper/portalkeeper/internal/client/storage"
)

var bucketSession = []byte("session")

// Storage represents BoltDB storage implementation for the agent
type Storage struct {
	db *bbolt.DB
}

// New opens (or creates) the BoltDB file at dbPath.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем bucket
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session bucket: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the stored value or storage.ErrKeyNotFound
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return fmt.Errorf("session bucket not found")
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrKeyNotFound
		}

		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}

	return value, nil
}

// Set stores the value under key
func (s *Storage) Set(ctx context.Context, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return fmt.Errorf("session bucket not found")
		}

		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("failed to save value: %w", err)
		}

		return nil
	})
}

// Delete removes the key. Missing keys are not an error: logout must be
// idempotent.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return fmt.Errorf("session bucket not found")
		}

		if err := bucket.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete value: %w", err)
		}

		return nil
	})
}
