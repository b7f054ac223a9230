package invoice

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const blobBucket = "scanify"

// BlobStore is the durable string-keyed blob collaborator backing the
// record store. Get reports absence separately from failure so callers can
// tell "never written" from "could not read".
type BlobStore interface {
	// Get returns the blob stored under key, or found=false if absent.
	Get(key string) (value string, found bool, err error)

	// Set stores a blob under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes the blob under key. Removing an absent key is not an
	// error.
	Remove(key string) error

	// Close closes the underlying database.
	Close() error
}

// BoltStore implements the BlobStore interface using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore instance
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(blobBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get returns the blob stored under key
func (b *BoltStore) Get(key string) (string, bool, error) {
	var value string
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(blobBucket)).Get([]byte(key))
		if data != nil {
			value = string(data)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("reading blob %q: %w", key, err)
	}
	return value, found, nil
}

// Set stores a blob under key
func (b *BoltStore) Set(key, value string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(blobBucket)).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("writing blob %q: %w", key, err)
	}
	return nil
}

// Remove deletes the blob under key
func (b *BoltStore) Remove(key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(blobBucket)).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("removing blob %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
