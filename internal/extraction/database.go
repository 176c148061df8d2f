package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "attempts"

// ErrNotFound is returned when no attempt has the requested ID.
var ErrNotFound = errors.New("attempt not found")

// DB defines the interface for database operations
type DB interface {
	// SaveAttempt saves an attempt to the database
	SaveAttempt(attempt *Attempt) error

	// GetAttempt retrieves an attempt by ID
	GetAttempt(id string) (*Attempt, error)

	// ListAttempts returns all attempts
	ListAttempts() ([]*Attempt, error)

	// DeleteAttempt removes an attempt from the database
	DeleteAttempt(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveAttempt saves an attempt to the database
func (b *BoltDB) SaveAttempt(attempt *Attempt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(attempt)
		if err != nil {
			return fmt.Errorf("marshaling attempt: %w", err)
		}
		return bucket.Put([]byte(attempt.ID), data)
	})
}

// GetAttempt retrieves an attempt by ID
func (b *BoltDB) GetAttempt(id string) (*Attempt, error) {
	var attempt *Attempt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &attempt)
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// ListAttempts returns all attempts in key order
func (b *BoltDB) ListAttempts() ([]*Attempt, error) {
	attempts := make([]*Attempt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var attempt Attempt
			if err := json.Unmarshal(v, &attempt); err != nil {
				return fmt.Errorf("unmarshaling attempt: %w", err)
			}
			attempts = append(attempts, &attempt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// DeleteAttempt removes an attempt from the database
func (b *BoltDB) DeleteAttempt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
