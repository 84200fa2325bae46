package services

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the preference store using a BoltDB backend. It persists small key-value
// pairs, such as the UI theme, across restarts of the server.
type BoltDB struct {
	db *bolt.DB
}

const preferencesBucket = "preferences"

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the
// database with the required bucket and returns an error if the database cannot be opened or
// initialized. The database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(preferencesBucket))
		return err
	})

	return BoltDB{db: db}, err
}

// Preference retrieves the stored value for key. An absent key yields an empty string without
// an error.
func (b BoltDB) Preference(_ context.Context, key string) (string, error) {
	var value string
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(preferencesBucket))
		if bkt == nil {
			return nil
		}

		if v := bkt.Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetPreference stores value under key, overwriting any previous value.
func (b BoltDB) SetPreference(_ context.Context, key, value string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(preferencesBucket))
		if bkt == nil {
			return fmt.Errorf("bucket %s is missing", preferencesBucket)
		}

		return bkt.Put([]byte(key), []byte(value))
	})
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
