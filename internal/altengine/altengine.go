// Package altengine implements the Engine contract (internal/engine.Engine)
// on top of go.etcd.io/bbolt, an embedded B+tree store — the Go analogue
// of the original project's sled-backed engine in
// original_source/src/engines/sled.rs. It exists to exercise the same
// domain contract against a second real storage library, and to give the
// CLI's --engine flag something to select between.
package altengine

import (
	"go.etcd.io/bbolt"

	"github.com/nilotpal-labs/emberkv/internal/engine"
	"github.com/nilotpal-labs/emberkv/pkg/kverrors"
)

var bucketName = []byte("kv")

// Engine adapts a bbolt.DB to internal/engine.Engine's Set/Get/Remove/Close
// contract.
type Engine struct {
	db *bbolt.DB
}

var _ engine.Engine = (*Engine)(nil)

// Open opens (creating if missing) a bbolt database file at path and
// ensures its single key-value bucket exists.
func Open(path string) (*Engine, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, kverrors.NewIOError(err, "open bbolt database").WithPath(path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, kverrors.NewIOError(err, "create bucket").WithPath(path)
	}

	return &Engine{db: db}, nil
}

// Set stores value under key in a single write transaction.
func (e *Engine) Set(key, value string) error {
	err := e.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return kverrors.NewIOError(err, "put key")
	}
	return nil
}

// Get returns key's value, or ok=false if key is absent.
func (e *Engine) Get(key string) (value string, ok bool, err error) {
	err = e.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			value = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, kverrors.NewIOError(err, "get key")
	}
	return value, ok, nil
}

// Remove deletes key. Unlike the bitcask engine, bbolt has no distinct
// "not found" write error, so Remove checks existence first to preserve
// the same KeyNotFoundError contract callers rely on.
func (e *Engine) Remove(key string) error {
	var found bool
	err := e.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(key)) == nil {
			return nil
		}
		found = true
		return b.Delete([]byte(key))
	})
	if err != nil {
		return kverrors.NewIOError(err, "delete key")
	}
	if !found {
		return kverrors.NewKeyNotFoundError(key)
	}
	return nil
}

// Close releases the underlying database file.
func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return kverrors.NewIOError(err, "close bbolt database")
	}
	return nil
}
