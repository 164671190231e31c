// Package kv holds the key-value backends of the alert and watch stores.
package kv

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/buntdb"
)

// Bunt stores records as "bucket:key" entries in a BuntDB file.
type Bunt struct {
	db *buntdb.DB
}

// NewBunt opens path, or an in-memory database for ":memory:".
func NewBunt(path string) (*Bunt, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{SyncPolicy: buntdb.Always}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	return &Bunt{db: db}, nil
}

func buntKey(bucket, key string) string {
	return bucket + ":" + key
}

func (b *Bunt) Load(_ context.Context, bucket string) (map[string][]byte, error) {
	prefix := buntKey(bucket, "")
	out := make(map[string][]byte)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, value string) bool {
			out[strings.TrimPrefix(key, prefix)] = []byte(value)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", bucket, err)
	}
	return out, nil
}

// Save replaces every record of the bucket in one transaction.
func (b *Bunt) Save(_ context.Context, bucket string, records map[string][]byte) error {
	prefix := buntKey(bucket, "")

	err := b.db.Update(func(tx *buntdb.Tx) error {
		var stale []string
		err := tx.AscendKeys(prefix+"*", func(key, _ string) bool {
			stale = append(stale, key)
			return true
		})
		if err != nil {
			return err
		}

		// deleting while iterating is not allowed
		for _, key := range stale {
			if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}

		for key, payload := range records {
			if _, _, err := tx.Set(buntKey(bucket, key), string(payload), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", bucket, err)
	}
	return nil
}

func (b *Bunt) Close() error {
	return b.db.Close()
}
