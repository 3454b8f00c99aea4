package store

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

var recordsBucket = []byte("records")

// Bolt stores records in one bucket of a bbolt file.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt creates or opens a bbolt file at path. It waits at most one
// second for the file lock held by another process.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt: init bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltTx{bucket: tx.Bucket(recordsBucket)})
	})
}

func (b *Bolt) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(tx *bbolt.Tx) error {
		return fn(readOnlyTx{&boltTx{bucket: tx.Bucket(recordsBucket)}})
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

// boltTx copies every slice it hands out; bbolt memory is only valid
// for the life of the transaction.
type boltTx struct {
	bucket *bbolt.Bucket
}

func (t *boltTx) Get(key string) ([]byte, error) {
	v := t.bucket.Get([]byte(key))
	if v == nil {
		return nil, nil
	}
	return slices.Clone(v), nil
}

func (t *boltTx) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if err := t.bucket.Put([]byte(key), value); err != nil {
		return fmt.Errorf("bbolt: put %q: %w", key, err)
	}
	return nil
}

func (t *boltTx) Scan(start, end string) iter.Seq2[KV, error] {
	return func(yield func(KV, error) bool) {
		limit := []byte(end)
		c := t.bucket.Cursor()
		for k, v := c.Seek([]byte(start)); k != nil; k, v = c.Next() {
			if end != "" && bytes.Compare(k, limit) >= 0 {
				return
			}
			if !yield(KV{Key: string(k), Value: slices.Clone(v)}, nil) {
				return
			}
		}
	}
}
