package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bbolt"
)

// Backends lists every backend name in documentation order.
var Backends = []string{BackendMemory, BackendSQLite, BackendLevelDB, BackendBolt}

// ErrReadOnly is returned by Put inside a View transaction.
var ErrReadOnly = errors.New("store: write in read-only transaction")

// KV is one key/value pair produced by a scan. Both slices are owned by
// the caller.
type KV struct {
	Key   string
	Value []byte
}

// Tx is the view of the store inside one transaction.
//
// Get returns (nil, nil) when the key is absent. Scan yields keys in
// [start, end) in byte order; an empty end means no upper bound. Writes
// made earlier in the same transaction are visible to Get and Scan.
// Callers must not Put while a Scan loop is still running.
type Tx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Scan(start, end string) iter.Seq2[KV, error]
}

// Backend is a transactional ordered key-value store.
type Backend interface {
	// Update runs fn in a read-write transaction and commits it if fn
	// returns nil.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Open creates or opens a backend by name. path is ignored by the memory
// backend.
func Open(backend, path string) (Backend, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(path)
	case BackendLevelDB:
		return OpenLevelDB(path)
	case BackendBolt:
		return OpenBolt(path)
	}
	return nil, fmt.Errorf("store: unknown backend %q", backend)
}

// Exists reports whether key holds a value.
func Exists(tx Tx, key string) (bool, error) {
	v, err := tx.Get(key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// inRange reports whether key falls in [start, end).
func inRange(key, start, end string) bool {
	return key >= start && (end == "" || key < end)
}

// readOnlyTx rejects writes on an otherwise writable transaction.
type readOnlyTx struct {
	Tx
}

func (readOnlyTx) Put(string, []byte) error {
	return ErrReadOnly
}
