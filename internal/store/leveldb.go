package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB stores records in a goleveldb database. Update uses a LevelDB
// transaction, which also blocks other writers until it commits.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB creates or opens a LevelDB directory at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tr, err := l.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("leveldb: begin: %w", err)
	}

	if err := fn(&levelTx{reader: tr, tr: tr}); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		tr.Discard()
		return fmt.Errorf("leveldb: commit: %w", err)
	}
	return nil
}

func (l *LevelDB) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := l.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("leveldb: snapshot: %w", err)
	}
	defer snap.Release()

	return fn(readOnlyTx{&levelTx{reader: snap}})
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

// levelReader is the read surface shared by *leveldb.Transaction and
// *leveldb.Snapshot.
type levelReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

type levelTx struct {
	reader levelReader
	tr     *leveldb.Transaction
}

func (t *levelTx) Get(key string) ([]byte, error) {
	v, err := t.reader.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb: get %q: %w", key, err)
	}
	return v, nil
}

func (t *levelTx) Put(key string, value []byte) error {
	if t.tr == nil {
		return ErrReadOnly
	}
	if err := t.tr.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("leveldb: put %q: %w", key, err)
	}
	return nil
}

func (t *levelTx) Scan(start, end string) iter.Seq2[KV, error] {
	return func(yield func(KV, error) bool) {
		r := &util.Range{Start: []byte(start)}
		if end != "" {
			r.Limit = []byte(end)
		}
		it := t.reader.NewIterator(r, nil)
		defer it.Release()

		for it.Next() {
			// Iterator buffers are reused on Next.
			kv := KV{Key: string(it.Key()), Value: slices.Clone(it.Value())}
			if !yield(kv, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(KV{}, fmt.Errorf("leveldb: scan: %w", err))
		}
	}
}
