package store

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-process backend. Update takes the write lock for the
// whole transaction and buffers writes until fn succeeds.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{base: m.data, writes: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	maps.Copy(m.data, tx.writes)
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(readOnlyTx{&memTx{base: m.data}})
}

func (m *Memory) Close() error {
	return nil
}

type memTx struct {
	base   map[string][]byte
	writes map[string][]byte
}

func (tx *memTx) Get(key string) ([]byte, error) {
	if v, ok := tx.writes[key]; ok {
		return slices.Clone(v), nil
	}
	if v, ok := tx.base[key]; ok {
		return slices.Clone(v), nil
	}
	return nil, nil
}

func (tx *memTx) Put(key string, value []byte) error {
	tx.writes[key] = slices.Clone(value)
	return nil
}

func (tx *memTx) Scan(start, end string) iter.Seq2[KV, error] {
	return func(yield func(KV, error) bool) {
		keys := make([]string, 0)
		for k := range tx.base {
			if inRange(k, start, end) {
				keys = append(keys, k)
			}
		}
		for k := range tx.writes {
			if _, dup := tx.base[k]; !dup && inRange(k, start, end) {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)

		for _, k := range keys {
			v, _ := tx.Get(k)
			if !yield(KV{Key: k, Value: v}, nil) {
				return
			}
		}
	}
}
