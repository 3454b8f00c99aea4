package chaincode

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/hyperledger/fabric-chaincode-go/shim"

	"github.com/roach88/perks/internal/store"
)

// stubBackend adapts the world state of one Fabric transaction to
// store.Backend. The peer does not let a transaction read its own
// writes, so writes are buffered and only handed to PutState, in key
// order, once fn succeeds.
type stubBackend struct {
	stub shim.ChaincodeStubInterface
}

func (b stubBackend) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &stubTx{stub: b.stub, writes: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(tx.writes)) {
		if err := b.stub.PutState(key, tx.writes[key]); err != nil {
			return fmt.Errorf("put state %s: %w", key, err)
		}
	}
	return nil
}

func (b stubBackend) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&stubTx{stub: b.stub, readOnly: true})
}

func (stubBackend) Close() error {
	return nil
}

type stubTx struct {
	stub     shim.ChaincodeStubInterface
	writes   map[string][]byte
	readOnly bool
}

func (tx *stubTx) Get(key string) ([]byte, error) {
	if v, ok := tx.writes[key]; ok {
		return slices.Clone(v), nil
	}
	v, err := tx.stub.GetState(key)
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", key, err)
	}
	return v, nil
}

func (tx *stubTx) Put(key string, value []byte) error {
	if tx.readOnly {
		return store.ErrReadOnly
	}
	tx.writes[key] = slices.Clone(value)
	return nil
}

// Scan merges the committed range with buffered writes. Buffered values
// shadow committed ones.
func (tx *stubTx) Scan(start, end string) iter.Seq2[store.KV, error] {
	return func(yield func(store.KV, error) bool) {
		it, err := tx.stub.GetStateByRange(start, end)
		if err != nil {
			yield(store.KV{}, fmt.Errorf("state range [%s, %s): %w", start, end, err))
			return
		}
		defer it.Close()

		var pending []string
		for k := range tx.writes {
			if k >= start && (end == "" || k < end) {
				pending = append(pending, k)
			}
		}
		slices.Sort(pending)

		emitPending := func(upTo string, inclusive bool) bool {
			for len(pending) > 0 && (pending[0] < upTo || (inclusive && pending[0] == upTo)) {
				k := pending[0]
				pending = pending[1:]
				if !yield(store.KV{Key: k, Value: slices.Clone(tx.writes[k])}, nil) {
					return false
				}
			}
			return true
		}

		for it.HasNext() {
			kv, err := it.Next()
			if err != nil {
				yield(store.KV{}, fmt.Errorf("state range [%s, %s): %w", start, end, err))
				return
			}
			if !emitPending(kv.Key, false) {
				return
			}
			if _, shadowed := tx.writes[kv.Key]; shadowed {
				if !emitPending(kv.Key, true) {
					return
				}
				continue
			}
			if !yield(store.KV{Key: kv.Key, Value: kv.Value}, nil) {
				return
			}
		}
		for _, k := range pending {
			if !yield(store.KV{Key: k, Value: slices.Clone(tx.writes[k])}, nil) {
				return
			}
		}
	}
}
