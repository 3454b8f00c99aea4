package ledger

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strconv"

	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/store"
)

// Reserved keys.
const (
	ReservedPrefix     = "~"
	purchaseCounterKey = "~counter/purchase"
	rewardCounterKey   = "~counter/reward"
	registryKeyPrefix  = "~registry/"
)

// Ledger applies the bookkeeping rules to a transaction. It holds no state
// of its own and is safe to share.
type Ledger struct {
	logger *slog.Logger
}

// New creates a Ledger. A nil logger discards log output.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{logger: logger}
}

// IsReserved reports whether key belongs to the metadata namespace.
func IsReserved(key string) bool {
	return len(key) > 0 && key[:1] == ReservedPrefix
}

// nextID allocates the next number of a counter and returns prefix+n.
// Counters start at 0 and never go back.
func nextID(tx store.Tx, counterKey, prefix string) (string, error) {
	raw, err := tx.Get(counterKey)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", counterKey, err)
	}

	var n int64
	if raw != nil {
		n, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return "", fmt.Errorf("corrupt counter %s: %w", counterKey, err)
		}
	}

	next, err := ir.MarshalCanonical(ir.IRInt(n + 1))
	if err != nil {
		return "", err
	}
	if err := tx.Put(counterKey, next); err != nil {
		return "", fmt.Errorf("write %s: %w", counterKey, err)
	}
	return prefix + strconv.FormatInt(n, 10), nil
}

// assets yields every decodable asset in key order. Records that do not
// decode are logged and skipped; store errors end the sequence.
func (l *Ledger) assets(tx store.Tx) iter.Seq2[ir.Asset, error] {
	return func(yield func(ir.Asset, error) bool) {
		for kv, err := range tx.Scan("", ReservedPrefix) {
			if err != nil {
				yield(ir.Asset{}, fmt.Errorf("scan assets: %w", err))
				return
			}
			a, err := ir.DecodeAsset(kv.Value)
			if err != nil {
				l.logger.Warn("skipping undecodable record", "key", kv.Key, "error", err)
				continue
			}
			if !yield(a, nil) {
				return
			}
		}
	}
}

// collect gathers every asset matching keep.
func (l *Ledger) collect(tx store.Tx, keep func(ir.Asset) bool) ([]ir.Asset, error) {
	out := []ir.Asset{}
	for a, err := range l.assets(tx) {
		if err != nil {
			return nil, err
		}
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// first returns the first asset in key order matching keep, or nil. The
// scan stops at the match.
func (l *Ledger) first(tx store.Tx, keep func(ir.Asset) bool) (*ir.Asset, error) {
	for a, err := range l.assets(tx) {
		if err != nil {
			return nil, err
		}
		if keep(a) {
			return &a, nil
		}
	}
	return nil, nil
}

func putAsset(tx store.Tx, a ir.Asset) error {
	data, err := ir.EncodeAsset(a)
	if err != nil {
		return err
	}
	if err := tx.Put(a.ID, data); err != nil {
		return fmt.Errorf("write asset %s: %w", a.ID, err)
	}
	return nil
}

func eq(p *string, s string) bool {
	return p != nil && *p == s
}
