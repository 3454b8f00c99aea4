package store

import (
	"context"
	"encoding/binary"
	"encoding/hex"

	"github.com/roach88/perks/internal/ir"
)

// Digest returns a SHA-256 over every key/value pair in key order,
// reserved keys included. Two stores with the same digest hold the same
// bytes.
func Digest(ctx context.Context, b Backend) (string, error) {
	h := ir.NewDomainHash(ir.DomainState)
	var n [8]byte

	err := b.View(ctx, func(tx Tx) error {
		for kv, err := range tx.Scan("", "") {
			if err != nil {
				return err
			}
			binary.BigEndian.PutUint64(n[:], uint64(len(kv.Key)))
			h.Write(n[:])
			h.Write([]byte(kv.Key))
			binary.BigEndian.PutUint64(n[:], uint64(len(kv.Value)))
			h.Write(n[:])
			h.Write(kv.Value)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Dump returns every key/value pair in key order.
func Dump(ctx context.Context, b Backend) ([]KV, error) {
	var out []KV
	err := b.View(ctx, func(tx Tx) error {
		for kv, err := range tx.Scan("", "") {
			if err != nil {
				return err
			}
			out = append(out, kv)
		}
		return nil
	})
	return out, err
}
