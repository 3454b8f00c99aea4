package ledger

import (
	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/store"
)

// SeedID is the placeholder purchase written by InitLedger.
const SeedID = "p_test0"

// InitLedger writes the placeholder purchase used to check that a fresh
// store accepts writes. It does not touch counters or registries.
func (l *Ledger) InitLedger(tx store.Tx) (ir.Asset, error) {
	student, outlet := "stud_test0", "out_test0"
	seed := ir.Asset{
		ID:        SeedID,
		StudentID: &student,
		OutletID:  &outlet,
		DocType:   ir.DocTypeAsset,
	}
	if err := putAsset(tx, seed); err != nil {
		return ir.Asset{}, err
	}
	l.logger.Debug("ledger initialized", "seed", SeedID)
	return seed, nil
}

// ReadAsset returns the asset stored under id.
func (l *Ledger) ReadAsset(tx store.Tx, id string) (ir.Asset, error) {
	if id == "" || IsReserved(id) {
		return ir.Asset{}, Errorf(NotFound, id, "asset does not exist")
	}
	raw, err := tx.Get(id)
	if err != nil {
		return ir.Asset{}, err
	}
	if raw == nil {
		return ir.Asset{}, Errorf(NotFound, id, "asset does not exist")
	}
	return ir.DecodeAsset(raw)
}

// AssetExists reports whether an asset is stored under id.
func (l *Ledger) AssetExists(tx store.Tx, id string) (bool, error) {
	if id == "" || IsReserved(id) {
		return false, nil
	}
	return store.Exists(tx, id)
}

// AllAssets returns every asset in key order.
func (l *Ledger) AllAssets(tx store.Tx) ([]ir.Asset, error) {
	return l.collect(tx, func(ir.Asset) bool { return true })
}
