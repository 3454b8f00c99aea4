package ledger

import (
	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/store"
	"github.com/roach88/perks/internal/streak"
)

// CreatePurchase records a pending purchase by a registered student at a
// registered outlet.
func (l *Ledger) CreatePurchase(tx store.Tx, studentID, outletID, date string) (ir.Asset, error) {
	if err := l.requireRegistered(tx, ir.KindOutlet, outletID); err != nil {
		return ir.Asset{}, err
	}
	if err := l.requireRegistered(tx, ir.KindStudent, studentID); err != nil {
		return ir.Asset{}, err
	}
	if _, err := streak.ParseDate(date); err != nil {
		return ir.Asset{}, Errorf(InvalidArgument, "", "%v", err)
	}

	id, err := nextID(tx, purchaseCounterKey, ir.PurchasePrefix)
	if err != nil {
		return ir.Asset{}, err
	}
	a := ir.NewPurchase(id, studentID, outletID, date)
	if err := putAsset(tx, a); err != nil {
		return ir.Asset{}, err
	}

	l.logger.Debug("purchase created", "id", id, "student", studentID, "outlet", outletID, "date", date)
	return a, nil
}

// ValidatePurchase marks a purchase valid on behalf of its outlet.
// Validating an already valid purchase runs the same checks and leaves the
// stored bytes unchanged.
func (l *Ledger) ValidatePurchase(tx store.Tx, outletID, purchaseID string) error {
	a, err := l.ReadAsset(tx, purchaseID)
	if err != nil {
		return err
	}
	if !eq(a.OutletID, outletID) {
		return Errorf(PermissionDenied, purchaseID, "purchase does not belong to outlet %s", outletID)
	}

	a.IsValid = true
	if err := putAsset(tx, a); err != nil {
		return err
	}
	l.logger.Debug("purchase validated", "id", purchaseID, "outlet", outletID)
	return nil
}

// StudentValidPurchases lists the student's validated purchases in key
// order. The asking university must be registered.
func (l *Ledger) StudentValidPurchases(tx store.Tx, universityID, studentID string) ([]ir.Asset, error) {
	if err := l.requireRegistered(tx, ir.KindUniversity, universityID); err != nil {
		return nil, err
	}
	return l.collect(tx, func(a ir.Asset) bool {
		return eq(a.StudentID, studentID) && a.IsValid && !a.IsReward
	})
}

// OutletPurchases lists the outlet's purchases still waiting for
// validation.
func (l *Ledger) OutletPurchases(tx store.Tx, outletID string) ([]ir.Asset, error) {
	return l.collect(tx, func(a ir.Asset) bool {
		return eq(a.OutletID, outletID) && !a.IsValid && !a.IsReward
	})
}
