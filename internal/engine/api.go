package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/perks/internal/ir"
)

// Typed wrappers over Invoke. Each one goes through the same journaled
// path as a raw invocation and decodes the canonical result.

// InitLedger seeds the ledger with its sample purchase.
func (e *Engine) InitLedger(ctx context.Context) error {
	_, err := e.Invoke(ctx, OpInitLedger)
	return err
}

// RegisterUser registers identity under kind and returns the updated
// registry of that kind. Registering a university also issues its rewards.
func (e *Engine) RegisterUser(ctx context.Context, identity string, kind ir.Kind) ([]string, error) {
	out, err := e.Invoke(ctx, OpRegisterUser, identity, string(kind))
	if err != nil {
		return nil, err
	}
	var members []string
	if err := json.Unmarshal(out, &members); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", OpRegisterUser, err)
	}
	return members, nil
}

// IssueRewardsFor issues a fresh batch of rewards owned by universityID.
func (e *Engine) IssueRewardsFor(ctx context.Context, universityID string) error {
	_, err := e.Invoke(ctx, OpIssueRewardsFor, universityID)
	return err
}

// ListFirstReward returns the first reward in key order owned by
// universityID, or nil if it owns none.
func (e *Engine) ListFirstReward(ctx context.Context, universityID string) (*ir.Asset, error) {
	out, err := e.Invoke(ctx, OpListFirstReward, universityID)
	if err != nil {
		return nil, err
	}
	if string(out) == "null" {
		return nil, nil
	}
	a, err := ir.DecodeAsset(out)
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", OpListFirstReward, err)
	}
	return &a, nil
}

// TransferReward moves one reward from universityID to studentID.
func (e *Engine) TransferReward(ctx context.Context, universityID, studentID string) error {
	_, err := e.Invoke(ctx, OpTransferReward, universityID, studentID)
	return err
}

// ListRewards returns every reward owned by ownerID.
func (e *Engine) ListRewards(ctx context.Context, ownerID string) ([]ir.Asset, error) {
	return e.invokeAssets(ctx, OpListRewards, ownerID)
}

// CreatePurchase records a purchase and returns it.
func (e *Engine) CreatePurchase(ctx context.Context, studentID, outletID, date string) (ir.Asset, error) {
	out, err := e.Invoke(ctx, OpCreatePurchase, studentID, outletID, date)
	if err != nil {
		return ir.Asset{}, err
	}
	return decodeAsset(OpCreatePurchase, out)
}

// ListValidPurchases returns the valid purchases of studentID, as seen by
// universityID.
func (e *Engine) ListValidPurchases(ctx context.Context, universityID, studentID string) ([]ir.Asset, error) {
	return e.invokeAssets(ctx, OpListValidPurchases, universityID, studentID)
}

// ListOutletPurchases returns the purchases made at outletID that are still
// waiting for validation.
func (e *Engine) ListOutletPurchases(ctx context.Context, outletID string) ([]ir.Asset, error) {
	return e.invokeAssets(ctx, OpListOutletPurchases, outletID)
}

// ReadAsset returns the asset stored under id.
func (e *Engine) ReadAsset(ctx context.Context, id string) (ir.Asset, error) {
	out, err := e.Invoke(ctx, OpReadAsset, id)
	if err != nil {
		return ir.Asset{}, err
	}
	return decodeAsset(OpReadAsset, out)
}

// AssetExists reports whether an asset is stored under id.
func (e *Engine) AssetExists(ctx context.Context, id string) (bool, error) {
	out, err := e.Invoke(ctx, OpAssetExists, id)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(out, &ok); err != nil {
		return false, fmt.Errorf("decode %s result: %w", OpAssetExists, err)
	}
	return ok, nil
}

// ValidatePurchase marks a purchase valid on behalf of outletID.
func (e *Engine) ValidatePurchase(ctx context.Context, outletID, purchaseID string) error {
	_, err := e.Invoke(ctx, OpValidatePurchase, outletID, purchaseID)
	return err
}

// GetAllAssets returns every asset in key order.
func (e *Engine) GetAllAssets(ctx context.Context) ([]ir.Asset, error) {
	return e.invokeAssets(ctx, OpGetAllAssets)
}

// GrantStreakReward transfers a reward to studentID if their valid
// purchases form a streak. It reports whether a reward was granted.
func (e *Engine) GrantStreakReward(ctx context.Context, universityID, studentID string) (bool, error) {
	out, err := e.Invoke(ctx, OpGrantStreakReward, universityID, studentID)
	if err != nil {
		return false, err
	}
	var granted bool
	if err := json.Unmarshal(out, &granted); err != nil {
		return false, fmt.Errorf("decode %s result: %w", OpGrantStreakReward, err)
	}
	return granted, nil
}

func (e *Engine) invokeAssets(ctx context.Context, op string, args ...string) ([]ir.Asset, error) {
	out, err := e.Invoke(ctx, op, args...)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", op, err)
	}
	assets := make([]ir.Asset, 0, len(raw))
	for _, r := range raw {
		a, err := decodeAsset(op, r)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

func decodeAsset(op string, data []byte) (ir.Asset, error) {
	a, err := ir.DecodeAsset(data)
	if err != nil {
		return ir.Asset{}, fmt.Errorf("decode %s result: %w", op, err)
	}
	return a, nil
}
