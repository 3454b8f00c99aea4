package ir

import (
	"encoding/json"
	"fmt"
)

// DocTypeAsset is the fixed discriminator stored on every asset.
const DocTypeAsset = "asset"

// ID prefixes of the two asset shapes.
const (
	PurchasePrefix = "p_"
	RewardPrefix   = "r_"
)

// Asset is the single record shape for purchases and reward tokens.
// Nullable fields are pointers so that null survives a round trip.
type Asset struct {
	ID        string  `json:"ID"`
	StudentID *string `json:"studentID"`
	OutletID  *string `json:"outletID"`
	Date      *string `json:"date"`
	IsValid   bool    `json:"isValid"`
	IsReward  bool    `json:"isReward"`
	Owner     *string `json:"owner"`
	DocType   string  `json:"docType"`
}

// NewPurchase builds a pending purchase record.
func NewPurchase(id, studentID, outletID, date string) Asset {
	return Asset{
		ID:        id,
		StudentID: &studentID,
		OutletID:  &outletID,
		Date:      &date,
		DocType:   DocTypeAsset,
	}
}

// NewReward builds a reward token held by owner.
func NewReward(id, owner string) Asset {
	return Asset{
		ID:       id,
		IsValid:  true,
		IsReward: true,
		Owner:    &owner,
		DocType:  DocTypeAsset,
	}
}

// OwnedBy reports whether the asset is a reward currently held by owner.
func (a Asset) OwnedBy(owner string) bool {
	return a.IsReward && a.Owner != nil && *a.Owner == owner
}

// ToIR converts the asset to its IR object form.
func (a Asset) ToIR() IRObject {
	return IRObject{
		"ID":        IRString(a.ID),
		"studentID": NullableString(a.StudentID),
		"outletID":  NullableString(a.OutletID),
		"date":      NullableString(a.Date),
		"isValid":   IRBool(a.IsValid),
		"isReward":  IRBool(a.IsReward),
		"owner":     NullableString(a.Owner),
		"docType":   IRString(a.DocType),
	}
}

// MarshalJSON emits the canonical encoding, so assets embedded in
// results serialize the same way they are stored.
func (a Asset) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(a.ToIR())
}

// EncodeAsset returns the canonical bytes stored for an asset.
func EncodeAsset(a Asset) ([]byte, error) {
	if a.ID == "" {
		return nil, fmt.Errorf("encode asset: empty ID")
	}
	return MarshalCanonical(a.ToIR())
}

// DecodeAsset parses stored bytes back into an Asset. Values that are
// not JSON objects or carry a different docType are rejected.
func DecodeAsset(data []byte) (Asset, error) {
	// alias drops the MarshalJSON method; decoding uses the struct tags.
	type alias Asset
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return Asset{}, fmt.Errorf("decode asset: %w", err)
	}
	if a.DocType != DocTypeAsset {
		return Asset{}, fmt.Errorf("decode asset: docType %q is not %q", a.DocType, DocTypeAsset)
	}
	if a.ID == "" {
		return Asset{}, fmt.Errorf("decode asset: missing ID")
	}
	return Asset(a), nil
}

// EncodeAssets returns the canonical JSON array of assets. A nil slice
// encodes as [] rather than null.
func EncodeAssets(assets []Asset) ([]byte, error) {
	arr := make(IRArray, len(assets))
	for i, a := range assets {
		arr[i] = a.ToIR()
	}
	return MarshalCanonical(arr)
}
