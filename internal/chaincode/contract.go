// Package chaincode exposes the perks ledger as a Hyperledger Fabric
// contract. Every contract method runs the matching engine operation
// against the transaction's world state.
package chaincode

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/roach88/perks/internal/engine"
	"github.com/roach88/perks/internal/ir"
)

// Contract is the Fabric contract. Asset results are returned as
// canonical JSON strings.
type Contract struct {
	contractapi.Contract

	logger *slog.Logger
}

// New returns a contract that logs through logger. A nil logger discards.
func New(logger *slog.Logger) *Contract {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Contract{logger: logger}
	c.Name = "perks"
	c.Info.Version = ir.EngineVersion
	c.Info.Title = "perks loyalty ledger"
	return c
}

// txIDOf stamps engine invocations with the Fabric transaction ID.
type txIDOf string

func (id txIDOf) Generate() string { return string(id) }

// invoke runs op inside the transaction carried by ctx.
func (c *Contract) invoke(ctx contractapi.TransactionContextInterface, op string, args ...string) (string, error) {
	stub := ctx.GetStub()
	e := engine.New(stubBackend{stub: stub},
		engine.WithTxIDGenerator(txIDOf(stub.GetTxID())),
		engine.WithLogger(c.logger.With("tx_id", stub.GetTxID())),
	)
	out, err := e.Invoke(context.Background(), op, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Contract) InitLedger(ctx contractapi.TransactionContextInterface) error {
	_, err := c.invoke(ctx, engine.OpInitLedger)
	return err
}

// RegisterUser registers identity as kind and returns that kind's registry.
func (c *Contract) RegisterUser(ctx contractapi.TransactionContextInterface, identity, kind string) ([]string, error) {
	out, err := c.invoke(ctx, engine.OpRegisterUser, identity, kind)
	if err != nil {
		return nil, err
	}
	var members []string
	if err := json.Unmarshal([]byte(out), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Contract) IssueRewardsFor(ctx contractapi.TransactionContextInterface, universityID string) error {
	_, err := c.invoke(ctx, engine.OpIssueRewardsFor, universityID)
	return err
}

// ListFirstReward returns the reward as JSON, or "null" if there is none.
func (c *Contract) ListFirstReward(ctx contractapi.TransactionContextInterface, universityID string) (string, error) {
	return c.invoke(ctx, engine.OpListFirstReward, universityID)
}

func (c *Contract) TransferReward(ctx contractapi.TransactionContextInterface, universityID, studentID string) error {
	_, err := c.invoke(ctx, engine.OpTransferReward, universityID, studentID)
	return err
}

func (c *Contract) ListRewards(ctx contractapi.TransactionContextInterface, ownerID string) (string, error) {
	return c.invoke(ctx, engine.OpListRewards, ownerID)
}

func (c *Contract) CreatePurchase(ctx contractapi.TransactionContextInterface, studentID, outletID, date string) (string, error) {
	return c.invoke(ctx, engine.OpCreatePurchase, studentID, outletID, date)
}

func (c *Contract) ListValidPurchases(ctx contractapi.TransactionContextInterface, universityID, studentID string) (string, error) {
	return c.invoke(ctx, engine.OpListValidPurchases, universityID, studentID)
}

func (c *Contract) ListOutletPurchases(ctx contractapi.TransactionContextInterface, outletID string) (string, error) {
	return c.invoke(ctx, engine.OpListOutletPurchases, outletID)
}

func (c *Contract) ReadAsset(ctx contractapi.TransactionContextInterface, id string) (string, error) {
	return c.invoke(ctx, engine.OpReadAsset, id)
}

func (c *Contract) AssetExists(ctx contractapi.TransactionContextInterface, id string) (bool, error) {
	out, err := c.invoke(ctx, engine.OpAssetExists, id)
	return out == "true", err
}

func (c *Contract) ValidatePurchase(ctx contractapi.TransactionContextInterface, outletID, purchaseID string) error {
	_, err := c.invoke(ctx, engine.OpValidatePurchase, outletID, purchaseID)
	return err
}

func (c *Contract) GetAllAssets(ctx contractapi.TransactionContextInterface) (string, error) {
	return c.invoke(ctx, engine.OpGetAllAssets)
}

// GrantStreakReward reports whether the student's streak earned a reward.
func (c *Contract) GrantStreakReward(ctx contractapi.TransactionContextInterface, universityID, studentID string) (bool, error) {
	out, err := c.invoke(ctx, engine.OpGrantStreakReward, universityID, studentID)
	return out == "true", err
}
