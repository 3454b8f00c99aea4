package chaincode

import (
	"encoding/json"
	"maps"
	"slices"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/ledger"
)

// fakeStub keeps committed world state in a map. Like a peer, it does not
// show a transaction its own writes until commit is called.
type fakeStub struct {
	shim.ChaincodeStubInterface

	state   map[string][]byte
	pending map[string][]byte
	puts    []string
	txID    string
}

func newFakeStub() *fakeStub {
	return &fakeStub{state: map[string][]byte{}, pending: map[string][]byte{}, txID: "tx-1"}
}

func (s *fakeStub) GetTxID() string { return s.txID }

func (s *fakeStub) GetState(key string) ([]byte, error) {
	return s.state[key], nil
}

func (s *fakeStub) PutState(key string, value []byte) error {
	s.pending[key] = value
	s.puts = append(s.puts, key)
	return nil
}

func (s *fakeStub) GetStateByRange(start, end string) (shim.StateQueryIteratorInterface, error) {
	var kvs []*queryresult.KV
	for _, k := range slices.Sorted(maps.Keys(s.state)) {
		if k >= start && (end == "" || k < end) {
			kvs = append(kvs, &queryresult.KV{Key: k, Value: s.state[k]})
		}
	}
	return &fakeIterator{kvs: kvs}, nil
}

func (s *fakeStub) commit() {
	maps.Copy(s.state, s.pending)
	clear(s.pending)
	s.puts = nil
}

type fakeIterator struct {
	kvs    []*queryresult.KV
	closed bool
}

func (it *fakeIterator) HasNext() bool { return len(it.kvs) > 0 }

func (it *fakeIterator) Next() (*queryresult.KV, error) {
	kv := it.kvs[0]
	it.kvs = it.kvs[1:]
	return kv, nil
}

func (it *fakeIterator) Close() error {
	it.closed = true
	return nil
}

func txContext(stub *fakeStub) *contractapi.TransactionContext {
	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(stub)
	return ctx
}

// run calls fn in its own transaction and commits the writes.
func run[T any](t *testing.T, stub *fakeStub, fn func(contractapi.TransactionContextInterface) (T, error)) (T, error) {
	t.Helper()
	out, err := fn(txContext(stub))
	if err == nil {
		stub.commit()
	} else {
		clear(stub.pending)
	}
	return out, err
}

func TestContract_RegisterUniversityIssuesRewards(t *testing.T) {
	c := New(nil)
	stub := newFakeStub()

	members, err := c.RegisterUser(txContext(stub), "mit", "university")
	require.NoError(t, err)
	assert.Equal(t, []string{"uni_mit"}, members)

	// Writes reach the stub once, sorted by key.
	assert.True(t, slices.IsSorted(stub.puts))
	assert.Len(t, stub.puts, ledger.RewardsPerIssue+2)
	stub.commit()

	out, err := run(t, stub, func(ctx contractapi.TransactionContextInterface) (string, error) {
		return c.ListRewards(ctx, "uni_mit")
	})
	require.NoError(t, err)
	var rewards []ir.Asset
	require.NoError(t, json.Unmarshal([]byte(out), &rewards))
	assert.Len(t, rewards, ledger.RewardsPerIssue)
}

func TestContract_PurchaseFlow(t *testing.T) {
	c := New(nil)
	stub := newFakeStub()

	for _, reg := range [][2]string{{"mit", "university"}, {"alice", "student"}, {"cafe", "outlet"}} {
		_, err := run(t, stub, func(ctx contractapi.TransactionContextInterface) ([]string, error) {
			return c.RegisterUser(ctx, reg[0], reg[1])
		})
		require.NoError(t, err)
	}

	out, err := run(t, stub, func(ctx contractapi.TransactionContextInterface) (string, error) {
		return c.CreatePurchase(ctx, "alice", "cafe", "2024-05-01")
	})
	require.NoError(t, err)
	p, err := ir.DecodeAsset([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "p_0", p.ID)

	_, err = run(t, stub, func(ctx contractapi.TransactionContextInterface) (any, error) {
		return nil, c.ValidatePurchase(ctx, "cafe", "p_0")
	})
	require.NoError(t, err)

	out, err = run(t, stub, func(ctx contractapi.TransactionContextInterface) (string, error) {
		return c.ListValidPurchases(ctx, "mit", "alice")
	})
	require.NoError(t, err)
	assert.Contains(t, out, `"isValid":true`)

	ok, err := run(t, stub, func(ctx contractapi.TransactionContextInterface) (bool, error) {
		return c.AssetExists(ctx, "p_0")
	})
	require.NoError(t, err)
	assert.True(t, ok)

	granted, err := run(t, stub, func(ctx contractapi.TransactionContextInterface) (bool, error) {
		return c.GrantStreakReward(ctx, "mit", "alice")
	})
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestContract_ErrorsCommitNothing(t *testing.T) {
	c := New(nil)
	stub := newFakeStub()

	_, err := c.CreatePurchase(txContext(stub), "alice", "cafe", "2024-05-01")
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
	assert.Empty(t, stub.puts)

	out, err := c.ListFirstReward(txContext(stub), "mit")
	require.NoError(t, err)
	assert.Equal(t, "null", out)
}

func TestContract_InitLedger(t *testing.T) {
	c := New(nil)
	stub := newFakeStub()

	require.NoError(t, c.InitLedger(txContext(stub)))
	stub.commit()

	out, err := c.GetAllAssets(txContext(stub))
	require.NoError(t, err)
	assert.Contains(t, out, ledger.SeedID)
}

func TestNewChaincode(t *testing.T) {
	cc, err := contractapi.NewChaincode(New(nil))
	require.NoError(t, err)
	assert.NotNil(t, cc)
}
