package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perks/internal/engine"
	"github.com/roach88/perks/internal/store"
)

func invocation(seq int64, op string, args ...string) TraceEvent {
	return TraceEvent{Type: EventInvocation, Seq: seq, Op: op, Args: args}
}

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		invocation(1, "RegisterUser", "mit", "university"),
		{Type: EventCompletion, Seq: 2},
		invocation(3, "RegisterUser", "alice", "student"),
		{Type: EventCompletion, Seq: 4},
		invocation(5, "TransferReward", "mit", "alice"),
		{Type: EventCompletion, Seq: 6},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "TransferReward"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "RegisterUser", Args: []string{"alice", "student"}}))

	err := assertTraceContains(trace, Assertion{Op: "RegisterUser", Args: []string{"cafe", "outlet"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")
	assert.Contains(t, err.Error(), "[5] TransferReward [mit alice]")

	assert.Error(t, assertTraceContains(trace, Assertion{Op: "GrantStreakReward"}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{"RegisterUser", "TransferReward"}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{"TransferReward", "RegisterUser"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Ops: []string{"RegisterUser", "ListRewards"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: ListRewards")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "RegisterUser", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "ReadAsset", Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: "RegisterUser", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestMatchValue(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{"equal strings", "p_0", "p_0", true},
		{"different strings", "p_0", "p_1", false},
		{"int against decoded number", float64(10), 10, true},
		{"int against other number", float64(9), 10, false},
		{"null", nil, nil, true},
		{"null against value", "x", nil, false},
		{"subset of object", map[string]any{"ID": "r_0", "owner": "stud_alice"}, map[string]any{"owner": "stud_alice"}, true},
		{"missing key", map[string]any{"ID": "r_0"}, map[string]any{"owner": "stud_alice"}, false},
		{"null field", map[string]any{"date": nil}, map[string]any{"date": nil}, true},
		{"array lengths differ", []any{"a"}, []any{"a", "b"}, false},
		{"array of objects", []any{map[string]any{"ID": "r_0", "isReward": true}}, []any{map[string]any{"isReward": true}}, true},
		{"object against scalar", "x", map[string]any{"ID": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchValue(tt.actual, tt.expected))
		})
	}
}

func TestAssertAssetAndRewards(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemory()
	e := engine.New(backend)

	_, err := e.RegisterUser(ctx, "mit", "university")
	require.NoError(t, err)
	_, err = e.RegisterUser(ctx, "alice", "student")
	require.NoError(t, err)
	require.NoError(t, e.TransferReward(ctx, "mit", "alice"))

	actx := &AssertionContext{Ctx: ctx, Backend: backend}
	result := NewResult()

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertAsset, ID: "r_0", Expect: map[string]any{"owner": "stud_alice", "isReward": true}},
		{Type: AssertAsset, ID: "p_0", Absent: true},
		{Type: AssertRewards, Owner: "uni_mit", Count: 9},
		{Type: AssertRewards, Owner: "stud_alice", Count: 1},
	}, actx)
	assert.Empty(t, failures)

	failures = EvaluateAssertions(result, []Assertion{
		{Type: AssertAsset, ID: "r_0", Expect: map[string]any{"owner": "uni_mit"}},
		{Type: AssertAsset, ID: "r_1", Absent: true},
		{Type: AssertAsset, ID: "p_0", Expect: map[string]any{"isValid": true}},
		{Type: AssertRewards, Owner: "stud_alice", Count: 2},
	}, actx)
	require.Len(t, failures, 4)
	assert.Contains(t, failures[0], `"owner":"stud_alice"`)
	assert.Contains(t, failures[1], "asset exists")
	assert.Contains(t, failures[2], "not found")
	assert.Contains(t, failures[3], "1 rewards")
}

func TestEvaluateAssertions_NeedsStore(t *testing.T) {
	failures := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertRewards, Owner: "uni_mit", Count: 10},
		{Type: "bogus"},
	}, nil)
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "requires a store")
	assert.Contains(t, failures[1], `unknown assertion type "bogus"`)
}
