package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perks/internal/store"
)

func campusSetup() []Step {
	return []Step{
		{Op: "RegisterUser", Args: []string{"mit", "university"}},
		{Op: "RegisterUser", Args: []string{"alice", "student"}},
		{Op: "RegisterUser", Args: []string{"cafe", "outlet"}},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "An empty ledger lists no assets",
		Flow:        []FlowStep{{Op: "GetAllAssets"}},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Op: "GetAllAssets"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, EventInvocation, result.Trace[0].Type)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, EventCompletion, result.Trace[1].Type)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.NotEmpty(t, result.Digest)
}

func TestRun_SetupIsTraced(t *testing.T) {
	scenario := &Scenario{
		Name:        "with_setup",
		Description: "Setup steps appear in the trace ahead of the flow",
		Setup:       campusSetup(),
		Flow: []FlowStep{
			{Op: "CreatePurchase", Args: []string{"alice", "cafe", "2024-01-01"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 8)
	assert.Equal(t, "RegisterUser", result.Trace[0].Op)
	assert.Equal(t, []string{"mit", "university"}, result.Trace[0].Args)
	assert.Equal(t, "CreatePurchase", result.Trace[6].Op)
}

func TestRun_SetupFailureIsError(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_setup",
		Description: "A failing setup step aborts the run",
		Setup: []Step{
			{Op: "TransferReward", Args: []string{"mit", "alice"}},
		},
		Flow: []FlowStep{{Op: "GetAllAssets"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (TransferReward)")
}

func TestRun_UnexpectedErrorFailsScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected_error",
		Description: "A flow error nobody expected fails the scenario",
		Flow: []FlowStep{
			{Op: "ReadAsset", Args: []string{"p_0"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error "", got "NOT_FOUND"`)
	assert.Equal(t, "NOT_FOUND", result.Trace[1].Error)
	assert.Nil(t, result.Trace[1].Result)
}

func TestRun_ExpectedErrorPasses(t *testing.T) {
	scenario := &Scenario{
		Name:        "expected_error",
		Description: "Rewards cannot be moved to an unregistered student",
		Setup:       campusSetup(),
		Flow: []FlowStep{
			{Op: "TransferReward", Args: []string{"mit", "bob"}, Expect: &Expect{Error: "NOT_FOUND"}},
		},
		Assertions: []Assertion{
			{Type: AssertRewards, Owner: "uni_mit", Count: 10},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_ResultMismatch(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: result_mismatch
description: "The created purchase is not valid yet"
setup:
  - op: RegisterUser
    args: [alice, student]
  - op: RegisterUser
    args: [cafe, outlet]
flow:
  - op: CreatePurchase
    args: [alice, cafe, "2024-01-01"]
    expect:
      result: { isValid: true }
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0] CreatePurchase")
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "failed_assertion",
		Description: "Assertions are evaluated after the flow",
		Setup:       campusSetup(),
		Flow:        []FlowStep{{Op: "IssueRewardsFor", Args: []string{"mit"}}},
		Assertions: []Assertion{
			{Type: AssertRewards, Owner: "uni_mit", Count: 10},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "10 rewards held by uni_mit")
	assert.Contains(t, result.Errors[0], "20 rewards")
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "streak_reward.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Digest, second.Digest)
}

func TestRun_SameDigestOnEveryBackend(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "streak_reward.yaml"))
	require.NoError(t, err)

	var digests []string
	for _, backend := range store.Backends {
		t.Run(backend, func(t *testing.T) {
			scenario := *s
			scenario.Backend = backend
			result, err := Run(&scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
			digests = append(digests, result.Digest)
		})
	}
	require.Len(t, digests, len(store.Backends))
	for _, d := range digests[1:] {
		assert.Equal(t, digests[0], d)
	}
}

func TestRun_AllScenarioFiles(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)

			if _, err := os.Stat(filepath.Join("testdata", "golden", s.Name+".golden")); err == nil {
				require.NoError(t, AssertGolden(t, s.Name, result))
			}
		})
	}
}
