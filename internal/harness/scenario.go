package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/perks/internal/engine"
	"github.com/roach88/perks/internal/ledger"
	"github.com/roach88/perks/internal/store"
)

// Scenario is one conformance scenario.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Backend selects the store the scenario runs on. Defaults to memory.
	Backend string `yaml:"backend,omitempty"`

	// Setup steps establish state. Any failure aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are checked against their expect clauses.
	Flow []FlowStep `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step invokes one operation with positional arguments.
type Step struct {
	Op   string   `yaml:"op"`
	Args []string `yaml:"args"`
}

// FlowStep is a step with an optional expected outcome. Without an
// expect clause the step must succeed.
type FlowStep struct {
	Op     string   `yaml:"op"`
	Args   []string `yaml:"args"`
	Expect *Expect  `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a flow step.
type Expect struct {
	// Error is the expected ledger error kind. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Result is matched against the decoded result when present. A YAML
	// null expects a null result.
	Result yaml.Node `yaml:"result,omitempty"`
}

// HasResult reports whether the clause names a result.
func (e *Expect) HasResult() bool {
	return e.Result.Kind != 0
}

// Assertion checks the trace or the final store contents.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op names the operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args, if set, must equal the invocation's arguments (trace_contains).
	Args []string `yaml:"args,omitempty"`

	// Ops is the expected invocation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number (trace_count, rewards).
	Count int `yaml:"count,omitempty"`

	// ID is the asset key (asset).
	ID string `yaml:"id,omitempty"`

	// Owner is the reward holder (rewards).
	Owner string `yaml:"owner,omitempty"`

	// Expect holds asset fields to match (asset).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts that no asset exists under ID (asset).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertAsset         = "asset"
	AssertRewards       = "rewards"
)

var errorKinds = []string{
	string(ledger.NotFound),
	string(ledger.AlreadyExists),
	string(ledger.PermissionDenied),
	string(ledger.InvalidArgument),
	string(ledger.Unavailable),
}

// LoadScenario reads a scenario file. Unknown fields, unknown operations
// and wrong argument counts are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if s.Backend != "" && !slices.Contains(store.Backends, s.Backend) {
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step.Op, step.Args); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		where := fmt.Sprintf("flow[%d]", i)
		if err := validateStep(where, step.Op, step.Args); err != nil {
			return err
		}
		if step.Expect != nil && step.Expect.Error != "" && !slices.Contains(errorKinds, step.Expect.Error) {
			return fmt.Errorf("%s.expect: unknown error kind %q", where, step.Expect.Error)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where, op string, args []string) error {
	if op == "" {
		return fmt.Errorf("%s: op is required", where)
	}
	params, ok := engine.Params(op)
	if !ok {
		return fmt.Errorf("%s: unknown operation %q", where, op)
	}
	if len(args) != len(params) {
		return fmt.Errorf("%s: %s takes %d argument(s), got %d", where, op, len(params), len(args))
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertAsset:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for asset", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: asset needs expect or absent", index)
		}
	case AssertRewards:
		if a.Owner == "" {
			return fmt.Errorf("assertions[%d]: owner is required for rewards", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
