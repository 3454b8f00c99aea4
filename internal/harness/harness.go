package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/perks/internal/engine"
	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/journal"
	"github.com/roach88/perks/internal/ledger"
	"github.com/roach88/perks/internal/store"
	"github.com/roach88/perks/internal/testutil"
)

// Harness runs one scenario with a deterministic clock and transaction
// IDs, so repeated runs produce identical traces.
type Harness struct {
	backend store.Backend
	engine  *engine.Engine
	logger  *slog.Logger
}

// traceJournal turns the engine's journal records into trace events.
type traceJournal struct {
	result *Result
}

func (j *traceJournal) WriteInvocation(_ context.Context, inv journal.Invocation) error {
	j.result.Trace = append(j.result.Trace, TraceEvent{
		Type: EventInvocation,
		Seq:  inv.Seq,
		Op:   inv.Op,
		Args: inv.Args,
	})
	return nil
}

func (j *traceJournal) WriteCompletion(_ context.Context, comp journal.Completion) error {
	ev := TraceEvent{Type: EventCompletion, Seq: comp.Seq, Error: comp.ErrorKind}
	if comp.Result != nil {
		v, err := ir.UnmarshalIRValue(comp.Result)
		if err != nil {
			return fmt.Errorf("trace completion %s: %w", comp.ID, err)
		}
		ev.Result = v
	}
	j.result.Trace = append(j.result.Trace, ev)
	return nil
}

// Run executes a scenario on a fresh store and returns the result.
// Failed expectations and assertions are reported in the result; setup
// failures and store errors are returned as errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	backend, cleanup, err := openBackend(scenario.Backend)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result := NewResult()
	h := &Harness{
		backend: backend,
		logger:  logger.With("scenario", scenario.Name),
	}
	h.engine = engine.New(backend,
		engine.WithJournal(&traceJournal{result: result}),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithTxIDGenerator(testutil.NewCountingTxIDs(scenario.Name)),
		engine.WithLogger(h.logger),
	)

	ctx := context.Background()
	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Backend: backend}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	result.Digest, err = store.Digest(ctx, backend)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup []Step) error {
	for i, step := range setup {
		if _, err := h.engine.Invoke(ctx, step.Op, step.Args...); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
		h.logger.Debug("setup step completed", "step", i, "op", step.Op)
	}
	return nil
}

func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		out, err := h.engine.Invoke(ctx, step.Op, step.Args...)
		kind := ledger.KindOf(err)
		if err != nil && kind == "" {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Op, err)
		}

		var want Expect
		if step.Expect != nil {
			want = *step.Expect
		}
		if string(kind) != want.Error {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected error %q, got %q (%v)",
				i, step.Op, want.Error, kind, err))
			continue
		}
		if err == nil && want.HasResult() {
			if msg := checkResult(out, &want.Result); msg != "" {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
			}
		}
		h.logger.Debug("flow step completed", "step", i, "op", step.Op, "error", kind)
	}
	return nil
}

// checkResult matches a canonical JSON result against the expected node.
// It returns "" on a match.
func checkResult(out []byte, node *yaml.Node) string {
	var want any
	if err := node.Decode(&want); err != nil {
		return fmt.Sprintf("bad expected result: %v", err)
	}
	var got any
	if err := json.Unmarshal(out, &got); err != nil {
		return fmt.Sprintf("undecodable result %s: %v", out, err)
	}
	if !matchValue(got, want) {
		return fmt.Sprintf("result %s does not match expected %v", out, want)
	}
	return ""
}

func openBackend(name string) (store.Backend, func(), error) {
	if name == "" || name == store.BackendMemory {
		return store.NewMemory(), func() {}, nil
	}
	dir, err := os.MkdirTemp("", "perks-scenario-")
	if err != nil {
		return nil, nil, err
	}
	b, err := store.Open(name, filepath.Join(dir, name+".db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}
	return b, func() {
		b.Close()
		os.RemoveAll(dir)
	}, nil
}
