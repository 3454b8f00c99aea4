package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/ledger"
	"github.com/roach88/perks/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Op, event.Args)
			}
		}
	}
	return buf.String()
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type != EventInvocation || event.Op != a.Op {
			continue
		}
		if a.Args == nil || slices.Equal(event.Args, a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s with args %v", a.Op, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first invocation of each op appears in
// the given order. Other invocations may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type == EventInvocation && positions[event.Op] == 0 {
			positions[event.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertAsset reads the asset straight from the store, bypassing the
// engine so the check does not appear in the trace.
func assertAsset(ctx context.Context, b store.Backend, a Assertion) error {
	var asset ir.Asset
	err := b.View(ctx, func(tx store.Tx) error {
		var err error
		asset, err = ledger.New(nil).ReadAsset(tx, a.ID)
		return err
	})
	switch {
	case ledger.IsNotFound(err):
		if a.Absent {
			return nil
		}
		return &AssertionError{Type: AssertAsset, Expected: fmt.Sprintf("asset %s", a.ID), Actual: "not found"}
	case err != nil:
		return err
	case a.Absent:
		return &AssertionError{Type: AssertAsset, Expected: fmt.Sprintf("no asset %s", a.ID), Actual: "asset exists"}
	}

	data, err := ir.EncodeAsset(asset)
	if err != nil {
		return err
	}
	var actual any
	if err := json.Unmarshal(data, &actual); err != nil {
		return err
	}
	if !matchValue(actual, a.Expect) {
		return &AssertionError{
			Type:     AssertAsset,
			Expected: fmt.Sprintf("asset %s with %v", a.ID, a.Expect),
			Actual:   string(data),
		}
	}
	return nil
}

func assertRewards(ctx context.Context, b store.Backend, a Assertion) error {
	var rewards []ir.Asset
	err := b.View(ctx, func(tx store.Tx) error {
		var err error
		rewards, err = ledger.New(nil).RewardsOf(tx, a.Owner)
		return err
	})
	if err != nil {
		return err
	}
	if len(rewards) != a.Count {
		return &AssertionError{
			Type:     AssertRewards,
			Expected: fmt.Sprintf("%d rewards held by %s", a.Count, a.Owner),
			Actual:   fmt.Sprintf("%d rewards", len(rewards)),
		}
	}
	return nil
}

// matchValue reports whether actual matches expected. Objects match when
// every expected field matches; arrays need equal length and matching
// elements; numbers compare by value.
func matchValue(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range exp {
			av, exists := act[k]
			if !exists || !matchValue(av, v) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(act[i], exp[i]) {
				return false
			}
		}
		return true
	case int:
		f, ok := actual.(float64)
		return ok && f == float64(exp)
	}
	return reflect.DeepEqual(actual, expected)
}

// AssertionContext gives assertions access to the scenario's store.
type AssertionContext struct {
	Ctx     context.Context
	Backend store.Backend
}

// EvaluateAssertions evaluates all assertions and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertAsset, AssertRewards:
			if actx == nil || actx.Backend == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a store", i, a.Type)
			} else if a.Type == AssertAsset {
				err = assertAsset(actx.Ctx, actx.Backend, a)
			} else {
				err = assertRewards(actx.Ctx, actx.Backend, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
