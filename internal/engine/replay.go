package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/perks/internal/journal"
	"github.com/roach88/perks/internal/ledger"
	"github.com/roach88/perks/internal/store"
)

// Mismatch is a journaled invocation whose re-execution did not produce
// the recorded outcome.
type Mismatch struct {
	Seq           int64  `json:"seq"`
	InvocationID  string `json:"invocation_id"`
	Op            string `json:"op"`
	WantErrorKind string `json:"want_error_kind,omitempty"`
	GotErrorKind  string `json:"got_error_kind,omitempty"`
	WantResult    string `json:"want_result,omitempty"`
	GotResult     string `json:"got_result,omitempty"`
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	Replayed   int        `json:"replayed"`
	Incomplete int        `json:"incomplete"`
	Mismatches []Mismatch `json:"mismatches"`
	Digest     string     `json:"digest"`
}

// OK reports whether every completed invocation reproduced its outcome.
func (r ReplayReport) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay re-executes journal entries, in the order given, against a fresh
// memory store and compares each outcome with its recorded completion.
//
// Entries without a completion are re-executed but not compared: the
// process stopped after writing the invocation, and the store commit
// normally precedes the completion write. Entries whose completion
// recorded an internal failure are skipped, since the original store
// never committed them.
func Replay(ctx context.Context, entries []journal.Entry, logger *slog.Logger) (ReplayReport, error) {
	mem := store.NewMemory()
	defer mem.Close()

	opts := []Option{}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	e := New(mem, opts...)

	report := ReplayReport{Mismatches: []Mismatch{}}
	for _, entry := range entries {
		inv := entry.Invocation
		comp := entry.Completion
		if comp != nil && comp.ErrorKind == "" && comp.Message != "" {
			continue
		}

		got, err := e.Invoke(ctx, inv.Op, inv.Args...)
		report.Replayed++
		if err != nil && ledger.KindOf(err) == "" {
			return report, fmt.Errorf("replay seq %d (%s): %w", inv.Seq, inv.Op, err)
		}
		if comp == nil {
			report.Incomplete++
			continue
		}

		gotKind := string(ledger.KindOf(err))
		if gotKind != comp.ErrorKind || !bytes.Equal(got, comp.Result) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Seq:           inv.Seq,
				InvocationID:  inv.ID,
				Op:            inv.Op,
				WantErrorKind: comp.ErrorKind,
				GotErrorKind:  gotKind,
				WantResult:    string(comp.Result),
				GotResult:     string(got),
			})
		}
	}

	digest, err := store.Digest(ctx, mem)
	if err != nil {
		return report, err
	}
	report.Digest = digest
	return report, nil
}
