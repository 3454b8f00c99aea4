package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/perks/internal/ir"
	"github.com/roach88/perks/internal/journal"
	"github.com/roach88/perks/internal/ledger"
	"github.com/roach88/perks/internal/metrics"
	"github.com/roach88/perks/internal/store"
)

// TxIDGenerator generates transaction IDs stamped on journaled invocations.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type TxIDGenerator interface {
	Generate() string
}

// Sequencer hands out logical sequence numbers. *Clock is the production
// implementation.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Journal receives every invocation and completion. *journal.Journal is
// the production implementation.
type Journal interface {
	WriteInvocation(ctx context.Context, inv journal.Invocation) error
	WriteCompletion(ctx context.Context, comp journal.Completion) error
}

// Engine runs named ledger operations against a store backend.
type Engine struct {
	backend store.Backend
	ledger  *ledger.Ledger
	journal Journal
	metrics *metrics.Metrics
	clock   Sequencer
	txGen   TxIDGenerator
	logger  *slog.Logger

	// mu serializes invocations so seq order is commit order.
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every invocation in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithMetrics records invocation counts and latency in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces the logical clock, e.g. NewClockAt(lastSeq) to
// continue an existing journal.
func WithClock(c Sequencer) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTxIDGenerator replaces the UUIDv7 transaction ID generator.
func WithTxIDGenerator(g TxIDGenerator) Option {
	return func(e *Engine) { e.txGen = g }
}

// WithLogger sets the logger used by the engine and its ledger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over backend. Without options it journals
// nothing, records no metrics and discards logs.
func New(backend store.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		clock:   NewClock(),
		txGen:   UUIDv7Generator{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger = ledger.New(e.logger)
	return e
}

// Backend returns the store the engine writes to.
func (e *Engine) Backend() store.Backend {
	return e.backend
}

// Digest returns the state digest of the engine's store.
func (e *Engine) Digest(ctx context.Context) (string, error) {
	return store.Digest(ctx, e.backend)
}

// Invoke runs the named operation with string arguments and returns its
// canonical JSON result. Arguments are NFC normalized before they are
// journaled. Unknown operations and bad arguments fail with an
// InvalidArgument ledger error and are not journaled.
func (e *Engine) Invoke(ctx context.Context, op string, args ...string) ([]byte, error) {
	o, ok := operations[op]
	if !ok {
		return nil, ledger.Errorf(ledger.InvalidArgument, "", "unknown operation %q", op)
	}
	if len(args) != len(o.params) {
		return nil, ledger.Errorf(ledger.InvalidArgument, "",
			"%s expects %d argument(s) (%s), got %d", op, len(o.params), o.usage(), len(args))
	}
	normalized := make([]string, len(args))
	for i, p := range o.params {
		if !utf8.ValidString(args[i]) {
			return nil, ledger.Errorf(ledger.InvalidArgument, "", "%s: argument %s is not valid UTF-8", op, p.name)
		}
		// Stored strings are NFC, so arguments must be too or membership
		// and ownership checks miss records written earlier.
		normalized[i] = norm.NFC.String(args[i])
		if strings.TrimSpace(normalized[i]) == "" {
			return nil, ledger.Errorf(ledger.InvalidArgument, "", "%s: argument %s is empty", op, p.name)
		}
	}
	return e.exec(ctx, op, o, normalized)
}

// exec journals, runs and observes one invocation.
func (e *Engine) exec(ctx context.Context, op string, o operation, args []string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	inv := journal.Invocation{
		TxID:          e.txGen.Generate(),
		Op:            op,
		Args:          args,
		Seq:           e.clock.Next(),
		EngineVersion: ir.EngineVersion,
		RecordVersion: ir.RecordVersion,
	}
	id, err := ir.InvocationID(op, args, inv.Seq)
	if err != nil {
		return nil, err
	}
	inv.ID = id

	if e.journal != nil {
		if err := e.journal.WriteInvocation(ctx, inv); err != nil {
			return nil, err
		}
	}

	qualified := o.qualify(args)
	var (
		result []byte
		events rewardEvents
	)
	run := func(tx store.Tx) error {
		events = rewardEvents{}
		v, err := o.run(e, tx, qualified, &events)
		if err != nil {
			return err
		}
		result, err = ir.MarshalCanonical(v)
		return err
	}
	if o.readOnly {
		err = e.backend.View(ctx, run)
	} else {
		err = e.backend.Update(ctx, run)
	}
	if err != nil {
		result = nil
	} else {
		if events.issued > 0 {
			e.metrics.RewardsIssued(events.issued)
		}
		for range events.transferred {
			e.metrics.RewardTransferred()
		}
	}

	comp := journal.Completion{
		InvocationID: inv.ID,
		ErrorKind:    string(ledger.KindOf(err)),
		Result:       result,
		Seq:          e.clock.Next(),
	}
	if err != nil {
		comp.Message = err.Error()
	}
	comp.ID = ir.CompletionID(inv.ID, comp.ErrorKind, result, comp.Seq)

	outcome := outcomeOf(err)
	e.metrics.Observe(op, outcome, time.Since(start))
	e.logInvocation(inv, outcome, err)

	if e.journal != nil {
		if jerr := e.journal.WriteCompletion(ctx, comp); jerr != nil {
			// The store has already committed; the caller must know the
			// journal no longer matches it.
			return result, errors.Join(err, fmt.Errorf("journal completion of %s: %w", inv.ID, jerr))
		}
	}
	return result, err
}

func (e *Engine) logInvocation(inv journal.Invocation, outcome string, err error) {
	attrs := []any{"op", inv.Op, "seq", inv.Seq, "tx_id", inv.TxID, "outcome", outcome}
	switch {
	case err == nil:
		e.logger.Info("invocation completed", attrs...)
	case outcome == "internal":
		e.logger.Error("invocation failed", append(attrs, "error", err)...)
	default:
		e.logger.Info("invocation rejected", append(attrs, "error", err)...)
	}
}

// outcomeOf labels an invocation result for metrics and logs.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := ledger.KindOf(err); kind != "" {
		return string(kind)
	}
	return "internal"
}
