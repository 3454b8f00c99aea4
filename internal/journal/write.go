package journal

import (
	"context"
	"fmt"

	"github.com/roach88/perks/internal/ir"
)

// WriteInvocation inserts an invocation. Duplicate IDs are ignored, so a
// retried write is harmless.
func (j *Journal) WriteInvocation(ctx context.Context, inv Invocation) error {
	args, err := ir.MarshalCanonical(ir.StringArray(inv.Args))
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, tx_id, op, args, seq, engine_version, record_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.TxID,
		inv.Op,
		string(args),
		inv.Seq,
		inv.EngineVersion,
		inv.RecordVersion,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	return nil
}

// WriteCompletion inserts the completion of an invocation. Each invocation
// has at most one completion; a second write is ignored.
// The invocation must already be journaled.
func (j *Journal) WriteCompletion(ctx context.Context, comp Completion) error {
	var result any
	if comp.Result != nil {
		result = string(comp.Result)
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO completions
		(id, invocation_id, error_kind, message, result, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		comp.ID,
		comp.InvocationID,
		comp.ErrorKind,
		comp.Message,
		result,
		comp.Seq,
	)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}
	return nil
}
