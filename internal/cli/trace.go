package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/perks/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Op   string // optional - filter to one operation
	TxID string // optional - a single transaction
}

// TraceEvent is one journaled invocation and its outcome.
type TraceEvent struct {
	Seq       int64           `json:"seq"`
	TxID      string          `json:"tx_id"`
	ID        string          `json:"id"`
	Op        string          `json:"op"`
	Args      []string        `json:"args"`
	Completed bool            `json:"completed"`
	DoneSeq   int64           `json:"done_seq,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Invocations int `json:"invocations"`
	Succeeded   int `json:"succeeded"`
	Rejected    int `json:"rejected"`
	Failed      int `json:"failed"`
	Incomplete  int `json:"incomplete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the invocation journal",
		Long: `Show journaled invocations in sequence order with their outcomes.

An invocation is rejected when it broke a ledger rule, failed when the
store or journal returned an error, and incomplete when the process
stopped before its completion was written.

Examples:
  perks trace --journal ./perks-journal.db
  perks trace --op TransferReward
  perks trace --tx 0190f5c2-7a7e-7b8e-9d5f-3c2a1b0e4d6f --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Op, "op", "", "filter to one operation")
	cmd.Flags().StringVar(&opts.TxID, "tx", "", "show a single transaction ID")
	cmd.MarkFlagsMutuallyExclusive("op", "tx")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if cfg.Journal.Path == "" {
		return NewExitError(ExitCommandError, "journal is disabled")
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var entries []journal.Entry
	switch {
	case opts.TxID != "":
		entry, err := j.ReadTx(ctx, opts.TxID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitFailure, fmt.Sprintf("no invocation with transaction ID %s", opts.TxID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		entries = []journal.Entry{entry}
	case opts.Op != "":
		entries, err = j.ReadOp(ctx, opts.Op)
	default:
		entries, err = j.ReadAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := buildTrace(entries)
	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTrace converts journal entries to timeline events and counts
// outcomes.
func buildTrace(entries []journal.Entry) TraceResult {
	result := TraceResult{Timeline: make([]TraceEvent, 0, len(entries))}
	for _, entry := range entries {
		inv := entry.Invocation
		event := TraceEvent{
			Seq:  inv.Seq,
			TxID: inv.TxID,
			ID:   inv.ID,
			Op:   inv.Op,
			Args: inv.Args,
		}
		result.Stats.Invocations++

		comp := entry.Completion
		switch {
		case comp == nil:
			result.Stats.Incomplete++
		case comp.OK():
			result.Stats.Succeeded++
		case comp.ErrorKind != "":
			result.Stats.Rejected++
		default:
			result.Stats.Failed++
		}
		if comp != nil {
			event.Completed = true
			event.DoneSeq = comp.Seq
			event.ErrorKind = comp.ErrorKind
			event.Message = comp.Message
			event.Result = comp.Result
		}
		result.Timeline = append(result.Timeline, event)
	}
	return result
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No invocations found.")
		return nil
	}

	fmt.Fprintln(w, "Timeline:")
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s(%s)", e.Seq, e.Op, strings.Join(e.Args, ", "))
		switch {
		case !e.Completed:
			fmt.Fprintln(w, " -> incomplete")
		case e.ErrorKind != "":
			fmt.Fprintf(w, " -> %s\n", e.ErrorKind)
		case e.Message != "":
			fmt.Fprintf(w, " -> failed: %s\n", e.Message)
		default:
			fmt.Fprintln(w, " -> ok")
		}
		if verbose {
			fmt.Fprintf(w, "      tx: %s\n", e.TxID)
			if e.Message != "" && e.ErrorKind != "" {
				fmt.Fprintf(w, "      message: %s\n", e.Message)
			}
			if len(e.Result) > 0 {
				fmt.Fprintf(w, "      result: %s\n", e.Result)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d invocation(s), %d ok, %d rejected, %d failed, %d incomplete\n",
		result.Stats.Invocations, result.Stats.Succeeded, result.Stats.Rejected,
		result.Stats.Failed, result.Stats.Incomplete)
	return nil
}
