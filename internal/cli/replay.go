package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/perks/internal/engine"
	"github.com/roach88/perks/internal/journal"
	"github.com/roach88/perks/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	StoreCheck bool
}

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	engine.ReplayReport

	// StoreDigest is the digest of the configured store. It is empty when
	// the store was not checked.
	StoreDigest  string `json:"store_digest,omitempty"`
	StoreChecked bool   `json:"store_checked"`
	OK           bool   `json:"ok"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute the journal and verify the outcomes",
		Long: `Re-execute every journaled invocation, in sequence order, against a
fresh in-memory store.

Each re-executed invocation must reproduce its recorded error kind and
result byte for byte. Unless --store-check=false is given, the digest of
the replayed state must also equal the digest of the configured store.

Exit codes:
  0 - Every outcome and the state digest matched
  1 - Replay diverged from the journal or the store
  2 - Command error (journal not found, etc.)

Examples:
  perks replay --journal ./perks-journal.db --db ./perks.db
  perks replay --config perks.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.StoreCheck, "store-check", true, "compare the replayed state with the configured store")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if cfg.Journal.Path == "" {
		return NewExitError(ExitCommandError, "journal is disabled; nothing to replay")
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	logger, logFile := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	if logFile != nil {
		defer logFile.Close()
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	entries, err := j.ReadAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	report, err := engine.Replay(ctx, entries, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	result := ReplayResult{ReplayReport: report, OK: report.OK()}

	// A memory store does not outlive the process that wrote the journal.
	if opts.StoreCheck && cfg.Store.Backend != store.BackendMemory {
		backend, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open store", err)
		}
		defer backend.Close()

		result.StoreDigest, err = store.Digest(ctx, backend)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to digest store", err)
		}
		result.StoreChecked = true
		result.OK = result.OK && result.StoreDigest == report.Digest
	}

	logger.Debug("replay finished",
		"replayed", report.Replayed, "incomplete", report.Incomplete,
		"mismatches", len(report.Mismatches), "ok", result.OK)

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.OK {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeMismatch,
			Message: "replay verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.OK {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d invocation(s)\n", result.Replayed)
	if result.Incomplete > 0 {
		fmt.Fprintf(w, "  Incomplete: %d (re-executed, not compared)\n", result.Incomplete)
	}
	if verbose {
		fmt.Fprintf(w, "  Replayed digest: %s\n", result.Digest)
	}
	fmt.Fprintln(w)

	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "✗ [%d] %s (%s)\n", m.Seq, m.Op, m.InvocationID)
		fmt.Fprintf(w, "  journaled: error=%q result=%s\n", m.WantErrorKind, m.WantResult)
		fmt.Fprintf(w, "  replayed:  error=%q result=%s\n", m.GotErrorKind, m.GotResult)
	}

	if result.StoreChecked {
		if result.StoreDigest == result.Digest {
			fmt.Fprintln(w, "✓ Store digest matches replayed state")
		} else {
			fmt.Fprintln(w, "✗ Store digest differs from replayed state")
			fmt.Fprintf(w, "  store:    %s\n", result.StoreDigest)
			fmt.Fprintf(w, "  replayed: %s\n", result.Digest)
		}
	}

	if result.OK {
		fmt.Fprintln(w, "✓ Journal replay verified")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}
