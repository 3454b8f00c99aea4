package cli

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/roach88/perks/internal/engine"
	"github.com/roach88/perks/internal/ledger"
)

var operationHelp = map[string]string{
	engine.OpInitLedger:          "Seed the ledger with its sample purchase",
	engine.OpRegisterUser:        "Register a student, outlet or university",
	engine.OpIssueRewardsFor:     "Issue a batch of reward tokens to a university",
	engine.OpListFirstReward:     "Show the first reward a university still holds",
	engine.OpTransferReward:      "Move a university's first reward to a student",
	engine.OpListRewards:         "List the rewards held by an identity",
	engine.OpCreatePurchase:      "Record a purchase by a student at an outlet",
	engine.OpListValidPurchases:  "List a student's validated purchases",
	engine.OpListOutletPurchases: "List an outlet's purchases awaiting validation",
	engine.OpReadAsset:           "Show one asset",
	engine.OpAssetExists:         "Report whether an asset exists",
	engine.OpValidatePurchase:    "Validate a purchase on behalf of its outlet",
	engine.OpGetAllAssets:        "List every asset",
	engine.OpGrantStreakReward:   "Reward a student whose purchases form a streak",
}

// operationCommands returns one subcommand per ledger operation. Each is
// named in kebab case and also answers to the operation name.
func operationCommands(opts *RootOptions) []*cobra.Command {
	ops := engine.Operations()
	cmds := make([]*cobra.Command, 0, len(ops))
	for _, op := range ops {
		params, _ := engine.Params(op)
		cmds = append(cmds, newOperationCommand(opts, op, params))
	}
	return cmds
}

func newOperationCommand(opts *RootOptions, op string, params []string) *cobra.Command {
	use := commandName(op)
	for _, p := range params {
		use += " <" + p + ">"
	}

	long := operationHelp[op] + "."
	if engine.ReadOnly(op) {
		long += " Read-only."
	}
	long += "\n\nEvery invocation, reads included, is journaled unless the journal is disabled."

	return &cobra.Command{
		Use:           use,
		Aliases:       []string{op},
		Short:         operationHelp[op],
		Long:          long,
		Args:          cobra.ExactArgs(len(params)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(opts, op, args, cmd)
		},
	}
}

// commandName turns an operation name into a subcommand name:
// CreatePurchase becomes create-purchase.
func commandName(op string) string {
	var b strings.Builder
	for i, r := range op {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// runOperation invokes one operation and prints its canonical result.
// Rule violations exit with ExitFailure; store and journal failures
// with ExitCommandError.
func runOperation(opts *RootOptions, op string, args []string, cmd *cobra.Command) (err error) {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "failed to close session", cerr)
		}
	}()

	formatter.VerboseLog("invoking %s %v", op, args)
	out, err := s.engine.Invoke(ctx, op, args...)
	if err != nil {
		_ = formatter.Error(ErrorCode(err), err.Error(), errorDetails(err))
		if ledger.KindOf(err) != "" {
			return WrapExitError(ExitFailure, fmt.Sprintf("%s rejected", op), err)
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s failed", op), err)
	}
	return formatter.Result(out)
}

// errorDetails exposes the kind and subject of a ledger error.
func errorDetails(err error) map[string]string {
	var le *ledger.Error
	if !errors.As(err, &le) {
		return nil
	}
	details := map[string]string{"kind": string(le.Kind)}
	if le.ID != "" {
		details["id"] = le.ID
	}
	return details
}
