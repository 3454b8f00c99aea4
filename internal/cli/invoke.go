package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/perks/internal/engine"
)

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <operation> [args...]",
		Short: "Invoke a ledger operation by name",
		Long: fmt.Sprintf(`Invoke a ledger operation by name with positional arguments.

This is the generic form of the per-operation subcommands, for scripts
that drive the ledger from operation names.

Operations:
  %s

Example:
  perks invoke RegisterUser mit university
  perks invoke CreatePurchase alice cafe 2024-01-01 --format json`,
			strings.Join(engine.Operations(), "\n  ")),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			op := args[0]
			params, ok := engine.Params(op)
			if !ok {
				formatter := newFormatter(rootOpts, cmd)
				msg := fmt.Sprintf("unknown operation %q", op)
				_ = formatter.Error(ErrCodeUnknownOp, msg, nil)
				return NewExitError(ExitCommandError, msg)
			}
			if len(args)-1 != len(params) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("%s takes %d argument(s) (%s), got %d",
						op, len(params), strings.Join(params, ", "), len(args)-1))
			}
			return runOperation(rootOpts, op, args[1:], cmd)
		},
	}

	return cmd
}
