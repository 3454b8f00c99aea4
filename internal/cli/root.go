package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the YAML configuration file. Empty uses the defaults.
	Config string

	// Database, Backend and Journal override the configuration file.
	Database string
	Backend  string
	Journal  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the perks CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "perks",
		Short: "perks - student loyalty rewards ledger",
		Long: `A ledger of student purchases and university reward tokens.

Universities, students and outlets register once. Outlets validate
purchases, and students with a streak of validated purchases on
consecutive days earn a reward token from their university.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "record store path (overrides store.path)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "record store backend: sqlite, memory, leveldb or bbolt (overrides store.backend)")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", `journal path, "" disables it (overrides journal.path)`)

	for _, op := range operationCommands(opts) {
		cmd.AddCommand(op)
	}
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
