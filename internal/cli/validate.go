package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/perks/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool            `json:"valid"`
	Config *config.Config  `json:"config,omitempty"`
	Errors []ConfigProblem `json:"errors,omitempty"`
}

// ConfigProblem is one configuration error in JSON output.
type ConfigProblem struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Validate a perks configuration file against the configuration schema
and print the resolved configuration, defaults included.

Without an argument the file named by --config is checked, and without
either the built-in defaults are shown. Flag overrides (--db, --backend,
--journal) are applied before validation.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := *rootOpts
			if len(args) == 1 {
				opts.Config = args[0]
			}
			return runValidate(&opts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	if opts.Config != "" {
		formatter.VerboseLog("Validating %s", opts.Config)
	}

	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return outputValidationError(formatter, opts.Config, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Config: &cfg})
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✓ Configuration valid")
	fmt.Fprintf(w, "  store:   %s %s\n", cfg.Store.Backend, cfg.Store.Path)
	journalPath := cfg.Journal.Path
	if journalPath == "" {
		journalPath = "(disabled)"
	}
	fmt.Fprintf(w, "  journal: %s\n", journalPath)
	fmt.Fprintf(w, "  log:     %s %s\n", cfg.Log.Level, cfg.Log.Format)
	if cfg.Metrics.Textfile != "" {
		fmt.Fprintf(w, "  metrics: %s\n", cfg.Metrics.Textfile)
	}
	return nil
}

// outputValidationError reports a configuration error. Schema violations
// exit with ExitFailure; an unreadable file with ExitCommandError.
func outputValidationError(formatter *OutputFormatter, file string, err error) error {
	var cerr *config.Error
	if !errors.As(err, &cerr) {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	problem := ConfigProblem{File: cerr.File, Line: cerr.Line, Field: cerr.Field, Message: cerr.Message}
	if formatter.Format == "json" {
		if encErr := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: []ConfigProblem{problem}},
			Error:  &CLIError{Code: ErrCodeConfig, Message: cerr.Error()},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		if cerr.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", cerr.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s\n", cerr.Error())
	}
	return WrapExitError(ExitFailure, "configuration invalid", err)
}
