package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/perks/internal/config"
	"github.com/roach88/perks/internal/engine"
	"github.com/roach88/perks/internal/journal"
	"github.com/roach88/perks/internal/metrics"
	"github.com/roach88/perks/internal/store"
)

// session is what one command invocation runs against: the resolved
// configuration, the process logger, the record store and, when enabled,
// the journal and metrics.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	backend store.Backend
	journal *journal.Journal
	metrics *metrics.Metrics
	engine  *engine.Engine

	logFile io.Closer
}

// loadConfig reads --config, or the defaults, and applies flag overrides.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return config.Config{}, err
		}
	}

	if opts.Backend != "" {
		cfg.Store.Backend = opts.Backend
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if cmd.Flags().Changed("journal") {
		cfg.Journal.Path = opts.Journal
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces debug level.
// File output goes through lumberjack so it rotates by size.
func newLogger(c config.Log, verbose bool, stderr io.Writer) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	w := stderr
	var closer io.Closer
	if c.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   c.Compress,
		}
		w, closer = rotating, rotating
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), closer
}

// openSession resolves configuration and opens everything an operation
// needs. The journal, if enabled, also resumes the logical clock.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	s := &session{cfg: cfg}
	s.logger, s.logFile = newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(s.logger)

	s.logger.Debug("opening store", "backend", cfg.Store.Backend, "path", cfg.Store.Path)
	s.backend, err = store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	s.metrics = metrics.New()
	engineOpts := []engine.Option{
		engine.WithLogger(s.logger),
		engine.WithMetrics(s.metrics),
	}

	if cfg.Journal.Path != "" {
		s.journal, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			s.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		last, err := s.journal.LastSeq(ctx)
		if err != nil {
			s.Close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		s.logger.Debug("journal ready", "path", cfg.Journal.Path, "last_seq", last)
		engineOpts = append(engineOpts,
			engine.WithJournal(s.journal),
			engine.WithClock(engine.NewClockAt(last)),
		)
	}

	s.engine = engine.New(s.backend, engineOpts...)
	return s, nil
}

// Close exports metrics and releases the store, journal and log file.
func (s *session) Close() error {
	var errs []error
	if s.metrics != nil && s.cfg.Metrics.Textfile != "" {
		errs = append(errs, s.metrics.WriteTextfile(s.cfg.Metrics.Textfile))
	}
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	if s.backend != nil {
		errs = append(errs, s.backend.Close())
	}
	if s.logFile != nil {
		errs = append(errs, s.logFile.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
