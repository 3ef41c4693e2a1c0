package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/pamana/internal/config"
	"github.com/roach88/pamana/internal/engine"
	"github.com/roach88/pamana/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	EnvFiles   []string
	Database   string
	Verbose    bool
	Format     string // "json" | "text"

	// EngineOptions are appended when the engine is built (for testing).
	EngineOptions []engine.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pamana CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pamana",
		Short: "pamana - property report ingestion",
		Long: `Ingest local property report workbooks into a canonical store.

Annual P7 reports, building and equipment registers and unit inventory
forms are recognized, extracted and written under one transaction per
file. Housing-unit occupants are then projected into the admin view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitUnknown, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "env files to load (default .env)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite database (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewImportsCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewRolloverCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// session is the configuration, logger, store and engine one command
// runs against.
type session struct {
	cfg    *config.Config
	log    *logrus.Logger
	store  *store.Store
	engine *engine.Engine
	out    *OutputFormatter
}

// open loads configuration and opens the store and engine. The caller
// must Close the session.
func (o *RootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.ConfigPath, o.EnvFiles...)
	if err != nil {
		return nil, WrapExitError(ExitUnknown, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}

	log, err := config.NewLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitUnknown, "failed to build logger", err)
	}
	if o.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitUnknown, "failed to open database", err)
	}

	engineOpts := append([]engine.Option{engine.WithLogger(log)}, o.EngineOptions...)
	e, err := engine.New(contextOf(cmd), s, cfg, engineOpts...)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitUnknown, "failed to start engine", err)
	}
	log.WithFields(logrus.Fields{"module": "cli", "db": cfg.Database}).Debug("session opened")

	return &session{
		cfg:    cfg,
		log:    log,
		store:  s,
		engine: e,
		out:    o.formatter(cmd),
	}, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		config.LogError(s.log, "cli", "Close", err, nil)
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
