// Package cli implements the afectl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/itohio/goafe/pkg/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	Format     string // "json" | "text"

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for afectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "afectl",
		Short: "Drive an electrochemical analog front end",
		Long: `afectl compiles sequencer programs for voltammetry, amperometry,
impedance and temperature techniques, and runs them on a mocked device,
a serial bridge or a directly attached SPI bus.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "config.yaml", "configuration file path")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPortsCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewRampCommand(opts))
	cmd.AddCommand(NewProgramCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

func (o *RootOptions) init(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.LogLevel, err)
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)

	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *RootOptions) printer(cmd *cobra.Command) *printer {
	return &printer{format: o.Format, w: cmd.OutOrStdout()}
}
