package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigOptions holds flags for the config command.
type ConfigOptions struct {
	*RootOptions
	Write string
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults were applied to the loaded file.
With --write the configuration is saved instead, which is a convenient way
to create a starting configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Write != "" {
				if err := opts.cfg.Save(opts.Write); err != nil {
					return err
				}
				opts.logger.Info("configuration written", "file", opts.Write)
				return nil
			}
			data, err := yaml.Marshal(opts.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.Write, "write", "w", "", "write the configuration to this file")

	return cmd
}
