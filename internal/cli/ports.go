package cli

import (
	"github.com/itohio/goafe/pkg/afe"
	"github.com/spf13/cobra"
)

// NewPortsCommand creates the ports command.
func NewPortsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports a bridge may be attached to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := afe.Ports()
			if err != nil {
				return err
			}
			out := rootOpts.printer(cmd)
			for _, p := range ports {
				if err := out.record(p, "%s\t%s", p.Name, p.Description); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
