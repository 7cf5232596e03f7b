package cli

import (
	"github.com/itohio/goafe/pkg/technique"
	"github.com/spf13/cobra"
)

// rampPoint is the JSON form of one ramp set-point.
type rampPoint struct {
	Index     int     `json:"index"`
	Potential float32 `json:"potential"`
	Slot      uint8   `json:"slot"`
}

// NewRampCommand creates the ramp command.
func NewRampCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ramp",
		Short: "Print the cyclic voltammetry set-points",
		Long: `Print one cycle of the cyclic voltammetry ramp described by the cv
section of the configuration: index, potential (V) and the stimulus slot
that applies it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cv, err := technique.CVFromConfig(rootOpts.cfg)
			if err != nil {
				return err
			}
			pts, err := cv.Params.Ramp().Points()
			if err != nil {
				return err
			}
			out := rootOpts.printer(cmd)
			for _, p := range pts {
				rec := rampPoint{Index: p.Index, Potential: p.Potential, Slot: uint8(p.Slot)}
				if err := out.record(rec, "%d\t%.4f\tSEQ%d", p.Index, p.Potential, p.Slot); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
