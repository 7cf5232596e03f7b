package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/technique"
	"github.com/spf13/cobra"
)

// ProgramOptions holds flags for the program command.
type ProgramOptions struct {
	*RootOptions
	Output string
}

// programListing is the JSON form of a compiled image.
type programListing struct {
	Technique string   `json:"technique"`
	Words     int      `json:"words"`
	Listing   []string `json:"listing"`
}

func techniqueUse(verb string) string {
	return verb + " <" + strings.Join(technique.Techniques, "|") + ">"
}

// NewProgramCommand creates the program command.
func NewProgramCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgramOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   techniqueUse("program"),
		Short: "Compile a technique and print its sequencer program",
		Long: `Compile the named technique from the configuration and print the
sequencer memory image: slot entry points followed by every command word
and its disassembly. Nothing is sent to a device.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: technique.Techniques,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := technique.BuildFromConfig(args[0], opts.cfg)
			if err != nil {
				return err
			}
			listing := s.Image.Listing()

			if opts.Output != "" {
				if err := os.WriteFile(opts.Output, []byte(listing), 0644); err != nil {
					return fmt.Errorf("failed to write listing: %w", err)
				}
				opts.logger.Info("program written", "file", opts.Output, "words", s.Image.Words())
				return nil
			}

			out := opts.printer(cmd)
			if out.json() {
				lines := strings.Split(strings.TrimRight(listing, "\n"), "\n")
				return out.record(programListing{Technique: s.Technique, Words: s.Image.Words(), Listing: lines}, "")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), listing)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the listing to this file")

	return cmd
}

// slotTiming is the JSON form of one wakeup timer slot.
type slotTiming struct {
	Slot       uint8  `json:"slot"`
	SleepTicks uint32 `json:"sleep_ticks"`
	WakeTicks  uint32 `json:"wake_ticks"`
}

// scheduleOutput is the JSON form of a wakeup schedule.
type scheduleOutput struct {
	Technique string       `json:"technique"`
	Order     []uint8      `json:"order"`
	Slots     []slotTiming `json:"slots"`
	Threshold int          `json:"threshold"`
	Total     int          `json:"total"`
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   techniqueUse("schedule"),
		Short: "Compile a technique and print its wakeup timer schedule",
		Long: `Print the wakeup timer order and the per-slot sleep and wake periods,
in low-frequency oscillator ticks, of the named technique together with
its FIFO threshold and expected sample count.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: technique.Techniques,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := technique.BuildFromConfig(args[0], rootOpts.cfg)
			if err != nil {
				return err
			}
			sched := s.Schedule

			res := scheduleOutput{Technique: s.Technique, Threshold: s.Threshold, Total: s.Total}
			seen := map[afe.Slot]bool{}
			order := make([]string, 0, len(sched.Order))
			for _, slot := range sched.Order {
				res.Order = append(res.Order, uint8(slot))
				order = append(order, fmt.Sprintf("SEQ%d", slot))
				if seen[slot] {
					continue
				}
				seen[slot] = true
				t := sched.Timing[slot]
				res.Slots = append(res.Slots, slotTiming{Slot: uint8(slot), SleepTicks: t.SleepTicks, WakeTicks: t.WakeTicks})
			}

			out := rootOpts.printer(cmd)
			if out.json() {
				return out.record(res, "")
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "technique %s, threshold %d, total %d\n", res.Technique, res.Threshold, res.Total)
			fmt.Fprintf(w, "order %s\n", strings.Join(order, " "))
			for _, t := range res.Slots {
				fmt.Fprintf(w, "SEQ%d\tsleep %d\twake %d\n", t.Slot, t.SleepTicks, t.WakeTicks)
			}
			return nil
		},
	}
}
