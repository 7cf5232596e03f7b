package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/sample"
	"github.com/itohio/goafe/pkg/session"
	"github.com/itohio/goafe/pkg/technique"
	"github.com/itohio/goafe/pkg/trace"
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Transport string
	Port      string
	Duration  time.Duration
}

// samplePoint is the JSON form of a converted sample.
type samplePoint struct {
	Index     int     `json:"index"`
	Elapsed   float64 `json:"elapsed"`   // s
	Potential float32 `json:"potential"` // V
	Code      uint16  `json:"code"`
	Current   float64 `json:"current"` // uA
}

// rawWord is the JSON form of a FIFO word without a current conversion.
type rawWord struct {
	Index int     `json:"index"`
	Tag   uint8   `json:"tag"`
	Data  uint16  `json:"data"`
	Value float64 `json:"value"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   techniqueUse("run"),
		Short: "Run a technique and stream its results",
		Long: `Start the named technique on the configured device, service its FIFO
interrupts and print every result as it arrives. Voltammetric and
amperometric techniques print time, potential and current; impedance and
temperature runs print the tagged FIFO words.

The run ends when the technique has produced all of its samples, when
--duration elapses, or on interrupt.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: technique.Techniques,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTechnique(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Transport, "transport", "t", "", "override the device transport (mock|serial|spi)")
	cmd.Flags().StringVarP(&opts.Port, "port", "p", "", "override the serial port")
	cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 0, "stop the run after this long (0 runs to completion)")

	return cmd
}

func runTechnique(cmd *cobra.Command, opts *RunOptions, name string) error {
	cfg := opts.cfg
	if opts.Transport != "" {
		cfg.Device.Transport = opts.Transport
	}
	if opts.Port != "" {
		cfg.Device.Port = opts.Port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := session.Open(ctx, cfg, session.WithLogger(opts.logger))
	if err != nil {
		return err
	}
	defer s.Close()

	runCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	m, err := s.Measure(runCtx, name)
	if err != nil {
		return err
	}
	conv, err := s.Converter(m.Setup)
	if err != nil {
		return err
	}

	out := opts.printer(cmd)
	if conv == nil {
		if err := printWords(out, m.Words); err != nil {
			return err
		}
	} else if err := printSamples(out, conv(m.Words), opts); err != nil {
		return err
	}

	if err := <-m.Done; err != nil {
		return fmt.Errorf("run failed (%s): %w", afe.CodeOf(err), err)
	}
	return nil
}

func printSamples(out *printer, samples <-chan sample.Sample, opts *RunOptions) error {
	rec := trace.New(0)
	fwd := make(chan sample.Sample, session.DefaultBufferSize)
	recorded := make(chan struct{})
	go func() {
		defer close(recorded)
		rec.Record(fwd)
	}()

	var perr error
	for smp := range samples {
		fwd <- smp
		if perr != nil {
			continue
		}
		p := samplePoint{
			Index:     smp.Index,
			Elapsed:   smp.Elapsed.Seconds(),
			Potential: smp.Potential,
			Code:      smp.Code,
			Current:   smp.Current,
		}
		perr = out.record(p, "%d\t%.3f\t%.4f\t%.4f", p.Index, p.Elapsed, p.Potential, p.Current)
	}
	close(fwd)
	<-recorded

	b := rec.Bounds()
	opts.logger.Info("run complete",
		"samples", len(rec.Samples()),
		"potential_min", b.MinPotential, "potential_max", b.MaxPotential,
		"current_min", b.MinCurrent, "current_max", b.MaxCurrent,
	)
	return perr
}

// printWords keeps reading after an output error so the drain can finish.
func printWords(out *printer, words <-chan uint32) error {
	var perr error
	i := 0
	for w := range words {
		if perr != nil {
			continue
		}
		tag, data := afe.SplitFIFOWord(w)
		rec := rawWord{Index: i, Tag: tag, Data: data, Value: wordValue(tag, data)}
		perr = out.record(rec, "%d\t%s\t%d\t%.3f", i, tagName(tag), data, rec.Value)
		i++
	}
	return perr
}

// wordValue decodes temperature results into degrees Celsius and DFT
// results into signed values.
func wordValue(tag uint8, data uint16) float64 {
	switch tag {
	case afe.TagTemperature:
		return sample.Celsius(data)
	case afe.TagDFTReal, afe.TagDFTImag:
		return float64(int16(data))
	}
	return float64(data)
}

func tagName(tag uint8) string {
	switch tag {
	case afe.TagADC:
		return "adc"
	case afe.TagDFTReal:
		return "dft_re"
	case afe.TagDFTImag:
		return "dft_im"
	case afe.TagTemperature:
		return "temp"
	}
	return fmt.Sprintf("tag%d", tag)
}
