package technique

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/sample"
	"github.com/itohio/goafe/pkg/seq"
	"github.com/itohio/goafe/pkg/wakeup"
)

// Run holds the execution settings shared by all techniques.
type Run struct {
	// LFOSCFrequency is the measured low-frequency oscillator frequency
	// that clocks the wakeup timer (Hz).
	LFOSCFrequency float32
	FIFOThreshold  int
	FIFOSource     afe.FIFOSource
	DSP            afe.DSPConfig

	// InterruptController and InterruptGPIO route the FIFO threshold
	// interrupt to the host.
	InterruptController uint8
	InterruptGPIO       uint8
}

func (r Run) validate() error {
	if math32.IsNaN(r.LFOSCFrequency) || r.LFOSCFrequency <= 0 {
		return fmt.Errorf("%w: lfosc frequency %v", afe.ErrParameterInvalid, r.LFOSCFrequency)
	}
	if r.FIFOThreshold <= 0 {
		return fmt.Errorf("%w: fifo threshold %d", afe.ErrParameterInvalid, r.FIFOThreshold)
	}
	if r.InterruptController > 1 {
		return fmt.Errorf("%w: interrupt controller %d", afe.ErrParameterInvalid, r.InterruptController)
	}
	return nil
}

func (r Run) routing() afe.InterruptRouting {
	return afe.InterruptRouting{
		Controller: r.InterruptController,
		Sources:    afe.IntFIFOThreshold,
		GPIO:       r.InterruptGPIO,
	}
}

// Setup is a fully validated technique, ready to be installed on a device.
// Building it touches nothing but memory.
type Setup struct {
	Technique string
	Path      afe.AnalogPath
	Image     *seq.Image
	Schedule  afe.WakeupSchedule
	DSP       afe.DSPConfig
	Source    afe.FIFOSource
	Routing   afe.InterruptRouting

	// PreWrites are register writes issued right after waking.
	PreWrites []seq.RegWrite
	// Threshold is the FIFO threshold armed at start.
	Threshold int
	// Total is the number of FIFO words the run produces; 0 runs until
	// stopped.
	Total int
	// Timeline maps sample indices to applied potential and time.
	Timeline sample.Timeline
	// TempSensorOff clears the temperature sensor on stop.
	TempSensorOff bool
}

func newSetup(name string, run Run, total int) (*Setup, error) {
	if err := run.validate(); err != nil {
		return nil, err
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: fifo count %d", afe.ErrParameterInvalid, total)
	}
	threshold := run.FIFOThreshold
	if total > 0 && total < threshold {
		threshold = total
	}
	if run.DSP.DataType == afe.DataDFT && run.FIFOSource != afe.FIFOSrcDFT {
		slog.Warn("dft data type with a non-dft fifo source", "technique", name, "source", run.FIFOSource)
	}
	return &Setup{
		Technique: name,
		DSP:       run.DSP,
		Source:    run.FIFOSource,
		Routing:   run.routing(),
		Threshold: threshold,
		Total:     total,
	}, nil
}

// compile runs fn over a fresh arena of the given size and returns the
// resulting image.
func compile(words int, fn func(a *seq.Arena) error) (*seq.Image, error) {
	a := seq.NewArena(words)
	if err := fn(a); err != nil {
		return nil, err
	}
	return a.Image(), nil
}

func positive(name string, v float32) error {
	if math32.IsNaN(v) || math32.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s %v", afe.ErrParameterInvalid, name, v)
	}
	return nil
}

func seconds(s float32) time.Duration {
	return wakeup.Seconds(s)
}

// interval is the period implied by a potential step and a scan rate.
func interval(step, rate float32) (float32, error) {
	if err := positive("step", step); err != nil {
		return 0, err
	}
	if err := positive("scan rate", rate); err != nil {
		return 0, err
	}
	return step / rate, nil
}
