package technique

import (
	"time"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/seq"
	"github.com/itohio/goafe/pkg/wakeup"
)

// CV holds cyclic voltammetry parameters: a closed sweep from EBegin through
// both vertices back to EBegin. Potentials are in V, ScanRate in V/s.
type CV struct {
	EBegin   float32
	EVertex1 float32
	EVertex2 float32
	EStep    float32
	ScanRate float32
}

// Ramp returns the sweep as a sequencer ramp.
func (c CV) Ramp() seq.Ramp {
	return seq.Ramp{Begin: c.EBegin, Vertex1: c.EVertex1, Vertex2: c.EVertex2, Step: c.EStep}
}

// FIFOCount returns the number of samples in one cycle.
func (c CV) FIFOCount() (int, error) {
	return c.Ramp().Len()
}

// Interval returns the time each potential is held.
func (c CV) Interval() (time.Duration, error) {
	t, err := interval(c.EStep, c.ScanRate)
	if err != nil {
		return 0, err
	}
	return seconds(t), nil
}

// CVConfig is everything StartCV needs.
type CVConfig struct {
	Params CV
	Run    Run
	Path   Path
}

// BuildCV compiles one cycle of the sweep into a relinking chain on the two
// stimulus slots, interleaved with the acquisition slot.
func BuildCV(cfg CVConfig, words int) (*Setup, error) {
	c := cfg.Params
	ramp := c.Ramp()
	pts, err := ramp.Points()
	if err != nil {
		return nil, err
	}
	step, err := c.Interval()
	if err != nil {
		return nil, err
	}
	s, err := newSetup("cv", cfg.Run, len(pts))
	if err != nil {
		return nil, err
	}
	if s.Path, err = dcPath(cfg.Path, c.EBegin); err != nil {
		return nil, err
	}
	steps, err := seq.RampSteps(ramp, s.Path.Vzero)
	if err != nil {
		return nil, err
	}
	base, _ := s.Path.Kind.AFECon()
	s.Image, err = compile(words, func(a *seq.Arena) error {
		if _, err := seq.CompileAcquisition(a, seq.Acquisition{Base: base, DSP: cfg.Run.DSP}); err != nil {
			return err
		}
		_, err := seq.CompileChain(a, seq.EvenRing(steps))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Schedule, err = wakeup.Interleaved(cfg.Run.LFOSCFrequency, afe.SlotAcquire, wakeup.SampleDelay,
		wakeup.Stimulus{Slot: afe.SlotStimulusA, Interval: step},
		wakeup.Stimulus{Slot: afe.SlotStimulusB, Interval: step},
	)
	if err != nil {
		return nil, err
	}
	s.Timeline = func(i int) (float32, time.Duration) {
		return pts[i%len(pts)].Potential, time.Duration(i)*step + wakeup.SampleDelay
	}
	s.TempSensorOff = true
	return s, nil
}
