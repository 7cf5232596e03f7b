package technique

import (
	"fmt"
	"time"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/sample"
	"github.com/itohio/goafe/pkg/seq"
	"github.com/itohio/goafe/pkg/wakeup"
)

// DPV holds differential pulse voltammetry parameters. Each staircase step
// holds its base potential, then EPulse on top of it for TPulse. Potentials
// are in V, times in s, ScanRate in V/s.
type DPV struct {
	EBegin    float32
	EEnd      float32
	EStep     float32
	EPulse    float32
	TPulse    float32
	ScanRate  float32
	Inversion sample.Inversion
}

// Steps returns the base and pulse potential of every staircase step.
func (d DPV) Steps() (base, pulse []float32, err error) {
	base, err = staircase(d.EBegin, d.EEnd, d.EStep)
	if err != nil {
		return nil, nil, err
	}
	pulse = make([]float32, len(base))
	for i, e := range base {
		pulse[i] = e + d.EPulse
	}
	return base, pulse, nil
}

// FIFOCount returns the number of samples: one base and one pulse sample
// per step.
func (d DPV) FIFOCount() (int, error) {
	n, err := seq.StepCount(d.EBegin, d.EEnd, d.EStep)
	if err != nil {
		return 0, err
	}
	return 2 * (n + 1), nil
}

// Interval returns the staircase period.
func (d DPV) Interval() (time.Duration, error) {
	t, err := interval(d.EStep, d.ScanRate)
	if err != nil {
		return 0, err
	}
	if err := positive("pulse width", d.TPulse); err != nil {
		return 0, err
	}
	if d.TPulse >= t {
		return 0, fmt.Errorf("%w: pulse width %v not below period %v", afe.ErrParameterInvalid, d.TPulse, t)
	}
	return seconds(t), nil
}

// DPVConfig is everything StartDPV needs.
type DPVConfig struct {
	Params DPV
	Run    Run
	Path   Path
}

// BuildDPV compiles the staircase as a chain of alternating base and pulse
// blocks. Base blocks land on SlotStimulusA and pulse blocks on
// SlotStimulusB, each sampled one sample delay after it is applied.
func BuildDPV(cfg DPVConfig, words int) (*Setup, error) {
	d := cfg.Params
	period, err := d.Interval()
	if err != nil {
		return nil, err
	}
	base, pulse, err := d.Steps()
	if err != nil {
		return nil, err
	}
	s, err := newSetup("dpv", cfg.Run, 2*len(base))
	if err != nil {
		return nil, err
	}
	if s.Path, err = dcPath(cfg.Path, d.EBegin); err != nil {
		return nil, err
	}

	potentials := make([]float32, 0, 2*len(base))
	for i := range base {
		potentials = append(potentials, base[i], pulse[i])
	}
	steps := make([][]seq.RegWrite, len(potentials))
	for i, e := range potentials {
		code, err := afe.LPDACCode(e)
		if err != nil {
			return nil, fmt.Errorf("dpv potential %.4f V: %w", e, err)
		}
		steps[i] = []seq.RegWrite{{Addr: afe.RegLPDACData0, Val: afe.LPDACWord(s.Path.Vzero, code)}}
	}

	acq, _ := s.Path.Kind.AFECon()
	s.Image, err = compile(words, func(a *seq.Arena) error {
		if _, err := seq.CompileAcquisition(a, seq.Acquisition{Base: acq, DSP: cfg.Run.DSP}); err != nil {
			return err
		}
		_, err := seq.CompileChain(a, steps)
		return err
	})
	if err != nil {
		return nil, err
	}

	width := seconds(d.TPulse)
	s.Schedule, err = wakeup.Interleaved(cfg.Run.LFOSCFrequency, afe.SlotAcquire, wakeup.SampleDelay,
		wakeup.Stimulus{Slot: afe.SlotStimulusA, Interval: period - width},
		wakeup.Stimulus{Slot: afe.SlotStimulusB, Interval: width},
	)
	if err != nil {
		return nil, err
	}
	s.Timeline = func(i int) (float32, time.Duration) {
		k := i / 2
		at := time.Duration(k)*period + wakeup.SampleDelay
		if i%2 == 1 {
			at += period - width
		}
		return potentials[i%len(potentials)], at
	}
	s.TempSensorOff = true
	return s, nil
}
