package technique

import (
	"fmt"
	"math"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/seq"
	"github.com/itohio/goafe/pkg/wakeup"
)

// EISScan selects how the DC bias evolves: PotentialScan, TimeScan or
// FixedScan. EAC is the RMS excitation amplitude in V.
type EISScan interface {
	isEISScan()
}

// PotentialScan steps the bias from EBegin to EEnd.
type PotentialScan struct {
	EBegin, EEnd, EStep float32
	EAC                 float32
}

// TimeScan repeats one measurement at EDC every TInterval for TRun.
type TimeScan struct {
	EDC, EAC        float32
	TRun, TInterval float32
}

// FixedScan measures once at EDC.
type FixedScan struct {
	EDC, EAC float32
}

func (PotentialScan) isEISScan() {}
func (TimeScan) isEISScan()      {}
func (FixedScan) isEISScan()     {}

// EISFrequency selects the excitation frequency: FixedFrequency or
// FrequencySweep.
type EISFrequency interface {
	isEISFrequency()
}

// FixedFrequency excites at a single frequency (Hz).
type FixedFrequency struct {
	Frequency float32
}

// FrequencySweep excites at Points log-spaced frequencies from FMin to FMax.
type FrequencySweep struct {
	Points     int
	FMin, FMax float32
}

func (FixedFrequency) isEISFrequency() {}
func (FrequencySweep) isEISFrequency() {}

// EIS holds impedance spectroscopy parameters. Interval is the time between
// measurements of potential and fixed scans; a time scan brings its own.
type EIS struct {
	Scan      EISScan
	Frequency EISFrequency
	Interval  float32
}

// Biases returns the DC bias of each scan step and the RMS excitation.
func (e EIS) Biases() ([]float32, float32, error) {
	switch sc := e.Scan.(type) {
	case PotentialScan:
		b, err := staircase(sc.EBegin, sc.EEnd, sc.EStep)
		return b, sc.EAC, err
	case TimeScan:
		return []float32{sc.EDC}, sc.EAC, nil
	case FixedScan:
		return []float32{sc.EDC}, sc.EAC, nil
	}
	return nil, 0, fmt.Errorf("%w: unknown eis scan %T", afe.ErrParameterInvalid, e.Scan)
}

// Frequencies returns the excitation frequencies, lowest first for a sweep.
func (e EIS) Frequencies() ([]float32, error) {
	switch f := e.Frequency.(type) {
	case FixedFrequency:
		if err := positive("frequency", f.Frequency); err != nil {
			return nil, err
		}
		return []float32{f.Frequency}, nil
	case FrequencySweep:
		if f.Points <= 0 {
			return nil, fmt.Errorf("%w: %d sweep points", afe.ErrParameterInvalid, f.Points)
		}
		if err := positive("minimum frequency", f.FMin); err != nil {
			return nil, err
		}
		if f.FMax < f.FMin {
			return nil, fmt.Errorf("%w: sweep %v..%v Hz", afe.ErrParameterInvalid, f.FMin, f.FMax)
		}
		if f.Points == 1 {
			return []float32{f.FMin}, nil
		}
		out := make([]float32, f.Points)
		ratio := f.FMax / f.FMin
		for i := range out {
			out[i] = f.FMin * math32.Pow(ratio, float32(i)/float32(f.Points-1))
		}
		out[len(out)-1] = f.FMax
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown eis frequency %T", afe.ErrParameterInvalid, e.Frequency)
}

// Measurements returns the number of impedance measurements of the run.
func (e EIS) Measurements() (int, error) {
	biases, _, err := e.Biases()
	if err != nil {
		return 0, err
	}
	freqs, err := e.Frequencies()
	if err != nil {
		return 0, err
	}
	if ts, ok := e.Scan.(TimeScan); ok {
		if _, ok := e.Frequency.(FrequencySweep); ok {
			return 0, fmt.Errorf("%w: time scan with a frequency sweep", afe.ErrParameterInvalid)
		}
		return CA{TInterval: ts.TInterval, TRun: ts.TRun}.FIFOCount()
	}
	return len(biases) * len(freqs), nil
}

// FIFOCount returns the number of FIFO words: a real and an imaginary DFT
// result per measurement.
func (e EIS) FIFOCount() (int, error) {
	n, err := e.Measurements()
	return 2 * n, err
}

func (e EIS) period() (float32, error) {
	t := e.Interval
	if ts, ok := e.Scan.(TimeScan); ok {
		t = ts.TInterval
	}
	if err := positive("measurement interval", t); err != nil {
		return 0, err
	}
	return t, nil
}

// EISConfig is everything StartEIS needs. The path must be HSDACToHSTIA.
type EISConfig struct {
	Params EIS
	Run    Run
	Path   Path
}

// BuildEIS compiles every bias and frequency combination, bias major, into
// a relinking chain. Each block sets the LPDAC bias and the waveform
// generator frequency; the acquisition slot runs the DFT.
func BuildEIS(cfg EISConfig, words int) (*Setup, error) {
	e := cfg.Params
	total, err := e.FIFOCount()
	if err != nil {
		return nil, err
	}
	biases, eac, err := e.Biases()
	if err != nil {
		return nil, err
	}
	freqs, err := e.Frequencies()
	if err != nil {
		return nil, err
	}
	t, err := e.period()
	if err != nil {
		return nil, err
	}

	run := cfg.Run
	run.FIFOSource = afe.FIFOSrcDFT
	run.DSP.DataType = afe.DataDFT
	s, err := newSetup("eis", run, total)
	if err != nil {
		return nil, err
	}
	if s.Path, err = acPath(cfg.Path, biases[0], eac*math.Sqrt2, freqs[0]); err != nil {
		return nil, err
	}

	steps := make([][]seq.RegWrite, 0, len(biases)*len(freqs))
	for _, b := range biases {
		code, err := afe.LPDACCode(b)
		if err != nil {
			return nil, fmt.Errorf("eis bias %.4f V: %w", b, err)
		}
		for _, f := range freqs {
			fcw, err := afe.WGFrequencyWord(f)
			if err != nil {
				return nil, fmt.Errorf("eis frequency %.1f Hz: %w", f, err)
			}
			steps = append(steps, []seq.RegWrite{
				{Addr: afe.RegLPDACData0, Val: afe.LPDACWord(s.Path.Vzero, code)},
				{Addr: afe.RegWGFCW, Val: fcw},
			})
		}
	}

	acq, _ := s.Path.Kind.AFECon()
	s.Image, err = compile(words, func(a *seq.Arena) error {
		_, err := seq.CompileAcquisition(a, seq.Acquisition{Base: acq, Convert: afe.AFEConDFT, DSP: run.DSP})
		if err != nil {
			return err
		}
		_, err = seq.CompileChain(a, seq.EvenRing(steps))
		return err
	})
	if err != nil {
		return nil, err
	}

	step := seconds(t)
	s.Schedule, err = wakeup.Interleaved(run.LFOSCFrequency, afe.SlotAcquire, wakeup.SampleDelay,
		wakeup.Stimulus{Slot: afe.SlotStimulusA, Interval: step},
		wakeup.Stimulus{Slot: afe.SlotStimulusB, Interval: step},
	)
	if err != nil {
		return nil, err
	}
	s.Timeline = func(i int) (float32, time.Duration) {
		b := biases[(i/len(freqs))%len(biases)]
		return b, time.Duration(i)*step + wakeup.SampleDelay
	}
	s.TempSensorOff = true
	return s, nil
}
