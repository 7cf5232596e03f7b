package sample

import (
	"log/slog"
	"time"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/config"
)

// Sample is one acquired point of a measurement.
type Sample struct {
	Index     int
	Elapsed   time.Duration // Time since the technique started
	Potential float32       // Applied cell potential (V)
	Code      uint16        // Raw ADC result
	Current   float64       // Cell current (uA)
}

// Timeline tells which potential was applied, and when, for the i-th
// sample of a run.
type Timeline func(i int) (potential float32, elapsed time.Duration)

// Params holds the constants of the linear ADC to current conversion.
type Params struct {
	VRef    float64 // ADC reference (V)
	PGAGain float64
	RTIA    float64 // Ohm
	Offset  float64 // ADC code offset
	Scale   float64 // Multiplicative code correction
}

// ParamsFromConfig builds conversion parameters from the path and
// calibration sections.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		VRef:    cfg.Path.VRef,
		PGAGain: cfg.Path.PGAGain,
		RTIA:    cfg.Path.RTIA,
		Offset:  cfg.Calibration.Offset,
		Scale:   cfg.Calibration.Scale,
	}
}

// Voltage converts a 16-bit ADC code into the voltage at the ADC input.
// Mid-scale is 0 V.
func (p Params) Voltage(code uint16) float64 {
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	gain := p.PGAGain
	if gain == 0 {
		gain = 1
	}
	c := (float64(code) - p.Offset) * scale
	return (c - afe.ADCMidScale) / afe.ADCMidScale * p.VRef / gain
}

// Current converts a 16-bit ADC code into the cell current in uA. The
// transimpedance amplifier inverts, so a positive ADC voltage is a negative
// current.
func (p Params) Current(code uint16) float64 {
	if p.RTIA == 0 {
		return 0
	}
	return -p.Voltage(code) / p.RTIA * 1e6
}

// Converter is a function type that converts a FIFO word channel to a
// Sample channel.
type Converter func(in <-chan uint32) <-chan Sample

// NewConverter creates a converter that turns every ADC FIFO word into a
// Sample. Words carrying other results are skipped.
func NewConverter(p Params, tl Timeline, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan uint32) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			i := 0
			for w := range in {
				tag, code := afe.SplitFIFOWord(w)
				if tag != afe.TagADC {
					slog.Debug("skipping non-adc fifo word", "tag", tag)
					continue
				}
				s := Sample{Index: i, Code: code, Current: p.Current(code)}
				if tl != nil {
					s.Potential, s.Elapsed = tl(i)
				}
				i++
				emit(out, s)
			}
		}()

		return out
	}
}

func emit(out chan<- Sample, s Sample) {
	select {
	case out <- s:
	case <-time.After(time.Second):
		slog.Warn("converter output channel full, dropping sample", "index", s.Index)
	}
}
