package sample

import (
	"fmt"
	"strings"

	"github.com/itohio/goafe/pkg/afe"
)

// Inversion selects which differential DPV currents change sign.
type Inversion uint8

const (
	InvertNone Inversion = iota
	InvertBoth
	InvertCathodic
	InvertAnodic
)

// ParseInversion parses an inversion name as used in configuration files.
func ParseInversion(s string) (Inversion, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return InvertNone, nil
	case "both":
		return InvertBoth, nil
	case "cathodic":
		return InvertCathodic, nil
	case "anodic":
		return InvertAnodic, nil
	}
	return 0, fmt.Errorf("%w: unknown inversion %q", afe.ErrParameterInvalid, s)
}

func (inv Inversion) String() string {
	switch inv {
	case InvertNone:
		return "none"
	case InvertBoth:
		return "both"
	case InvertCathodic:
		return "cathodic"
	case InvertAnodic:
		return "anodic"
	}
	return fmt.Sprintf("inversion(%d)", uint8(inv))
}

// Apply returns i with the inversion applied. Cathodic currents are
// negative, anodic ones positive.
func (inv Inversion) Apply(i float64) float64 {
	switch {
	case inv == InvertBoth,
		inv == InvertCathodic && i < 0,
		inv == InvertAnodic && i > 0:
		return -i
	}
	return i
}

// DPVCurrent returns the differential current in uA between the pulse and
// the step sample of one DPV period.
func (p Params) DPVCurrent(step, pulse uint16, inv Inversion) float64 {
	return inv.Apply(p.Current(pulse) - p.Current(step))
}

// NewDPVConverter creates a converter that pairs consecutive ADC words
// (step, then pulse) into one differential Sample. The Sample takes the
// step potential and the time of the pulse sample.
func NewDPVConverter(p Params, tl Timeline, inv Inversion, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan uint32) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var (
				step    uint16
				haveOne bool
				i       int
			)
			for w := range in {
				tag, code := afe.SplitFIFOWord(w)
				if tag != afe.TagADC {
					continue
				}
				if !haveOne {
					step, haveOne = code, true
					continue
				}
				haveOne = false
				s := Sample{Index: i, Code: code, Current: p.DPVCurrent(step, code, inv)}
				if tl != nil {
					s.Potential, _ = tl(2 * i)
					_, s.Elapsed = tl(2*i + 1)
				}
				i++
				emit(out, s)
			}
		}()

		return out
	}
}
