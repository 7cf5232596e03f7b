package technique

import (
	"fmt"

	"github.com/itohio/goafe/pkg/afe"
)

// Path selects the analog signal path. It is one of LPDACToLPTIA,
// LPDACToHSTIA or HSDACToHSTIA.
type Path interface {
	isPath()
}

// LPDACToLPTIA drives the cell from the low-power DAC and measures through
// the low-power TIA.
type LPDACToLPTIA struct {
	Vzero float32 // Working electrode bias (V)
	RTIA  float32 // Ohm
}

// LPDACToHSTIA drives the cell from the low-power DAC and measures through
// the high-speed TIA.
type LPDACToHSTIA struct {
	Vzero float32
	RTIA  float32
}

// HSDACToHSTIA drives the cell from the high-speed DAC and waveform
// generator and measures through the high-speed TIA.
type HSDACToHSTIA struct {
	Vzero float32
	RTIA  float32
}

func (LPDACToLPTIA) isPath() {}
func (LPDACToHSTIA) isPath() {}
func (HSDACToHSTIA) isPath() {}

// ParsePath builds a Path from its configuration name.
func ParsePath(kind string, vzero, rtia float32) (Path, error) {
	switch kind {
	case afe.PathLPDACToLPTIA.String():
		return LPDACToLPTIA{Vzero: vzero, RTIA: rtia}, nil
	case afe.PathLPDACToHSTIA.String():
		return LPDACToHSTIA{Vzero: vzero, RTIA: rtia}, nil
	case afe.PathHSDACToHSTIA.String():
		return HSDACToHSTIA{Vzero: vzero, RTIA: rtia}, nil
	}
	return nil, fmt.Errorf("%w: unknown path %q", afe.ErrParameterInvalid, kind)
}

// dcPath resolves the path of a DC technique (CA, CV, DPV) with the LPDAC
// starting at bias.
func dcPath(p Path, bias float32) (afe.AnalogPath, error) {
	var (
		kind        afe.PathKind
		vzero, rtia float32
	)
	switch p := p.(type) {
	case LPDACToLPTIA:
		kind, vzero, rtia = afe.PathLPDACToLPTIA, p.Vzero, p.RTIA
	case LPDACToHSTIA:
		kind, vzero, rtia = afe.PathLPDACToHSTIA, p.Vzero, p.RTIA
	case HSDACToHSTIA:
		return afe.AnalogPath{}, fmt.Errorf("%w: path %s is not yet supported for dc techniques",
			afe.ErrParameterInvalid, afe.PathHSDACToHSTIA)
	default:
		return afe.AnalogPath{}, fmt.Errorf("%w: unknown path %T", afe.ErrParameterInvalid, p)
	}
	code, err := afe.LPDACCode(bias)
	if err != nil {
		return afe.AnalogPath{}, fmt.Errorf("initial potential %.4f V: %w", bias, err)
	}
	if rtia <= 0 {
		return afe.AnalogPath{}, fmt.Errorf("%w: rtia %v", afe.ErrParameterInvalid, rtia)
	}
	return afe.AnalogPath{Kind: kind, Vzero: afe.VzeroCode(vzero), Bias: code, RTIA: rtia}, nil
}

// acPath resolves the impedance path. Only HSDACToHSTIA can generate the
// excitation sine.
func acPath(p Path, bias, amplitude, freq float32) (afe.AnalogPath, error) {
	hs, ok := p.(HSDACToHSTIA)
	if !ok {
		return afe.AnalogPath{}, fmt.Errorf("%w: impedance needs path %s, got %T",
			afe.ErrParameterInvalid, afe.PathHSDACToHSTIA, p)
	}
	if hs.RTIA <= 0 {
		return afe.AnalogPath{}, fmt.Errorf("%w: rtia %v", afe.ErrParameterInvalid, hs.RTIA)
	}
	code, err := afe.LPDACCode(bias)
	if err != nil {
		return afe.AnalogPath{}, fmt.Errorf("bias %.4f V: %w", bias, err)
	}
	amp, err := afe.WGAmplitudeCode(amplitude)
	if err != nil {
		return afe.AnalogPath{}, fmt.Errorf("excitation amplitude %.4f V: %w", amplitude, err)
	}
	fcw, err := afe.WGFrequencyWord(freq)
	if err != nil {
		return afe.AnalogPath{}, fmt.Errorf("excitation frequency %.1f Hz: %w", freq, err)
	}
	return afe.AnalogPath{
		Kind:      afe.PathHSDACToHSTIA,
		Vzero:     afe.VzeroCode(hs.Vzero),
		Bias:      code,
		RTIA:      hs.RTIA,
		Amplitude: amp,
		Frequency: fcw,
	}, nil
}
