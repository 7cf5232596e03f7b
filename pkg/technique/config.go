package technique

import (
	"fmt"
	"strings"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/config"
	"github.com/itohio/goafe/pkg/sample"
)

// RunFromConfig translates the run, device and dsp sections.
func RunFromConfig(cfg *config.Config) (Run, error) {
	src, err := afe.ParseFIFOSource(cfg.Run.FIFOSource)
	if err != nil {
		return Run{}, err
	}
	dt, err := afe.ParseDataType(cfg.Run.DataType)
	if err != nil {
		return Run{}, err
	}
	return Run{
		LFOSCFrequency: float32(cfg.Device.LFOSCFrequency),
		FIFOThreshold:  cfg.Run.FIFOThreshold,
		FIFOSource:     src,
		DSP: afe.DSPConfig{
			ADCAverage:  uint32(cfg.DSP.ADCAverage),
			Sinc2OSR:    uint32(cfg.DSP.Sinc2OSR),
			Sinc3OSR:    uint32(cfg.DSP.Sinc3OSR),
			BypassNotch: cfg.DSP.BypassNotch,
			DFTPoints:   uint32(cfg.DSP.DFTPoints),
			DataType:    dt,
		},
		InterruptController: uint8(cfg.Run.InterruptController),
		InterruptGPIO:       uint8(cfg.Run.InterruptPin),
	}, nil
}

// PathFromConfig translates the path section.
func PathFromConfig(cfg *config.Config) (Path, error) {
	return ParsePath(cfg.Path.Kind, float32(cfg.Path.Vzero), float32(cfg.Path.RTIA))
}

func common(cfg *config.Config) (Run, Path, error) {
	run, err := RunFromConfig(cfg)
	if err != nil {
		return Run{}, nil, err
	}
	path, err := PathFromConfig(cfg)
	if err != nil {
		return Run{}, nil, err
	}
	return run, path, nil
}

// CAFromConfig translates a configuration into a CA start request.
func CAFromConfig(cfg *config.Config) (CAConfig, error) {
	run, path, err := common(cfg)
	if err != nil {
		return CAConfig{}, err
	}
	c := cfg.CA
	return CAConfig{
		Params: CA{EDC: float32(c.EDC), TInterval: float32(c.TInterval), TRun: float32(c.TRun)},
		Run:    run,
		Path:   path,
	}, nil
}

// CVFromConfig translates a configuration into a CV start request.
func CVFromConfig(cfg *config.Config) (CVConfig, error) {
	run, path, err := common(cfg)
	if err != nil {
		return CVConfig{}, err
	}
	c := cfg.CV
	return CVConfig{
		Params: CV{
			EBegin:   float32(c.EBegin),
			EVertex1: float32(c.EVertex1),
			EVertex2: float32(c.EVertex2),
			EStep:    float32(c.EStep),
			ScanRate: float32(c.ScanRate),
		},
		Run:  run,
		Path: path,
	}, nil
}

// DPVFromConfig translates a configuration into a DPV start request.
func DPVFromConfig(cfg *config.Config) (DPVConfig, error) {
	run, path, err := common(cfg)
	if err != nil {
		return DPVConfig{}, err
	}
	d := cfg.DPV
	inv, err := sample.ParseInversion(d.Inversion)
	if err != nil {
		return DPVConfig{}, err
	}
	return DPVConfig{
		Params: DPV{
			EBegin:    float32(d.EBegin),
			EEnd:      float32(d.EEnd),
			EStep:     float32(d.EStep),
			EPulse:    float32(d.EPulse),
			TPulse:    float32(d.TPulse),
			ScanRate:  float32(d.ScanRate),
			Inversion: inv,
		},
		Run:  run,
		Path: path,
	}, nil
}

// EISFromConfig translates a configuration into an EIS start request.
func EISFromConfig(cfg *config.Config) (EISConfig, error) {
	run, path, err := common(cfg)
	if err != nil {
		return EISConfig{}, err
	}
	e := cfg.EIS
	p := EIS{Interval: float32(e.TInterval)}

	switch strings.ToLower(e.Scan) {
	case "potential":
		p.Scan = PotentialScan{EBegin: float32(e.EBegin), EEnd: float32(e.EEnd), EStep: float32(e.EStep), EAC: float32(e.EAC)}
	case "time":
		p.Scan = TimeScan{EDC: float32(e.EDC), EAC: float32(e.EAC), TRun: float32(e.TRun), TInterval: float32(e.TInterval)}
	case "fixed":
		p.Scan = FixedScan{EDC: float32(e.EDC), EAC: float32(e.EAC)}
	default:
		return EISConfig{}, fmt.Errorf("%w: unknown eis scan %q", afe.ErrParameterInvalid, e.Scan)
	}

	switch strings.ToLower(e.Frequency) {
	case "fixed":
		p.Frequency = FixedFrequency{Frequency: float32(e.FixedFrequency)}
	case "sweep":
		p.Frequency = FrequencySweep{Points: e.Points, FMin: float32(e.FMin), FMax: float32(e.FMax)}
	default:
		return EISConfig{}, fmt.Errorf("%w: unknown eis frequency %q", afe.ErrParameterInvalid, e.Frequency)
	}

	return EISConfig{Params: p, Run: run, Path: path}, nil
}

// TemperatureFromConfig translates a configuration into a temperature start
// request.
func TemperatureFromConfig(cfg *config.Config) (TemperatureConfig, error) {
	run, err := RunFromConfig(cfg)
	if err != nil {
		return TemperatureConfig{}, err
	}
	return TemperatureConfig{
		Params: Temperature{
			SamplingInterval: float32(cfg.Temperature.SamplingInterval),
			TempSens:         cfg.Temperature.TempSens,
		},
		Run: run,
	}, nil
}

// Techniques lists the names accepted by BuildFromConfig and
// Runner.StartFromConfig.
var Techniques = []string{"ca", "cv", "dpv", "eis", "temperature"}

// BuildFromConfig builds the named technique without touching a device.
func BuildFromConfig(name string, cfg *config.Config) (*Setup, error) {
	words := cfg.Device.ProgramWords
	switch strings.ToLower(name) {
	case "ca":
		c, err := CAFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return BuildCA(c, words)
	case "cv":
		c, err := CVFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return BuildCV(c, words)
	case "dpv":
		c, err := DPVFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return BuildDPV(c, words)
	case "eis":
		c, err := EISFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return BuildEIS(c, words)
	case "temperature", "temp":
		c, err := TemperatureFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return BuildTemperature(c, words)
	}
	return nil, fmt.Errorf("%w: unknown technique %q", afe.ErrParameterInvalid, name)
}
