package technique

import (
	"time"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/seq"
	"github.com/itohio/goafe/pkg/wakeup"
)

// Temperature holds die temperature sampling parameters.
type Temperature struct {
	SamplingInterval float32 // s
	TempSens         uint32  // Sensor control register value
}

// FIFOCount is zero: temperature sampling runs until stopped.
func (t Temperature) FIFOCount() (int, error) {
	return 0, nil
}

// TemperatureConfig is everything StartTemperature needs.
type TemperatureConfig struct {
	Params Temperature
	Run    Run
}

// BuildTemperature compiles the temperature program on the acquisition
// slot. The sensor control register is written before anything else.
func BuildTemperature(cfg TemperatureConfig, words int) (*Setup, error) {
	t := cfg.Params
	if err := positive("sampling interval", t.SamplingInterval); err != nil {
		return nil, err
	}
	s, err := newSetup("temperature", cfg.Run, 0)
	if err != nil {
		return nil, err
	}
	s.PreWrites = []seq.RegWrite{{Addr: afe.RegTempSens, Val: t.TempSens}}
	s.Path = afe.AnalogPath{Kind: afe.PathTemperature}
	s.Image, err = compile(words, func(a *seq.Arena) error {
		_, err := seq.CompileTemperature(a, cfg.Run.DSP)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Schedule, err = wakeup.Single(afe.SlotAcquire, cfg.Run.LFOSCFrequency, seconds(t.SamplingInterval)); err != nil {
		return nil, err
	}
	s.Timeline = func(i int) (float32, time.Duration) {
		return 0, seconds(float32(i+1) * t.SamplingInterval)
	}
	return s, nil
}
