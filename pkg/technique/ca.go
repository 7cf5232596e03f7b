package technique

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/seq"
	"github.com/itohio/goafe/pkg/wakeup"
)

// CA holds chronoamperometry parameters. Potentials are in V, times in s.
type CA struct {
	EDC       float32
	TInterval float32
	TRun      float32
}

// FIFOCount returns the number of samples the run produces.
func (c CA) FIFOCount() (int, error) {
	if err := positive("sampling interval", c.TInterval); err != nil {
		return 0, err
	}
	if err := positive("run time", c.TRun); err != nil {
		return 0, err
	}
	n := int(math32.Floor(c.TRun / c.TInterval))
	if n == 0 {
		return 0, fmt.Errorf("%w: run time %v shorter than interval %v", afe.ErrParameterInvalid, c.TRun, c.TInterval)
	}
	return n, nil
}

// CAConfig is everything StartCA needs.
type CAConfig struct {
	Params CA
	Run    Run
	Path   Path
}

// BuildCA validates cfg and compiles the acquisition program. The LPDAC is
// set once through the analog path and held there.
func BuildCA(cfg CAConfig, words int) (*Setup, error) {
	c := cfg.Params
	total, err := c.FIFOCount()
	if err != nil {
		return nil, err
	}
	s, err := newSetup("ca", cfg.Run, total)
	if err != nil {
		return nil, err
	}
	if s.Path, err = dcPath(cfg.Path, c.EDC); err != nil {
		return nil, err
	}
	base, _ := s.Path.Kind.AFECon()
	s.Image, err = compile(words, func(a *seq.Arena) error {
		_, err := seq.CompileAcquisition(a, seq.Acquisition{Base: base, DSP: cfg.Run.DSP})
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Schedule, err = wakeup.Single(afe.SlotAcquire, cfg.Run.LFOSCFrequency, seconds(c.TInterval)); err != nil {
		return nil, err
	}
	s.Timeline = func(i int) (float32, time.Duration) {
		return c.EDC, seconds(float32(i+1) * c.TInterval)
	}
	s.TempSensorOff = true
	return s, nil
}
