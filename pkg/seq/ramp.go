package seq

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/itohio/goafe/pkg/afe"
)

// stepEpsilon is the fractional remainder below which a leg is considered
// an exact multiple of the step.
const stepEpsilon = 1e-5

// StepCount returns the number of steps needed to go from a to b in steps
// of size step. A leg that is not an exact multiple of step is rounded up.
func StepCount(a, b, step float32) (int, error) {
	if !(step > 0) || math32.IsInf(step, 1) {
		return 0, fmt.Errorf("%w: step %v", afe.ErrParameterInvalid, step)
	}
	if math32.IsNaN(a) || math32.IsNaN(b) {
		return 0, fmt.Errorf("%w: potential is NaN", afe.ErrParameterInvalid)
	}
	total := math32.Abs((b - a) / step)
	n, frac := math32.Modf(total)
	if frac > stepEpsilon {
		n++
	}
	return int(n), nil
}

// RampPoint is one set-point of a ramp and the stimulus slot applying it.
type RampPoint struct {
	Index     int
	Potential float32
	Slot      afe.Slot
}

// Ramp is a closed triangular sweep begin -> vertex1 -> vertex2 -> begin.
type Ramp struct {
	Begin   float32
	Vertex1 float32
	Vertex2 float32
	Step    float32
}

type leg struct {
	start float32
	step  float32
	n     int
}

func (r Ramp) legs() ([3]leg, error) {
	ends := [4]float32{r.Begin, r.Vertex1, r.Vertex2, r.Begin}
	var out [3]leg
	for i := range out {
		n, err := StepCount(ends[i], ends[i+1], r.Step)
		if err != nil {
			return out, err
		}
		step := -r.Step
		if ends[i+1] > ends[i] {
			step = r.Step
		}
		out[i] = leg{start: ends[i], step: step, n: n}
	}
	return out, nil
}

// Legs returns the step count of each leg.
func (r Ramp) Legs() ([3]int, error) {
	l, err := r.legs()
	if err != nil {
		return [3]int{}, err
	}
	return [3]int{l[0].n, l[1].n, l[2].n}, nil
}

// Len returns the number of set-points in one full cycle.
func (r Ramp) Len() (int, error) {
	l, err := r.Legs()
	if err != nil {
		return 0, err
	}
	return l[0] + l[1] + l[2], nil
}

// Validate checks the step and that the ramp is not empty.
func (r Ramp) Validate() error {
	n, err := r.Len()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: ramp has no steps", afe.ErrParameterInvalid)
	}
	return nil
}

// At returns the potential at index i. The ramp repeats, so i is taken
// modulo the cycle length.
func (r Ramp) At(i int) (float32, error) {
	l, err := r.legs()
	if err != nil {
		return 0, err
	}
	n := l[0].n + l[1].n + l[2].n
	if n == 0 {
		return 0, fmt.Errorf("%w: ramp has no steps", afe.ErrParameterInvalid)
	}
	return at(l, n, i), nil
}

func at(l [3]leg, n, i int) float32 {
	pos := ((i % n) + n) % n
	for _, g := range l[:2] {
		if pos < g.n {
			return g.start + float32(float32(pos)*g.step)
		}
		pos -= g.n
	}
	return l[2].start + float32(float32(pos)*l[2].step)
}

// Points returns one cycle of set-points.
func (r Ramp) Points() ([]RampPoint, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	l, _ := r.legs()
	n := l[0].n + l[1].n + l[2].n
	pts := make([]RampPoint, n)
	for i := range pts {
		pts[i] = RampPoint{Index: i, Potential: at(l, n, i), Slot: BlockSlot(i)}
	}
	return pts, nil
}
