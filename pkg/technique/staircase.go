package technique

import "github.com/itohio/goafe/pkg/seq"

// staircase returns the potentials from begin towards end in steps of
// step, both ends included. The last step is clamped to end.
func staircase(begin, end, step float32) ([]float32, error) {
	n, err := seq.StepCount(begin, end, step)
	if err != nil {
		return nil, err
	}
	dir := float32(1)
	if end < begin {
		dir = -1
	}
	out := make([]float32, n+1)
	for k := range out {
		e := begin + dir*float32(float32(k)*step)
		if dir*(e-end) > 0 {
			e = end
		}
		out[k] = e
	}
	return out, nil
}
