package seq

import (
	"testing"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepCount(t *testing.T) {
	tests := []struct {
		name    string
		a, b    float32
		step    float32
		want    int
		wantErr bool
	}{
		{name: "rounds up inexact", a: 0, b: 1.0, step: 0.3, want: 4},
		{name: "exact", a: 0, b: 1.0, step: 0.5, want: 2},
		{name: "descending", a: 0.5, b: -0.5, step: 0.1, want: 10},
		{name: "ascending tenths", a: -0.5, b: 0.5, step: 0.1, want: 10},
		{name: "zero length", a: -0.5, b: -0.5, step: 0.1, want: 0},
		{name: "fine step", a: -0.5, b: 0.5, step: 0.01, want: 100},
		{name: "zero step", a: 0, b: 1, step: 0, wantErr: true},
		{name: "negative step", a: 0, b: 1, step: -0.1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StepCount(tt.a, tt.b, tt.step)
			if tt.wantErr {
				assert.ErrorIs(t, err, afe.ErrParameterInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRamp_Legs(t *testing.T) {
	tests := []struct {
		name  string
		ramp  Ramp
		legs  [3]int
		total int
	}{
		{
			name:  "closed cycle returning through begin",
			ramp:  Ramp{Begin: -0.5, Vertex1: 0.5, Vertex2: -0.5, Step: 0.1},
			legs:  [3]int{10, 10, 0},
			total: 20,
		},
		{
			name:  "three legs",
			ramp:  Ramp{Begin: 0, Vertex1: 0.5, Vertex2: -0.5, Step: 0.25},
			legs:  [3]int{2, 4, 2},
			total: 8,
		},
		{
			name:  "inexact legs round up",
			ramp:  Ramp{Begin: 0, Vertex1: 1.0, Vertex2: 0.5, Step: 0.3},
			legs:  [3]int{4, 2, 2},
			total: 8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legs, err := tt.ramp.Legs()
			require.NoError(t, err)
			assert.Equal(t, tt.legs, legs)

			n, err := tt.ramp.Len()
			require.NoError(t, err)
			assert.Equal(t, tt.total, n)
		})
	}
}

func TestRamp_Validate(t *testing.T) {
	assert.ErrorIs(t, Ramp{Begin: 0.1, Vertex1: 0.1, Vertex2: 0.1, Step: 0.1}.Validate(), afe.ErrParameterInvalid)
	assert.ErrorIs(t, Ramp{Begin: 0, Vertex1: 1, Vertex2: 0, Step: 0}.Validate(), afe.ErrParameterInvalid)
	assert.NoError(t, Ramp{Begin: 0, Vertex1: 1, Vertex2: 0, Step: 0.1}.Validate())
}

func TestRamp_At(t *testing.T) {
	r := Ramp{Begin: 0, Vertex1: 0.5, Vertex2: -0.5, Step: 0.25}
	want := []float32{0, 0.25, 0.5, 0.25, 0, -0.25, -0.5, -0.25}
	for i, w := range want {
		got, err := r.At(i)
		require.NoError(t, err)
		assert.Equal(t, w, got, "index %d", i)
	}
}

func TestRamp_Periodic(t *testing.T) {
	ramps := []Ramp{
		{Begin: -0.5, Vertex1: 0.5, Vertex2: -0.5, Step: 0.1},
		{Begin: 0, Vertex1: 1.0, Vertex2: -0.3, Step: 0.3},
		{Begin: 0.2, Vertex1: -0.7, Vertex2: 0.9, Step: 0.037},
	}
	for _, r := range ramps {
		n, err := r.Len()
		require.NoError(t, err)
		for i := -n; i < 3*n; i++ {
			a, err := r.At(i)
			require.NoError(t, err)
			b, err := r.At(i + n)
			require.NoError(t, err)
			assert.Equal(t, a, b, "ramp %+v index %d", r, i)
		}
	}
}

func TestRamp_Points(t *testing.T) {
	r := Ramp{Begin: -0.5, Vertex1: 0.5, Vertex2: -0.5, Step: 0.1}
	pts, err := r.Points()
	require.NoError(t, err)
	require.Len(t, pts, 20)

	assert.InDelta(t, -0.5, pts[0].Potential, 1e-6)
	assert.InDelta(t, 0.5, pts[10].Potential, 1e-6)
	assert.InDelta(t, 0.4, pts[11].Potential, 1e-6)
	assert.InDelta(t, -0.4, pts[19].Potential, 1e-6)
	for i, p := range pts {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, BlockSlot(i), p.Slot)
	}
	assert.Equal(t, afe.SlotStimulusA, pts[0].Slot)
	assert.Equal(t, afe.SlotStimulusB, pts[1].Slot)
}
