package trace

import (
	"sync"
	"testing"
	"time"

	"github.com/itohio/goafe/pkg/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(r *Recorder, samples ...sample.Sample) {
	in := make(chan sample.Sample, len(samples))
	for _, s := range samples {
		in <- s
	}
	close(in)
	r.Record(in)
}

func TestRecorder_Bounds(t *testing.T) {
	r := New(0)
	feed(r,
		sample.Sample{Index: 0, Potential: 0, Current: 1},
		sample.Sample{Index: 1, Potential: 0.5, Current: -2},
		sample.Sample{Index: 2, Potential: -0.5, Current: 3},
	)

	assert.Len(t, r.Samples(), 3)
	assert.Equal(t, Bounds{MinPotential: -0.5, MaxPotential: 0.5, MinCurrent: -2, MaxCurrent: 3}, r.Bounds())
}

func TestRecorder_Limit(t *testing.T) {
	r := New(2)
	feed(r,
		sample.Sample{Index: 0, Potential: -1, Current: -10},
		sample.Sample{Index: 1, Potential: 0.1, Current: 1},
		sample.Sample{Index: 2, Potential: 0.2, Current: 2},
	)

	got := r.Samples()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 2, got[1].Index)
	assert.Equal(t, Bounds{MinPotential: 0.1, MaxPotential: 0.2, MinCurrent: 1, MaxCurrent: 2}, r.Bounds(), "trimmed samples leave the bounds")
}

func TestRecorder_OnUpdate(t *testing.T) {
	r := New(0)
	var (
		mu    sync.Mutex
		sizes []int
	)
	r.OnUpdate(func(samples []sample.Sample, _ Bounds) {
		mu.Lock()
		sizes = append(sizes, len(samples))
		mu.Unlock()
	})

	feed(r, sample.Sample{Index: 0}, sample.Sample{Index: 1})
	assert.Equal(t, []int{1, 2}, sizes)
}

func TestRecorder_NoCallbacksAfterClose(t *testing.T) {
	r := New(0)
	calls := 0
	r.OnUpdate(func([]sample.Sample, Bounds) { calls++ })

	feed(r, sample.Sample{Index: 0})
	require.Equal(t, 1, calls)

	// A closed recorder still records but stays quiet.
	r.add(sample.Sample{Index: 1})
	assert.Equal(t, 1, calls)
	assert.Len(t, r.Samples(), 2)

	r.Reset()
	assert.Empty(t, r.Samples())
	assert.Equal(t, Bounds{}, r.Bounds())

	done := make(chan struct{})
	go func() {
		feed(r, sample.Sample{Index: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("record did not return")
	}
	assert.Equal(t, 2, calls)
}

func TestRecorder_SamplesIsCopy(t *testing.T) {
	r := New(0)
	feed(r, sample.Sample{Index: 0, Current: 1})

	got := r.Samples()
	got[0].Current = 99
	assert.Equal(t, 1.0, r.Samples()[0].Current)
}
