// Package trace accumulates converted samples of a run and notifies
// listeners as they arrive.
package trace

import (
	"sync"

	"github.com/itohio/goafe/pkg/sample"
)

var _ Trace = (*Recorder)(nil)

// Bounds is the range covered by the recorded samples.
type Bounds struct {
	MinPotential, MaxPotential float32
	MinCurrent, MaxCurrent     float64
}

func (b Bounds) extend(s sample.Sample) Bounds {
	b.MinPotential = min(b.MinPotential, s.Potential)
	b.MaxPotential = max(b.MaxPotential, s.Potential)
	b.MinCurrent = min(b.MinCurrent, s.Current)
	b.MaxCurrent = max(b.MaxCurrent, s.Current)
	return b
}

func boundsOf(samples []sample.Sample) Bounds {
	if len(samples) == 0 {
		return Bounds{}
	}
	s := samples[0]
	b := Bounds{MinPotential: s.Potential, MaxPotential: s.Potential, MinCurrent: s.Current, MaxCurrent: s.Current}
	for _, s := range samples[1:] {
		b = b.extend(s)
	}
	return b
}

// Trace records samples and reports updates.
type Trace interface {
	Record(input <-chan sample.Sample)
	Samples() []sample.Sample // Ordered oldest first
	Bounds() Bounds
	OnUpdate(func(samples []sample.Sample, bounds Bounds))
}

// Recorder implements Trace. It keeps at most limit samples, dropping the
// oldest.
type Recorder struct {
	limit int

	mu       sync.RWMutex
	samples  []sample.Sample
	bounds   Bounds
	shutdown bool

	callbacks []func(samples []sample.Sample, bounds Bounds)
	cbMu      sync.RWMutex
}

// New creates a Recorder. A non-positive limit keeps every sample.
func New(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Record consumes input until it closes. No callbacks are sent after that
// until Reset.
func (r *Recorder) Record(input <-chan sample.Sample) {
	for s := range input {
		r.add(s)
	}
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()
}

func (r *Recorder) add(s sample.Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	trimmed := false
	if r.limit > 0 && len(r.samples) > r.limit {
		r.samples = append(r.samples[:0], r.samples[len(r.samples)-r.limit:]...)
		trimmed = true
	}
	switch {
	case trimmed, len(r.samples) == 1:
		r.bounds = boundsOf(r.samples)
	default:
		r.bounds = r.bounds.extend(s)
	}
	notify := !r.shutdown
	r.mu.Unlock()

	if notify {
		r.notify()
	}
}

// Samples returns a copy of the recorded samples.
func (r *Recorder) Samples() []sample.Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]sample.Sample(nil), r.samples...)
}

// Bounds returns the range of the recorded samples.
func (r *Recorder) Bounds() Bounds {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bounds
}

// OnUpdate registers a callback invoked after every recorded sample. The
// callback gets its own copy of the samples and should return quickly.
func (r *Recorder) OnUpdate(callback func(samples []sample.Sample, bounds Bounds)) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, callback)
}

// Reset clears the recorded samples and re-enables callbacks for a new run.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = r.samples[:0]
	r.bounds = Bounds{}
	r.shutdown = false
}

func (r *Recorder) notify() {
	r.mu.RLock()
	samples := append([]sample.Sample(nil), r.samples...)
	bounds := r.bounds
	r.mu.RUnlock()

	r.cbMu.RLock()
	callbacks := append(([]func([]sample.Sample, Bounds))(nil), r.callbacks...)
	r.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samples, bounds)
		}
	}
}
