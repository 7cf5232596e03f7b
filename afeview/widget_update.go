package main

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"github.com/itohio/goafe/pkg/sample"
	"github.com/itohio/goafe/pkg/trace"
)

// updateInterval limits widget refreshes to about 60 FPS.
const updateInterval = 16 * time.Millisecond

// UpdateWidgetOnMainThread schedules a widget update function to run on the main Fyne thread.
// Fyne widgets cannot be updated directly from goroutines.
func UpdateWidgetOnMainThread(callback func()) {
	if callback == nil {
		return
	}
	fyne.Do(callback)
}

// throttle drops updates that arrive sooner than updateInterval after the
// previous accepted one.
type throttle struct {
	mu   sync.Mutex
	last time.Time
}

func (t *throttle) allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Sub(t.last) < updateInterval {
		return false
	}
	t.last = now
	return true
}

// throttledUpdate is the recorder callback. The scope widget downsamples
// internally, so it gets the full trace.
func (state *appState) throttledUpdate(samples []sample.Sample, bounds trace.Bounds) {
	if !state.allow() {
		return
	}
	UpdateWidgetOnMainThread(func() {
		state.scopeWidget.UpdateData(samples, bounds)
	})
}
