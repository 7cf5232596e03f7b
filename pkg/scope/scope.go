// Package scope provides a Fyne widget that plots a running measurement:
// current against potential for voltammetry, current against time for
// fixed potential techniques.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/goafe/pkg/sample"
	"github.com/itohio/goafe/pkg/trace"
)

// Axis selects the horizontal axis.
type Axis uint8

const (
	AxisPotential Axis = iota
	AxisTime
)

// ScopeWidget is a custom Fyne widget that displays a voltammogram or a
// current transient.
type ScopeWidget struct {
	widget.BaseWidget

	mu      sync.RWMutex
	axis    Axis
	display []sample.Sample // Downsampled copy of the last update
	bounds  trace.Bounds
	status  string

	// Axis ranges with margins applied
	xMin, xMax float64
	yMin, yMax float64

	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(axis Axis) *ScopeWidget {
	s := &ScopeWidget{
		axis:             axis,
		display:          make([]sample.Sample, 0, 1000),
		maxDisplayPoints: 1000,
	}
	s.ExtendBaseWidget(s)
	s.updateAutoScale()
	s.Refresh()
	return s
}

// SetAxis switches the horizontal axis.
func (s *ScopeWidget) SetAxis(axis Axis) {
	s.mu.Lock()
	s.axis = axis
	s.updateAutoScale()
	s.mu.Unlock()
	s.Refresh()
}

// SetStatus sets the text shown in the top left corner.
func (s *ScopeWidget) SetStatus(text string) {
	s.mu.Lock()
	s.status = text
	s.mu.Unlock()
	s.Refresh()
}

// UpdateData updates the widget with new samples. Call it through fyne.Do
// from recorder callbacks.
func (s *ScopeWidget) UpdateData(samples []sample.Sample, bounds trace.Bounds) {
	s.mu.Lock()
	s.display = sample.Downsample(s.display, samples, s.maxDisplayPoints)
	s.bounds = bounds
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// updateAutoScale derives both axis ranges with a 10% margin.
func (s *ScopeWidget) updateAutoScale() {
	if len(s.display) == 0 {
		s.xMin, s.xMax = -1, 1
		if s.axis == AxisTime {
			s.xMin, s.xMax = 0, 10
		}
		s.yMin, s.yMax = -1, 1
		return
	}

	s.yMin, s.yMax = withMargin(s.bounds.MinCurrent, s.bounds.MaxCurrent)
	if s.axis == AxisTime {
		last := s.display[len(s.display)-1].Elapsed
		s.xMin, s.xMax = 0, max(last, time.Second).Seconds()
		return
	}
	s.xMin, s.xMax = withMargin(float64(s.bounds.MinPotential), float64(s.bounds.MaxPotential))
}

func withMargin(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return lo - span*0.1, hi + span*0.1
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
