package scope

import (
	"fmt"
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/goafe/pkg/sample"
)

var (
	gridColor   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	traceColor  = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	markerColor = color.RGBA{R: 100, G: 200, B: 255, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	bg       *canvas.Rectangle
	objects  []fyne.CanvasObject
	lastSize fyne.Size
}

type plotArea struct {
	x, y, w, h float32
	xMin, xMax float64
	yMin, yMax float64
}

func (p plotArea) pos(x, y float64) fyne.Position {
	px := p.x + float32((x-p.xMin)/(p.xMax-p.xMin))*p.w
	py := p.y + p.h - float32((y-p.yMin)/(p.yMax-p.yMin))*p.h
	return fyne.NewPos(px, py)
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the plot from the widget state.
func (r *scopeRenderer) Refresh() {
	s := r.scope
	s.mu.RLock()
	points := s.display
	axis := s.axis
	status := s.status
	area := plotArea{xMin: s.xMin, xMax: s.xMax, yMin: s.yMin, yMax: s.yMax}
	s.mu.RUnlock()

	size := s.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	const (
		marginLeft   = 70
		marginRight  = 20
		marginTop    = 20
		marginBottom = 40
	)
	area.x, area.y = marginLeft, marginTop
	area.w = size.Width - marginLeft - marginRight
	area.h = size.Height - marginTop - marginBottom

	r.objects = []fyne.CanvasObject{r.bg}
	r.drawGrid(area, axis)
	r.drawTrace(area, axis, points)
	if status != "" {
		r.text(status, markerColor, fyne.NewPos(area.x+10, area.y+5), fyne.TextAlignLeading, 11)
	}
}

func (r *scopeRenderer) line(c color.Color, a, b fyne.Position, width float32) {
	l := canvas.NewLine(c)
	l.Position1, l.Position2 = a, b
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *scopeRenderer) text(s string, c color.Color, at fyne.Position, align fyne.TextAlign, size float32) {
	t := canvas.NewText(s, c)
	t.TextSize = size
	t.Alignment = align
	t.Move(at)
	r.objects = append(r.objects, t)
}

func (r *scopeRenderer) drawGrid(p plotArea, axis Axis) {
	const hLines, vLines = 8, 10
	for i := range hLines + 1 {
		y := p.y + float32(i)*p.h/hLines
		r.line(gridColor, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y), 1)
		v := p.yMax - float64(i)*(p.yMax-p.yMin)/hLines
		r.text(formatCurrent(v), labelColor, fyne.NewPos(p.x-5, y-6), fyne.TextAlignTrailing, 10)
	}
	for i := range vLines + 1 {
		x := p.x + float32(i)*p.w/vLines
		r.line(gridColor, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h), 1)
		v := p.xMin + float64(i)*(p.xMax-p.xMin)/vLines
		label := formatPotential(v)
		if axis == AxisTime {
			label = formatSeconds(v)
		}
		r.text(label, labelColor, fyne.NewPos(x-20, p.y+p.h+5), fyne.TextAlignCenter, 10)
	}
}

// drawTrace connects consecutive samples and marks the latest one.
func (r *scopeRenderer) drawTrace(p plotArea, axis Axis, points []sample.Sample) {
	if len(points) == 0 {
		return
	}
	x := func(s sample.Sample) float64 {
		if axis == AxisTime {
			return s.Elapsed.Seconds()
		}
		return float64(s.Potential)
	}
	for i := range len(points) - 1 {
		a, b := points[i], points[i+1]
		r.line(traceColor, p.pos(x(a), a.Current), p.pos(x(b), b.Current), 1.5)
	}
	last := points[len(points)-1]
	at := p.pos(x(last), last.Current)
	dot := canvas.NewCircle(markerColor)
	dot.Resize(fyne.NewSize(6, 6))
	dot.Move(at.SubtractXY(3, 3))
	r.objects = append(r.objects, dot)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatCurrent(ua float64) string {
	switch a := math.Abs(ua); {
	case a == 0:
		return "0 uA"
	case a < 1:
		return fmt.Sprintf("%.0f nA", ua*1000)
	case a >= 1000:
		return fmt.Sprintf("%.2f mA", ua/1000)
	}
	return fmt.Sprintf("%.2f uA", ua)
}

func formatPotential(v float64) string {
	return fmt.Sprintf("%.3f V", v)
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%.2fs", s)
	}
	return fmt.Sprintf("%.1fs", s)
}
