package render

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/orbit-attitude-sim/core"
	"github.com/signalsfoundry/orbit-attitude-sim/model"
)

// Default scene geometry, in the propagator's kilometres.
const (
	DefaultViewExtent  = 7000.0
	DefaultEarthScale  = 0.8
	segmentGlyph       = '•'
	arrowShaftGlyph    = '·'
	earthGlyph         = 'o'
	statusRow          = 0
	earthOutlinePoints = 256
)

var earthStyle = tcell.StyleDefault.Foreground(tcell.ColorSteelBlue).Dim(true)

// Terminal draws an orthographic top-down (X/Y) projection of the scene on a
// tcell screen. The view is a square of half-size extent centred on the
// origin; anything outside is clipped.
type Terminal struct {
	mu          sync.Mutex
	screen      tcell.Screen
	extent      float64
	earthRadius float64

	tick     uint64
	commands int
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithViewExtent sets the half-size of the visible cube.
func WithViewExtent(extent float64) TerminalOption {
	return func(t *Terminal) {
		if extent > 0 {
			t.extent = extent
		}
	}
}

// WithEarth sets the drawn Earth radius as radius*scale. A non-positive
// result hides the Earth.
func WithEarth(radius, scale float64) TerminalOption {
	return func(t *Terminal) { t.earthRadius = radius * scale }
}

// NewTerminal draws on screen, which the caller must have initialised. A nil
// screen opens and initialises the controlling terminal.
func NewTerminal(screen tcell.Screen, opts ...TerminalOption) (*Terminal, error) {
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("open terminal: %w", err)
		}
		if err := s.Init(); err != nil {
			return nil, fmt.Errorf("init terminal: %w", err)
		}
		screen = s
	}

	t := &Terminal{
		screen:      screen,
		extent:      DefaultViewExtent,
		earthRadius: core.EarthRadiusKm * DefaultEarthScale,
	}
	for _, opt := range opts {
		opt(t)
	}

	screen.Clear()
	t.drawEarth()
	screen.Show()
	return t, nil
}

// Screen exposes the underlying screen.
func (t *Terminal) Screen() tcell.Screen { return t.screen }

// Render implements core.CommandRenderer so the status line can show the tick.
func (t *Terminal) Render(cmd core.DrawCommand) {
	t.mu.Lock()
	t.tick = cmd.Tick
	t.commands++
	t.mu.Unlock()

	switch cmd.Kind {
	case core.DrawSegment:
		t.DrawSegment(cmd.From, cmd.To, cmd.Color)
	case core.DrawArrow:
		t.DrawArrow(cmd.From, cmd.To, cmd.Color)
	}
}

// DrawSegment plots a line between the projected endpoints.
func (t *Terminal) DrawSegment(from, to model.Vec3, c model.Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.line(from, to, segmentGlyph, styleFor(c))
}

// DrawArrow plots the shaft and a directional head at the tip.
func (t *Terminal) DrawArrow(from, to model.Vec3, c model.Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	style := styleFor(c)
	t.line(from, to, arrowShaftGlyph, style)
	if x, y, ok := t.project(to); ok {
		t.screen.SetContent(x, y, arrowHead(to.Sub(from)), nil, style)
	}
}

// Flush redraws the status line and presents the frame.
func (t *Terminal) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text(0, statusRow, fmt.Sprintf(" tick %d | %d commands ", t.tick, t.commands), tcell.StyleDefault.Reverse(true))
	t.screen.Show()
}

// WaitForKey blocks until a key is pressed or ctx is done.
func (t *Terminal) WaitForKey(ctx context.Context) {
	t.mu.Lock()
	w, _ := t.screen.Size()
	t.text(max(0, w-26), statusRow, " press any key to exit ", tcell.StyleDefault.Reverse(true))
	t.screen.Show()
	t.mu.Unlock()

	events := make(chan tcell.Event, 1)
	quit := make(chan struct{})
	defer close(quit)
	go t.screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, isKey := ev.(*tcell.EventKey); isKey {
				return
			}
		}
	}
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	t.screen.Fini()
	return nil
}

// project maps a scene point onto a cell, stretching the view square over the
// whole grid.
func (t *Terminal) project(p model.Vec3) (int, int, bool) {
	w, h := t.screen.Size()
	if w <= 0 || h <= 0 || !p.IsFinite() {
		return 0, 0, false
	}
	if math.Abs(p.X) > t.extent || math.Abs(p.Y) > t.extent {
		return 0, 0, false
	}
	cx, cy := float64(w-1)/2, float64(h-1)/2
	x := int(math.Round(cx + p.X/t.extent*cx))
	y := int(math.Round(cy - p.Y/t.extent*cy))
	return x, y, true
}

func (t *Terminal) line(from, to model.Vec3, glyph rune, style tcell.Style) {
	x0, y0, ok0 := t.project(from)
	x1, y1, ok1 := t.project(to)
	if !ok0 || !ok1 {
		// Partially visible primitives are plotted point by point.
		t.sampledLine(from, to, glyph, style)
		return
	}
	bresenham(x0, y0, x1, y1, func(x, y int) {
		if y != statusRow {
			t.screen.SetContent(x, y, glyph, nil, style)
		}
	})
}

func (t *Terminal) sampledLine(from, to model.Vec3, glyph rune, style tcell.Style) {
	w, h := t.screen.Size()
	steps := max(w, h)
	delta := to.Sub(from)
	for i := 0; i <= steps; i++ {
		p := from.Add(delta.Scale(float64(i) / float64(steps)))
		if x, y, ok := t.project(p); ok && y != statusRow {
			t.screen.SetContent(x, y, glyph, nil, style)
		}
	}
}

func (t *Terminal) drawEarth() {
	if t.earthRadius <= 0 {
		return
	}
	for i := 0; i < earthOutlinePoints; i++ {
		theta := 2 * math.Pi * float64(i) / earthOutlinePoints
		p := model.Vec3{X: t.earthRadius * math.Cos(theta), Y: t.earthRadius * math.Sin(theta)}
		if x, y, ok := t.project(p); ok && y != statusRow {
			t.screen.SetContent(x, y, earthGlyph, nil, earthStyle)
		}
	}
}

func (t *Terminal) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func styleFor(c model.Color) tcell.Style {
	r, g, b := c.RGB255()
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
}

// arrowHead picks the glyph closest to the direction of d in screen space.
func arrowHead(d model.Vec3) rune {
	if d.X == 0 && d.Y == 0 {
		return '*'
	}
	heads := [...]rune{'→', '↗', '↑', '↖', '←', '↙', '↓', '↘'}
	angle := math.Atan2(d.Y, d.X)
	idx := int(math.Round(angle/(math.Pi/4))) % 8
	if idx < 0 {
		idx += 8
	}
	return heads[idx]
}

func bresenham(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
