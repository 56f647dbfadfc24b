// Package render provides sinks for the draw commands produced by the
// simulation engine.
package render

import (
	"sync"

	"github.com/signalsfoundry/orbit-attitude-sim/core"
	"github.com/signalsfoundry/orbit-attitude-sim/model"
)

// Recorder keeps every command it receives. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	commands []core.DrawCommand
	flushes  int
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Render implements core.CommandRenderer.
func (r *Recorder) Render(cmd core.DrawCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

// DrawSegment implements core.Renderer for callers without command metadata.
func (r *Recorder) DrawSegment(from, to model.Vec3, c model.Color) {
	r.Render(core.DrawCommand{Kind: core.DrawSegment, From: from, To: to, Color: c})
}

// DrawArrow implements core.Renderer for callers without command metadata.
func (r *Recorder) DrawArrow(from, to model.Vec3, c model.Color) {
	r.Render(core.DrawCommand{Kind: core.DrawArrow, From: from, To: to, Color: c})
}

// Flush counts frame boundaries.
func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

// Commands returns a copy of all recorded commands.
func (r *Recorder) Commands() []core.DrawCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.DrawCommand(nil), r.commands...)
}

// Segments returns recorded segments in order.
func (r *Recorder) Segments() []core.DrawCommand { return r.ofKind(core.DrawSegment) }

// Arrows returns recorded arrows in order.
func (r *Recorder) Arrows() []core.DrawCommand { return r.ofKind(core.DrawArrow) }

// Flushes reports how many frames were flushed.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

func (r *Recorder) ofKind(kind core.DrawKind) []core.DrawCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.DrawCommand
	for _, cmd := range r.commands {
		if cmd.Kind == kind {
			out = append(out, cmd)
		}
	}
	return out
}
