package render

import (
	"github.com/signalsfoundry/orbit-attitude-sim/core"
	"github.com/signalsfoundry/orbit-attitude-sim/model"
)

// Multi fans every command out to several renderers in order.
type Multi struct {
	renderers []core.Renderer
}

// NewMulti drops nil renderers.
func NewMulti(rs ...core.Renderer) *Multi {
	m := &Multi{}
	for _, r := range rs {
		if r != nil {
			m.renderers = append(m.renderers, r)
		}
	}
	return m
}

// Render implements core.CommandRenderer.
func (m *Multi) Render(cmd core.DrawCommand) {
	for _, r := range m.renderers {
		core.Dispatch(r, []core.DrawCommand{cmd})
	}
}

func (m *Multi) DrawSegment(from, to model.Vec3, c model.Color) {
	m.Render(core.DrawCommand{Kind: core.DrawSegment, From: from, To: to, Color: c})
}

func (m *Multi) DrawArrow(from, to model.Vec3, c model.Color) {
	m.Render(core.DrawCommand{Kind: core.DrawArrow, From: from, To: to, Color: c})
}

// Flush flushes every renderer that supports it.
func (m *Multi) Flush() {
	for _, r := range m.renderers {
		if f, ok := r.(core.Flusher); ok {
			f.Flush()
		}
	}
}
