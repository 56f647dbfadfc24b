package core

import "github.com/signalsfoundry/orbit-attitude-sim/model"

// DrawKind distinguishes trajectory segments from pointing arrows.
type DrawKind int

const (
	DrawSegment DrawKind = iota
	DrawArrow
)

func (k DrawKind) String() string {
	switch k {
	case DrawSegment:
		return "segment"
	case DrawArrow:
		return "arrow"
	default:
		return "unknown"
	}
}

// DrawCommand is one primitive produced by an entity step.
type DrawCommand struct {
	Kind     DrawKind
	EntityID string
	Tick     uint64
	From     model.Vec3
	To       model.Vec3
	Color    model.Color
}

// Renderer consumes drawing primitives. Calls are synchronous and their
// outcome is not observed.
type Renderer interface {
	DrawSegment(from, to model.Vec3, color model.Color)
	DrawArrow(from, to model.Vec3, color model.Color)
}

// CommandRenderer is implemented by renderers that want the full command,
// including entity and tick, instead of the bare primitive.
type CommandRenderer interface {
	Render(cmd DrawCommand)
}

// Flusher is implemented by renderers that present a frame once per tick.
type Flusher interface {
	Flush()
}

// Dispatch sends commands to r in order.
func Dispatch(r Renderer, cmds []DrawCommand) {
	if r == nil {
		return
	}
	if cr, ok := r.(CommandRenderer); ok {
		for _, cmd := range cmds {
			cr.Render(cmd)
		}
		return
	}
	for _, cmd := range cmds {
		switch cmd.Kind {
		case DrawSegment:
			r.DrawSegment(cmd.From, cmd.To, cmd.Color)
		case DrawArrow:
			r.DrawArrow(cmd.From, cmd.To, cmd.Color)
		}
	}
}
