package core

import (
	"github.com/signalsfoundry/orbit-attitude-sim/model"
	"github.com/signalsfoundry/orbit-attitude-sim/timectrl"
)

// Entity is one simulated satellite. Each Step propagates the satellite to
// the tick's epoch and returns the draw commands for that tick. An entity
// composed with an AttitudeController also runs the pointing control law.
type Entity struct {
	id          string
	propagator  Propagator
	startDay    float64
	ticksPerDay int
	color       model.Color

	sampler  TrajectorySampler
	attitude *AttitudeController

	faults int
}

// EntityOption configures an Entity.
type EntityOption func(*Entity)

// WithTicksPerDay overrides the sample rate. Non-positive values are ignored.
func WithTicksPerDay(n int) EntityOption {
	return func(e *Entity) {
		if n > 0 {
			e.ticksPerDay = n
		}
	}
}

// WithColor sets the trajectory color.
func WithColor(c model.Color) EntityOption {
	return func(e *Entity) { e.color = c }
}

// WithAttitudeControl attaches an attitude controller to the entity.
func WithAttitudeControl(c *AttitudeController) EntityOption {
	return func(e *Entity) { e.attitude = c }
}

// NewEntity constructs an entity starting at the given Julian day. Without
// WithColor the color is drawn at random.
func NewEntity(id string, p Propagator, startDay float64, opts ...EntityOption) *Entity {
	e := &Entity{
		id:          id,
		propagator:  p,
		startDay:    startDay,
		ticksPerDay: timectrl.DefaultTicksPerDay,
		color:       model.RandomColor(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the entity identifier.
func (e *Entity) ID() string { return e.id }

// Color returns the trajectory color.
func (e *Entity) Color() model.Color { return e.color }

// TicksPerDay returns the sample rate.
func (e *Entity) TicksPerDay() int { return e.ticksPerDay }

// StartDay returns the starting Julian day.
func (e *Entity) StartDay() float64 { return e.startDay }

// Attitude returns the attached controller, or nil.
func (e *Entity) Attitude() *AttitudeController { return e.attitude }

// Faults returns the number of propagation faults seen so far.
func (e *Entity) Faults() int { return e.faults }

// LastPosition returns the most recent valid position, if any.
func (e *Entity) LastPosition() (model.Vec3, bool) {
	return e.sampler.Previous()
}

// Epoch returns the epoch sampled on tick.
func (e *Entity) Epoch(tick uint64) timectrl.Epoch {
	return timectrl.EpochAt(e.startDay, tick, e.ticksPerDay)
}

// Step performs one tick of work. On a propagation fault it returns a
// *PropagationError and leaves all state untouched, so the next successful
// tick draws its segment from the last valid position.
//
// Commands are ordered: disturbed arrow, corrected arrow, trajectory segment.
func (e *Entity) Step(tick uint64) ([]DrawCommand, error) {
	epoch := e.Epoch(tick)
	status, pos, _ := e.propagator.Propagate(epoch.Day, epoch.Fraction)
	if status != StatusOK || !pos.IsFinite() {
		e.faults++
		return nil, &PropagationError{
			EntityID: e.id,
			Tick:     tick,
			Epoch:    epoch,
			Status:   status,
			Position: pos,
		}
	}

	var cmds []DrawCommand
	if e.attitude != nil {
		cmds = append(cmds, e.attitude.Control(pos)...)
	}
	if from, ok := e.sampler.Sample(pos); ok {
		cmds = append(cmds, DrawCommand{
			Kind:  DrawSegment,
			From:  from,
			To:    pos,
			Color: e.color,
		})
	}

	for i := range cmds {
		cmds[i].EntityID = e.id
		cmds[i].Tick = tick
	}
	return cmds, nil
}
