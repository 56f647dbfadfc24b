package core

import (
	"fmt"
	"math/rand/v2"

	"github.com/signalsfoundry/orbit-attitude-sim/model"
	"github.com/signalsfoundry/orbit-attitude-sim/timectrl"
)

// DefaultDisturbanceBound is the per-axis disturbance magnitude limit.
const DefaultDisturbanceBound = 700

// MaxDisturbanceBound keeps 2*bound+1 well inside int range.
const MaxDisturbanceBound = 1 << 30

// Arrow scales applied to the face direction when drawing.
const (
	DefaultDisturbedArrowScale = 1.0
	DefaultCorrectedArrowScale = 0.1
)

// Disturber produces the per-axis delta added to the face direction each tick.
type Disturber interface {
	Disturbance() model.Vec3
}

// DisturberFunc adapts a plain function to the Disturber interface.
type DisturberFunc func() model.Vec3

// Disturbance calls f.
func (f DisturberFunc) Disturbance() model.Vec3 { return f() }

// UniformDisturber draws an independent integer per axis, uniformly from
// [-Bound, Bound] inclusive.
type UniformDisturber struct {
	rng   *rand.Rand
	bound int
}

// NewUniformDisturber constructs a disturber. A nil rng is replaced by a
// randomly seeded generator; the bound is clamped to [0, MaxDisturbanceBound].
func NewUniformDisturber(rng *rand.Rand, bound int) *UniformDisturber {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	bound = min(max(bound, 0), MaxDisturbanceBound)
	return &UniformDisturber{rng: rng, bound: bound}
}

// Bound returns the inclusive per-axis limit.
func (d *UniformDisturber) Bound() int { return d.bound }

// Disturbance implements Disturber.
func (d *UniformDisturber) Disturbance() model.Vec3 {
	return model.Vec3{X: d.draw(), Y: d.draw(), Z: d.draw()}
}

func (d *UniformDisturber) draw() float64 {
	return float64(d.rng.IntN(2*d.bound+1) - d.bound)
}

// AttitudeController owns a PointingState and applies the disturb-then-snap
// control law once per tick. The correction always sets the face direction
// to the ideal direction; no slew rate is modelled.
type AttitudeController struct {
	state     *PointingState
	disturber Disturber

	disturbedScale float64
	correctedScale float64

	lastDisturbance model.Vec3
	lastError       model.Vec3
	lastAngle       float64
}

// ControllerOption configures an AttitudeController.
type ControllerOption func(*AttitudeController)

// WithArrowScales overrides the factors applied to the face direction when
// drawing the disturbed and corrected arrows.
func WithArrowScales(disturbed, corrected float64) ControllerOption {
	return func(c *AttitudeController) {
		c.disturbedScale = disturbed
		c.correctedScale = corrected
	}
}

// NewAttitudeController constructs a controller over state. A nil disturber
// applies no disturbance.
func NewAttitudeController(state *PointingState, d Disturber, opts ...ControllerOption) *AttitudeController {
	if d == nil {
		d = DisturberFunc(func() model.Vec3 { return model.Vec3{} })
	}
	c := &AttitudeController{
		state:          state,
		disturber:      d,
		disturbedScale: DefaultDisturbedArrowScale,
		correctedScale: DefaultCorrectedArrowScale,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SeedPointingState builds the initial PointingState from one propagation at
// epoch: the position seeds the position and the velocity seeds the face
// direction.
func SeedPointingState(p Propagator, epoch timectrl.Epoch) (*PointingState, error) {
	status, pos, vel := p.Propagate(epoch.Day, epoch.Fraction)
	if status != StatusOK || !pos.IsFinite() || !vel.IsFinite() {
		return nil, fmt.Errorf("seed pointing state at jd %.6f: %w (status=%d)", epoch.JD(), ErrPropagationFault, status)
	}
	return NewPointingState(pos, vel), nil
}

// State returns the controlled PointingState.
func (c *AttitudeController) State() *PointingState { return c.state }

// LastDisturbance returns the delta applied on the most recent tick.
func (c *AttitudeController) LastDisturbance() model.Vec3 { return c.lastDisturbance }

// LastPointingError returns the pointing error of the disturbed attitude on
// the most recent tick, measured before correction.
func (c *AttitudeController) LastPointingError() model.Vec3 { return c.lastError }

// LastPointingAngle returns the angle in radians between the disturbed face
// direction and the ideal direction on the most recent tick.
func (c *AttitudeController) LastPointingAngle() float64 { return c.lastAngle }

// Control runs one tick of the control law for the given position and
// returns the disturbed arrow followed by the corrected arrow.
func (c *AttitudeController) Control(position model.Vec3) []DrawCommand {
	c.state.Update(WithPosition(position))

	c.lastDisturbance = c.disturber.Disturbance()
	c.state.Update(WithFaceDirection(c.state.FaceDirection().Add(c.lastDisturbance)))
	c.lastError = c.state.PointingError()
	c.lastAngle = c.state.PointingAngle()
	disturbed := c.arrow(c.disturbedScale, model.ColorDisturbed)

	c.state.Update(WithFaceDirection(c.state.IdealDirection()))
	corrected := c.arrow(c.correctedScale, model.ColorCorrected)

	return []DrawCommand{disturbed, corrected}
}

func (c *AttitudeController) arrow(scale float64, color model.Color) DrawCommand {
	pos := c.state.Position()
	return DrawCommand{
		Kind:  DrawArrow,
		From:  pos,
		To:    pos.Add(c.state.FaceDirection().Scale(scale)),
		Color: color,
	}
}
