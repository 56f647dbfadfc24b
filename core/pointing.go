package core

import "github.com/signalsfoundry/orbit-attitude-sim/model"

// PointingState tracks a satellite's position and body +Z axis relative to a
// fixed reference point. Ideal direction and pointing error are derived on
// every call and never cached.
type PointingState struct {
	position      model.Vec3
	faceDirection model.Vec3
	reference     model.Vec3
}

// NewPointingState constructs a state aimed at the origin.
func NewPointingState(position, faceDirection model.Vec3) *PointingState {
	return NewPointingStateWithReference(position, faceDirection, model.Origin)
}

// NewPointingStateWithReference constructs a state aimed at reference.
func NewPointingStateWithReference(position, faceDirection, reference model.Vec3) *PointingState {
	return &PointingState{
		position:      position,
		faceDirection: faceDirection,
		reference:     reference,
	}
}

// PointingUpdate replaces one field of a PointingState.
type PointingUpdate func(*PointingState)

// WithPosition replaces the position.
func WithPosition(v model.Vec3) PointingUpdate {
	return func(ps *PointingState) { ps.position = v }
}

// WithFaceDirection replaces the face direction.
func WithFaceDirection(v model.Vec3) PointingUpdate {
	return func(ps *PointingState) { ps.faceDirection = v }
}

// Update applies the given replacements. Fields without an update keep their
// value; no validation is performed.
func (ps *PointingState) Update(updates ...PointingUpdate) {
	for _, u := range updates {
		if u != nil {
			u(ps)
		}
	}
}

// Position returns the current satellite position.
func (ps *PointingState) Position() model.Vec3 { return ps.position }

// FaceDirection returns the current body +Z axis.
func (ps *PointingState) FaceDirection() model.Vec3 { return ps.faceDirection }

// Reference returns the fixed target point.
func (ps *PointingState) Reference() model.Vec3 { return ps.reference }

// IdealDirection returns reference - position.
func (ps *PointingState) IdealDirection() model.Vec3 {
	return ps.reference.Sub(ps.position)
}

// PointingError returns faceDirection - IdealDirection(). This is a
// component-wise delta, not an angle; see PointingAngle.
func (ps *PointingState) PointingError() model.Vec3 {
	return ps.faceDirection.Sub(ps.IdealDirection())
}

// PointingAngle returns the angle in radians between the face direction and
// the ideal direction.
func (ps *PointingState) PointingAngle() float64 {
	return ps.faceDirection.AngleTo(ps.IdealDirection())
}
