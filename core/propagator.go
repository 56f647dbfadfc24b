package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/orbit-attitude-sim/model"
	"github.com/signalsfoundry/orbit-attitude-sim/timectrl"
)

// StatusOK is the propagator status for a successful propagation. Any other
// value is a fault.
const StatusOK = 0

// Propagator maps an epoch (Julian day, fraction of day) onto a position and
// velocity for one satellite.
type Propagator interface {
	Propagate(epochDay, fractionOfDay float64) (status int, position, velocity model.Vec3)
}

// PropagatorFunc adapts a plain function to the Propagator interface.
type PropagatorFunc func(epochDay, fractionOfDay float64) (int, model.Vec3, model.Vec3)

// Propagate calls f.
func (f PropagatorFunc) Propagate(epochDay, fractionOfDay float64) (int, model.Vec3, model.Vec3) {
	return f(epochDay, fractionOfDay)
}

// ErrPropagationFault is matched by every *PropagationError.
var ErrPropagationFault = errors.New("propagation fault")

// PropagationError reports a failed propagation for one entity on one tick.
// It is recoverable: the entity keeps its state and resumes on the next tick.
type PropagationError struct {
	EntityID string
	Tick     uint64
	Epoch    timectrl.Epoch
	Status   int
	Position model.Vec3
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation fault for %q at tick %d (jd %.6f): status=%d position=%v",
		e.EntityID, e.Tick, e.Epoch.JD(), e.Status, e.Position)
}

// Is makes errors.Is(err, ErrPropagationFault) hold.
func (e *PropagationError) Is(target error) bool {
	return target == ErrPropagationFault
}
