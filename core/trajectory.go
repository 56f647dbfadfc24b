package core

import "github.com/signalsfoundry/orbit-attitude-sim/model"

// TrajectorySampler turns successive samples into drawable segments. It is
// Priming until the first sample arrives and Tracking from then on.
type TrajectorySampler struct {
	previous model.Vec3
	tracking bool
}

// Sample records current. On the first call it returns ok=false; afterwards
// it returns the previous sample as the segment start.
func (s *TrajectorySampler) Sample(current model.Vec3) (from model.Vec3, ok bool) {
	if !s.tracking {
		s.previous = current
		s.tracking = true
		return model.Vec3{}, false
	}
	from = s.previous
	s.previous = current
	return from, true
}

// Previous returns the last recorded sample, if any.
func (s *TrajectorySampler) Previous() (model.Vec3, bool) {
	return s.previous, s.tracking
}
