package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/orbit-attitude-sim/model"
)

// scriptedPropagator replays a fixed sequence of results, one per call.
type scriptedPropagator struct {
	statuses  []int
	positions []model.Vec3
	calls     [][2]float64
}

func (p *scriptedPropagator) Propagate(day, frac float64) (int, model.Vec3, model.Vec3) {
	i := len(p.calls)
	p.calls = append(p.calls, [2]float64{day, frac})
	status := StatusOK
	if i < len(p.statuses) {
		status = p.statuses[i]
	}
	return status, p.positions[i], model.Vec3{Z: 1}
}

func TestEntityStepEmitsSegmentsAfterFirstSample(t *testing.T) {
	prop := &scriptedPropagator{positions: []model.Vec3{
		{X: 1, Y: 1, Z: 1},
		{X: 2, Y: 2, Z: 2},
		{X: 3, Y: 3, Z: 3},
	}}
	color := model.Color{R: 0.2, G: 0.4, B: 0.6}
	e := NewEntity("ISS (ZARYA)", prop, 2459549, WithColor(color))

	var segments []DrawCommand
	for tick := uint64(0); tick < 3; tick++ {
		cmds, err := e.Step(tick)
		if err != nil {
			t.Fatalf("Step(%d): %v", tick, err)
		}
		segments = append(segments, cmds...)
	}

	if len(segments) != 2 {
		t.Fatalf("got %d draw commands, want 2: %+v", len(segments), segments)
	}
	want := [][2]model.Vec3{
		{{X: 1, Y: 1, Z: 1}, {X: 2, Y: 2, Z: 2}},
		{{X: 2, Y: 2, Z: 2}, {X: 3, Y: 3, Z: 3}},
	}
	for i, seg := range segments {
		if seg.Kind != DrawSegment || seg.From != want[i][0] || seg.To != want[i][1] {
			t.Fatalf("segment %d = %+v, want %v -> %v", i, seg, want[i][0], want[i][1])
		}
		if seg.Color != color || seg.EntityID != "ISS (ZARYA)" || seg.Tick != uint64(i+1) {
			t.Fatalf("segment %d metadata = %+v", i, seg)
		}
	}

	if prop.calls[1] != [2]float64{2459549, 1.0 / 1440} {
		t.Fatalf("second propagation epoch = %v", prop.calls[1])
	}
}

func TestEntityStepEpochRollsOverDays(t *testing.T) {
	prop := &scriptedPropagator{positions: make([]model.Vec3, 2)}
	e := NewEntity("sat", prop, 100.5, WithTicksPerDay(4))

	if _, err := e.Step(3); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if _, err := e.Step(9); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if prop.calls[0] != [2]float64{100.5, 0.75} || prop.calls[1] != [2]float64{102.5, 0.25} {
		t.Fatalf("propagation epochs = %v", prop.calls)
	}
}

func TestEntityStepPropagationFaultKeepsPrevious(t *testing.T) {
	prop := &scriptedPropagator{
		statuses: []int{StatusOK, 6, StatusOK},
		positions: []model.Vec3{
			{X: 1},
			{X: 999},
			{X: 3},
		},
	}
	e := NewEntity("sat", prop, 0)

	if _, err := e.Step(0); err != nil {
		t.Fatalf("Step(0): %v", err)
	}

	cmds, err := e.Step(1)
	var perr *PropagationError
	if !errors.As(err, &perr) || !errors.Is(err, ErrPropagationFault) {
		t.Fatalf("Step(1) error = %v, want *PropagationError", err)
	}
	if perr.Status != 6 || perr.Tick != 1 || perr.EntityID != "sat" {
		t.Fatalf("PropagationError = %+v", perr)
	}
	if len(cmds) != 0 {
		t.Fatalf("faulted tick drew %d commands", len(cmds))
	}
	if e.Faults() != 1 {
		t.Fatalf("Faults() = %d, want 1", e.Faults())
	}

	cmds, err = e.Step(2)
	if err != nil {
		t.Fatalf("Step(2): %v", err)
	}
	if len(cmds) != 1 || cmds[0].From != (model.Vec3{X: 1}) || cmds[0].To != (model.Vec3{X: 3}) {
		t.Fatalf("segment after fault = %+v, want (1,0,0) -> (3,0,0)", cmds)
	}
}

func TestControlledEntityCorrectsToIdealFromUpdatedPosition(t *testing.T) {
	prop := &scriptedPropagator{positions: []model.Vec3{{X: 6700, Y: -300, Z: 1500}}}
	state := NewPointingState(model.Vec3{X: 1, Y: 1, Z: 1}, model.Vec3{X: 5, Y: 5, Z: 5})
	noop := DisturberFunc(func() model.Vec3 { return model.Vec3{} })
	ctrl := NewAttitudeController(state, noop)
	e := NewEntity("sat", prop, 2459549, WithAttitudeControl(ctrl))

	cmds, err := e.Step(0)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	if state.Position() != (model.Vec3{X: 6700, Y: -300, Z: 1500}) {
		t.Fatalf("position not updated: %v", state.Position())
	}
	if got, want := state.FaceDirection(), state.IdealDirection(); got != want {
		t.Fatalf("face after tick = %v, want ideal %v", got, want)
	}
	if state.FaceDirection() != (model.Vec3{X: -6700, Y: 300, Z: -1500}) {
		t.Fatalf("ideal computed from stale position: %v", state.FaceDirection())
	}

	// First tick primes the sampler, so only the two arrows are drawn.
	if len(cmds) != 2 {
		t.Fatalf("first controlled tick drew %d commands, want 2", len(cmds))
	}
	if cmds[0].Color != model.ColorDisturbed || cmds[1].Color != model.ColorCorrected {
		t.Fatalf("arrow order = %+v", cmds)
	}
	if cmds[0].To != state.Position().Add(model.Vec3{X: 5, Y: 5, Z: 5}) {
		t.Fatalf("disturbed arrow should use pre-correction face, got tip %v", cmds[0].To)
	}
}

func TestControlledEntityCommandOrder(t *testing.T) {
	prop := &scriptedPropagator{positions: []model.Vec3{{X: 7000}, {X: 6990, Y: 100}}}
	state := NewPointingState(model.Origin, model.Vec3{Y: 7})
	e := NewEntity("sat", prop, 0, WithAttitudeControl(NewAttitudeController(state, nil)))

	if _, err := e.Step(0); err != nil {
		t.Fatalf("Step(0): %v", err)
	}
	cmds, err := e.Step(1)
	if err != nil {
		t.Fatalf("Step(1): %v", err)
	}
	kinds := []DrawKind{DrawArrow, DrawArrow, DrawSegment}
	if len(cmds) != len(kinds) {
		t.Fatalf("got %d commands, want %d", len(cmds), len(kinds))
	}
	for i, k := range kinds {
		if cmds[i].Kind != k {
			t.Fatalf("command %d kind = %v, want %v", i, cmds[i].Kind, k)
		}
		if cmds[i].From != (model.Vec3{X: 6990, Y: 100}) && cmds[i].Kind == DrawArrow {
			t.Fatalf("arrow %d drawn from stale position %v", i, cmds[i].From)
		}
	}
	if cmds[2].From != (model.Vec3{X: 7000}) || cmds[2].To != (model.Vec3{X: 6990, Y: 100}) {
		t.Fatalf("segment = %v -> %v", cmds[2].From, cmds[2].To)
	}
}
