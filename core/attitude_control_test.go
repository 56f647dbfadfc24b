package core

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/orbit-attitude-sim/model"
	"github.com/signalsfoundry/orbit-attitude-sim/timectrl"
)

func TestUniformDisturberRangeAndBias(t *testing.T) {
	d := NewUniformDisturber(rand.New(rand.NewPCG(42, 7)), DefaultDisturbanceBound)

	const trials = 10000
	samples := make([]float64, 0, trials*3)
	sawLow, sawHigh := false, false
	for i := 0; i < trials; i++ {
		v := d.Disturbance()
		for _, c := range []float64{v.X, v.Y, v.Z} {
			if c < -700 || c > 700 {
				t.Fatalf("disturbance component %v outside [-700, 700]", c)
			}
			if c != math.Trunc(c) {
				t.Fatalf("disturbance component %v is not an integer", c)
			}
			sawLow = sawLow || c == -700
			sawHigh = sawHigh || c == 700
			samples = append(samples, c)
		}
	}

	if mean := stat.Mean(samples, nil); math.Abs(mean) > 15 {
		t.Fatalf("disturbance mean %.2f biased away from 0", mean)
	}
	if !sawLow || !sawHigh {
		t.Fatalf("expected both inclusive bounds to be drawn (low=%v high=%v)", sawLow, sawHigh)
	}
}

func TestUniformDisturberZeroBound(t *testing.T) {
	d := NewUniformDisturber(rand.New(rand.NewPCG(1, 1)), -5)
	if d.Bound() != 0 {
		t.Fatalf("Bound() = %d, want 0", d.Bound())
	}
	if got := d.Disturbance(); got != model.Origin {
		t.Fatalf("zero-bound disturbance = %v", got)
	}
}

func TestUniformDisturberClampsHugeBound(t *testing.T) {
	d := NewUniformDisturber(rand.New(rand.NewPCG(1, 1)), math.MaxInt/2+1)
	if d.Bound() != MaxDisturbanceBound {
		t.Fatalf("Bound() = %d, want %d", d.Bound(), MaxDisturbanceBound)
	}
	v := d.Disturbance()
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.Abs(c) > MaxDisturbanceBound {
			t.Fatalf("component %v outside bound", c)
		}
	}
}

func TestAttitudeControllerDisturbThenCorrect(t *testing.T) {
	delta := model.Vec3{X: 100, Y: -200, Z: 300}
	state := NewPointingState(model.Vec3{X: 1}, model.Vec3{X: 7, Y: 0, Z: 0})
	c := NewAttitudeController(state, DisturberFunc(func() model.Vec3 { return delta }))

	pos := model.Vec3{X: 6800, Y: 10, Z: -20}
	cmds := c.Control(pos)
	if len(cmds) != 2 {
		t.Fatalf("Control returned %d commands, want 2", len(cmds))
	}

	disturbedFace := model.Vec3{X: 107, Y: -200, Z: 300}
	if got := c.LastDisturbance(); got != delta {
		t.Fatalf("LastDisturbance() = %v, want %v", got, delta)
	}
	wantErr := disturbedFace.Sub(model.Origin.Sub(pos))
	if got := c.LastPointingError(); got != wantErr {
		t.Fatalf("LastPointingError() = %v, want %v", got, wantErr)
	}
	wantAngle := disturbedFace.AngleTo(model.Origin.Sub(pos))
	if got := c.LastPointingAngle(); math.Abs(got-wantAngle) > 1e-12 || got == 0 {
		t.Fatalf("LastPointingAngle() = %v, want %v", got, wantAngle)
	}
	if got := state.PointingAngle(); got > 1e-6 {
		t.Fatalf("angle after correction = %v, want 0", got)
	}

	disturbed := cmds[0]
	if disturbed.Kind != DrawArrow || disturbed.Color != model.ColorDisturbed {
		t.Fatalf("first command = %+v, want red arrow", disturbed)
	}
	if disturbed.From != pos || disturbed.To != pos.Add(disturbedFace) {
		t.Fatalf("disturbed arrow %v -> %v, want %v -> %v", disturbed.From, disturbed.To, pos, pos.Add(disturbedFace))
	}

	ideal := model.Vec3{X: -6800, Y: -10, Z: 20}
	corrected := cmds[1]
	if corrected.Kind != DrawArrow || corrected.Color != model.ColorCorrected {
		t.Fatalf("second command = %+v, want green arrow", corrected)
	}
	if corrected.From != pos || corrected.To != pos.Add(ideal.Scale(0.1)) {
		t.Fatalf("corrected arrow %v -> %v, want %v -> %v", corrected.From, corrected.To, pos, pos.Add(ideal.Scale(0.1)))
	}

	if got := state.FaceDirection(); got != ideal {
		t.Fatalf("face after correction = %v, want %v", got, ideal)
	}
	if got := state.PointingError(); got != model.Origin {
		t.Fatalf("pointing error after correction = %v, want zero", got)
	}
}

func TestAttitudeControllerArrowScales(t *testing.T) {
	state := NewPointingState(model.Origin, model.Vec3{Z: 2})
	c := NewAttitudeController(state, nil, WithArrowScales(2, 0.5))

	pos := model.Vec3{X: 10}
	cmds := c.Control(pos)
	if want := pos.Add(model.Vec3{Z: 4}); cmds[0].To != want {
		t.Fatalf("disturbed arrow tip = %v, want %v", cmds[0].To, want)
	}
	if want := pos.Add(model.Vec3{X: -5}); cmds[1].To != want {
		t.Fatalf("corrected arrow tip = %v, want %v", cmds[1].To, want)
	}
}

func TestSeedPointingState(t *testing.T) {
	var gotDay, gotFrac float64
	p := PropagatorFunc(func(day, frac float64) (int, model.Vec3, model.Vec3) {
		gotDay, gotFrac = day, frac
		return StatusOK, model.Vec3{X: 7000}, model.Vec3{Y: 7.5}
	})

	ps, err := SeedPointingState(p, timectrl.Epoch{Day: 2459549, Fraction: 0})
	if err != nil {
		t.Fatalf("SeedPointingState: %v", err)
	}
	if gotDay != 2459549 || gotFrac != 0 {
		t.Fatalf("propagated at (%v, %v)", gotDay, gotFrac)
	}
	if ps.Position() != (model.Vec3{X: 7000}) || ps.FaceDirection() != (model.Vec3{Y: 7.5}) {
		t.Fatalf("seeded state = pos %v face %v", ps.Position(), ps.FaceDirection())
	}

	failing := PropagatorFunc(func(float64, float64) (int, model.Vec3, model.Vec3) {
		return 6, model.Vec3{}, model.Vec3{}
	})
	if _, err := SeedPointingState(failing, timectrl.Epoch{}); !errors.Is(err, ErrPropagationFault) {
		t.Fatalf("SeedPointingState error = %v, want ErrPropagationFault", err)
	}
}
