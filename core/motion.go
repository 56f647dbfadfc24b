package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orbit-attitude-sim/model"
	"github.com/signalsfoundry/orbit-attitude-sim/timectrl"
)

// SGP4 status codes reported by SGP4Propagator. go-satellite takes the
// Satellite by value in Propagate, so its internal error code never reaches
// the caller; faults are inferred from the output instead.
const (
	// SGP4StatusNonFinite marks a NaN or infinite position or velocity.
	SGP4StatusNonFinite = 1
	// SGP4StatusDecayed marks a position inside the Earth.
	SGP4StatusDecayed = 6
)

// EarthRadiusKm is the mean Earth radius in kilometres.
const EarthRadiusKm = 6371.0

// SGP4Propagator propagates one satellite from its two-line element set.
// Positions are TEME kilometres and velocities km/s, as go-satellite
// reports them.
type SGP4Propagator struct {
	sat satellite.Satellite
}

// NewSGP4Propagator constructs a propagator from TLE lines. The lines are
// validated first because go-satellite exits the process on malformed input.
func NewSGP4Propagator(line1, line2 string) (*SGP4Propagator, error) {
	if err := ValidateTLELines(line1, line2); err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed: code=%d %s", sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat}, nil
}

// ValidateTLELines checks the fixed-width layout of both element-set lines
// and that every numeric column go-satellite reads parses.
func ValidateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return validateTLEColumns(line1, line2)
}

// validateTLEColumns rebuilds each column string the way satellite.ParseTLE
// does, since ParseTLE calls log.Fatal on the first one that fails to parse.
func validateTLEColumns(line1, line2 string) error {
	squeeze := func(s string) string { return strings.Replace(s, " ", "", 2) }

	ints := []struct{ name, value string }{
		{"line1 satellite number", strings.TrimSpace(line1[2:7])},
		{"line1 epoch year", line1[18:20]},
	}
	for _, f := range ints {
		if _, err := strconv.ParseInt(f.value, 10, 0); err != nil {
			return fmt.Errorf("%s %q is not an integer", f.name, f.value)
		}
	}

	floats := []struct{ name, value string }{
		{"line1 epoch day", line1[20:32]},
		{"line1 mean motion derivative", squeeze(line1[33:43])},
		{"line1 mean motion second derivative", squeeze(line1[44:45] + "." + line1[45:50] + "e" + line1[50:52])},
		{"line1 bstar", squeeze(line1[53:54] + "." + line1[54:59] + "e" + line1[59:61])},
		{"line2 inclination", squeeze(line2[8:16])},
		{"line2 right ascension", squeeze(line2[17:25])},
		{"line2 eccentricity", "." + line2[26:33]},
		{"line2 argument of perigee", squeeze(line2[34:42])},
		{"line2 mean anomaly", squeeze(line2[43:51])},
		{"line2 mean motion", squeeze(line2[52:63])},
	}
	for _, f := range floats {
		if _, err := strconv.ParseFloat(f.value, 64); err != nil {
			return fmt.Errorf("%s %q is not a number", f.name, f.value)
		}
	}
	return nil
}

// Propagate implements Propagator. The epoch is resolved to the nearest
// whole second before calling SGP4.
func (p *SGP4Propagator) Propagate(epochDay, fractionOfDay float64) (int, model.Vec3, model.Vec3) {
	t := timectrl.Epoch{Day: epochDay, Fraction: fractionOfDay}.Time().Round(time.Second)
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, vel := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	position := model.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	velocity := model.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z}

	switch {
	case !position.IsFinite() || !velocity.IsFinite():
		return SGP4StatusNonFinite, position, velocity
	case position.Norm() < EarthRadiusKm:
		return SGP4StatusDecayed, position, velocity
	}
	return StatusOK, position, velocity
}
