package timectrl

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// DefaultTicksPerDay samples once per simulated minute.
const DefaultTicksPerDay = 1440

// Epoch is a simulated time split into a Julian day and a fraction of that day.
type Epoch struct {
	Day      float64
	Fraction float64
}

// EpochAt derives the epoch of a global tick counter: whole days come from
// integer division by ticksPerDay and the fraction from the remainder.
// A non-positive ticksPerDay is treated as DefaultTicksPerDay.
func EpochAt(startDay float64, tick uint64, ticksPerDay int) Epoch {
	if ticksPerDay <= 0 {
		ticksPerDay = DefaultTicksPerDay
	}
	per := uint64(ticksPerDay)
	return Epoch{
		Day:      startDay + float64(tick/per),
		Fraction: float64(tick%per) / float64(ticksPerDay),
	}
}

// JD returns the epoch as a single Julian date.
func (e Epoch) JD() float64 {
	return e.Day + e.Fraction
}

// Time converts the epoch to UTC calendar time.
func (e Epoch) Time() time.Time {
	return julian.JDToTime(e.JD()).UTC()
}
