package opl

import (
	"errors"
	"fmt"
	"math"
)

// DefaultClock is the master clock (in hz) of an OPL3 on a typical sound card.
const DefaultClock = 14318180.0

const (
	minClock = 10e6
	maxClock = 16e6

	// The chip divides its master clock by this to obtain the sample (tick) rate.
	clockDivider = 288

	MaxBlock = 7
	MaxFnum  = (1 << 10) - 1
)

// CheckClock returns an error if the clock rate is outside what an OPL chip accepts.
func CheckClock(clock float64) error {
	if !(clock >= minClock && clock <= maxClock) {
		return fmt.Errorf("clock must be %g-%g hz, got %g: %w", minClock, maxClock, clock, ErrDomain)
	}
	return nil
}

// HzToFnum computes the 10-bit F-Number that plays freq at the given block (octave)
// on a chip running at clock hz. The result is rounded half to even.
func HzToFnum(freq float64, block int, clock float64) (int, error) {
	if !(freq >= 0) {
		return 0, fmt.Errorf("frequency must not be negative, got %g: %w", freq, ErrDomain)
	}
	if block < 0 || block > MaxBlock {
		return 0, fmt.Errorf("block must be 0-%d, got %d: %w", MaxBlock, block, ErrDomain)
	}
	if err := CheckClock(clock); err != nil {
		return 0, err
	}

	sampleRate := clock / clockDivider
	fnum := freq * (1 << 19) / sampleRate / math.Pow(2, float64(block-1))
	rounded := math.RoundToEven(fnum)
	if rounded > MaxFnum {
		return 0, fmt.Errorf("F-Number %g for %g hz at block %d exceeds %d: %w", rounded, freq, block, MaxFnum, ErrRange)
	}

	return int(rounded), nil
}

// BestBlock returns the lowest block for which freq can be expressed as an F-Number,
// together with that F-Number. Lower blocks give finer pitch resolution.
func BestBlock(freq float64, clock float64) (block int, fnum int, err error) {
	for block = 0; block <= MaxBlock; block++ {
		fnum, err = HzToFnum(freq, block, clock)
		if err == nil {
			return block, fnum, nil
		}
		if !errors.Is(err, ErrRange) {
			return 0, 0, err
		}
	}
	return 0, 0, fmt.Errorf("frequency %g hz is too high for any block: %w", freq, ErrRange)
}

// MsToTick converts a duration in milliseconds to a whole number of chip ticks
// (one tick is 288 master clock cycles), rounded half to even.
func MsToTick(ms float64, clock float64) (int, error) {
	if !(ms >= 0) {
		return 0, fmt.Errorf("time must not be negative, got %g ms: %w", ms, ErrDomain)
	}
	if err := CheckClock(clock); err != nil {
		return 0, err
	}

	tickPeriod := clockDivider / clock
	tick := math.RoundToEven((ms / 1000) / tickPeriod)
	if tick > math.MaxInt64/2 {
		// Only reachable with absurd (or infinite) durations.
		return 0, fmt.Errorf("%g ms does not fit a tick count: %w", ms, ErrRange)
	}

	return int(tick), nil
}

// TickToMs is the inverse of MsToTick.
func TickToMs(tick int, clock float64) float64 {
	return float64(tick) * clockDivider / clock * 1000
}
