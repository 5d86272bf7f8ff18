package opl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHzToFnum(t *testing.T) {
	tests := []struct {
		name  string
		freq  float64
		block int
		clock float64
		want  int
	}{
		{"silence", 0, 0, DefaultClock, 0},
		{"A4 block 4", 440, 4, DefaultClock, 580},
		{"A4 block 5", 440, 5, DefaultClock, 290},
		{"A4 block 7", 440, 7, DefaultClock, 73},
		{"middle C", 261.63, 4, DefaultClock, 345},
		{"top of block 0", 48.5, 0, DefaultClock, 1023},
		{"block 7 high", 6000, 7, DefaultClock, 989},
		{"slow clock", 440, 4, 10e6, 830},
		{"fast clock", 440, 5, 16e6, 260},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fnum, err := HzToFnum(tt.freq, tt.block, tt.clock)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fnum)
		})
	}
}

func TestHzToFnum_Errors(t *testing.T) {
	tests := []struct {
		name  string
		freq  float64
		block int
		clock float64
		want  error
	}{
		{"negative frequency", -1, 0, DefaultClock, ErrDomain},
		{"NaN frequency", math.NaN(), 0, DefaultClock, ErrDomain},
		{"negative block", 440, -1, DefaultClock, ErrDomain},
		{"block too high", 440, 8, DefaultClock, ErrDomain},
		{"clock too slow", 440, 4, 9.99e6, ErrDomain},
		{"clock too fast", 440, 4, 16.01e6, ErrDomain},
		{"overflow", 440, 3, DefaultClock, ErrRange},
		{"overflow at block 0", 1000, 0, DefaultClock, ErrRange},
		{"infinite frequency", math.Inf(1), 7, DefaultClock, ErrRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HzToFnum(tt.freq, tt.block, tt.clock)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHzToFnum_InRangeForAllBlocks(t *testing.T) {
	for block := 0; block <= MaxBlock; block++ {
		for _, clock := range []float64{10e6, DefaultClock, 16e6} {
			for freq := 0.0; freq < 8000; freq += 7.3 {
				fnum, err := HzToFnum(freq, block, clock)
				if err != nil {
					assert.ErrorIs(t, err, ErrRange)
					continue
				}
				assert.GreaterOrEqual(t, fnum, 0)
				assert.LessOrEqual(t, fnum, MaxFnum)
			}
		}
	}
}

func TestBestBlock(t *testing.T) {
	block, fnum, err := BestBlock(440, DefaultClock)
	require.NoError(t, err)
	assert.Equal(t, 4, block)
	assert.Equal(t, 580, fnum)

	block, fnum, err = BestBlock(48.6, DefaultClock)
	require.NoError(t, err)
	assert.Equal(t, 1, block)
	assert.Equal(t, 513, fnum)

	block, _, err = BestBlock(0, DefaultClock)
	require.NoError(t, err)
	assert.Equal(t, 0, block)

	_, _, err = BestBlock(7000, DefaultClock)
	assert.ErrorIs(t, err, ErrRange)

	_, _, err = BestBlock(-5, DefaultClock)
	assert.ErrorIs(t, err, ErrDomain)
}

func TestMsToTick(t *testing.T) {
	tests := []struct {
		ms    float64
		clock float64
		want  int
	}{
		{0, DefaultClock, 0},
		{0.0201, DefaultClock, 1},
		{1, DefaultClock, 50},
		{10, DefaultClock, 497},
		{1000, DefaultClock, 49716},
		{2000, DefaultClock, 99432},
		{1000, 10e6, 34722},
		{1000, 16e6, 55556},
	}

	for _, tt := range tests {
		got, err := MsToTick(tt.ms, tt.clock)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%g ms at %g hz", tt.ms, tt.clock)
	}
}

func TestMsToTick_Monotonic(t *testing.T) {
	prev := 0
	for ms := 0.0; ms < 50; ms += 0.013 {
		tick, err := MsToTick(ms, DefaultClock)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tick, prev, "tick count went down at %g ms", ms)
		prev = tick
	}
}

func TestMsToTick_Errors(t *testing.T) {
	_, err := MsToTick(-0.5, DefaultClock)
	assert.ErrorIs(t, err, ErrDomain)

	_, err = MsToTick(math.NaN(), DefaultClock)
	assert.ErrorIs(t, err, ErrDomain)

	_, err = MsToTick(10, 1e6)
	assert.ErrorIs(t, err, ErrDomain)

	_, err = MsToTick(math.Inf(1), DefaultClock)
	assert.ErrorIs(t, err, ErrRange)
}

func TestTickToMs(t *testing.T) {
	for _, tick := range []int{0, 1, 500, 65536, 1 << 20} {
		ms := TickToMs(tick, DefaultClock)
		back, err := MsToTick(ms, DefaultClock)
		require.NoError(t, err)
		assert.Equal(t, tick, back)
	}
}
