package opl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelRegister(t *testing.T) {
	tests := []struct {
		base    int
		channel int
		want    int
	}{
		{RegFnumLow, 0, 0x0A0},
		{RegFnumLow, 8, 0x0A8},
		{RegFnumLow, 9, 0x1A0},
		{RegKeyOnBlock, 17, 0x1B8},
		{RegFeedback, 4, 0x0C4},
	}
	for _, tt := range tests {
		got, err := ChannelRegister(tt.base, tt.channel)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "base 0x%02x channel %d", tt.base, tt.channel)
	}

	_, err := ChannelRegister(RegFnumLow, 18)
	assert.ErrorIs(t, err, ErrRange)
	_, err = ChannelRegister(RegFnumLow, -1)
	assert.ErrorIs(t, err, ErrRange)
	_, err = ChannelRegister(RegLevel, 0)
	assert.ErrorIs(t, err, ErrRange)
}

func TestSlotRegister(t *testing.T) {
	tests := []struct {
		base int
		slot int
		want int
	}{
		{RegCharacter, 0, 0x020},
		{RegCharacter, 5, 0x025},
		{RegCharacter, 6, 0x028},
		{RegLevel, 12, 0x050},
		{RegLevel, 17, 0x055},
		{RegWaveform, 18, 0x1E0},
		{RegSustainRel, 35, 0x195},
	}
	for _, tt := range tests {
		got, err := SlotRegister(tt.base, tt.slot)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "base 0x%02x slot %d", tt.base, tt.slot)
	}

	_, err := SlotRegister(RegCharacter, 36)
	assert.ErrorIs(t, err, ErrRange)
	_, err = SlotRegister(RegFnumLow, 0)
	assert.ErrorIs(t, err, ErrRange)
}

func TestChannelSlots(t *testing.T) {
	tests := []struct {
		channel  int
		mod, car int
	}{
		{0, 0, 3},
		{1, 1, 4},
		{2, 2, 5},
		{3, 6, 9},
		{8, 14, 17},
		{9, 18, 21},
		{17, 32, 35},
	}
	for _, tt := range tests {
		mod, car, err := ChannelSlots(tt.channel)
		require.NoError(t, err)
		assert.Equal(t, tt.mod, mod, "modulator of channel %d", tt.channel)
		assert.Equal(t, tt.car, car, "carrier of channel %d", tt.channel)
	}

	// Operator offsets of channel 0 are 0x00 and 0x03, channel 3 uses 0x08 and 0x0B.
	mod, car, _ := ChannelSlots(3)
	modAddr, _ := SlotRegister(RegCharacter, mod)
	carAddr, _ := SlotRegister(RegCharacter, car)
	assert.Equal(t, 0x28, modAddr)
	assert.Equal(t, 0x2B, carAddr)
}

func TestKeyOnOff(t *testing.T) {
	on, err := KeyOn(10, 4, 580)
	require.NoError(t, err)
	assert.Equal(t, []Write{
		{Address: 0x1A1, Value: 0x44},
		{Address: 0x1B1, Value: 0x20 | 4<<2 | 0x02},
	}, on)

	off, err := KeyOff(10, 4, 580)
	require.NoError(t, err)
	assert.Equal(t, []Write{{Address: 0x1B1, Value: 4<<2 | 0x02}}, off)

	_, err = KeyOn(0, 8, 0)
	assert.ErrorIs(t, err, ErrRange)
	_, err = KeyOn(0, 0, 1024)
	assert.ErrorIs(t, err, ErrRange)
	_, err = KeyOff(18, 0, 0)
	assert.ErrorIs(t, err, ErrRange)
}
