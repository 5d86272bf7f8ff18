package opl

import "fmt"

// Register groups of the OPL3. Channel groups are offset by the channel number
// within a bank (0-8), operator groups by the slot offset within a bank.
const (
	RegTest        = 0x01 // Waveform select enable lives in bit 5.
	RegOPL3Mode    = 0x105
	RegCharacter   = 0x20 // Tremolo, vibrato, sustain, KSR, multiplier.
	RegLevel       = 0x40 // Key scale level, total level (attenuation).
	RegAttackDecay = 0x60
	RegSustainRel  = 0x80
	RegWaveform    = 0xE0
	RegFnumLow     = 0xA0
	RegKeyOnBlock  = 0xB0 // Key-on, block and the 2 high bits of the F-Number.
	RegFeedback    = 0xC0 // Output enables, feedback, connection.
)

const (
	NumChannels = 18 // 2-operator channels across both banks.
	NumSlots    = 36 // Operator slots across both banks.

	channelsPerBank = NumChannels / 2
	slotsPerBank    = NumSlots / 2
)

const keyOnBit = 0x20

// Operator register offsets within a bank, indexed by slot. Slot offsets skip
// 0x06, 0x07, 0x0E and 0x0F.
var slotOffsets = [slotsPerBank]int{
	0, 1, 2, 3, 4, 5,
	8, 9, 10, 11, 12, 13,
	16, 17, 18, 19, 20, 21,
}

// Write is a single register write, with the bank selected by bit 8 of Address.
type Write struct {
	Address int
	Value   int
}

func isChannelGroup(base int) bool {
	switch base {
	case RegFnumLow, RegKeyOnBlock, RegFeedback:
		return true
	default:
		return false
	}
}

func isSlotGroup(base int) bool {
	switch base {
	case RegCharacter, RegLevel, RegAttackDecay, RegSustainRel, RegWaveform:
		return true
	default:
		return false
	}
}

// ChannelRegister returns the 9-bit address of a per-channel register.
// base must be one of RegFnumLow, RegKeyOnBlock or RegFeedback.
func ChannelRegister(base int, channel int) (int, error) {
	if !isChannelGroup(base) {
		return 0, fmt.Errorf("0x%02x is not a channel register group: %w", base, ErrRange)
	}
	if channel < 0 || channel >= NumChannels {
		return 0, fmt.Errorf("channel must be 0-%d, got %d: %w", NumChannels-1, channel, ErrRange)
	}
	bank := channel / channelsPerBank
	return bank<<8 | (base + channel%channelsPerBank), nil
}

// SlotRegister returns the 9-bit address of a per-operator register.
// base must be one of the operator register groups (0x20, 0x40, 0x60, 0x80, 0xE0).
func SlotRegister(base int, slot int) (int, error) {
	if !isSlotGroup(base) {
		return 0, fmt.Errorf("0x%02x is not an operator register group: %w", base, ErrRange)
	}
	if slot < 0 || slot >= NumSlots {
		return 0, fmt.Errorf("slot must be 0-%d, got %d: %w", NumSlots-1, slot, ErrRange)
	}
	bank := slot / slotsPerBank
	return bank<<8 | (base + slotOffsets[slot%slotsPerBank]), nil
}

// ChannelSlots returns the modulator and carrier slots of a 2-operator channel.
func ChannelSlots(channel int) (modulator int, carrier int, err error) {
	if channel < 0 || channel >= NumChannels {
		return 0, 0, fmt.Errorf("channel must be 0-%d, got %d: %w", NumChannels-1, channel, ErrRange)
	}
	bank := channel / channelsPerBank
	c := channel % channelsPerBank
	modulator = bank*slotsPerBank + (c/3)*6 + c%3
	return modulator, modulator + 3, nil
}

func noteWrites(channel int, block int, fnum int, keyOn bool) ([]Write, error) {
	if block < 0 || block > MaxBlock {
		return nil, fmt.Errorf("block must be 0-%d, got %d: %w", MaxBlock, block, ErrRange)
	}
	if fnum < 0 || fnum > MaxFnum {
		return nil, fmt.Errorf("F-Number must be 0-%d, got %d: %w", MaxFnum, fnum, ErrRange)
	}
	lo, err := ChannelRegister(RegFnumLow, channel)
	if err != nil {
		return nil, err
	}
	hi, err := ChannelRegister(RegKeyOnBlock, channel)
	if err != nil {
		return nil, err
	}

	value := block<<2 | fnum>>8
	if keyOn {
		value |= keyOnBit
	}
	return []Write{
		{Address: lo, Value: fnum & 0xff},
		{Address: hi, Value: value},
	}, nil
}

// KeyOn returns the writes that start a note on a channel.
func KeyOn(channel int, block int, fnum int) ([]Write, error) {
	return noteWrites(channel, block, fnum, true)
}

// KeyOff returns the write that releases a note. The pitch is written again
// so the release phase keeps sounding at the same frequency.
func KeyOff(channel int, block int, fnum int) ([]Write, error) {
	w, err := noteWrites(channel, block, fnum, false)
	if err != nil {
		return nil, err
	}
	return w[1:], nil
}

// EnableOPL3 returns the writes that switch the chip into OPL3 mode and
// unlock the waveform select registers.
func EnableOPL3() []Write {
	return []Write{
		{Address: RegOPL3Mode, Value: 0x01},
		{Address: RegTest, Value: 0x20},
	}
}
