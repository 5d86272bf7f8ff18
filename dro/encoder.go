package dro

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/QEStudios/DROScoreCompiler/opl"
)

// Signature is the magic string at the start of every DRO file.
const Signature = "DBRAWOPL"

// HeaderSize is the size of the DRO v1.0 header, before the command stream.
const HeaderSize = 22

// Byte offsets of the header fields patched after encoding.
const (
	offsetTotalMs   = 10
	offsetTotalSize = 14
)

// Hardware types stored in the header.
const (
	HardwareOPL2     = 0
	HardwareOPL3     = 1
	HardwareDualOPL2 = 2
)

// Command stream opcodes. Any other byte is a register number followed by its value.
const (
	opDelayByte  = 0x00 // Delay of (n+1) ticks, n 8-bit.
	opDelayWord  = 0x01 // Delay of (n+1) ticks, n 16-bit little endian.
	opSwitchLow  = 0x02 // Following writes go to the low bank.
	opSwitchHigh = 0x03 // Following writes go to the high bank.
	opEscape     = 0x04 // Next byte is a register number, even if it collides with an opcode.
)

const (
	maxAddress    = 0x1ff
	maxValue      = 0xff
	maxShortDelay = 1 << 8
	maxLongDelay  = 1 << 16
)

var header = [HeaderSize]byte{
	'D', 'B', 'R', 'A', 'W', 'O', 'P', 'L',
	0x00, 0x01, // Version 1.0, minor then major.
	0x00, 0x00, 0x00, 0x00, // Total milliseconds, patched at the end.
	0x00, 0x00, 0x00, 0x00, // Command stream size, patched at the end.
	0x01, 0x01, 0x00, 0x00, // OPL3 with the legacy 1 ms delay mode.
}

// encoder keeps the running state of a single Encode call.
type encoder struct {
	clock     float64
	buffer    *bytes.Buffer
	totalMs   uint64 // Sum of delay ticks, stored as the header's length field.
	totalSize uint64 // Bytes written to the command stream.
	prevBank  int
}

// Encode converts a score into a DRO v1.0 file, using the default OPL3 clock
// to convert delays into ticks.
func Encode(events []Event) ([]byte, error) {
	return EncodeClock(events, opl.DefaultClock)
}

// EncodeClock converts a score into a DRO v1.0 file, converting delays into
// ticks of a chip running at clock hz.
//
// Nothing is returned if any event is invalid.
func EncodeClock(events []Event, clock float64) ([]byte, error) {
	if err := opl.CheckClock(clock); err != nil {
		return nil, err
	}

	e := &encoder{
		clock:  clock,
		buffer: bytes.NewBuffer(make([]byte, 0, HeaderSize+3*len(events))),
	}
	e.buffer.Write(header[:])

	for i, event := range events {
		var err error
		switch ev := event.(type) {
		case Delay:
			err = e.delayMs(ev.Ms)
		case TickDelay:
			err = e.delayTicks(ev.Ticks)
		case RegisterWrite:
			err = e.write(ev.Address, ev.Value)
		default:
			err = fmt.Errorf("unhandled event type %T", event)
		}
		if err != nil {
			return nil, fmt.Errorf("event %d (%v): %w", i, event, err)
		}
	}

	return e.finish()
}

func (e *encoder) emit(b ...byte) {
	e.buffer.Write(b)
	e.totalSize += uint64(len(b))
}

func (e *encoder) delayMs(ms float64) error {
	tick, err := opl.MsToTick(ms, e.clock)
	if err != nil {
		return err
	}
	return e.delayTicks(tick)
}

// delayTicks emits as many delay commands as are needed to cover tick.
func (e *encoder) delayTicks(tick int) error {
	if tick < 0 {
		return fmt.Errorf("delay must not be negative, got %d ticks: %w", tick, ErrDomain)
	}

	e.totalMs += uint64(tick)
	if e.totalMs > math.MaxUint32 {
		return fmt.Errorf("total length of %d ticks does not fit the header: %w", e.totalMs, ErrRange)
	}

	for tick > 0 {
		if tick <= maxShortDelay {
			e.emit(opDelayByte, byte(tick-1))
			tick = 0
			continue
		}

		// Long delays cover up to 65536 ticks each.
		chunk := min(tick, maxLongDelay)
		word := uint16(chunk - 1)
		e.emit(opDelayWord, byte(word), byte(word>>8))
		tick -= chunk
	}
	return nil
}

func (e *encoder) write(address int, value int) error {
	if address < 0 || address > maxAddress {
		return fmt.Errorf("register address must be 0x000-0x%03x, got 0x%x: %w", maxAddress, address, ErrRange)
	}
	if value < 0 || value > maxValue {
		return fmt.Errorf("register value must be 0x00-0x%02x, got 0x%x: %w", maxValue, value, ErrRange)
	}

	bank := address >> 8
	if bank < e.prevBank {
		e.emit(opSwitchLow)
	} else if bank > e.prevBank {
		e.emit(opSwitchHigh)
	}
	e.prevBank = bank

	reg := byte(address & 0xff)
	if reg <= opEscape {
		// Low register numbers would be read back as opcodes.
		e.emit(opEscape)
	}
	e.emit(reg, byte(value))
	return nil
}

// finish patches the header totals and returns the file.
func (e *encoder) finish() ([]byte, error) {
	if e.totalSize > math.MaxUint32 {
		return nil, fmt.Errorf("command stream of %d bytes does not fit the header: %w", e.totalSize, ErrRange)
	}

	out := e.buffer.Bytes()

	// Sanity check to make sure the running total matches what was written.
	if uint64(len(out)) != HeaderSize+e.totalSize {
		return nil, fmt.Errorf("DRO size mismatch: got %d bytes, expected %d", len(out), HeaderSize+e.totalSize)
	}

	binary.LittleEndian.PutUint32(out[offsetTotalMs:], uint32(e.totalMs))
	binary.LittleEndian.PutUint32(out[offsetTotalSize:], uint32(e.totalSize))
	return out, nil
}
