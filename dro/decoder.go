package dro

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/QEStudios/DROScoreCompiler/opl"
)

// Header holds the fields of a DRO v1.0 header.
type Header struct {
	VersionMinor uint8
	VersionMajor uint8
	TotalMs      uint32 // Written by Encode as a tick count.
	Size         uint32 // Length of the command stream in bytes.
	Hardware     uint8
	Flags        [3]uint8
}

// HardwareName returns a readable name for the header's hardware type.
func (h Header) HardwareName() string {
	switch h.Hardware {
	case HardwareOPL2:
		return "OPL2"
	case HardwareOPL3:
		return "OPL3"
	case HardwareDualOPL2:
		return "Dual OPL2"
	default:
		return fmt.Sprintf("unknown (%d)", h.Hardware)
	}
}

// A decoded DRO file.
type Document struct {
	Header Header

	// Delays are decoded as TickDelay, one per delay command, and writes
	// carry their bank in bit 8 of the address.
	Events []Event
}

// Decode parses a DRO v1.0 file. Bytes after the command stream are ignored.
func Decode(data []byte) (*Document, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("file is %d bytes, shorter than the %d byte header: %w", len(data), HeaderSize, ErrFormat)
	}
	if string(data[:len(Signature)]) != Signature {
		return nil, fmt.Errorf("missing %s signature: %w", Signature, ErrFormat)
	}

	h := Header{
		VersionMinor: data[8],
		VersionMajor: data[9],
		TotalMs:      binary.LittleEndian.Uint32(data[offsetTotalMs:]),
		Size:         binary.LittleEndian.Uint32(data[offsetTotalSize:]),
		Hardware:     data[18],
		Flags:        [3]uint8{data[19], data[20], data[21]},
	}
	if h.VersionMajor != 1 || h.VersionMinor != 0 {
		return nil, fmt.Errorf("unsupported DRO version %d.%d: %w", h.VersionMajor, h.VersionMinor, ErrFormat)
	}

	stream := data[HeaderSize:]
	if uint64(len(stream)) < uint64(h.Size) {
		return nil, fmt.Errorf("header declares %d command bytes, file has %d: %w", h.Size, len(stream), ErrFormat)
	}
	stream = stream[:h.Size]

	events, err := decodeCommands(stream)
	if err != nil {
		return nil, err
	}
	return &Document{Header: h, Events: events}, nil
}

func decodeCommands(stream []byte) ([]Event, error) {
	var events []Event
	bank := 0

	// need returns an error if fewer than n bytes follow the opcode at i.
	need := func(i, n int) error {
		if i+n >= len(stream) {
			return fmt.Errorf("command 0x%02x at offset %d is truncated: %w", stream[i], i, ErrFormat)
		}
		return nil
	}

	for i := 0; i < len(stream); {
		op := stream[i]
		switch op {
		case opDelayByte:
			if err := need(i, 1); err != nil {
				return nil, err
			}
			events = append(events, TickDelay{Ticks: int(stream[i+1]) + 1})
			i += 2

		case opDelayWord:
			if err := need(i, 2); err != nil {
				return nil, err
			}
			word := binary.LittleEndian.Uint16(stream[i+1:])
			events = append(events, TickDelay{Ticks: int(word) + 1})
			i += 3

		case opSwitchLow:
			bank = 0
			i++

		case opSwitchHigh:
			bank = 1
			i++

		case opEscape:
			if err := need(i, 2); err != nil {
				return nil, err
			}
			events = append(events, RegisterWrite{Address: bank<<8 | int(stream[i+1]), Value: int(stream[i+2])})
			i += 3

		default:
			if err := need(i, 1); err != nil {
				return nil, err
			}
			events = append(events, RegisterWrite{Address: bank<<8 | int(op), Value: int(stream[i+1])})
			i += 2
		}
	}
	return events, nil
}

// Ticks returns the total length of the document's delays in ticks.
func (d *Document) Ticks() int {
	total := 0
	for _, ev := range d.Events {
		if t, ok := ev.(TickDelay); ok {
			total += t.Ticks
		}
	}
	return total
}

// Duration returns the playing time of the document on a chip running at clock hz.
func (d *Document) Duration(clock float64) time.Duration {
	ms := opl.TickToMs(d.Ticks(), clock)
	return time.Duration(ms * float64(time.Millisecond))
}
