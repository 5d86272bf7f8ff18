package dro

import (
	"errors"
	"fmt"

	"github.com/QEStudios/DROScoreCompiler/opl"
)

var (
	// ErrDomain is returned for negative delays and invalid clock rates.
	ErrDomain = opl.ErrDomain
	// ErrRange is returned for register writes that don't fit the chip, and for
	// documents whose totals don't fit the header.
	ErrRange = opl.ErrRange
	// ErrFormat is returned when decoding data that isn't a valid DRO v1.0 file.
	ErrFormat = errors.New("invalid DRO data")
)

// Event is a single entry of a score: either a delay or a register write.
// The set of events is closed; see Delay, TickDelay and RegisterWrite.
type Event interface {
	fmt.Stringer
	isEvent()
}

// Delay waits for a duration (in milliseconds) before the next event.
type Delay struct {
	Ms float64
}

// TickDelay waits for a whole number of chip ticks before the next event.
type TickDelay struct {
	Ticks int
}

// RegisterWrite writes Value to the chip register at Address.
// Bit 8 of the address selects the high register bank.
type RegisterWrite struct {
	Address int
	Value   int
}

func (Delay) isEvent()         {}
func (TickDelay) isEvent()     {}
func (RegisterWrite) isEvent() {}

func (d Delay) String() string {
	return fmt.Sprintf("Delay %g ms", d.Ms)
}

func (d TickDelay) String() string {
	if d.Ticks == 1 {
		return "Delay 1 tick"
	}
	return fmt.Sprintf("Delay %d ticks", d.Ticks)
}

func (w RegisterWrite) String() string {
	return fmt.Sprintf("Reg 0x%03x = 0x%02x", w.Address, w.Value)
}

// Bank returns the register bank (0 or 1) the write targets.
func (w RegisterWrite) Bank() int {
	return w.Address >> 8
}

// Writes converts a slice of chip register writes to score events.
func Writes(writes []opl.Write) []Event {
	events := make([]Event, 0, len(writes))
	for _, w := range writes {
		events = append(events, RegisterWrite{Address: w.Address, Value: w.Value})
	}
	return events
}
