package dro

import (
	"fmt"
	"strings"

	"github.com/QEStudios/DROScoreCompiler/opl"
	"github.com/hako/durafmt"
)

// Table columns used when pretty-printing events.
const (
	columnLowBank = iota
	columnHighBank
	columnDelay
	numColumns
)

var columnHeaders = [numColumns]string{
	"Bank 0",
	"Bank 1",
	"Delay",
}

func eventColumn(ev Event) int {
	switch e := ev.(type) {
	case RegisterWrite:
		if e.Bank() == 1 {
			return columnHighBank
		}
		return columnLowBank
	default:
		return columnDelay
	}
}

// formatEvents formats events into a timeline table, one event per row, with
// each event placed in the column of its bank (or the delay column).
// indent: number of spaces to indent the table
func formatEvents(events []Event, indent int) string {
	// Calculate column widths
	var widths [numColumns]int
	for i, header := range columnHeaders {
		widths[i] = max(len(header), 16)
	}
	for _, ev := range events {
		c := eventColumn(ev)
		widths[c] = max(widths[c], len(ev.String()))
	}

	padRight := func(s string, w int) string {
		if len(s) >= w {
			return s
		}
		return s + strings.Repeat(" ", w-len(s))
	}

	var b strings.Builder

	separator := func() {
		b.WriteString(strings.Repeat(" ", indent))
		for i := range numColumns {
			b.WriteString("+")
			b.WriteString(strings.Repeat("-", widths[i]+2)) // +2 for the space padding either side
		}
		b.WriteString("+\n")
	}

	row := func(cells [numColumns]string) {
		b.WriteString(strings.Repeat(" ", indent))
		for i := range numColumns {
			b.WriteString("| ")
			b.WriteString(padRight(cells[i], widths[i]))
			b.WriteString(" ")
		}
		b.WriteString("|\n")
	}

	separator()
	row(columnHeaders)
	separator()
	for _, ev := range events {
		var cells [numColumns]string
		cells[eventColumn(ev)] = ev.String()
		row(cells)
	}
	separator()

	return b.String()
}

// Pretty-print, using the default OPL3 clock for the duration.
func (d *Document) String() string {
	return d.Format(opl.DefaultClock)
}

// Format pretty-prints the document, with its duration computed for a chip
// running at clock hz.
func (d *Document) Format(clock float64) string {
	var b strings.Builder
	b.WriteString("DRO Document:\n")
	fmt.Fprintf(&b, "- Version: %d.%d\n", d.Header.VersionMajor, d.Header.VersionMinor)
	fmt.Fprintf(&b, "- Hardware: %s\n", d.Header.HardwareName())
	fmt.Fprintf(&b, "- Length: %d ticks (%s)\n", d.Header.TotalMs, durafmt.Parse(d.Duration(clock)).LimitFirstN(2))
	fmt.Fprintf(&b, "- Command stream: %d byte", d.Header.Size)
	if d.Header.Size != 1 {
		b.WriteString("s") // Pluralise the word "byte" if needed.
	}
	b.WriteString("\n")

	if len(d.Events) > 0 {
		b.WriteString("- Events:\n")
		b.WriteString(formatEvents(d.Events, 4))
	}

	return b.String()
}
