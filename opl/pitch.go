package opl

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// defaultOctave is used when a scientific pitch string has no octave number.
const defaultOctave = 4

// NoteNumberToHz converts a (possibly fractional) Midi note number to a frequency,
// using 12-tone equal temperament with A4 (note 69) at 440 hz.
func NoteNumberToHz(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}

var pitchPattern = regexp.MustCompile(`^\s*([A-G])\s*(b+|#+|)\s*([+\-]?)\s*([0-9]*)\s*$`)

// ScientificPitchToHz parses a pitch such as "A4", "C#", "Bbb-1" or "G+2" and
// returns its frequency.
//
// The tone letter is mapped by its position in "ABCDEFG" rather than by its
// chromatic distance from A, and each accidental moves the pitch by half a
// semitone. Existing scores depend on these offsets, so they are kept.
func ScientificPitchToHz(s string) (float64, error) {
	m := pitchPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid pitch string %q: %w", s, ErrParse)
	}

	tone := int(m[1][0] - 'A')

	// The pattern only admits a run of one kind of accidental.
	accidentals := float64(strings.Count(m[2], "#") - strings.Count(m[2], "b"))

	octave := defaultOctave
	if m[4] != "" {
		v, err := strconv.Atoi(m[3] + m[4])
		if err != nil {
			return 0, fmt.Errorf("invalid octave in pitch string %q: %w", s, ErrParse)
		}
		octave = v
	}

	note := float64(12*octave+tone) + accidentals/2
	return NoteNumberToHz(note), nil
}
