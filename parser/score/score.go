package score

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/QEStudios/DROScoreCompiler/dro"
	"github.com/QEStudios/DROScoreCompiler/opl"
)

// Signature is the first line of every score file.
const Signature = "# DRO Score"

// A parsed score, ready to be encoded.
type Score struct {
	Title string  // The title of the score.
	Clock float64 // The chip clock (in hz) used to convert pitches and delays.

	// The register writes and delays making up the score, in playing order.
	Events []dro.Event

	Warnings []ParseWarning
}

// Small struct for non-fatal warnings
type ParseWarning struct {
	Line    int
	Message string
}

func (pw ParseWarning) String() string {
	return fmt.Sprintf("line %d: %s", pw.Line, pw.Message)
}

// The section of the file the parser is in.
type parserState int

const (
	stateSignature parserState = iota // Looking for the signature line.
	stateMetadata                     // Score information list, up to "events:".
	stateEvents                       // One command per line until EOF.
)

// A note that is currently keyed on, so it can be keyed off later.
type soundingNote struct {
	block int
	fnum  int
}

type Parser struct {
	scanner    *bufio.Scanner
	logger     *log.Logger
	lineNumber int
	state      parserState
	score      Score

	// Set when the caller fixes the clock, which then wins over the score's own.
	clockOverridden bool

	// Collect any warnings whilst parsing.
	warnings []ParseWarning

	// Notes currently keyed on, by channel.
	sounding map[int]soundingNote

	// Whether or not the parser has already been used.
	// Parsing can only be done once per Parser.
	used bool
}

// NewParser creates a new parser to parse a score file.
func NewParser(r io.Reader, logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{
		scanner: bufio.NewScanner(r),
		logger:  logger,
		state:   stateSignature, // Parser starts looking for the signature initially.
		score: Score{
			Title: "Untitled",
			Clock: opl.DefaultClock,
		},
		sounding: make(map[int]soundingNote),
	}
}

// addWarning adds to the list of warnings encountered when parsing.
func (p *Parser) addWarning(format string, args ...any) {
	p.warnings = append(p.warnings, ParseWarning{
		Line:    p.lineNumber,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) fatalf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.lineNumber, fmt.Sprintf(format, args...))
}

// fatalErr wraps err with the current line number, keeping it matchable with errors.Is.
func (p *Parser) fatalErr(err error) error {
	return fmt.Errorf("line %d: %w", p.lineNumber, err)
}

// A key and a value, used for key-value list elements.
type listElement struct {
	key   string
	value string
}

// Parses a line containing a list element into a listElement struct.
func parseListElement(s string) (*listElement, error) {
	key, value, found := strings.Cut(s, ":")
	if !found {
		return nil, fmt.Errorf("invalid list element: %s", s)
	}

	key, found = strings.CutPrefix(strings.TrimSpace(key), "- ")
	if !found {
		return nil, fmt.Errorf("invalid list element: %s", s)
	}

	return &listElement{key: strings.TrimSpace(key), value: strings.TrimSpace(value)}, nil
}

// commandFields splits an event line into fields, dropping a trailing comment.
// A comment starts at any field beginning with '#'; pitches never do.
func commandFields(line string) []string {
	fields := strings.Fields(line)
	for i, f := range fields {
		if strings.HasPrefix(f, "#") {
			return fields[:i]
		}
	}
	return fields
}

func (p *Parser) emit(events ...dro.Event) {
	p.score.Events = append(p.score.Events, events...)
}

// OverrideClock makes the parser convert pitches for a chip running at clock hz,
// ignoring any clock given in the score. It must be called before Parse.
func (p *Parser) OverrideClock(clock float64) error {
	if err := opl.CheckClock(clock); err != nil {
		return err
	}
	p.score.Clock = clock
	p.clockOverridden = true
	return nil
}

func (p *Parser) parseInternal() (*Score, error) {
	if p.used {
		return nil, fmt.Errorf("parser already used")
	}
	p.used = true

	for p.scanner.Scan() {
		p.lineNumber++
		trimmedLine := strings.TrimSpace(p.scanner.Text())

		// Blank lines are always ignored regardless of location in the file.
		if trimmedLine == "" {
			continue
		}

		switch p.state {
		// The very top of the file where the signature "# DRO Score" is found.
		case stateSignature:
			if trimmedLine == Signature {
				p.state = stateMetadata
				continue
			}
			if trimmedLine == "events:" {
				return nil, p.fatalf("events section found before the %q signature line", Signature)
			}
			p.addWarning("unexpected text found in file when looking for score signature: %s", trimmedLine)

		// Key-value list of score information, up to the events section.
		case stateMetadata:
			if trimmedLine == "events:" {
				p.state = stateEvents
				continue
			}
			if strings.HasPrefix(trimmedLine, "#") {
				continue
			}

			le, err := parseListElement(trimmedLine)
			if err != nil {
				return nil, p.fatalf("error parsing list element in score information: %s", trimmedLine)
			}

			switch le.key {
			case "title":
				p.score.Title = le.value
			case "clock":
				clock, err := strconv.ParseFloat(le.value, 64)
				if err != nil {
					return nil, p.fatalf("error converting clock rate to a number: %s", le.value)
				}
				if err := opl.CheckClock(clock); err != nil {
					return nil, p.fatalErr(err)
				}
				if p.clockOverridden {
					p.addWarning("clock %g hz in score ignored, using %g hz", clock, p.score.Clock)
					continue
				}
				p.score.Clock = clock
			default:
				p.addWarning("unknown option in score information: %s", le.key)
			}

		case stateEvents:
			fields := commandFields(trimmedLine)
			if len(fields) == 0 {
				continue
			}
			if err := p.parseCommand(fields); err != nil {
				return nil, err
			}
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, p.fatalf("error while reading file: %v", err)
	}

	switch p.state {
	case stateSignature:
		return nil, p.fatalf("unexpected EOF, missing %q signature line", Signature)
	case stateMetadata:
		return nil, p.fatalf("unexpected EOF, no events section found")
	}

	for _, channel := range slices.Sorted(maps.Keys(p.sounding)) {
		p.addWarning("note on channel %d is still sounding at the end of the score", channel)
	}

	p.score.Warnings = p.warnings
	return &p.score, nil
}

// Parse parses the whole score. Warnings are logged and returned in the Score.
func (p *Parser) Parse() (*Score, error) {
	score, err := p.parseInternal()
	if err != nil {
		return nil, err
	}

	if len(score.Warnings) > 0 {
		p.logger.Println("Warnings produced while parsing file:")
		for _, warning := range score.Warnings {
			p.logger.Printf("line %d: %v\n", warning.Line, warning.Message)
		}
	}

	p.logger.Printf("Parsed %d events", len(score.Events))
	return score, nil
}
