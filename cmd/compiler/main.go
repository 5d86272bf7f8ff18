package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/QEStudios/DROScoreCompiler/dro"
	"github.com/QEStudios/DROScoreCompiler/opl"
	"github.com/QEStudios/DROScoreCompiler/parser/midi"
	"github.com/QEStudios/DROScoreCompiler/parser/score"
	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/spf13/pflag"
	"github.com/sqweek/dialog"
)

var logger *log.Logger

// Input file extensions, by kind.
var (
	scoreExts = []string{".txt", ".score"}
	midiExts  = []string{".mid", ".midi"}
	droExts   = []string{".dro"}
)

type options struct {
	output  string
	clock   float64
	dump    bool
	verbose bool
}

func main() {
	logger = log.New(os.Stdout, "", log.Ldate|log.Ltime)

	// Get the current working directory.
	cwd, err := os.Getwd()
	if err != nil {
		logger.Fatalf("failed to get current working directory: %v", err)
	}

	var opts options
	pflag.StringVarP(&opts.output, "output", "o", "", "output file (default: input file with a .dro extension)")
	pflag.Float64VarP(&opts.clock, "clock", "c", 0, "chip clock in hz (default: from the score, or 14318180)")
	pflag.BoolVarP(&opts.dump, "dump", "d", false, "print the contents of a .dro file instead of compiling")
	pflag.BoolVarP(&opts.verbose, "verbose", "v", false, "dump the compiled events")
	pflag.Parse()

	// Get the path of the input file.
	path, err := choosePath(cwd, pflag.Args(), opts.dump)
	if err != nil {
		if errors.Is(err, dialog.ErrCancelled) {
			logger.Printf("User cancelled the file dialog")
			os.Exit(1)
		}
		logger.Fatalf("failed to determine file path: %v", err)
	}

	if opts.dump {
		if err := dump(os.Stdout, path, opts.clock); err != nil {
			logger.Fatalf("dump error: %v", err)
		}
		return
	}

	if err := compile(path, opts); err != nil {
		logger.Fatalf("compile error: %v", err)
	}
}

// dump decodes a .dro file and prints it, with durations for a chip running at
// clock hz (0 for the default clock).
func dump(w io.Writer, path string, clock float64) error {
	if clock == 0 {
		clock = opl.DefaultClock
	}
	if err := opl.CheckClock(clock); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	doc, err := dro.Decode(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, doc.Format(clock))
	return err
}

// readEvents parses the input file into events, returning the clock rate they were built for.
func readEvents(path string, opts options) ([]dro.Event, float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	clock := opts.clock
	if hasExt(path, midiExts) {
		if clock == 0 {
			clock = opl.DefaultClock
		}
		result, err := midi.NewParser(file, clock, logger).Parse()
		if err != nil {
			return nil, 0, fmt.Errorf("import error: %w", err)
		}
		return result.Events, clock, nil
	}

	p := score.NewParser(file, logger)
	if clock != 0 {
		// Pitches are converted while parsing, so they need the same clock as the delays.
		if err := p.OverrideClock(clock); err != nil {
			return nil, 0, err
		}
	}
	s, err := p.Parse()
	if err != nil {
		return nil, 0, fmt.Errorf("parse error: %w", err)
	}
	logger.Printf("Compiling score %q", s.Title)
	return s.Events, s.Clock, nil
}

func compile(path string, opts options) error {
	events, clock, err := readEvents(path, opts)
	if err != nil {
		return err
	}
	if opts.verbose {
		spew.Dump(events)
	}

	data, err := dro.EncodeClock(events, clock)
	if err != nil {
		return err
	}

	// Write to a .dro file in the same directory as the source file, unless told otherwise.
	outPath := opts.output
	if outPath == "" {
		ext := filepath.Ext(path)
		outPath = strings.TrimSuffix(path, ext) + ".dro"
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing output file: %w", err)
	}

	doc, err := dro.Decode(data)
	if err != nil {
		return fmt.Errorf("output failed to decode: %w", err)
	}
	logger.Printf("Wrote %s: %s, %s of music",
		outPath,
		humanize.Bytes(uint64(len(data))),
		durafmt.Parse(doc.Duration(clock).Round(time.Millisecond)).LimitFirstN(2),
	)
	return nil
}

func hasExt(path string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}

// choosePath returns the file path either from the command-line args
// or from an interactive file dialog.
func choosePath(cwd string, args []string, dumping bool) (string, error) {
	allowed := slices.Concat(scoreExts, midiExts)
	if dumping {
		allowed = droExts
	}

	// If an argument was passed to the program, use it.
	if len(args) > 0 {
		path := args[0]
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("cannot get absolute path: %w", err)
		}
		if err := validatePath(absPath, allowed); err != nil {
			return "", fmt.Errorf("passed argument is not a valid path: %w", err)
		}
		return absPath, nil
	}

	// Otherwise open the file dialog.
	builder := dialog.File().SetStartDir(cwd)
	if dumping {
		builder = builder.Title("Open DRO file").Filter("DosBox Raw OPL files (*.dro)", "dro")
	} else {
		builder = builder.Title("Open score").
			Filter("Scores (*.txt, *.score)", "txt", "score").
			Filter("Midi files (*.mid, *.midi)", "mid", "midi")
	}
	path, err := builder.Load()
	if err != nil {
		// Propagate the error. Caller will check for dialog.ErrCancelled.
		return "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot get absolute path: %w", err)
	}

	// Check for empty path just in case.
	if absPath == "" {
		return "", dialog.ErrCancelled
	}
	if err := validatePath(absPath, allowed); err != nil {
		return "", fmt.Errorf("dialog selection invalid: %w", err)
	}
	return absPath, nil
}

// validatePath performs simple checks to verify if a file exists or not.
func validatePath(p string, exts []string) error {
	if !hasExt(p, exts) {
		return fmt.Errorf("file must have one of the extensions %s", strings.Join(exts, ", "))
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("cannot stat file: %w", err)
	}
	return nil
}
