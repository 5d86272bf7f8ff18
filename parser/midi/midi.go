package midi

import (
	"cmp"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	"github.com/QEStudios/DROScoreCompiler/dro"
	"github.com/QEStudios/DROScoreCompiler/opl"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Midi channel 10 is reserved for percussion, which can't be played as pitched notes.
const percussionChannel = 9

// The default 2-operator patch loaded into every OPL channel before the song starts.
var defaultPatch = struct {
	character   [2]int // Modulator, carrier.
	level       int    // Modulator only, the carrier level follows note velocity.
	attackDecay [2]int
	sustainRel  [2]int
	feedback    int
}{
	character:   [2]int{0x01, 0x01},
	level:       0x10,
	attackDecay: [2]int{0xF2, 0xF2},
	sustainRel:  [2]int{0x54, 0x54},
	feedback:    0x30 | 3<<1, // Left and right output, some feedback, FM connection.
}

// Small struct for non-fatal warnings
type ParseWarning struct {
	At      time.Duration // Song position of the event that caused the warning.
	Message string
}

func (pw ParseWarning) String() string {
	return fmt.Sprintf("%v: %s", pw.At, pw.Message)
}

// The result of importing a Midi file.
type Result struct {
	Events []dro.Event

	Notes   int // Number of notes played.
	Dropped int // Number of notes that couldn't be played.

	Warnings []ParseWarning
}

// A Midi note-on or note-off, with the time it happens at.
type noteEvent struct {
	at       int64 // Microseconds from the start of the song.
	on       bool
	channel  uint8
	key      uint8
	velocity uint8
}

// An OPL channel and the Midi note it is playing, if any.
type voice struct {
	busy    bool
	channel uint8
	key     uint8
	block   int
	fnum    int
}

type Parser struct {
	reader io.Reader
	logger *log.Logger
	clock  float64

	// The current song position in microseconds, used for warnings.
	now int64

	voices [opl.NumChannels]voice
	result Result

	// Whether or not the parser has already been used.
	// Parsing can only be done once per Parser.
	used bool
}

// NewParser creates a new parser to import a Standard Midi File, for a chip
// running at clock hz.
func NewParser(r io.Reader, clock float64, logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{
		reader: r,
		logger: logger,
		clock:  clock,
	}
}

// addWarning adds to the list of warnings encountered when parsing.
func (p *Parser) addWarning(format string, args ...any) {
	p.result.Warnings = append(p.result.Warnings, ParseWarning{
		At:      time.Duration(p.now) * time.Microsecond,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) emit(events ...dro.Event) {
	p.result.Events = append(p.result.Events, events...)
}

// readNotes collects every note-on and note-off of the file, in playing order.
func (p *Parser) readNotes() ([]noteEvent, error) {
	var notes []noteEvent
	percussionSeen := false

	reader := smf.ReadTracksFrom(p.reader).Do(func(te smf.TrackEvent) {
		var channel, key, velocity uint8
		msg := gomidi.Message(te.Message)

		switch {
		case msg.GetNoteStart(&channel, &key, &velocity):
			if channel == percussionChannel {
				if !percussionSeen {
					p.now = te.AbsMicroSeconds
					p.addWarning("percussion channel is not supported, skipping its notes")
					percussionSeen = true
				}
				return
			}
			notes = append(notes, noteEvent{at: te.AbsMicroSeconds, on: true, channel: channel, key: key, velocity: velocity})

		case msg.GetNoteEnd(&channel, &key):
			if channel == percussionChannel {
				return
			}
			notes = append(notes, noteEvent{at: te.AbsMicroSeconds, channel: channel, key: key})
		}
	})
	if err := reader.Error(); err != nil {
		return nil, fmt.Errorf("error reading midi file: %w", err)
	}

	// Releases sort before attacks at the same instant so a repeated note frees its voice first.
	slices.SortStableFunc(notes, func(a, b noteEvent) int {
		if c := cmp.Compare(a.at, b.at); c != 0 {
			return c
		}
		switch {
		case a.on == b.on:
			return 0
		case a.on:
			return 1
		default:
			return -1
		}
	})
	p.now = 0
	return notes, nil
}

// writePatch loads the default patch into every channel.
func (p *Parser) writePatch() error {
	p.emit(dro.Writes(opl.EnableOPL3())...)

	for channel := range opl.NumChannels {
		mod, car, err := opl.ChannelSlots(channel)
		if err != nil {
			return err
		}

		var writes []opl.Write
		add := func(register func(int, int) (int, error), base, index, value int) {
			if err != nil {
				return
			}
			var address int
			address, err = register(base, index)
			writes = append(writes, opl.Write{Address: address, Value: value})
		}

		for i, slot := range []int{mod, car} {
			add(opl.SlotRegister, opl.RegCharacter, slot, defaultPatch.character[i])
			add(opl.SlotRegister, opl.RegAttackDecay, slot, defaultPatch.attackDecay[i])
			add(opl.SlotRegister, opl.RegSustainRel, slot, defaultPatch.sustainRel[i])
		}
		add(opl.SlotRegister, opl.RegLevel, mod, defaultPatch.level)
		add(opl.ChannelRegister, opl.RegFeedback, channel, defaultPatch.feedback)
		if err != nil {
			return err
		}
		p.emit(dro.Writes(writes)...)
	}
	return nil
}

// findVoice returns the index of the voice playing key on a Midi channel, or -1.
func (p *Parser) findVoice(channel, key uint8) int {
	for i, v := range p.voices {
		if v.busy && v.channel == channel && v.key == key {
			return i
		}
	}
	return -1
}

func (p *Parser) freeVoice() int {
	for i, v := range p.voices {
		if !v.busy {
			return i
		}
	}
	return -1
}

func (p *Parser) noteOn(n noteEvent) error {
	// A repeated note-on restarts the note on the voice already playing it.
	idx := p.findVoice(n.channel, n.key)
	if idx >= 0 {
		if err := p.noteOff(idx); err != nil {
			return err
		}
	} else {
		idx = p.freeVoice()
	}
	if idx < 0 {
		p.addWarning("all %d voices busy, dropping note %d on channel %d", opl.NumChannels, n.key, n.channel+1)
		p.result.Dropped++
		return nil
	}

	block, fnum, err := opl.BestBlock(opl.NoteNumberToHz(float64(n.key)), p.clock)
	if err != nil {
		p.addWarning("can't play note %d on channel %d: %v", n.key, n.channel+1, err)
		p.result.Dropped++
		return nil
	}

	_, car, err := opl.ChannelSlots(idx)
	if err != nil {
		return err
	}
	level, err := opl.SlotRegister(opl.RegLevel, car)
	if err != nil {
		return err
	}
	keyOn, err := opl.KeyOn(idx, block, fnum)
	if err != nil {
		return err
	}

	// Louder notes get less attenuation.
	p.emit(dro.RegisterWrite{Address: level, Value: 0x3F - int(n.velocity>>1)})
	p.emit(dro.Writes(keyOn)...)

	p.voices[idx] = voice{busy: true, channel: n.channel, key: n.key, block: block, fnum: fnum}
	p.result.Notes++
	return nil
}

func (p *Parser) noteOff(idx int) error {
	v := p.voices[idx]
	keyOff, err := opl.KeyOff(idx, v.block, v.fnum)
	if err != nil {
		return err
	}
	p.emit(dro.Writes(keyOff)...)
	p.voices[idx] = voice{}
	return nil
}

func (p *Parser) parseInternal() (*Result, error) {
	if p.used {
		return nil, fmt.Errorf("parser already used")
	}
	p.used = true

	if err := opl.CheckClock(p.clock); err != nil {
		return nil, err
	}

	notes, err := p.readNotes()
	if err != nil {
		return nil, err
	}

	if err := p.writePatch(); err != nil {
		return nil, err
	}

	for _, n := range notes {
		if n.at > p.now {
			p.emit(dro.Delay{Ms: float64(n.at-p.now) / 1000})
			p.now = n.at
		}

		if n.on {
			if err := p.noteOn(n); err != nil {
				return nil, err
			}
			continue
		}

		// Notes that were dropped have nothing to release.
		if idx := p.findVoice(n.channel, n.key); idx >= 0 {
			if err := p.noteOff(idx); err != nil {
				return nil, err
			}
		}
	}

	for idx, v := range p.voices {
		if !v.busy {
			continue
		}
		p.addWarning("note %d on channel %d never ends, releasing it", v.key, v.channel+1)
		if err := p.noteOff(idx); err != nil {
			return nil, err
		}
	}

	return &p.result, nil
}

// Parse imports the whole file. Warnings are logged and returned in the Result.
func (p *Parser) Parse() (*Result, error) {
	result, err := p.parseInternal()
	if err != nil {
		return nil, err
	}

	if len(result.Warnings) > 0 {
		p.logger.Println("Warnings produced while importing file:")
		for _, warning := range result.Warnings {
			p.logger.Printf("%v: %v\n", warning.At, warning.Message)
		}
	}

	p.logger.Printf("Imported %d notes (%d dropped), %d events", result.Notes, result.Dropped, len(result.Events))
	return result, nil
}
