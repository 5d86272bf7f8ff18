package score

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/QEStudios/DROScoreCompiler/dro"
	"github.com/QEStudios/DROScoreCompiler/opl"
)

// parseCommand parses a single line of the events section.
func (p *Parser) parseCommand(fields []string) error {
	name, args := fields[0], fields[1:]

	expectArgs := func(least, most int) error {
		if len(args) < least || len(args) > most {
			if least == most {
				return p.fatalf("%s takes %d arguments, got %d", name, least, len(args))
			}
			return p.fatalf("%s takes %d-%d arguments, got %d", name, least, most, len(args))
		}
		return nil
	}

	switch name {
	// write <address> <value>
	case "write":
		if err := expectArgs(2, 2); err != nil {
			return err
		}
		address, err := p.parseInt(args[0], "register address")
		if err != nil {
			return err
		}
		value, err := p.parseInt(args[1], "register value")
		if err != nil {
			return err
		}
		p.emit(dro.RegisterWrite{Address: address, Value: value})

	// delay <milliseconds>
	case "delay":
		if err := expectArgs(1, 1); err != nil {
			return err
		}
		ms, err := p.parseDuration(args[0])
		if err != nil {
			return err
		}
		p.emit(dro.Delay{Ms: ms})

	// ticks <count>
	case "ticks":
		if err := expectArgs(1, 1); err != nil {
			return err
		}
		ticks, err := p.parseInt(args[0], "tick count")
		if err != nil {
			return err
		}
		if ticks < 0 {
			return p.fatalf("tick count must not be negative, got %d", ticks)
		}
		p.emit(dro.TickDelay{Ticks: ticks})

	// slot <slot> <register group> <value>
	case "slot":
		if err := expectArgs(3, 3); err != nil {
			return err
		}
		return p.parseGroupWrite(args, "slot", opl.SlotRegister)

	// channel <channel> <register group> <value>
	case "channel":
		if err := expectArgs(3, 3); err != nil {
			return err
		}
		return p.parseGroupWrite(args, "channel", opl.ChannelRegister)

	// note <channel> <pitch> [milliseconds]
	case "note":
		if err := expectArgs(2, 3); err != nil {
			return err
		}
		return p.parseNote(args)

	// off <channel>
	case "off":
		if err := expectArgs(1, 1); err != nil {
			return err
		}
		channel, err := p.parseInt(args[0], "channel")
		if err != nil {
			return err
		}
		if _, ok := p.sounding[channel]; !ok {
			p.addWarning("no note sounding on channel %d, ignoring off", channel)
			return nil
		}
		return p.keyOff(channel)

	default:
		return p.fatalf("unknown command: %s", name)
	}

	return nil
}

func (p *Parser) parseInt(s string, what string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, p.fatalf("invalid %s '%s'", what, s)
	}
	return int(v), nil
}

func (p *Parser) parseDuration(s string) (float64, error) {
	ms, err := strconv.ParseFloat(strings.TrimSuffix(s, "ms"), 64)
	if err != nil {
		return 0, p.fatalf("invalid duration '%s'", s)
	}
	if ms < 0 {
		return 0, p.fatalErr(fmt.Errorf("duration must not be negative, got %g ms: %w", ms, opl.ErrDomain))
	}
	return ms, nil
}

// parseGroupWrite handles writes addressed by register group and slot or channel number.
func (p *Parser) parseGroupWrite(args []string, what string, register func(base int, index int) (int, error)) error {
	index, err := p.parseInt(args[0], what)
	if err != nil {
		return err
	}
	base, err := p.parseInt(args[1], "register group")
	if err != nil {
		return err
	}
	value, err := p.parseInt(args[2], "register value")
	if err != nil {
		return err
	}

	address, err := register(base, index)
	if err != nil {
		return p.fatalErr(err)
	}
	p.emit(dro.RegisterWrite{Address: address, Value: value})
	return nil
}

// parsePitch converts a pitch token to a frequency. Pitches are either a
// frequency ("440hz"), a Midi note number ("n69") or a scientific pitch ("A4").
func parsePitch(s string) (float64, error) {
	if hz, found := strings.CutSuffix(strings.ToLower(s), "hz"); found {
		freq, err := strconv.ParseFloat(hz, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frequency '%s': %w", s, opl.ErrParse)
		}
		return freq, nil
	}
	if note, found := strings.CutPrefix(s, "n"); found {
		v, err := strconv.ParseFloat(note, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid note number '%s': %w", s, opl.ErrParse)
		}
		return opl.NoteNumberToHz(v), nil
	}
	return opl.ScientificPitchToHz(s)
}

func (p *Parser) parseNote(args []string) error {
	channel, err := p.parseInt(args[0], "channel")
	if err != nil {
		return err
	}
	freq, err := parsePitch(args[1])
	if err != nil {
		return p.fatalErr(err)
	}
	block, fnum, err := opl.BestBlock(freq, p.score.Clock)
	if err != nil {
		return p.fatalErr(err)
	}

	// The envelope only restarts if the channel is keyed off first.
	if _, ok := p.sounding[channel]; ok {
		if err := p.keyOff(channel); err != nil {
			return err
		}
	}

	writes, err := opl.KeyOn(channel, block, fnum)
	if err != nil {
		return p.fatalErr(err)
	}
	p.emit(dro.Writes(writes)...)
	p.sounding[channel] = soundingNote{block: block, fnum: fnum}

	if len(args) < 3 {
		return nil
	}

	ms, err := p.parseDuration(args[2])
	if err != nil {
		return err
	}
	p.emit(dro.Delay{Ms: ms})
	return p.keyOff(channel)
}

func (p *Parser) keyOff(channel int) error {
	note := p.sounding[channel]
	writes, err := opl.KeyOff(channel, note.block, note.fnum)
	if err != nil {
		return p.fatalErr(err)
	}
	p.emit(dro.Writes(writes)...)
	delete(p.sounding, channel)
	return nil
}
