package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/QEStudios/DROScoreCompiler/dro"
	"github.com/QEStudios/DROScoreCompiler/opl"
	"github.com/hako/durafmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompile(t *testing.T) {
	logger = log.New(io.Discard, "", 0)
	dir := t.TempDir()
	path := writeFile(t, dir, "tone.score", "# DRO Score\n- title: tone\nevents:\nwrite 0x105 1\nnote 0 440hz 10\n")

	require.NoError(t, compile(path, options{}))

	data, err := os.ReadFile(filepath.Join(dir, "tone.dro"))
	require.NoError(t, err)
	doc, err := dro.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []dro.Event{
		dro.RegisterWrite{Address: 0x105, Value: 0x01},
		dro.RegisterWrite{Address: 0x0A0, Value: 0x44},
		dro.RegisterWrite{Address: 0x0B0, Value: 0x32},
		dro.TickDelay{Ticks: 497},
		dro.RegisterWrite{Address: 0x0B0, Value: 0x12},
	}, doc.Events)

	require.NoError(t, dump(io.Discard, filepath.Join(dir, "tone.dro"), 0))
}

func TestCompile_OutputAndClock(t *testing.T) {
	logger = log.New(io.Discard, "", 0)
	dir := t.TempDir()
	path := writeFile(t, dir, "wait.txt", "# DRO Score\nevents:\ndelay 1000\n")
	out := filepath.Join(dir, "custom.dro")

	require.NoError(t, compile(path, options{output: out, clock: 10e6}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc, err := dro.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(34722), doc.Header.TotalMs)
}

func TestCompile_ClockAppliesToPitches(t *testing.T) {
	logger = log.New(io.Discard, "", 0)
	dir := t.TempDir()
	out := filepath.Join(dir, "slow.dro")

	// The score's own clock is ignored when one is given on the command line.
	for _, text := range []string{
		"# DRO Score\nevents:\nnote 0 440hz 10\n",
		"# DRO Score\n- clock: 14318180\nevents:\nnote 0 440hz 10\n",
	} {
		path := writeFile(t, dir, "slow.score", text)
		require.NoError(t, compile(path, options{output: out, clock: 10e6}))

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		doc, err := dro.Decode(data)
		require.NoError(t, err)

		// 440 hz at 10 MHz is F-Number 830 (0x33E) in block 4, and 10 ms is 347 ticks.
		assert.Equal(t, []dro.Event{
			dro.RegisterWrite{Address: 0x0A0, Value: 0x3E},
			dro.RegisterWrite{Address: 0x0B0, Value: 0x33},
			dro.TickDelay{Ticks: 347},
			dro.RegisterWrite{Address: 0x0B0, Value: 0x13},
		}, doc.Events, text)
	}
}

func TestDump_Clock(t *testing.T) {
	logger = log.New(io.Discard, "", 0)
	dir := t.TempDir()
	path := writeFile(t, dir, "second.score", "# DRO Score\nevents:\ndelay 1000\n")
	out := filepath.Join(dir, "second.dro")
	require.NoError(t, compile(path, options{output: out}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc, err := dro.Decode(data)
	require.NoError(t, err)

	var atDefault, atSlow strings.Builder
	require.NoError(t, dump(&atDefault, out, 0))
	require.NoError(t, dump(&atSlow, out, 10e6))

	assert.Contains(t, atDefault.String(), durafmt.Parse(doc.Duration(opl.DefaultClock)).LimitFirstN(2).String())
	assert.Contains(t, atSlow.String(), durafmt.Parse(doc.Duration(10e6)).LimitFirstN(2).String())
	assert.NotEqual(t, atDefault.String(), atSlow.String())

	assert.ErrorIs(t, dump(io.Discard, out, 1), opl.ErrDomain)
}

func TestCompile_Errors(t *testing.T) {
	logger = log.New(io.Discard, "", 0)
	dir := t.TempDir()

	err := compile(filepath.Join(dir, "missing.txt"), options{})
	assert.Error(t, err)

	path := writeFile(t, dir, "bad.txt", "# DRO Score\nevents:\nwrite 0x200 0\n")
	err = compile(path, options{})
	assert.ErrorIs(t, err, dro.ErrRange)
	assert.NoFileExists(t, filepath.Join(dir, "bad.dro"))

	err = compile(path, options{clock: 1})
	assert.Error(t, err)

	bogus := writeFile(t, dir, "bogus.dro", "not a dro file")
	assert.ErrorIs(t, dump(io.Discard, bogus, 0), dro.ErrFormat)
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	scorePath := writeFile(t, dir, "song.SCORE", "")
	midiPath := writeFile(t, dir, "song.mid", "")

	assert.NoError(t, validatePath(scorePath, scoreExts))
	assert.NoError(t, validatePath(midiPath, midiExts))
	assert.Error(t, validatePath(midiPath, scoreExts))
	assert.Error(t, validatePath(filepath.Join(dir, "nope.txt"), scoreExts))
}

func TestChoosePath_Argument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "song.txt", "")

	got, err := choosePath(dir, []string{path}, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = choosePath(dir, []string{path}, true)
	assert.Error(t, err, "only .dro files can be dumped")
}
