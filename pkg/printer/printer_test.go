package printer

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintLinePlain(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n'}, "file.txt")

	line := []byte("hello world\n")
	require.NoError(t, p.PrintLine(&buf, line, 0, len(line)-1, nil, 1, ':'))
	assert.Equal(t, "hello world\n", buf.String())
	assert.True(t, p.AnyMatch())
}

func TestPrintLineWithFilenameLineNumberByteOffset(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{
		EOLByte:      '\n',
		WithFilename: true,
		LineNumber:   true,
		ByteOffset:   true,
	}, "file.txt")

	line := []byte("first\n")
	require.NoError(t, p.PrintLine(&buf, line, 0, 5, nil, 1, ':'))
	assert.Equal(t, "file.txt:1:0:first\n", buf.String())
}

func TestPrintLineContextSeparator(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n', LineNumber: true}, "")

	line := []byte("ctx\n")
	require.NoError(t, p.PrintLine(&buf, line, 0, 3, nil, 1, '-'))
	assert.Equal(t, "1-ctx\n", buf.String())
}

func TestPrintLineRunningLineCountAdvancesByPriorNewlines(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n', LineNumber: true}, "")

	require.NoError(t, p.PrintLine(&buf, []byte("a\n"), 0, 1, nil, 1, ':'))
	require.NoError(t, p.PrintLine(&buf, []byte("b\n"), 0, 1, nil, 3, ':'))
	assert.Equal(t, "1:a\n4:b\n", buf.String())
}

func TestPrintLineByteOffsetUsesBase(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n', ByteOffset: true}, "")
	p.SetBase(100)

	line := []byte("xyz\n")
	require.NoError(t, p.PrintLine(&buf, line, 0, 3, nil, 1, ':'))
	assert.Equal(t, "100:xyz\n", buf.String())
}

func TestPrintLineOnlyMatching(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n', OnlyMatching: true}, "")

	line := []byte("foo bar foo\n")
	matches := []Span{{Start: 0, End: 3}, {Start: 8, End: 11}}
	require.NoError(t, p.PrintLine(&buf, line, 0, 11, matches, 1, ':'))
	assert.Equal(t, "foo\nfoo\n", buf.String())
}

func TestPrintLineDOSModeStripsCR(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n', DOSMode: true}, "")

	line := []byte("windows line\r\n")
	require.NoError(t, p.PrintLine(&buf, line, 0, 13, nil, 1, ':'))
	assert.Equal(t, "windows line\n", buf.String())
}

func TestPrintLineDOSModeAdjustsByteOffsetForStrippedCRs(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n', ByteOffset: true, DOSMode: true}, "")

	raw := []byte("a\r\nb\r\n")
	require.NoError(t, p.PrintLine(&buf, raw, 0, 2, nil, 1, ':'))
	p.AccountCRs(1)
	require.NoError(t, p.PrintLine(&buf, raw, 3, 5, nil, 1, ':'))
	assert.Equal(t, "0:a\n2:b\n", buf.String())
}

func TestSuppressOnEncodingErrorSilencesFurtherOutput(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n'}, "")
	p.SuppressOnEncodingError()
	assert.True(t, p.Suppressed())

	require.NoError(t, p.PrintLine(&buf, []byte("x\n"), 0, 1, nil, 1, ':'))
	assert.Equal(t, "", buf.String())
	assert.False(t, p.AnyMatch())
}

func TestResetClearsPerFileState(t *testing.T) {
	p := New(Options{EOLByte: '\n'}, "a.txt")
	p.SetBase(50)
	var buf bytes.Buffer
	require.NoError(t, p.PrintLine(&buf, []byte("x\n"), 0, 1, nil, 1, ':'))
	assert.True(t, p.AnyMatch())

	p.Reset("b.txt")
	assert.False(t, p.AnyMatch())
	assert.False(t, p.Suppressed())
}

func TestGroupSeparator(t *testing.T) {
	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n'}, "")
	require.NoError(t, p.GroupSeparator(&buf))
	assert.Equal(t, "--\n", buf.String())
}

func TestPrintLineColorizesMatches(t *testing.T) {
	prevNoColor := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prevNoColor }()
	os.Unsetenv("GREP_COLORS")
	os.Unsetenv("GREP_COLOR")

	var buf bytes.Buffer
	p := New(Options{EOLByte: '\n', Colorize: true}, "")

	line := []byte("a needle b\n")
	matches := []Span{{Start: 2, End: 8}}
	require.NoError(t, p.PrintLine(&buf, line, 0, 10, matches, 1, ':'))
	assert.Contains(t, buf.String(), "\x1b[01;31mneedle\x1b[0m")
}

func TestBinaryNotice(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, BinaryNotice(&buf, "data.bin"))
	assert.Equal(t, "binary file data.bin matches\n", buf.String())
}

func TestCountCRs(t *testing.T) {
	n := CountCRs([]byte("a\r\nb\r\nc\n"))
	assert.Equal(t, int64(2), n)
}
