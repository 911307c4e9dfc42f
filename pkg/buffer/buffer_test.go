package buffer

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader hands back at most `chunk` bytes per Read, so tests can force
// a line split across two Fill calls without depending on the default
// page size.
type chunkReader struct {
	data  []byte
	pos   int
	chunk int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(p) {
		n = len(p)
	}
	if c.pos+n > len(c.data) {
		n = len(c.data) - c.pos
	}
	copy(p, c.data[c.pos:c.pos+n])
	c.pos += n
	return n, nil
}

func TestFillReadsData(t *testing.T) {
	b := New(strings.NewReader("hello\nworld\n"), nil, '\n', false)
	require.NoError(t, b.Fill())
	assert.Equal(t, "hello\nworld\n", string(b.Bytes()))
	assert.Equal(t, 0, b.Residue())
}

func TestFillResidueCarryoverAcrossChunks(t *testing.T) {
	r := &chunkReader{data: []byte("aaaa\nbbbb\n"), chunk: 7}
	b := New(r, nil, '\n', false)

	require.NoError(t, b.Fill())
	assert.Equal(t, "aaaa\nbb", string(b.Bytes()))
	assert.Equal(t, 2, b.Residue())
	assert.Equal(t, int64(0), b.BaseOffset())

	require.NoError(t, b.Fill())
	assert.Equal(t, "bbbb\n", string(b.Bytes()))
	assert.Equal(t, 0, b.Residue())
	assert.Equal(t, int64(5), b.BaseOffset())
}

func TestFillDiscardsAllZeroBlockWithoutHoleSkipping(t *testing.T) {
	// file is nil here, so holeSkippingEnabled is false: this exercises the
	// common non-seekable/in-band-NUL-padding case where an all-zero read
	// can never be skipped via SEEK_DATA and must simply be discarded and
	// retried instead of folded into the window.
	r := &chunkReader{data: append(bytes.Repeat([]byte{0}, 5), []byte("hello\n")...), chunk: 5}
	b := New(r, nil, '\n', true)

	require.NoError(t, b.Fill())
	assert.True(t, b.Binary())
	assert.Equal(t, "hello", string(b.Bytes()))
	assert.NotContains(t, b.Bytes(), byte(0))

	// readOffset must advance by exactly the bytes actually read (5
	// discarded + 5 kept), not be double-counted for the discarded block.
	assert.Equal(t, int64(5), b.BaseOffset())
}

func TestFillZapsNulsAndMarksBinary(t *testing.T) {
	b := New(strings.NewReader("abc\x00def\n"), nil, '\n', true)
	require.NoError(t, b.Fill())
	assert.True(t, b.Binary())
	assert.Equal(t, "abc\ndef\n", string(b.Bytes()))
}

func TestFillLeavesNulsWhenSkipDisabled(t *testing.T) {
	b := New(strings.NewReader("abc\x00def\n"), nil, '\n', false)
	require.NoError(t, b.Fill())
	assert.True(t, b.Binary())
	assert.Equal(t, []byte("abc\x00def\n"), b.Bytes())
}

func TestFillReturnsErrDoneOnEmptyReader(t *testing.T) {
	b := New(strings.NewReader(""), nil, '\n', false)
	err := b.Fill()
	assert.ErrorIs(t, err, ErrDone)
}

func TestFillTerminatesDanglingFinalLineThenSignalsDone(t *testing.T) {
	b := New(strings.NewReader("no newline at end"), nil, '\n', false)
	require.NoError(t, b.Fill())
	assert.Equal(t, "no newline at end", string(b.Bytes()))

	// EOF with no new bytes: the unterminated last line is synthetically
	// closed off so it gets matched once, rather than being handed back
	// unchanged forever.
	require.NoError(t, b.Fill())
	assert.Equal(t, "no newline at end\n", string(b.Bytes()))

	err := b.Fill()
	assert.ErrorIs(t, err, ErrDone)
}

func TestEncodingErrorSticky(t *testing.T) {
	b := New(strings.NewReader("x\n"), nil, '\n', false)
	assert.False(t, b.EncodingErrorSeen())
	b.MarkEncodingError()
	assert.True(t, b.EncodingErrorSeen())
}
