package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMustListFullyAnchoredLiteralIsExact(t *testing.T) {
	entries, ok := extractMustList("^foo$")
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("foo"), entries[0].Text)
	assert.True(t, entries[0].BeginLine)
	assert.True(t, entries[0].EndLine)
	assert.True(t, entries[0].Exact)
}

func TestExtractMustListWholeLineWrapIsStillExact(t *testing.T) {
	// This is the shape Compile builds when opts.WholeLine wraps a single
	// pattern: the non-capturing group disappears from the parsed tree, so
	// the result must be identical to the unwrapped case.
	entries, ok := extractMustList("^(?:foo)$")
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Exact)
}

func TestExtractMustListStartAnchorOnlyIsNotExact(t *testing.T) {
	entries, ok := extractMustList("^foo")
	require.True(t, ok)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.False(t, e.Exact)
	}
}

func TestExtractMustListEndAnchorOnlyIsNotExact(t *testing.T) {
	entries, ok := extractMustList("foo$")
	require.True(t, ok)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.False(t, e.Exact)
	}
}

func TestExtractMustListAlternationIsNotExact(t *testing.T) {
	entries, ok := extractMustList("^(?:foo|bar)$")
	require.True(t, ok)
	for _, e := range entries {
		assert.False(t, e.Exact)
	}
}
