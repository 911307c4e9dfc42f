package regexarray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregrep/coregrep/pkg/pattern"
)

func compile(t *testing.T, patterns ...string) *Array {
	t.Helper()
	c := &pattern.Compiled{Patterns: patterns}
	a, err := Compile(c)
	require.NoError(t, err)
	return a
}

func TestFindFirstLeftmostLongest(t *testing.T) {
	a := compile(t, "a", "ab")
	span, ok, err := a.FindFirst("xxabxx")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, span.Start)
	assert.Equal(t, 4, span.End)
}

func TestFindFirstNoMatch(t *testing.T) {
	a := compile(t, "zzz")
	_, ok, err := a.FindFirst("abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatches(t *testing.T) {
	a := compile(t, "fo+")
	ok, err := a.Matches("foobar")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFindAllNonOverlapping(t *testing.T) {
	a := compile(t, "a+")
	spans, err := a.FindAll("a aa aaa")
	require.NoError(t, err)
	require.Len(t, spans, 3)
}

func TestBackreferencePattern(t *testing.T) {
	a := compile(t, `(\w+) \1`)
	ok, err := a.Matches("hello hello")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Matches("hello world")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLen(t *testing.T) {
	a := compile(t, "a", "b", "c")
	assert.Equal(t, 3, a.Len())
}
