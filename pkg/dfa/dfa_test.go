package dfa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndFind(t *testing.T) {
	d, err := Compile("fo+bar")
	require.NoError(t, err)

	m, ok := d.Find([]byte("xx foobar yy"))
	require.True(t, ok)
	assert.Equal(t, "foobar", string([]byte("xx foobar yy")[m.Start:m.End]))
}

func TestFindNoMatch(t *testing.T) {
	d, err := Compile("zzz")
	require.NoError(t, err)

	_, ok := d.Find([]byte("no match here"))
	assert.False(t, ok)
}

func TestMatches(t *testing.T) {
	d, err := Compile("abc")
	require.NoError(t, err)
	assert.True(t, d.Matches([]byte("xabcx")))
	assert.False(t, d.Matches([]byte("xyz")))
}

func TestFindAll(t *testing.T) {
	d, err := Compile("a+")
	require.NoError(t, err)
	matches := d.FindAll([]byte("a aa aaa"), -1)
	require.Len(t, matches, 3)
	assert.Equal(t, 1, matches[0].End-matches[0].Start)
	assert.Equal(t, 2, matches[1].End-matches[1].Start)
	assert.Equal(t, 3, matches[2].End-matches[2].Start)
}

func TestFindAllCap(t *testing.T) {
	d, err := Compile("a")
	require.NoError(t, err)
	matches := d.FindAll([]byte("aaaa"), 2)
	assert.Len(t, matches, 2)
}

func TestCompileInvalidPattern(t *testing.T) {
	_, err := Compile("a(b")
	require.Error(t, err)
}
