package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileBasicRegexp(t *testing.T) {
	sources := []Source{{Text: "fo\\(o\\)"}}
	c, err := Compile(sources, Options{Dialect: Basic, EOLByte: '\n'})
	require.NoError(t, err)
	assert.Equal(t, []string{"fo(o)"}, c.Patterns)
}

func TestCompileExtendedRegexpLeavesMetacharsAlone(t *testing.T) {
	sources := []Source{{Text: "fo(o)+"}}
	c, err := Compile(sources, Options{Dialect: Extended, EOLByte: '\n'})
	require.NoError(t, err)
	assert.Equal(t, "fo(o)+", c.Patterns[0])
}

func TestCompileFixedStringsQuotesMetachars(t *testing.T) {
	sources := []Source{{Text: "a.b*c"}}
	c, err := Compile(sources, Options{Dialect: FixedStrings, EOLByte: '\n'})
	require.NoError(t, err)
	assert.Equal(t, `a\.b\*c`, c.Patterns[0])
}

func TestCompileMultiplePatternsAreJoined(t *testing.T) {
	sources := []Source{{Text: "abc\ndef"}}
	c, err := Compile(sources, Options{Dialect: Extended, EOLByte: '\n'})
	require.NoError(t, err)
	require.Len(t, c.Patterns, 2)
	assert.Equal(t, "abc|def", c.RawJoined)
}

func TestCompileWholeLineWrapsJoined(t *testing.T) {
	sources := []Source{{Text: "abc"}}
	c, err := Compile(sources, Options{Dialect: Extended, WholeLine: true, EOLByte: '\n'})
	require.NoError(t, err)
	assert.Equal(t, "^(?:abc)$", c.Joined)
}

func TestCompileIgnoreCasePrefixesJoined(t *testing.T) {
	sources := []Source{{Text: "abc"}}
	c, err := Compile(sources, Options{Dialect: Extended, IgnoreCase: true, EOLByte: '\n'})
	require.NoError(t, err)
	assert.Equal(t, "(?i)abc", c.Joined)
}

func TestCompileDetectsBackreferences(t *testing.T) {
	sources := []Source{{Text: `(a)\1`}}
	c, err := Compile(sources, Options{Dialect: Extended, EOLByte: '\n'})
	require.NoError(t, err)
	assert.True(t, c.HasBackrefs)
}

func TestCompileRejectsInvalidSyntax(t *testing.T) {
	sources := []Source{{Name: "patterns.txt", Text: "a(b"}}
	_, err := Compile(sources, Options{Dialect: Extended, EOLByte: '\n'})
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "patterns.txt", ce.File)
}

func TestCompileFixedStringsPromotedUnderIgnoreCaseMultibyte(t *testing.T) {
	sources := []Source{{Text: "café"}}
	c, err := Compile(sources, Options{Dialect: FixedStrings, IgnoreCase: true, EOLByte: '\n'})
	require.NoError(t, err)
	assert.Equal(t, "(?i)café", c.Joined)
}

func TestCompileFixedStringsPromotedUnderWholeWord(t *testing.T) {
	sources := []Source{{Text: "a.b"}}
	c, err := Compile(sources, Options{Dialect: FixedStrings, WholeWord: true, EOLByte: '\n'})
	require.NoError(t, err)
	// FixedStrings would otherwise escape the dot; promotion to basic
	// regex leaves it as the wildcard metacharacter.
	assert.Equal(t, "a.b", c.Patterns[0])
}

func TestCompileFixedStringsPromotedOnInvalidEncoding(t *testing.T) {
	sources := []Source{{Text: "a.b\xff"}}
	c, err := Compile(sources, Options{Dialect: FixedStrings, EOLByte: '\n'})
	require.NoError(t, err)
	assert.Equal(t, "a.b\xff", c.Patterns[0])
}
