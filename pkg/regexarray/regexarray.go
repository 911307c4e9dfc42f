// Package regexarray implements the per-pattern backtracking fallback of
// the match engine cascade: an array of regexp2.Regexp, one per original
// pattern line, run only when the DFA cannot decide a candidate on its
// own (the pattern has backreferences or lookaround the DFA can't
// represent at all). It runs the whole pattern array over candidate
// content and picks the earliest, longest match, the leftmost-then-
// longest tie-break the cascade needs across its pattern array.
package regexarray

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/coregrep/coregrep/pkg/pattern"
)

// matchTimeout bounds worst-case backtracking blowup so one pathological
// pattern can't hang a whole traversal.
const matchTimeout = 5 * time.Second

// Array is the compiled regexp2 form of every pattern line, kept in source
// order so Span's tie-breaking can prefer the earliest-declared pattern on
// an exact tie.
type Array struct {
	patterns []string
	compiled []*regexp2.Regexp
}

// Compile builds a regex array from a Compiled pattern set. It is the
// fallback path, so it is only ever invoked on candidates the Keyword Set
// and/or DFA have already flagged; compiling here happens once per Compiled
// pattern set, not once per candidate.
func Compile(c *pattern.Compiled) (*Array, error) {
	a := &Array{patterns: c.Patterns}
	a.compiled = make([]*regexp2.Regexp, len(c.Patterns))
	for i, p := range c.Patterns {
		re, err := regexp2.Compile(p, regexp2.RE2|regexp2.Multiline)
		if err != nil {
			re, err = regexp2.Compile(p, regexp2.None)
			if err != nil {
				return nil, fmt.Errorf("regex array: pattern %d (%q): %w", i, p, err)
			}
		}
		re.MatchTimeout = matchTimeout
		a.compiled[i] = re
	}
	return a, nil
}

// Span is one match location, identifying which pattern in the array
// produced it.
type Span struct {
	PatternIndex int
	Start, End   int
}

// FindFirst runs every pattern in the array against line and returns the
// leftmost match; among equal-leftmost matches it returns the longest, and
// among equal-leftmost-equal-length matches it returns the one from the
// earliest pattern index, matching the tie-break grep itself applies when
// multiple -e patterns could match the same position.
func (a *Array) FindFirst(line string) (Span, bool, error) {
	best := Span{Start: -1}
	found := false

	for i, re := range a.compiled {
		m, err := re.FindStringMatch(line)
		if err != nil {
			return Span{}, false, fmt.Errorf("regex array: pattern %d: %w", i, err)
		}
		if m == nil {
			continue
		}
		start := m.Index
		end := start + m.Length
		if !found || start < best.Start || (start == best.Start && end-start > best.End-best.Start) {
			best = Span{PatternIndex: i, Start: start, End: end}
			found = true
		}
	}
	return best, found, nil
}

// FindAll returns every non-overlapping match of the earliest-matching
// pattern at each position, scanning the array the same way FindFirst does
// but repeating until no pattern matches past the previous span's end. Used
// by -o/--only-matching against a regex-array candidate.
func (a *Array) FindAll(line string) ([]Span, error) {
	var spans []Span
	pos := 0
	for pos <= len(line) {
		remainder := line[pos:]
		span, ok, err := a.FindFirst(remainder)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		span.Start += pos
		span.End += pos
		spans = append(spans, span)
		if span.End == span.Start {
			pos = span.End + 1
		} else {
			pos = span.End
		}
	}
	return spans, nil
}

// Matches reports whether any pattern in the array matches line, without
// computing tie-break ordering.
func (a *Array) Matches(line string) (bool, error) {
	for i, re := range a.compiled {
		m, err := re.FindStringMatch(line)
		if err != nil {
			return false, fmt.Errorf("regex array: pattern %d: %w", i, err)
		}
		if m != nil {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of patterns in the array.
func (a *Array) Len() int { return len(a.compiled) }
