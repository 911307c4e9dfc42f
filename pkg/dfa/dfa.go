// Package dfa wraps coregex's meta-engine as the primary and superset DFA
// stages of the match engine cascade. coregex selects its own execution
// strategy (NFA, lazy DFA, OnePass...) per pattern; the cascade only needs
// Find/FindAll and a boolean "did it match" answer, so this package
// exposes exactly that, independent of which strategy coregex picked
// underneath.
package dfa

import (
	"github.com/coregx/coregex/meta"
)

// DFA is one compiled automaton: either the primary DFA built from the full
// joined pattern, or a superset DFA built from a relaxation of it, used
// when the true pattern can't be represented exactly (e.g. it contains
// backreferences); the superset is a conservative over-approximation that
// never rejects a line the real pattern would accept.
type DFA struct {
	engine *meta.Engine
}

// Compile builds a DFA from an already-dialect-translated, Perl/RE2-syntax
// pattern string (pattern.Compiled.Joined or a looser superset derived from
// it).
func Compile(pattern string) (*DFA, error) {
	engine, err := meta.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &DFA{engine: engine}, nil
}

// Match is one DFA match span, byte-offset into the haystack it was found
// in.
type Match struct {
	Start, End int
}

// Find returns the first match in content at or after byte offset 0, or
// ok=false if the DFA does not accept any substring of content.
func (d *DFA) Find(content []byte) (m Match, ok bool) {
	found := d.engine.Find(content)
	if found == nil {
		return Match{}, false
	}
	return Match{Start: found.Start(), End: found.End()}, true
}

// Matches reports whether the DFA accepts any substring of content, without
// paying for full match-span computation beyond what Find already does.
func (d *DFA) Matches(content []byte) bool {
	_, ok := d.Find(content)
	return ok
}

// FindAll returns every non-overlapping match in content, in left-to-right
// order, capped at n (n<0 means unlimited). Used by -o/--only-matching.
func (d *DFA) FindAll(content []byte, n int) []Match {
	if n < 0 {
		n = -1
	}
	idxPairs := d.engine.FindAllIndicesStreaming(content, n, nil)
	out := make([]Match, 0, len(idxPairs))
	for _, p := range idxPairs {
		out = append(out, Match{Start: p[0], End: p[1]})
	}
	return out
}
