// Package kwset implements the Keyword Set: a Boyer-Moore-family
// multi-string matcher built from a compiled pattern's must-list, used as
// the necessary-condition prefilter ahead of the DFA and regex engines.
package kwset

import (
	"bytes"

	"github.com/cloudflare/ahocorasick"

	"github.com/coregrep/coregrep/pkg/pattern"
)

// Entry mirrors pattern.MustEntry plus the padding kwset.New applies to
// exact, line-anchored entries.
type Entry struct {
	Text      []byte
	BeginLine bool
	EndLine   bool
	Exact     bool

	// matched is the literal keyword fed to the ahocorasick dictionary:
	// Text itself for non-exact entries, or Text padded with eol on
	// whichever side is anchored for exact entries. Scan searches for this,
	// never Text, since an unpadded search can land on an unanchored
	// occurrence the dictionary never actually matched against.
	matched []byte
}

// KeywordSet is an immutable, read-only-after-construction multi-string
// matcher. exactMatchCount of its entries, by construction, confirm the
// whole regex on a hit; the rest only narrow candidates, so
// exactMatchCount never exceeds len(entries).
type KeywordSet struct {
	matcher        *ahocorasick.Matcher
	entries        []Entry
	exactMatchCount int
}

// New builds a Keyword Set from a pattern's must-list. Exact entries that
// are anchored to the start or end of a line are padded with eol on the
// corresponding side, so a hit against the padded keyword is sufficient
// to confirm the match without running the DFA.
func New(mustList []pattern.MustEntry, eol byte) *KeywordSet {
	ks := &KeywordSet{}
	if len(mustList) == 0 {
		return ks
	}

	keywords := make([][]byte, 0, len(mustList))
	for _, m := range mustList {
		text := m.Text
		if m.Exact {
			if m.BeginLine {
				text = append([]byte{eol}, text...)
			}
			if m.EndLine {
				text = append(append([]byte{}, text...), eol)
			}
		}
		keywords = append(keywords, text)
		ks.entries = append(ks.entries, Entry{
			Text:      m.Text,
			BeginLine: m.BeginLine,
			EndLine:   m.EndLine,
			Exact:     m.Exact,
			matched:   text,
		})
		if m.Exact {
			ks.exactMatchCount++
		}
	}

	strs := make([]string, len(keywords))
	for i, k := range keywords {
		strs[i] = string(k)
	}
	ks.matcher = ahocorasick.NewStringMatcher(strs)
	return ks
}

// Empty reports whether the set has no keywords at all (no must-list could
// be derived, e.g. ".*" or a pattern the extractor couldn't anchor).
func (ks *KeywordSet) Empty() bool {
	return ks == nil || ks.matcher == nil
}

// ExactMatchCount returns the number of entries whose hit alone confirms
// the whole compiled regex.
func (ks *KeywordSet) ExactMatchCount() int {
	if ks == nil {
		return 0
	}
	return ks.exactMatchCount
}

// Hit is one keyword-set match location.
type Hit struct {
	Index int // index into the Keyword Set's entries
	Pos   int // byte offset of the entry's text within content
	Exact bool
}

// Scan runs the multi-string matcher over content. ahocorasick.Matcher
// reports which dictionary entries occur somewhere in content but not
// where, so Scan resolves position itself with a literal search over the
// entry with the lowest such offset, and returns ok=false if nothing
// matched. The Keyword Set never produces false negatives: if the DFA
// would accept some line, at least one of its must-list entries occurs
// somewhere in that line.
func (ks *KeywordSet) Scan(content []byte) (hit Hit, ok bool) {
	if ks.Empty() {
		return Hit{}, false
	}
	indices := ks.matcher.Match(content)
	if len(indices) == 0 {
		return Hit{}, false
	}
	best := Hit{Pos: -1}
	found := false
	for _, idx := range indices {
		e := ks.entries[idx]
		pos := bytes.Index(content, e.matched)
		if pos < 0 {
			continue
		}
		// e.matched may carry a leading eol pad that isn't part of the
		// text itself; re-verifying the padded keyword here (rather than
		// the bare Text bytes) is what guarantees an "exact" hit actually
		// occurred at the anchor it claims, not at some unanchored
		// occurrence of the same bytes elsewhere in content.
		if e.BeginLine && e.Exact {
			pos++
		}
		if !found || pos < best.Pos {
			best = Hit{Index: idx, Pos: pos, Exact: e.Exact}
			found = true
		}
	}
	if !found {
		return Hit{}, false
	}
	return best, true
}

// Entry returns the keyword-set entry at index i.
func (ks *KeywordSet) Entry(i int) Entry {
	return ks.entries[i]
}

// ContainsLine reports whether content, narrowed to one line, contains the
// text of entry i. Used to check that for every match the DFA reports,
// the Keyword Set reported some candidate containing that match's line.
func (e Entry) ContainsLine(line []byte) bool {
	return bytes.Contains(line, e.Text)
}
