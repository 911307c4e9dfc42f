package pattern

import (
	"regexp/syntax"

	"github.com/coregx/coregex/literal"
)

// MustEntry is one fixed string the DFA proved must appear in any string
// accepted by the compiled pattern. Flags record where in the line the
// substring is anchored, so the Keyword Set can pad exact entries with
// the end-of-line byte on the appropriate side.
type MustEntry struct {
	Text      []byte
	BeginLine bool // substring is anchored to the start of the line
	EndLine   bool // substring is anchored to the end of the line
	Exact     bool // a hit on this entry alone confirms the whole pattern
}

// extractMustList derives the must_list for a joined pattern: literal
// substrings that must occur in any accepted line, extracted from the
// pattern's parsed syntax tree. This generalizes dfa.c's internal
// must-list computation using coregex's literal extractor, which walks the
// same regexp/syntax AST Go's own regexp package would produce.
func extractMustList(joined string) ([]MustEntry, bool) {
	re, err := syntax.Parse(joined, syntax.Perl)
	if err != nil {
		return nil, false
	}
	re = re.Simplify()

	cfg := literal.DefaultConfig()
	ext := literal.New(cfg)

	anchoredStart := startsWithAnchor(re)
	anchoredEnd := endsWithAnchor(re)

	// A pattern that reduces to nothing but an anchor, a single literal,
	// and an anchor on each end is fully confirmed by that literal alone:
	// unlike Complete (which tracks whether a prefix/suffix literal has any
	// continuation of its own within one alternation branch), this checks
	// the pattern's entire structure, so it still holds when a trailing
	// OpEndLine/OpEndText node follows the literal in the same Concat.
	if sole, ok := soleLiteral(re); ok && anchoredStart && anchoredEnd {
		return []MustEntry{{
			Text:      []byte(sole),
			BeginLine: true,
			EndLine:   true,
			Exact:     true,
		}}, true
	}

	prefixes := ext.ExtractPrefixes(re)
	suffixes := ext.ExtractSuffixes(re)
	inner := ext.ExtractInner(re)

	var entries []MustEntry
	for i := 0; i < prefixes.Len(); i++ {
		lit := prefixes.Get(i)
		if len(lit.Bytes) == 0 {
			continue
		}
		entries = append(entries, MustEntry{
			Text:      lit.Bytes,
			BeginLine: anchoredStart,
		})
	}
	for i := 0; i < suffixes.Len(); i++ {
		lit := suffixes.Get(i)
		if len(lit.Bytes) == 0 {
			continue
		}
		entries = append(entries, MustEntry{
			Text:    lit.Bytes,
			EndLine: anchoredEnd,
		})
	}
	for i := 0; i < inner.Len(); i++ {
		lit := inner.Get(i)
		if len(lit.Bytes) == 0 {
			continue
		}
		entries = append(entries, MustEntry{Text: lit.Bytes})
	}

	entries = dedupeMustList(entries)
	return entries, len(entries) > 0
}

// soleLiteral reports whether re, once any enclosing anchors and capture
// groups are stripped away, is nothing but a single literal run -- the
// structural check extractMustList needs to tell "the whole pattern is one
// anchored literal" apart from "this literal happens to prefix one branch
// of a larger pattern".
func soleLiteral(re *syntax.Regexp) (string, bool) {
	re = unwrapCapture(re)
	if re.Op == syntax.OpLiteral && re.Flags&syntax.FoldCase == 0 {
		return string(re.Rune), true
	}
	if re.Op != syntax.OpConcat {
		return "", false
	}
	subs := re.Sub
	if len(subs) > 0 && isAnchorOp(subs[0].Op) {
		subs = subs[1:]
	}
	if len(subs) > 0 && isAnchorOp(subs[len(subs)-1].Op) {
		subs = subs[:len(subs)-1]
	}
	if len(subs) != 1 {
		return "", false
	}
	lit := unwrapCapture(subs[0])
	// A case-folded literal (from (?i)) cannot be confirmed by an exact,
	// byte-for-byte keyword hit.
	if lit.Op != syntax.OpLiteral || lit.Flags&syntax.FoldCase != 0 {
		return "", false
	}
	return string(lit.Rune), true
}

func unwrapCapture(re *syntax.Regexp) *syntax.Regexp {
	for re.Op == syntax.OpCapture && len(re.Sub) == 1 {
		re = re.Sub[0]
	}
	return re
}

func isAnchorOp(op syntax.Op) bool {
	switch op {
	case syntax.OpBeginLine, syntax.OpBeginText, syntax.OpEndLine, syntax.OpEndText:
		return true
	}
	return false
}

func startsWithAnchor(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpBeginLine, syntax.OpBeginText:
		return true
	case syntax.OpConcat:
		if len(re.Sub) > 0 {
			return startsWithAnchor(re.Sub[0])
		}
	case syntax.OpCapture:
		if len(re.Sub) > 0 {
			return startsWithAnchor(re.Sub[0])
		}
	}
	return false
}

func endsWithAnchor(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpEndLine, syntax.OpEndText:
		return true
	case syntax.OpConcat:
		if n := len(re.Sub); n > 0 {
			return endsWithAnchor(re.Sub[n-1])
		}
	case syntax.OpCapture:
		if len(re.Sub) > 0 {
			return endsWithAnchor(re.Sub[0])
		}
	}
	return false
}

func dedupeMustList(entries []MustEntry) []MustEntry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		key := string(e.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
