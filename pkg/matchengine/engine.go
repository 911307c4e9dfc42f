// Package matchengine implements the match engine cascade: keyword
// prefilter -> superset DFA -> primary DFA -> backreference-capable regex
// array, run in that fixed order so the expensive engine only ever
// touches confirmed candidates. The cascade is expressed as an explicit
// state machine, with named states and transitions in place of goto-
// driven control flow.
package matchengine

import (
	"fmt"

	"github.com/coregrep/coregrep/pkg/dfa"
	"github.com/coregrep/coregrep/pkg/kwset"
	"github.com/coregrep/coregrep/pkg/pattern"
	"github.com/coregrep/coregrep/pkg/regexarray"
)

// Engine holds one replica of the compiled artifacts: Keyword Set, primary
// DFA, optional superset DFA, and regex array. Replicas are cheap to build
// (Fork just recompiles), and parallel workers each own one because the
// regex array's registers are mutated during matching.
type Engine struct {
	compiled *pattern.Compiled
	kw       *kwset.KeywordSet
	primary  *dfa.DFA
	superset *dfa.DFA
	regex    *regexarray.Array
}

// New builds an Engine from a compiled pattern set. A superset DFA is built
// only when the pattern set requires backreferences, by relaxing every
// backreference to a wildcard -- a deliberate over-approximation that can
// never reject a line the exact (regex-array) pass would accept.
func New(compiled *pattern.Compiled) (*Engine, error) {
	// The DFA engine has no backreferences, so with backreferences present
	// the primary DFA is built over the same relaxation as the superset and
	// every line it accepts is confirmed by the regex array.
	primarySrc := compiled.Joined
	if compiled.HasBackrefs {
		primarySrc = relaxBackreferences(compiled.Joined)
	}
	primary, err := dfa.Compile(primarySrc)
	if err != nil {
		return nil, fmt.Errorf("matchengine: primary dfa: %w", err)
	}

	regex, err := regexarray.Compile(compiled)
	if err != nil {
		return nil, fmt.Errorf("matchengine: regex array: %w", err)
	}

	e := &Engine{
		compiled: compiled,
		kw:       kwset.New(compiled.MustList, compiled.Options.EOLByte),
		primary:  primary,
		regex:    regex,
	}

	if compiled.HasBackrefs {
		superset, err := dfa.Compile(relaxBackreferences(compiled.Joined))
		if err != nil {
			return nil, fmt.Errorf("matchengine: superset dfa: %w", err)
		}
		e.superset = superset
	}

	return e, nil
}

// Fork produces an independent replica of e for exclusive use by one
// parallel-traversal worker. Replicas share no mutable state with e or
// with each other.
func (e *Engine) Fork() (*Engine, error) {
	return New(e.compiled)
}

// relaxBackreferences replaces every \N backreference with .* so the
// resulting pattern's language is a conservative superset of the original:
// anything the true, backreference-aware pattern accepts, this relaxation
// accepts too, but not vice versa.
func relaxBackreferences(joined string) string {
	out := make([]byte, 0, len(joined))
	for i := 0; i < len(joined); i++ {
		if joined[i] == '\\' && i+1 < len(joined) && joined[i+1] >= '1' && joined[i+1] <= '9' {
			out = append(out, '.', '*')
			i++
			continue
		}
		out = append(out, joined[i])
	}
	return string(out)
}

// Result describes one matching line found by Next.
type Result struct {
	LineStart, LineEnd   int // byte range of the line within buf, LineEnd excludes the eol byte
	MatchStart, MatchEnd int // byte range of the confirmed match within buf
	State                State
}

// Next runs the cascade starting at begin and returns the first matching
// line at or after begin within buf[:limit], or ok=false if no line in
// that range matches. startPtr, when non-negative, forces the cascade
// straight to the regex array at that exact position, bypassing the
// prefilter stages -- used for exact-match probing of a specific
// position.
func (e *Engine) Next(buf []byte, begin, limit int, startPtr int) (Result, bool, error) {
	eol := e.compiled.Options.EOLByte
	pos := begin

	if startPtr >= 0 {
		return e.regexProbe(buf, startPtr, limit, eol)
	}

	for pos < limit {
		if !e.kw.Empty() {
			// pos is always a line start (buffer invariant i guarantees
			// buf[pos-1] is the preceding eol sentinel, even for the very
			// first line of the file), so including that one byte lets an
			// exact, begin-line-anchored keyword's leading eol pad actually
			// be found; without it, such a keyword could never match
			// whichever line happens to start the current scan.
			hit, found := e.kw.Scan(buf[pos-1 : limit])
			if !found {
				return Result{State: Fail}, false, nil
			}
			abs := pos - 1 + hit.Pos
			lineStart := lineStartBefore(buf, abs, eol)
			lineEnd := lineEndAfter(buf, abs, limit, eol)

			if hit.Exact {
				return Result{
					LineStart:  lineStart,
					LineEnd:    lineEnd,
					MatchStart: abs,
					MatchEnd:   abs + len(e.kw.Entry(hit.Index).Text),
					State:      Accept,
				}, true, nil
			}

			// Non-exact: the keyword only narrows the search window, so
			// run the superset DFA (if any) and then the primary DFA over
			// the containing line before falling back to the regex array.
			window := buf[lineStart:lineEnd]

			if e.superset != nil {
				if !e.superset.Matches(window) {
					pos = lineEnd + 1
					continue
				}
			}

			if m, ok := e.primary.Find(window); ok {
				if !e.compiled.HasBackrefs {
					return Result{
						LineStart:  lineStart,
						LineEnd:    lineEnd,
						MatchStart: lineStart + m.Start,
						MatchEnd:   lineStart + m.End,
						State:      Accept,
					}, true, nil
				}
				res, ok, err := e.regexOverLine(buf, lineStart, lineEnd)
				if err != nil {
					return Result{}, false, err
				}
				if ok {
					return res, true, nil
				}
			}

			pos = lineEnd + 1
			continue
		}

		// No Keyword Set (e.g. pattern has no extractable must-list):
		// run the DFA directly over the remaining window.
		if m, ok := e.primary.Find(buf[pos:limit]); ok {
			abs := pos + m.Start
			lineStart := lineStartBefore(buf, abs, eol)
			lineEnd := lineEndAfter(buf, abs, limit, eol)
			if !e.compiled.HasBackrefs {
				return Result{
					LineStart:  lineStart,
					LineEnd:    lineEnd,
					MatchStart: pos + m.Start,
					MatchEnd:   pos + m.End,
					State:      Accept,
				}, true, nil
			}
			res, ok, err := e.regexOverLine(buf, lineStart, lineEnd)
			if err != nil {
				return Result{}, false, err
			}
			if ok {
				return res, true, nil
			}
			pos = lineEnd + 1
			continue
		}

		return Result{State: Fail}, false, nil
	}

	return Result{State: Fail}, false, nil
}

// regexOverLine runs the regex array over one line, applying whole-line and
// whole-word semantics.
func (e *Engine) regexOverLine(buf []byte, lineStart, lineEnd int) (Result, bool, error) {
	line := string(buf[lineStart:lineEnd])

	if e.compiled.Options.WholeLine {
		// The per-pattern array is deliberately left unwrapped, so whole-
		// line acceptance is checked here rather than relying on an anchor
		// baked into the pattern text: accept only if some pattern's
		// match spans the entire line.
		span, found, err := e.regex.FindFirst(line)
		if err != nil {
			return Result{}, false, err
		}
		if !found || span.Start != 0 || span.End != len(line) {
			return Result{}, false, nil
		}
		return Result{
			LineStart: lineStart, LineEnd: lineEnd,
			MatchStart: lineStart, MatchEnd: lineEnd,
			State: Accept,
		}, true, nil
	}

	if e.compiled.Options.WholeWord {
		return e.regexWholeWord(buf, lineStart, lineEnd)
	}

	span, found, err := e.regex.FindFirst(line)
	if err != nil {
		return Result{}, false, err
	}
	if !found {
		return Result{}, false, nil
	}
	return Result{
		LineStart: lineStart, LineEnd: lineEnd,
		MatchStart: lineStart + span.Start, MatchEnd: lineStart + span.End,
		State: Accept,
	}, true, nil
}

// regexWholeWord implements a shrink-then-advance search: on each
// candidate span, verify both neighbors are non-word bytes; if not, try
// a shorter anchored match; on exhaustion, advance by one byte and
// search again.
func (e *Engine) regexWholeWord(buf []byte, lineStart, lineEnd int) (Result, bool, error) {
	line := buf[lineStart:lineEnd]
	base := 0
	for base <= len(line) {
		span, found, err := e.regex.FindFirst(string(line[base:]))
		if err != nil {
			return Result{}, false, err
		}
		if !found {
			return Result{}, false, nil
		}
		start := base + span.Start
		end := base + span.End
		for end > start {
			if isWordBoundaryOK(line, start, end) {
				return Result{
					LineStart: lineStart, LineEnd: lineEnd,
					MatchStart: lineStart + start, MatchEnd: lineStart + end,
					State: Accept,
				}, true, nil
			}
			sub, ok, err := e.regex.FindFirst(string(line[start : end-1]))
			if err != nil {
				return Result{}, false, err
			}
			if !ok || sub.Start != 0 {
				break
			}
			end = start + sub.End
		}
		base = base + span.Start + 1
	}
	return Result{}, false, nil
}

func isWordBoundaryOK(line []byte, start, end int) bool {
	if start > 0 && isWordByte(line[start-1]) {
		return false
	}
	if end < len(line) && isWordByte(line[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Span is one intra-line match, used by the line printer's middle phase
// to color each occurrence in a matched line.
type Span struct {
	Start, End int
}

// FindAllInLine returns every non-overlapping match within one already-
// isolated line, in left-to-right order, honoring whole-word wrapping.
// When the pattern has backreferences or whole-word matching is on, matches
// come from the regex array's FindAll (whole-word spans without non-word
// neighbors on both sides are dropped); otherwise the primary DFA's FindAll
// is used directly.
func (e *Engine) FindAllInLine(line []byte) ([]Span, error) {
	if !e.compiled.HasBackrefs && !e.compiled.Options.WholeWord {
		ms := e.primary.FindAll(line, -1)
		out := make([]Span, len(ms))
		for i, m := range ms {
			out[i] = Span{Start: m.Start, End: m.End}
		}
		return out, nil
	}

	spans, err := e.regex.FindAll(string(line))
	if err != nil {
		return nil, err
	}
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		if e.compiled.Options.WholeWord && !isWordBoundaryOK(line, s.Start, s.End) {
			continue
		}
		out = append(out, Span{Start: s.Start, End: s.End})
	}
	return out, nil
}

// regexProbe runs the regex array directly at pos, bypassing the
// prefilter stages for an exact-match probe of a specific position.
func (e *Engine) regexProbe(buf []byte, pos, limit int, eol byte) (Result, bool, error) {
	lineStart := lineStartBefore(buf, pos, eol)
	lineEnd := lineEndAfter(buf, pos, limit, eol)
	res, ok, err := e.regexOverLine(buf, lineStart, lineEnd)
	return res, ok, err
}

// lineStartBefore scans backward from pos for the byte after the prior
// end-of-line byte, relying on the buffer manager's sentinel invariant
// that the byte immediately before the window always holds an
// end-of-line byte.
func lineStartBefore(buf []byte, pos int, eol byte) int {
	i := pos
	for i > 0 && buf[i-1] != eol {
		i--
	}
	return i
}

// lineEndAfter scans forward from pos for the next end-of-line byte, or
// limit if none is found before it.
func lineEndAfter(buf []byte, pos, limit int, eol byte) int {
	i := pos
	for i < limit && buf[i] != eol {
		i++
	}
	return i
}
