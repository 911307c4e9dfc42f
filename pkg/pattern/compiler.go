package pattern

import (
	"bytes"
	"fmt"
	"regexp/syntax"
	"strings"

	"github.com/dlclark/regexp2"
)

// Options configures pattern compilation.
type Options struct {
	Dialect    Dialect
	IgnoreCase bool
	WholeWord  bool
	WholeLine  bool
	EOLByte    byte // '\n', or NUL for -z mode
}

// DefaultOptions returns grep's conventional defaults: basic regular
// expressions, case-sensitive, newline-delimited.
func DefaultOptions() Options {
	return Options{Dialect: Basic, EOLByte: '\n'}
}

// CompileError is a fatal pattern-syntax error, reported with the resolved
// filename:lineno prefix of the pattern that failed.
type CompileError struct {
	File    string
	Line    int
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: invalid pattern %q: %v", e.File, e.Line, e.Pattern, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Compiled holds the immutable artifacts produced by Compile: the list of
// per-pattern source regexes, the joined-and-wrapped form used for the
// DFA, and the derived must-list. Compiled is read-only after
// construction; each parallel-traversal worker builds its own engines from
// it (matchengine.Engine.Fork), because the underlying regex engines carry
// mutable register state.
type Compiled struct {
	Options      Options
	Patterns     []string // one per original pattern line, unwrapped
	Joined       string   // all patterns alternated, wrapped for whole-word/line if requested
	RawJoined    string   // all patterns alternated, unwrapped
	MustList     []MustEntry
	HasBackrefs  bool
	sourceMap    *sourceMap
}

// Compile parses a newline-separated pattern blob under the requested
// dialect and flags, producing the artifacts the match engine and keyword
// set are built from. Any per-pattern compile failure aborts with a
// resolved filename:lineno prefix.
func Compile(sources []Source, opts Options) (*Compiled, error) {
	blob, sm := buildSourceMap(sources, opts.EOLByte)

	dialect := opts.Dialect
	lines := splitLines(blob, opts.EOLByte)

	if dialect == FixedStrings {
		if promoted, reason := shouldPromoteFixedStrings(lines, opts); promoted {
			dialect = Basic
			_ = reason
		}
	}

	patterns := make([]string, 0, len(lines))
	for i, line := range lines {
		translated, err := translate(string(line), dialect)
		if err != nil {
			file, lineno := sm.resolve(i)
			return nil, &CompileError{File: file, Line: lineno, Pattern: string(line), Err: err}
		}
		if _, err := regexp2.Compile(translated, regexp2.RE2); err != nil {
			// Validate with a backtracking-free compile first; if that fails
			// try the full Perl-compatible mode so constructs RE2 rejects
			// (lookaround, backreferences) still get a chance to compile.
			if _, err2 := regexp2.Compile(translated, regexp2.None); err2 != nil {
				file, lineno := sm.resolve(i)
				return nil, &CompileError{File: file, Line: lineno, Pattern: string(line), Err: err2}
			}
		}
		patterns = append(patterns, translated)
	}

	if len(patterns) == 0 {
		patterns = []string{""}
	}

	rawJoined := strings.Join(patterns, "|")
	joined := rawJoined
	if opts.WholeLine {
		joined = "^(?:" + rawJoined + ")$"
	} else if opts.WholeWord {
		joined = `(?:^|\W)(?:` + rawJoined + `)(?:\W|$)`
	}
	if opts.IgnoreCase {
		joined = "(?i)" + joined
		rawJoined = "(?i)" + rawJoined
	}

	mustList, _ := extractMustList(joined)

	hasBackrefs := false
	for _, p := range patterns {
		if containsBackref(p) {
			hasBackrefs = true
			break
		}
	}

	return &Compiled{
		Options:     opts,
		Patterns:    patterns,
		Joined:      joined,
		RawJoined:   rawJoined,
		MustList:    mustList,
		HasBackrefs: hasBackrefs,
		sourceMap:   sm,
	}, nil
}

// splitLines splits blob on eol, dropping a single trailing empty element
// the way strings.Split over a blob that always ends in eol would.
func splitLines(blob []byte, eol byte) [][]byte {
	parts := bytes.Split(blob, []byte{eol})
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func containsBackref(pattern string) bool {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] == '\\' && pattern[i+1] >= '1' && pattern[i+1] <= '9' {
			return true
		}
	}
	return false
}

// shouldPromoteFixedStrings decides when fixed-strings matching must be
// promoted to basic regex matching, under any of three independent rules:
// whole-word matching needs word-boundary assertions a literal search can't
// express; a pattern with invalid encoding can't be matched as literal bytes
// against decoded input; and case folding over multibyte content can't be
// done as a cheap byte-for-byte literal comparison the way single-byte
// case folding can.
func shouldPromoteFixedStrings(lines [][]byte, opts Options) (bool, string) {
	if opts.WholeWord {
		return true, "whole-word matching under fixed strings requires regex promotion"
	}
	for _, line := range lines {
		if !validUTF8(line) {
			return true, "invalid encoding in fixed-strings pattern requires regex promotion"
		}
	}
	if !opts.IgnoreCase {
		return false, ""
	}
	for _, line := range lines {
		for _, r := range string(line) {
			if r > 0x7f {
				return true, "multibyte fold under -i requires regex promotion"
			}
		}
	}
	return false, ""
}

func validUTF8(b []byte) bool {
	for len(b) > 0 {
		r, size := decodeRuneSafe(b)
		if r == 0xFFFD && size == 1 {
			return false
		}
		b = b[size:]
	}
	return true
}

func decodeRuneSafe(b []byte) (rune, int) {
	if len(b) == 0 {
		return 0, 0
	}
	// Minimal UTF-8 decode that checks the lead byte and that each
	// continuation byte has the 10xxxxxx form; full rune semantics are not
	// needed here, only validity. Overlong forms and surrogates are not
	// rejected.
	c := b[0]
	switch {
	case c < 0x80:
		return rune(c), 1
	case c&0xE0 == 0xC0 && len(b) >= 2 && continuation(b[1:2]):
		return rune(c), 2
	case c&0xF0 == 0xE0 && len(b) >= 3 && continuation(b[1:3]):
		return rune(c), 3
	case c&0xF8 == 0xF0 && len(b) >= 4 && continuation(b[1:4]):
		return rune(c), 4
	default:
		return 0xFFFD, 1
	}
}

func continuation(b []byte) bool {
	for _, c := range b {
		if c&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// translate rewrites a single pattern from its dialect into the
// Perl/RE2-flavored syntax coregex and regexp2 both accept. Basic regular
// expressions treat ( ) { } | + ? as literal characters unless escaped;
// extended/awk/perl dialects already use the Perl convention. Fixed-strings
// quotes every metacharacter.
func translate(pat string, d Dialect) (string, error) {
	switch d {
	case FixedStrings:
		return quoteMeta(pat), nil
	case Basic:
		return basicToExtended(pat), nil
	case Extended, Awk, GNUAwk, PosixAwk, Perl:
		return pat, nil
	default:
		return pat, nil
	}
}

func quoteMeta(s string) string {
	const special = `\.+*?()|[]{}^$`
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(special, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// basicToExtended converts POSIX BRE escaping conventions to ERE/Perl ones:
// \( \) \{ \} \| become group/alternation/interval metacharacters, and the
// bare ( ) { } | become literals. \+ and \? become +, ?; bare + and ? are
// literal in BRE.
func basicToExtended(pat string) string {
	var b strings.Builder
	for i := 0; i < len(pat); i++ {
		c := pat[i]
		if c == '\\' && i+1 < len(pat) {
			next := pat[i+1]
			switch next {
			case '(', ')', '{', '}', '|', '+', '?':
				b.WriteByte(next)
				i++
				continue
			default:
				b.WriteByte(c)
				b.WriteByte(next)
				i++
				continue
			}
		}
		switch c {
		case '(', ')', '{', '}', '|', '+', '?':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// validateSyntax is a cheap pre-check used by callers that want a
// friendlier error than regexp2's before falling through to dfa/regexarray
// compilation; it is not required for correctness.
func validateSyntax(pat string) error {
	_, err := syntax.Parse(pat, syntax.Perl)
	return err
}
