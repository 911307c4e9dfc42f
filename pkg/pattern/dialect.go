// Package pattern compiles a newline-separated blob of patterns into the
// artifacts the rest of coregrep needs: a DFA-backed automaton, a Keyword
// Set prefilter, and a back-reference-capable regex array fallback.
package pattern

// Dialect selects the regex syntax a pattern blob is interpreted under.
type Dialect int

const (
	// Basic is POSIX basic regular expressions (grep -G, the default).
	Basic Dialect = iota
	// Extended is POSIX extended regular expressions (grep -E).
	Extended
	// Awk is the awk dialect (close to Extended with a few escape differences).
	Awk
	// GNUAwk is gawk's dialect.
	GNUAwk
	// PosixAwk is POSIX awk's dialect.
	PosixAwk
	// Perl is Perl-compatible regular expressions (grep -P).
	Perl
	// FixedStrings treats each pattern line as a literal string (grep -F).
	FixedStrings
)

func (d Dialect) String() string {
	switch d {
	case Basic:
		return "basic"
	case Extended:
		return "extended"
	case Awk:
		return "awk"
	case GNUAwk:
		return "gnu-awk"
	case PosixAwk:
		return "posix-awk"
	case Perl:
		return "perl"
	case FixedStrings:
		return "fixed-strings"
	default:
		return "unknown"
	}
}
