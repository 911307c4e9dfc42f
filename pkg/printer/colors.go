package printer

import (
	"os"
	"strings"

	"github.com/fatih/color"
)

// sgr codes grep's default GREP_COLORS dictionary assigns, used whenever
// the environment does not override a given key (ground truth: GNU grep's
// grepcolors[] default table).
var defaultColors = map[string]string{
	"sl": "",      // selected line
	"cx": "",      // context line
	"rv": "",      // sentinel: presence means reverse sl/cx in -v mode
	"mt": "01;31", // matching text, both contexts (overridden by ms/mc if present)
	"ms": "01;31", // matching text, selected line
	"mc": "01;31", // matching text, context line
	"fn": "35",    // filename
	"ln": "32",    // line number
	"se": "36",    // separator
	"bn": "32",    // byte offset
	"ne": "",      // sentinel: presence means non-greedy pairing of mt
}

// Colors is the parsed, resolved GREP_COLORS capability dictionary,
// including GREP_COLOR legacy fallback. SGR escape generation is
// hand-rolled here from the parsed key/value capabilities rather than
// delegated to fatih/color's fixed attribute enum, because GREP_COLORS
// carries arbitrary semicolon-joined SGR parameter strings (e.g.
// "01;31") that don't map onto a small attribute set; fatih/color is
// used only for its NoColor capability/TTY detection, which is the part
// of this decision that actually benefits from a shared, tested
// implementation.
type Colors struct {
	enabled bool
	caps    map[string]string
}

// LoadColors resolves the effective color dictionary: the built-in
// defaults, then a GREP_COLOR legacy single value folded into mt/ms/mc,
// then every key GREP_COLORS sets, which overrides both. enabled
// additionally gates everything off
// when output isn't going to a capable terminal (fatih/color's
// color.NoColor, which itself already accounts for NO_COLOR and
// non-tty stdout).
func LoadColors(enabled bool) *Colors {
	c := &Colors{enabled: enabled && !color.NoColor, caps: map[string]string{}}
	for k, v := range defaultColors {
		c.caps[k] = v
	}

	if legacy, ok := os.LookupEnv("GREP_COLOR"); ok && legacy != "" {
		c.caps["ms"] = legacy
		c.caps["mc"] = legacy
		c.caps["mt"] = legacy
	}

	if gc, ok := os.LookupEnv("GREP_COLORS"); ok {
		for _, kv := range strings.Split(gc, ":") {
			k, v, found := strings.Cut(kv, "=")
			if !found {
				continue
			}
			k = strings.TrimSpace(k)
			c.caps[k] = v
			// mt supplies both ms and mc; entries apply left to right, so
			// an ms= or mc= later in the same string overrides it again.
			if k == "mt" {
				c.caps["ms"] = v
				c.caps["mc"] = v
			}
		}
	}

	return c
}

func explicitKey(spec, key string) (string, bool) {
	for _, kv := range strings.Split(spec, ":") {
		k, v, found := strings.Cut(kv, "=")
		if found && strings.TrimSpace(k) == key {
			return v, true
		}
	}
	return "", false
}

// wrap returns s wrapped in the SGR escape for capability key, or s
// unchanged if colors are disabled or the capability is empty.
func (c *Colors) wrap(key, s string) string {
	if !c.enabled {
		return s
	}
	code := c.caps[key]
	if code == "" {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// Match wraps a matched span; invert selects the context-match color (mc)
// instead of the selected-match color (ms), used for -v's context lines.
func (c *Colors) Match(s string, invert bool) string {
	if invert {
		return c.wrap("mc", s)
	}
	return c.wrap("ms", s)
}

func (c *Colors) Filename(s string) string  { return c.wrap("fn", s) }
func (c *Colors) LineNo(s string) string    { return c.wrap("ln", s) }
func (c *Colors) ByteOff(s string) string   { return c.wrap("bn", s) }
func (c *Colors) Separator(s string) string { return c.wrap("se", s) }

// Enabled reports whether any coloring will be emitted.
func (c *Colors) Enabled() bool { return c.enabled }
