package pattern

// Source describes one contributor to the pattern blob: either a literal
// -e argument or the contents of a -f file. Name is used in diagnostics;
// for -e patterns it is conventionally empty or "-e".
type Source struct {
	Name string
	Text string
}

// lineInfo records which file and line number a single split pattern line
// (by index into the final blob) came from.
type lineInfo struct {
	file string
	line int
}

// sourceMap maps the index of a pattern line (after splitting the blob on
// the end-of-line byte) back to the file:lineno that produced it, so a
// per-pattern compile error can carry a resolved file:lineno prefix.
type sourceMap struct {
	lines []lineInfo
}

// buildSourceMap concatenates sources into a single blob (end-of-line
// delimited) and records, for every resulting pattern line, which source
// file and line number it came from.
func buildSourceMap(sources []Source, eol byte) (blob []byte, sm *sourceMap) {
	sm = &sourceMap{}
	var b []byte
	for _, s := range sources {
		name := s.Name
		if name == "" {
			name = "(command line)"
		}
		text := s.Text
		line := 1
		start := 0
		for i := 0; i < len(text); i++ {
			if text[i] == eol {
				sm.lines = append(sm.lines, lineInfo{file: name, line: line})
				b = append(b, text[start:i]...)
				b = append(b, eol)
				line++
				start = i + 1
			}
		}
		if start < len(text) {
			sm.lines = append(sm.lines, lineInfo{file: name, line: line})
			b = append(b, text[start:]...)
			b = append(b, eol)
		}
	}
	return b, sm
}

// resolve returns the "file:lineno" pair for the given pattern-line index.
func (sm *sourceMap) resolve(patternIndex int) (file string, lineno int) {
	if patternIndex < 0 || patternIndex >= len(sm.lines) {
		return "(command line)", 1
	}
	li := sm.lines[patternIndex]
	return li.file, li.line
}
