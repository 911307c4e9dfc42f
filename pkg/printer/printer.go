// Package printer implements the line printer: head/middle/tail rendering
// of one matched (or, in -v mode, unmatched) line, with optional filename,
// line-number, and byte-offset head fields, intra-line match coloring or
// only-matching extraction in the middle phase, and a DOS-mode CR-
// adjustment and sticky encoding-error suppression policy that pairs with
// the buffer manager's own conventions.
package printer

import (
	"fmt"
	"io"
)

// Span is one intra-line match the caller has already resolved (typically
// via matchengine.Engine.FindAllInLine), used by the middle phase to color
// or extract each occurrence.
type Span struct {
	Start, End int
}

// Options configures per-file rendering.
type Options struct {
	WithFilename bool
	LineNumber   bool
	ByteOffset   bool
	OnlyMatching bool
	Colorize     bool
	Invert       bool // -v: printer is rendering non-matching lines
	DOSMode      bool // strip a trailing CR before computing tail/byte offset
	EOLByte      byte
}

// DefaultOptions returns grep's conventional rendering defaults.
func DefaultOptions() Options {
	return Options{EOLByte: '\n'}
}

// Printer renders matched lines for one file. It is not safe for
// concurrent use by multiple goroutines sharing the same running line
// count; the parallel traversal package gives each worker -- hence each
// Printer -- its own replica.
type Printer struct {
	opts   Options
	colors *Colors

	filename string

	lineCount int

	byteOffset int64
	crStripped int64

	encodingErrorSuppressed bool
	anyMatchThisFile        bool
}

// New builds a Printer for one file's worth of output.
func New(opts Options, filename string) *Printer {
	return &Printer{
		opts:     opts,
		colors:   LoadColors(opts.Colorize),
		filename: filename,
	}
}

// Reset rewinds the printer's running counters for reuse against a new
// file, mirroring the per-file create/destroy lifecycle of the rest of
// the pipeline.
func (p *Printer) Reset(filename string) {
	p.filename = filename
	p.lineCount = 0
	p.byteOffset = 0
	p.crStripped = 0
	p.encodingErrorSuppressed = false
	p.anyMatchThisFile = false
}

// Suppressed reports whether this file's output is currently suppressed
// by the sticky encoding-error flag.
func (p *Printer) Suppressed() bool { return p.encodingErrorSuppressed }

// SuppressOnEncodingError sets the sticky per-file flag; all further
// PrintLine calls for this file become no-ops until Reset.
func (p *Printer) SuppressOnEncodingError() { p.encodingErrorSuppressed = true }

// SetBase sets the cumulative byte offset of buf[0] within the file, so
// PrintLine's byte-offset field reflects the file-absolute position even
// as the buffer manager slides its window forward across refills.
func (p *Printer) SetBase(base int64) { p.byteOffset = base }

// AccountCRs folds n newly-crossed CR-before-LF bytes (as counted by
// CountCRs over content the buffer manager has moved past) into the
// running total that DOS-mode byte offsets are adjusted by, so -b reports
// offsets as if each CRLF pair were a single newline byte rather than
// counting the CR GNU grep's own DOS-mode convention treats as invisible.
func (p *Printer) AccountCRs(n int64) {
	if !p.opts.DOSMode {
		return
	}
	p.crStripped += n
}

// AnyMatch reports whether any line has been printed for this file since
// the last Reset (used for the end-of-file "binary file matches" notice
// and for exit-status aggregation).
func (p *Printer) AnyMatch() bool { return p.anyMatchThisFile }

// PrintLine renders one line: head, middle, tail, in that order.
// buf is the full scan window; lineStart/lineEnd bound the line
// (excluding the eol byte); matches are the intra-line spans to color or
// extract, already resolved against buf, empty when not colorizing and
// not -o. priorNewlines is the count of eol bytes between the last
// PrintLine call's line and this one, used to keep the running line
// count correct even when lines are skipped between matches. sep is the
// head field separator: ':' for a selected line, '-' for a context line.
func (p *Printer) PrintLine(w io.Writer, buf []byte, lineStart, lineEnd int, matches []Span, priorNewlines int, sep byte) error {
	if p.encodingErrorSuppressed {
		return nil
	}
	p.anyMatchThisFile = true
	p.lineCount += priorNewlines

	if err := p.printHead(w, buf, lineStart, sep); err != nil {
		return err
	}

	line := buf[lineStart:lineEnd]
	if p.opts.DOSMode && len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	if p.opts.OnlyMatching {
		return p.printOnlyMatching(w, buf, lineStart, matches)
	}
	return p.printMiddleAndTail(w, line, matches)
}

// GroupSeparator writes the "--" line GNU grep emits between non-adjacent
// blocks of context when any context option is active.
func (p *Printer) GroupSeparator(w io.Writer) error {
	_, err := io.WriteString(w, "--\n")
	return err
}

// printHead renders the filename, line-number, and byte-offset fields.
func (p *Printer) printHead(w io.Writer, buf []byte, lineStart int, fieldSep byte) error {
	sep := string(fieldSep)
	first := true

	emit := func(field string) error {
		if !first {
			if _, err := io.WriteString(w, p.colors.Separator(sep)); err != nil {
				return err
			}
		}
		first = false
		_, err := io.WriteString(w, field)
		return err
	}

	if p.opts.WithFilename {
		if err := emit(p.colors.Filename(p.filename)); err != nil {
			return err
		}
	}
	if p.opts.LineNumber {
		if err := emit(p.colors.LineNo(fmt.Sprintf("%d", p.lineCount))); err != nil {
			return err
		}
	}
	if p.opts.ByteOffset {
		off := p.byteOffset + int64(lineStart)
		if p.opts.DOSMode {
			off = AdjustByteOffsetForCRLF(off, p.crStripped)
		}
		if err := emit(p.colors.ByteOff(fmt.Sprintf("%d", off))); err != nil {
			return err
		}
	}
	if !first {
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
	}
	return nil
}

// printMiddleAndTail colors each match span in line, or emits the line
// unmodified when no coloring is active.
func (p *Printer) printMiddleAndTail(w io.Writer, line []byte, matches []Span) error {
	if !p.colors.Enabled() || len(matches) == 0 {
		_, err := w.Write(line)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte{p.opts.EOLByte})
		return err
	}

	pos := 0
	for _, m := range matches {
		if m.Start > len(line) || m.End > len(line) || m.Start < pos {
			continue
		}
		if _, err := w.Write(line[pos:m.Start]); err != nil {
			return err
		}
		colored := p.colors.Match(string(line[m.Start:m.End]), p.opts.Invert)
		if _, err := io.WriteString(w, colored); err != nil {
			return err
		}
		pos = m.End
		if m.End == m.Start {
			// Empty match: advance one byte and defer emission until a
			// non-empty match or end-of-line is reached.
			if pos < len(line) {
				if _, err := w.Write(line[pos : pos+1]); err != nil {
					return err
				}
				pos++
			}
		}
	}
	if _, err := w.Write(line[pos:]); err != nil {
		return err
	}
	_, err := w.Write([]byte{p.opts.EOLByte})
	return err
}

// printOnlyMatching implements -o: each match span is printed on its own
// line instead of the containing line.
func (p *Printer) printOnlyMatching(w io.Writer, buf []byte, lineStart int, matches []Span) error {
	for _, m := range matches {
		abs := Span{Start: lineStart + m.Start, End: lineStart + m.End}
		text := buf[abs.Start:abs.End]
		if p.colors.Enabled() {
			if _, err := io.WriteString(w, p.colors.Match(string(text), p.opts.Invert)); err != nil {
				return err
			}
		} else if _, err := w.Write(text); err != nil {
			return err
		}
		if _, err := w.Write([]byte{p.opts.EOLByte}); err != nil {
			return err
		}
	}
	return nil
}

// BinaryNotice renders the synthetic "binary file matches" line for a file
// whose binary-files policy is "binary".
func BinaryNotice(w io.Writer, filename string) error {
	_, err := fmt.Fprintf(w, "binary file %s matches\n", filename)
	return err
}

// AdjustByteOffsetForCRLF reduces a cumulative byte offset by the number
// of CR bytes stripped so far when DOS mode is active.
func AdjustByteOffsetForCRLF(offset int64, crStrippedSoFar int64) int64 {
	return offset - crStrippedSoFar
}

// CountCRs returns the number of CR bytes immediately preceding an LF
// within window, used to keep the DOS-mode running CR count current as
// new data is scanned.
func CountCRs(window []byte) int64 {
	var n int64
	for i := 0; i < len(window); i++ {
		if window[i] == '\r' && i+1 < len(window) && window[i+1] == '\n' {
			n++
		}
	}
	return n
}
