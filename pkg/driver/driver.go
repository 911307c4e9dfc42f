// Package driver implements the top-level per-file orchestration: for
// each command-line path, resolve a descriptor, apply directory/device
// policy, detect the output-is-also-input condition, run the buffer
// manager and match engine cascade over it, and aggregate exit status.
package driver

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/coregrep/coregrep/pkg/buffer"
	"github.com/coregrep/coregrep/pkg/matchengine"
	"github.com/coregrep/coregrep/pkg/printer"
)

// BinaryPolicy selects the --binary-files behavior.
type BinaryPolicy int

const (
	BinaryAsBinary BinaryPolicy = iota
	BinaryAsText
	BinaryWithoutMatch
)

// DirAction selects how a directory argument is handled absent -r/-R.
type DirAction int

const (
	DirSkip DirAction = iota // -d skip (default)
	DirRead                  // -d read: try to read it as a file (grep's historical default, now an error on most systems)
	DirRecurse
)

// Options configures one driver invocation, independent of any single file.
type Options struct {
	Invert         bool
	CountOnly      bool
	ListMatching   bool
	ListNonMatch   bool
	MaxMatches     int // 0 = unlimited
	Quiet          bool
	Silent         bool // -s: suppress I/O diagnostics
	BinaryPolicy   BinaryPolicy
	DirAction      DirAction
	StdinLabel     string
	EOLByte        byte
	PosixlyCorrect bool
	BeforeContext  int // -B: lines of leading context (sequential mode only)
	AfterContext   int // -A: lines of trailing context (sequential mode only)
}

// Driver runs the cascade over one or more files, sharing a single match
// engine replica across sequential calls. Parallel callers should give
// each worker its own Driver built from engine.Fork().
type Driver struct {
	opts    Options
	engine  *matchengine.Engine
	printer *printer.Printer
	printOpts printer.Options

	stdoutDev stdoutIdentity

	sawError bool
}

// New builds a Driver. printOpts configures the line printer shared by
// every file this driver processes (Reset is called per file).
func New(opts Options, engine *matchengine.Engine, printOpts printer.Options) *Driver {
	d := &Driver{
		opts:      opts,
		engine:    engine,
		printer:   printer.New(printOpts, ""),
		printOpts: printOpts,
		stdoutDev: statStdout(),
	}
	return d
}

// FileResult summarizes the outcome of processing one file.
type FileResult struct {
	Path     string
	Matched  bool
	Count    int
	Err      error
	Skipped  bool // directory/device skipped by policy, not an error
}

// ProcessFile resolves path to a descriptor and runs the full cascade,
// writing rendered output to w. path == "-" reads standard input,
// substituting label (or Options.StdinLabel if label == "") in any
// filename field.
func (d *Driver) ProcessFile(path string, label string, w io.Writer) FileResult {
	if label == "" {
		label = path
	}
	if path == "-" {
		if label == "-" && d.opts.StdinLabel != "" {
			label = d.opts.StdinLabel
		}
		return d.scan(os.Stdin, nil, label, w)
	}

	info, err := os.Lstat(path)
	if err != nil {
		d.sawError = true
		return FileResult{Path: path, Err: err}
	}

	if info.IsDir() {
		switch d.opts.DirAction {
		case DirSkip:
			return FileResult{Path: path, Skipped: true}
		case DirRecurse:
			return FileResult{Path: path, Err: fmt.Errorf("%s: is a directory (recursion must be driven by the walk package)", path)}
		default:
			d.sawError = true
			return FileResult{Path: path, Err: fmt.Errorf("%s: is a directory", path)}
		}
	}

	if !info.Mode().IsRegular() && info.Mode()&os.ModeNamedPipe == 0 && info.Mode()&os.ModeDevice == 0 {
		return FileResult{Path: path, Skipped: true}
	}

	f, err := os.Open(path)
	if err != nil {
		d.sawError = true
		return FileResult{Path: path, Err: err}
	}
	defer f.Close()

	selfRefExempt := d.opts.Quiet || d.opts.ListMatching || d.opts.ListNonMatch || d.opts.MaxMatches == 1
	if !selfRefExempt && d.isSelfReference(f) {
		d.sawError = true
		return FileResult{Path: path, Err: fmt.Errorf("%s: input file is also the output", path)}
	}

	return d.scan(f, f, label, w)
}

// stdoutIdentity is the (device, inode) pair standard output was stat'd
// at startup, used for the self-reference check.
type stdoutIdentity struct {
	valid      bool
	dev, inode uint64
}

func (d *Driver) isSelfReference(f *os.File) bool {
	if !d.stdoutDev.valid {
		return false
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	dev, inode, ok := fileIdentity(info)
	return ok && dev == d.stdoutDev.dev && inode == d.stdoutDev.inode
}

// scan runs the buffer manager and match engine cascade over r (file,
// backed by osFile when seekable) and writes rendered output to w.
//
// Context lines (-A/-B/-C) only apply in the forward, non-invert cascade:
// GNU grep itself treats -v as mutually exclusive with context in
// practice, so inverted scans never buffer leading or trailing context.
func (d *Driver) scan(r io.Reader, osFile *os.File, label string, w io.Writer) FileResult {
	skipNuls := d.opts.BinaryPolicy != BinaryAsText
	buf := buffer.New(r, osFile, d.opts.EOLByte, skipNuls)
	d.printer.Reset(label)

	suppressLines := d.opts.CountOnly || d.opts.ListMatching || d.opts.ListNonMatch || d.opts.Quiet
	stopAtFirstMatch := d.opts.ListMatching || d.opts.ListNonMatch || d.opts.Quiet

	before, after := d.opts.BeforeContext, d.opts.AfterContext
	if d.opts.Invert {
		before, after = 0, 0
	}

	matchCount := 0
	var beforeRing [][2]int
	afterRemaining := 0
	lastPrintedEnd := -1

	// countedPos is the position, within the current window, up to which
	// every eol byte has already been folded into either a priorNewlines
	// count or pendingNewlines. pendingNewlines carries eol counts that
	// span a Fill refill, since countedPos itself is only meaningful
	// within one window's indices.
	countedPos := 0
	pendingNewlines := 0
	pendingCRs := int64(0)

	fail := func(err error) FileResult {
		d.sawError = true
		return FileResult{Path: label, Count: matchCount, Matched: matchCount > 0, Err: err}
	}

	// priorNewlinesTo computes the priorNewlines argument for a line
	// starting at start: every eol crossed since the last counted line,
	// plus one for this line's own terminator, matching the running
	// line-count convention in pkg/printer.
	priorNewlinesTo := func(raw []byte, start int) int {
		n := pendingNewlines
		for i := countedPos; i < start; i++ {
			if raw[i] == d.opts.EOLByte {
				n++
			}
		}
		pendingNewlines = 0
		crs := pendingCRs + printer.CountCRs(raw[countedPos:start])
		pendingCRs = 0
		d.printer.AccountCRs(crs)
		return n + 1
	}
	markCounted := func(end int) {
		countedPos = end + 1
	}

	separatorIfGap := func(nextStart int) error {
		if suppressLines || (before == 0 && after == 0) {
			return nil
		}
		if lastPrintedEnd >= 0 && nextStart > lastPrintedEnd+1 {
			return d.printer.GroupSeparator(w)
		}
		return nil
	}
	emitContext := func(raw []byte, start, end int) error {
		if suppressLines {
			return nil
		}
		prior := priorNewlinesTo(raw, start)
		if err := d.printer.PrintLine(w, raw, start, end, nil, prior, '-'); err != nil {
			return err
		}
		markCounted(end)
		lastPrintedEnd = end
		return nil
	}

outer:
	for {
		if err := buf.Fill(); err != nil {
			if errors.Is(err, buffer.ErrDone) {
				break
			}
			return fail(err)
		}

		d.printer.SetBase(buf.BaseOffset() - int64(buf.Begin()))

		if buf.Binary() && d.opts.BinaryPolicy == BinaryWithoutMatch {
			pendingNewlines += countEolBytes(buf.Buf(), buf.Begin(), buf.End(), d.opts.EOLByte)
			pendingCRs += printer.CountCRs(buf.Buf()[buf.Begin():buf.End()])
			continue
		}

		// The unterminated trailing line (residue) is carried into the next
		// window by Fill, so it is scanned there, once, rather than here.
		pos := buf.Begin()
		limit := buf.End() - buf.Residue()
		raw := buf.Buf()
		countedPos = pos

		for pos < limit {
			if d.opts.MaxMatches > 0 && matchCount >= d.opts.MaxMatches {
				break outer
			}

			res, ok, err := d.engine.Next(raw, pos, limit, -1)
			if err != nil {
				return fail(err)
			}

			if !d.opts.Invert {
				gapEnd := limit
				if ok {
					gapEnd = res.LineStart
				}

				// The gap between the previous match and this one first
				// feeds any still-owed trailing context, then anything
				// left over becomes candidate leading context for this
				// match, keeping only the nearest `before` lines.
				cursor := pos
				for cursor < gapEnd && afterRemaining > 0 {
					lineEnd := scanLineEnd(raw, cursor, gapEnd, d.opts.EOLByte)
					if err := separatorIfGap(cursor); err != nil {
						return fail(err)
					}
					if err := emitContext(raw, cursor, lineEnd); err != nil {
						return fail(err)
					}
					afterRemaining--
					cursor = lineEnd + 1
				}
				afterRemaining = 0

				beforeRing = beforeRing[:0]
				for cursor < gapEnd {
					lineEnd := scanLineEnd(raw, cursor, gapEnd, d.opts.EOLByte)
					if before > 0 {
						beforeRing = append(beforeRing, [2]int{cursor, lineEnd})
						if len(beforeRing) > before {
							beforeRing = beforeRing[1:]
						}
					}
					cursor = lineEnd + 1
				}

				if !ok {
					break
				}

				firstOfBlock := res.LineStart
				if len(beforeRing) > 0 {
					firstOfBlock = beforeRing[0][0]
				}
				if err := separatorIfGap(firstOfBlock); err != nil {
					return fail(err)
				}
				for _, bl := range beforeRing {
					if err := emitContext(raw, bl[0], bl[1]); err != nil {
						return fail(err)
					}
				}
				beforeRing = beforeRing[:0]

				prior := priorNewlinesTo(raw, res.LineStart)
				if err := d.emit(w, raw, res, buf.Binary(), suppressLines, prior); err != nil {
					return fail(err)
				}
				markCounted(res.LineEnd)
				lastPrintedEnd = res.LineEnd
				matchCount++
				afterRemaining = after
				pos = advancePastLine(raw, res.LineEnd, limit, d.opts.EOLByte)
				if stopAtFirstMatch {
					break outer
				}
				continue
			}

			// Invert mode: every line up to the next match (or limit) that
			// the cascade did NOT select is itself emitted.
			nextMatchStart := limit
			if ok {
				nextMatchStart = res.LineStart
			}
			for pos < nextMatchStart {
				lineEnd := scanLineEnd(raw, pos, nextMatchStart, d.opts.EOLByte)
				prior := priorNewlinesTo(raw, pos)
				if err := d.emitLine(w, raw, pos, lineEnd, suppressLines, prior); err != nil {
					return fail(err)
				}
				markCounted(lineEnd)
				matchCount++
				pos = lineEnd + 1
				if stopAtFirstMatch {
					break outer
				}
				if d.opts.MaxMatches > 0 && matchCount >= d.opts.MaxMatches {
					break
				}
			}
			if !ok {
				break
			}
			pos = advancePastLine(raw, res.LineEnd, limit, d.opts.EOLByte)
		}

		pendingNewlines += countEolBytes(raw, countedPos, limit, d.opts.EOLByte)
		pendingCRs += printer.CountCRs(raw[countedPos:limit])
	}

	if buf.Binary() && d.opts.BinaryPolicy == BinaryAsBinary && matchCount > 0 && !d.opts.Invert && !suppressLines {
		printer.BinaryNotice(w, label)
	}

	if err := d.writeSummary(w, label, matchCount); err != nil {
		return fail(err)
	}

	return FileResult{Path: label, Count: matchCount, Matched: matchCount > 0}
}

// writeSummary renders the -c/-l/-L terminal output that replaces normal
// per-line printing in those modes. -q never writes anything.
func (d *Driver) writeSummary(w io.Writer, label string, matchCount int) error {
	switch {
	case d.opts.Quiet:
		return nil
	case d.opts.ListMatching:
		if matchCount == 0 {
			return nil
		}
		_, err := fmt.Fprintf(w, "%s\n", label)
		return err
	case d.opts.ListNonMatch:
		if matchCount > 0 {
			return nil
		}
		_, err := fmt.Fprintf(w, "%s\n", label)
		return err
	case d.opts.CountOnly:
		if d.printOpts.WithFilename {
			_, err := fmt.Fprintf(w, "%s:%d\n", label, matchCount)
			return err
		}
		_, err := fmt.Fprintf(w, "%d\n", matchCount)
		return err
	}
	return nil
}

func (d *Driver) emit(w io.Writer, raw []byte, res matchengine.Result, binary bool, suppress bool, prior int) error {
	if suppress {
		return nil
	}
	if binary && d.opts.BinaryPolicy == BinaryAsBinary {
		return nil
	}
	if d.printer.Suppressed() {
		return nil
	}
	spans, err := d.engine.FindAllInLine(raw[res.LineStart:res.LineEnd])
	if err != nil {
		return err
	}
	pspans := make([]printer.Span, len(spans))
	for i, s := range spans {
		pspans[i] = printer.Span{Start: s.Start, End: s.End}
	}
	return d.printer.PrintLine(w, raw, res.LineStart, res.LineEnd, pspans, prior, ':')
}

func (d *Driver) emitLine(w io.Writer, raw []byte, lineStart, lineEnd int, suppress bool, prior int) error {
	if suppress {
		return nil
	}
	return d.printer.PrintLine(w, raw, lineStart, lineEnd, nil, prior, ':')
}

// countEolBytes counts eol bytes in raw[from:to), used to fold the
// trailing, never-printed portion of a window into pendingNewlines before
// the buffer manager slides forward to the next one.
func countEolBytes(raw []byte, from, to int, eol byte) int {
	n := 0
	for i := from; i < to; i++ {
		if raw[i] == eol {
			n++
		}
	}
	return n
}

func scanLineEnd(raw []byte, pos, limit int, eol byte) int {
	i := pos
	for i < limit && raw[i] != eol {
		i++
	}
	return i
}

func advancePastLine(raw []byte, lineEnd, limit int, eol byte) int {
	if lineEnd < limit && raw[lineEnd] == eol {
		return lineEnd + 1
	}
	return lineEnd
}

// SawError reports whether any per-file I/O error has been observed since
// construction.
func (d *Driver) SawError() bool { return d.sawError }
