// Package buffer implements a streaming buffer manager: a page-aligned,
// slack-padded ring that ingests an io.Reader (or, for
// regular files, an *os.File it can lseek on) without assuming anything
// about line length, carries partial trailing lines across refills, zaps
// NUL bytes before matching, and skips sparse-file holes when the
// descriptor supports SEEK_DATA.
package buffer

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const defaultPageSize = 32 * 1024

// machineWordSize is the tail padding every window guarantees past `end`,
// sized generously for word-aligned readers on any supported architecture.
const machineWordSize = 8

// Buffer is a page-aligned window over a byte stream. Begin and End mark
// the live data range within buf; the byte at buf[Begin-1] is always the
// eol sentinel (invariant i), and buf[End:End+machineWordSize] is always
// present and writable (invariant ii).
type Buffer struct {
	r    io.Reader
	file *os.File // non-nil when r is a regular, seekable file

	eol byte

	buf   []byte
	begin int
	end   int

	residue int // length of the unterminated trailing line carried from the previous Fill

	skipNuls            bool
	holeSkippingEnabled  bool
	sawHole              bool
	binary               bool
	encodingErrorSeen    bool
	eofSeen              bool

	sizeHint   int64 // reported file size, used to cap growth; <=0 if untrustworthy
	readOffset int64 // cumulative bytes consumed from the descriptor, for hole-skip seeking

	pageSize int
}

// New constructs a Buffer reading from r, using eol as the end-of-line
// byte (NUL under -z mode). If r is backed by a regular file, file should
// be the same descriptor so Fill can query its size and use SEEK_DATA to
// skip holes; pass nil for pipes and other non-seekable sources.
func New(r io.Reader, file *os.File, eol byte, skipNuls bool) *Buffer {
	b := &Buffer{
		r:                   r,
		file:                file,
		eol:                 eol,
		skipNuls:            skipNuls,
		holeSkippingEnabled: file != nil,
		pageSize:            defaultPageSize,
	}
	b.buf = make([]byte, b.pageSize+machineWordSize)
	b.buf[0] = eol // sentinel: the byte before begin=0 is conceptually the prior eol
	b.begin = 1
	b.end = 1

	if file != nil {
		if info, err := file.Stat(); err == nil && info.Mode().IsRegular() {
			b.sizeHint = info.Size()
		}
	}
	return b
}

// Bytes returns the live window [Begin, End).
func (b *Buffer) Bytes() []byte { return b.buf[b.begin:b.end] }

// Begin and End report the current window bounds within the internal
// buffer, for callers (the match engine) that need absolute indices
// rather than a re-sliced copy.
func (b *Buffer) Begin() int { return b.begin }
func (b *Buffer) End() int   { return b.end }

// Buf exposes the backing array directly; valid indices are
// [0, End()+machineWordSize).
func (b *Buffer) Buf() []byte { return b.buf }

// Binary reports whether a NUL byte or a hole has been observed: a file is
// declared binary on the first NUL or the first sparse hole, whichever
// comes first.
func (b *Buffer) Binary() bool { return b.binary }

// Residue reports the length of the unterminated trailing line currently
// held at the end of the window, i.e. data Fill will carry forward.
func (b *Buffer) Residue() int { return b.residue }

// BaseOffset reports the file-absolute byte offset of Begin(), so a caller
// computing -b byte offsets across multiple Fill calls can add a line's
// in-window start to a cumulative, file-wide position.
func (b *Buffer) BaseOffset() int64 {
	return b.readOffset - int64(b.end-b.begin)
}

// ErrDone is returned by Fill when the underlying reader is exhausted and
// no residue remains to flush.
var ErrDone = errors.New("buffer: exhausted")

// Fill computes the residue of the previous pass's partial trailing line,
// grows or reuses the buffer depending on available slack, copies the
// residue forward, reads a block, zaps NULs, and skips holes when the
// read came back all zero on a seekable, sparse-aware descriptor.
func (b *Buffer) Fill() error {
	if b.eofSeen {
		return ErrDone
	}

	save := b.findResidue()

	needed := save + b.pageSize
	capacity := len(b.buf) - machineWordSize

	if capacity-1 < needed {
		newCap := capacity
		if newCap < 1 {
			newCap = b.pageSize
		}
		for newCap < needed {
			newCap *= 2
		}
		if b.sizeHint > 0 {
			cap64 := int64(newCap)
			if cap64 > b.sizeHint+int64(b.pageSize) {
				newCap = int(b.sizeHint) + b.pageSize
				if newCap < needed {
					newCap = needed
				}
			}
		}
		newBuf := make([]byte, newCap+machineWordSize)
		newBuf[0] = b.eol
		copy(newBuf[1:1+save], b.buf[b.end-save:b.end])
		b.buf = newBuf
		b.begin = 1
		b.end = 1 + save
	} else {
		copy(b.buf[1:1+save], b.buf[b.end-save:b.end])
		b.begin = 1
		b.end = 1 + save
	}

	for {
		n, err := b.readBlock(b.buf[b.end : b.end+b.pageSize])
		if n == 0 && err != nil {
			if err != io.EOF {
				return err
			}
			if b.end == b.begin {
				return ErrDone
			}
			// Reader is exhausted; synthetically terminate a dangling final
			// line once so it is matched like any other, then signal
			// exhaustion on the next call instead of re-handing the same
			// residue back forever.
			if b.buf[b.end-1] != b.eol {
				b.buf[b.end] = b.eol
				b.end++
			}
			b.residue = 0
			b.eofSeen = true
			return nil
		}

		if n > 0 && b.skipNuls && allZero(b.buf[b.end:b.end+n]) {
			b.binary = true
			b.readOffset += int64(n)
			if b.holeSkippingEnabled {
				b.skipHole()
			}
			continue
		}

		b.end += n
		b.readOffset += int64(n)
		break
	}

	b.zapNuls()
	b.residue = b.findResidue()
	return nil
}

// findResidue scans backward from End for the nearest eol byte, returning
// the number of trailing bytes that form an incomplete line; these are
// preserved by the next Fill rather than re-read from the descriptor.
func (b *Buffer) findResidue() int {
	i := b.end
	for i > b.begin && b.buf[i-1] != b.eol {
		i--
	}
	return b.end - i
}

func (b *Buffer) readBlock(dst []byte) (int, error) {
	return b.r.Read(dst)
}

// skipHole queries the descriptor for the next data region past the
// current read offset and seeks there, implementing sparse-file hole
// skipping. On any failure it disables further hole skipping for this
// file (a sticky flag) rather than retrying forever.
func (b *Buffer) skipHole() bool {
	if b.file == nil {
		b.holeSkippingEnabled = false
		return false
	}
	fd := int(b.file.Fd())
	dataOffset, err := unix.Seek(fd, b.readOffset, unix.SEEK_DATA)
	if err != nil {
		b.holeSkippingEnabled = false
		return false
	}
	b.sawHole = true
	b.binary = true
	if dataOffset == b.readOffset {
		return false
	}
	b.readOffset = dataOffset
	if _, err := b.file.Seek(dataOffset, io.SeekStart); err != nil {
		b.holeSkippingEnabled = false
		return false
	}
	return true
}

// zapNuls marks the buffer binary on any NUL byte in the live window and,
// when skipNuls is set, overwrites each NUL with eol, the "zapper" that
// prevents arbitrarily long pseudo-lines in binary input. With skipNuls
// off (text mode) the NUL bytes are left in place.
func (b *Buffer) zapNuls() {
	for i := b.begin; i < b.end; i++ {
		if b.buf[i] == 0 {
			b.binary = true
			if b.skipNuls {
				b.buf[i] = b.eol
			}
		}
	}
}

func allZero(p []byte) bool {
	for _, c := range p {
		if c != 0 {
			return false
		}
	}
	return true
}

// MarkEncodingError sets the sticky per-file flag the line printer consults
// to suppress all further output once a multi-byte encoding error has been
// observed.
func (b *Buffer) MarkEncodingError() { b.encodingErrorSeen = true }

// EncodingErrorSeen reports whether MarkEncodingError has been called for
// this file.
func (b *Buffer) EncodingErrorSeen() bool { return b.encodingErrorSeen }

// SawHole reports whether a sparse-file hole was detected, independent of
// whether any NUL byte was also seen.
func (b *Buffer) SawHole() bool { return b.sawHole }
