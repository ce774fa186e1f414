package tcp

import (
	"bytes"

	"github.com/czx-lab/garuda/network"
)

var defaultMaxLineSize = 16 << 20

// LineParser accumulates stream bytes and yields newline-terminated lines.
// It is not safe for concurrent use; the receive loop owns it.
type LineParser struct {
	buf []byte
	// Maximum bytes of a pending line without a newline (0: no limit)
	maxSize int
	// set while dropping the rest of an oversized line
	skipping bool
}

func NewLineParser(maxSize int) *LineParser {
	return &LineParser{
		maxSize: maxSize,
	}
}

// Feed appends b to the pending buffer. When the unterminated tail grows
// beyond the max size it is dropped up to its next newline and
// network.ErrLineTooLong is returned; complete lines already buffered are kept.
func (p *LineParser) Feed(b []byte) error {
	if p.skipping {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			return nil
		}
		p.skipping = false
		b = b[i+1:]
	}

	p.buf = append(p.buf, b...)
	if p.maxSize <= 0 {
		return nil
	}

	last := bytes.LastIndexByte(p.buf, '\n')
	if len(p.buf)-(last+1) <= p.maxSize {
		return nil
	}

	p.buf = p.buf[:last+1]
	p.skipping = true
	return network.ErrLineTooLong
}

// Next pops the oldest complete line, newline included.
func (p *LineParser) Next() (string, bool) {
	i := bytes.IndexByte(p.buf, '\n')
	if i < 0 {
		return "", false
	}

	line := string(p.buf[:i+1])
	n := copy(p.buf, p.buf[i+1:])
	p.buf = p.buf[:n]

	return line, true
}

// Len returns the number of buffered bytes.
func (p *LineParser) Len() int {
	return len(p.buf)
}

func (p *LineParser) Reset() {
	p.buf = p.buf[:0]
	p.skipping = false
}
