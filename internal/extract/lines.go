package extract

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// DefaultMaxLineBytes caps a single physical line.
const DefaultMaxLineBytes = 1 << 20

// ErrLineTooLong reports a line longer than Options.MaxLineBytes.
var ErrLineTooLong = errors.New("extract: line too long")

// lineReader splits a decoded stream into records, one per physical line.
// Quotes are ordinary characters; a field never spans lines.
type lineReader struct {
	r     *bufio.Reader
	delim string
	max   int
	long  []byte // reassembles lines longer than the bufio buffer
}

func newLineReader(r io.Reader, delim rune, max int) *lineReader {
	if max <= 0 {
		max = DefaultMaxLineBytes
	}
	return &lineReader{
		r:     bufio.NewReaderSize(r, readBufferSize),
		delim: string(delim),
		max:   max,
	}
}

// next returns the fields of the next non-blank line, or io.EOF. A last line
// without a trailing newline is still returned.
func (lr *lineReader) next() ([]string, error) {
	for {
		line, err := lr.readLine()
		if err != nil && (!errors.Is(err, io.EOF) || len(line) == 0) {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		return strings.Split(string(line), lr.delim), nil
	}
}

// readLine returns one line without its "\n" or "\r\n". The slice is only
// valid until the next call.
func (lr *lineReader) readLine() ([]byte, error) {
	lr.long = lr.long[:0]
	for {
		frag, err := lr.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if len(lr.long)+len(frag) > lr.max {
				return nil, ErrLineTooLong
			}
			lr.long = append(lr.long, frag...)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line := frag
		if len(lr.long) > 0 {
			lr.long = append(lr.long, frag...)
			line = lr.long
		}
		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) > lr.max {
			return nil, ErrLineTooLong
		}
		return line, err
	}
}
