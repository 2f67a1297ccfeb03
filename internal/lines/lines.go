// Package lines splits newline-delimited byte streams into lines.
//
// A line is the bytes between two '\n' delimiters, delimiter excluded. No other
// byte is special, '\r' included. A final line without a trailing '\n' is
// still a line.
package lines

import (
	"bufio"
	"bytes"
	"io"
	"iter"
)

// readerBufferSize is the bufio buffer used for streaming reads. Lines longer
// than this are reassembled in a side buffer.
const readerBufferSize = 256 << 10

// Reader yields lines from an io.Reader.
type Reader struct {
	br   *bufio.Reader
	long []byte // reassembly buffer for lines longer than the bufio buffer
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, readerBufferSize)}
}

// Next returns the next line without its delimiter. The returned slice is only
// valid until the next call. At the end of input Next returns io.EOF.
func (r *Reader) Next() ([]byte, error) {
	line, err := r.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		r.long = append(r.long[:0], line...)
		for err == bufio.ErrBufferFull {
			line, err = r.br.ReadSlice('\n')
			r.long = append(r.long, line...)
		}
		line = r.long
	}

	switch err {
	case nil:
		return line[:len(line)-1], nil
	case io.EOF:
		if len(line) == 0 {
			return nil, io.EOF
		}
		// Unterminated final line.
		return line, nil
	default:
		return nil, err
	}
}

// All iterates over the lines of an in-memory buffer. Yielded slices alias
// data.
func All(data []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for len(data) > 0 {
			i := bytes.IndexByte(data, '\n')
			if i < 0 {
				yield(data)
				return
			}
			if !yield(data[:i]) {
				return
			}
			data = data[i+1:]
		}
	}
}

// Count returns the number of lines in data.
func Count(data []byte) int {
	n := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}
