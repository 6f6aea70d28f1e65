// Package source provides line sources for delimited input files.
//
// A line source delivers physical lines one at a time and counts them.
// Blank lines are content: end of stream is reported only when no further
// bytes exist. Inputs that start with the gzip magic bytes (0x1f 0x8b) are
// decompressed transparently.
package source

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
)

// StdinPath is the path that selects standard input.
const StdinPath = "-"

const readBufferSize = 64 * 1024

var gzipMagic = [2]byte{0x1f, 0x8b}

// LineSource yields physical lines from one input.
type LineSource interface {
	// ReadLine returns the next line including its terminator, if any.
	// It returns io.EOF once no bytes remain.
	ReadLine() (string, error)

	// LineNumber returns the 1-based number of the last line returned.
	LineNumber() int

	// Name identifies the input in diagnostics.
	Name() string

	Close() error
}

// InputError reports an input that cannot be opened or read.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError returns true if err is or wraps an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// Open opens path as a line source, detecting gzip by its magic bytes.
// The path "-" reads standard input, which is never closed.
func Open(path string) (LineSource, error) {
	if path == StdinPath {
		return NewReader("stdin", io.NopCloser(os.Stdin))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}
	src, err := NewReader(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// NewReader wraps rc as a line source named name. Closing the source
// closes rc.
func NewReader(name string, rc io.ReadCloser) (LineSource, error) {
	br := bufio.NewReaderSize(rc, readBufferSize)
	lr := &lineReader{name: name, closers: []io.Closer{rc}}

	magic, _ := br.Peek(len(gzipMagic))
	if len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, &InputError{Path: name, Err: fmt.Errorf("gzip header: %w", err)}
		}
		lr.closers = append([]io.Closer{gz}, lr.closers...)
		br = bufio.NewReaderSize(gz, readBufferSize)
	}
	lr.br = br
	return lr, nil
}

type lineReader struct {
	name    string
	br      *bufio.Reader
	closers []io.Closer
	lineNo  int
	eof     bool
}

func (r *lineReader) ReadLine() (string, error) {
	if r.eof {
		return "", io.EOF
	}
	line, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", &InputError{Path: r.name, Err: fmt.Errorf("line %d: %w", r.lineNo+1, err)}
		}
		r.eof = true
		if line == "" {
			return "", io.EOF
		}
	}
	r.lineNo++
	return line, nil
}

func (r *lineReader) LineNumber() int {
	return r.lineNo
}

func (r *lineReader) Name() string {
	return r.name
}

func (r *lineReader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
