// Package row splits one delimited text line into addressable fields.
//
// A Row owns the text of a single physical line. Field boundaries are
// computed lazily on first access and every field is a substring view of
// the owned line, so splitting never copies field bytes.
//
// A field of zero length is reported as absent. Absent and out-of-range
// fields are indistinguishable to callers.
package row

// Row is one physical input line plus its lazily computed field views.
type Row struct {
	line   string
	sep    byte
	lineNo int

	fields []string
	split  bool
}

// New creates a Row over line using sep as the field separator.
// lineNo is the 1-based physical line number reported by the line source.
func New(line string, sep byte, lineNo int) *Row {
	return &Row{line: line, sep: sep, lineNo: lineNo}
}

// LineNo returns the 1-based physical line number of the row.
func (r *Row) LineNo() int {
	return r.lineNo
}

// Text returns the line with its terminator and trailing separators removed.
func (r *Row) Text() string {
	r.ensureSplit()
	return r.line
}

// Field returns the value at index i.
// The second result is false when i is out of range or the field is empty.
func (r *Row) Field(i int) (string, bool) {
	r.ensureSplit()
	if i < 0 || i >= len(r.fields) {
		return "", false
	}
	f := r.fields[i]
	if f == "" {
		return "", false
	}
	return f, true
}

// Len returns the number of fields, including empty ones.
func (r *Row) Len() int {
	r.ensureSplit()
	return len(r.fields)
}

func (r *Row) ensureSplit() {
	if r.split {
		return
	}
	r.line = Trim(r.line, r.sep)
	r.fields = Split(r.line, r.sep, r.fields[:0])
	r.split = true
}

// Trim removes one trailing line terminator ("\n", optionally preceded by
// "\r") and then any trailing run of sep bytes.
func Trim(line string, sep byte) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	for n > 0 && line[n-1] == sep {
		n--
	}
	return line[:n]
}

// Split appends the sep-separated fields of line to dst and returns it.
// An empty line has no fields.
func Split(line string, sep byte, dst []string) []string {
	if line == "" {
		return dst
	}
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] == sep {
			dst = append(dst, line[start:i])
			start = i + 1
		}
	}
	return append(dst, line[start:])
}
