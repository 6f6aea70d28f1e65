package join

import (
	"github.com/roach88/filterx/internal/row"
	"github.com/roach88/filterx/internal/stream"
)

func (e *Engine) emit() error {
	if e.opts.Mode == ModeRows {
		return e.emitRows()
	}
	return e.emitColumns()
}

// emitColumns writes the matched groups side by side. Line n holds row n
// of every stream, in engine order; streams that did not match, or whose
// group is shorter than n+1 rows, contribute placeholders.
func (e *Engine) emitColumns() error {
	rows := 0
	for _, s := range e.all {
		if s.Status() == stream.StatusMatched && len(s.Columns()) > 0 && s.RowCap() > rows {
			rows = s.RowCap()
		}
	}

	for n := 0; n < rows; n++ {
		buf := e.line[:0]
		for _, s := range e.all {
			var r *row.Row
			if s.Status() == stream.StatusMatched && n < s.RowCap() {
				r = s.Row(n)
			}
			buf = e.appendColumns(buf, s, r, s.Columns())
		}
		if err := e.writeLine(buf); err != nil {
			return err
		}
	}
	return nil
}

// emitRows writes each buffered row of each matched stream on its own line.
func (e *Engine) emitRows() error {
	for _, s := range e.all {
		if s.Status() != stream.StatusMatched {
			continue
		}
		if !e.opts.Full && len(s.Columns()) == 0 {
			continue
		}
		for n := 0; n < s.RowCap(); n++ {
			r := s.Row(n)
			buf := e.line[:0]
			if e.opts.Full {
				for j := 0; j < r.Len(); j++ {
					buf = e.appendField(buf, s, r, j)
				}
			} else {
				buf = e.appendColumns(buf, s, r, s.Columns())
			}
			if err := e.writeLine(buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendColumns appends the selected columns of r, each followed by the
// output separator. A nil r yields placeholders.
func (e *Engine) appendColumns(buf []byte, s *stream.Stream, r *row.Row, cols []int) []byte {
	for _, c := range cols {
		if r == nil {
			buf = append(buf, s.Placeholder(), e.opts.Separator)
			continue
		}
		buf = e.appendField(buf, s, r, c)
	}
	return buf
}

func (e *Engine) appendField(buf []byte, s *stream.Stream, r *row.Row, i int) []byte {
	if v, ok := r.Field(i); ok {
		buf = append(buf, v...)
	} else {
		buf = append(buf, s.Placeholder())
	}
	return append(buf, e.opts.Separator)
}

// writeLine replaces the trailing separator with a newline and writes buf.
func (e *Engine) writeLine(buf []byte) error {
	if n := len(buf); n > 0 {
		buf[n-1] = '\n'
	} else {
		buf = append(buf, '\n')
	}
	e.line = buf
	if _, err := e.out.Write(buf); err != nil {
		return err
	}
	e.stats.RowsWritten++
	return nil
}
