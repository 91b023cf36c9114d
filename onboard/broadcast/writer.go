package broadcast

import (
	"io"
	"sync"
)

// WriterSink terminates each line with EOL and writes it to an io.Writer.
type WriterSink struct {
	EOL string

	lock sync.Mutex
	w    io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{EOL: "\n", w: w}
}

func (s *WriterSink) EmitLine(text string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	io.WriteString(s.w, text+s.EOL)
}
