package kfmt

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. If Sink is nil, output goes to the
// active kfmt output sink at the time of the write.
type PrefixWriter struct {
	// A writer where all writes get sent to.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	// midLine is set when the last byte written was not a line feed.
	midLine bool
}

// NewPrefixWriter returns a PrefixWriter that tags each line with
// "[module] " and writes to the active output sink.
func NewPrefixWriter(module string) *PrefixWriter {
	return &PrefixWriter{Prefix: []byte("[" + module + "] ")}
}

// Printf formats according to a format specifier and writes to w.
func (w *PrefixWriter) Printf(format string, args ...interface{}) {
	Fprintf(w, format, args...)
}

// Write writes len(p) bytes from p to the underlying data stream and returns
// back the number of bytes written. The injected prefix is not included in
// the number of written bytes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	sink := w.Sink
	if sink == nil {
		sink = GetOutputSink()
	}

	var written int
	for len(p) != 0 {
		if !w.midLine {
			if _, err := sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		for i, b := range p {
			if b == '\n' {
				line = p[:i+1]
				break
			}
		}

		n, err := sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}

		if line[len(line)-1] == '\n' {
			w.midLine = false
		}
		p = p[len(line):]
	}

	return written, nil
}
