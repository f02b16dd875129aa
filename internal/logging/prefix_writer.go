package logging

import (
	"bytes"
	"io"
	"sync"
)

// PrefixWriter wraps an io.Writer and adds a prefix to each line.
// Partial lines are buffered until their newline arrives.
type PrefixWriter struct {
	mu     sync.Mutex
	prefix []byte
	writer io.Writer
	buffer bytes.Buffer
}

// NewPrefixWriter creates a new PrefixWriter.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{
		prefix: []byte(prefix),
		writer: w,
	}
}

// Write implements io.Writer.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pw.buffer.Write(p)

	for {
		idx := bytes.IndexByte(pw.buffer.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := pw.buffer.Next(idx + 1)

		out := make([]byte, 0, len(pw.prefix)+len(line))
		out = append(out, pw.prefix...)
		out = append(out, line...)
		if _, err := pw.writer.Write(out); err != nil {
			return 0, err
		}
	}

	return len(p), nil
}

// Flush writes any buffered partial line, prefixed and newline-terminated.
func (pw *PrefixWriter) Flush() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.buffer.Len() == 0 {
		return nil
	}
	out := append(append([]byte{}, pw.prefix...), pw.buffer.Bytes()...)
	out = append(out, '\n')
	pw.buffer.Reset()
	_, err := pw.writer.Write(out)
	return err
}
