package results

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// RequestLog writes one line per benchmark request in the form
// "index,status,latency,message" with the latency in seconds to four
// decimals. With compression enabled the file is a snappy framed stream,
// which keeps high-request-count runs from dominating disk usage.
type RequestLog struct {
	file   *os.File
	out    io.Writer
	snap   *snappy.Writer
	path   string
	mu     sync.Mutex
	closed bool
}

// NewRequestLog creates the per-run request log at path, truncating any
// previous file. Returns the log and any error encountered during creation.
func NewRequestLog(path string, compress bool) (*RequestLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open request log")
	}

	l := &RequestLog{
		file: f,
		out:  f,
		path: path,
	}
	if compress {
		l.snap = snappy.NewBufferedWriter(f)
		l.out = l.snap
	}
	return l, nil
}

// Add appends one request line. index is 1-based to match printed output.
func (l *RequestLog) Add(index int, status string, latency time.Duration, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.New("request log already closed")
	}
	_, err := fmt.Fprintf(l.out, "%d,%s,%.4f,%s\n", index, status, latency.Seconds(), message)
	return errors.Wrap(err, "failed to write request log line")
}

// Close flushes the compressed stream if present and closes the file.
// Close is idempotent.
func (l *RequestLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.snap != nil {
		if err := l.snap.Close(); err != nil {
			l.file.Close()
			return errors.Wrap(err, "failed to close compressed request log")
		}
	}
	return errors.Wrap(l.file.Close(), "failed to close request log")
}

// Path returns the location of the request log file.
func (l *RequestLog) Path() string {
	return l.path
}
