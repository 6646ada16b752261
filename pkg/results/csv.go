package results

import (
	"encoding/csv"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// CSVRecorder appends benchmark results to a CSV file. The file is opened in
// append mode so repeated runs accumulate in one place; the header row is
// written only when the file is new or empty.
type CSVRecorder struct {
	file   *os.File
	writer *csv.Writer
	path   string
	mu     sync.Mutex
	closed bool
}

// NewCSVRecorder opens (or creates) the results file at path.
// Returns the recorder and any error encountered during creation.
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open results file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to stat results file")
	}

	r := &CSVRecorder{
		file:   f,
		writer: csv.NewWriter(f),
		path:   path,
	}
	if info.Size() == 0 {
		if err := r.writer.Write(Header); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "failed to write results header")
		}
		r.writer.Flush()
		if err := r.writer.Error(); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "failed to flush results header")
		}
	}
	return r, nil
}

// Record appends one result row and flushes it to disk, so a crash mid-suite
// loses at most the run in progress.
func (r *CSVRecorder) Record(res Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("results file already closed")
	}
	if err := r.writer.Write(res.Row()); err != nil {
		return errors.Wrap(err, "failed to write result row")
	}
	r.writer.Flush()
	return errors.Wrap(r.writer.Error(), "failed to flush result row")
}

// Close flushes buffered rows and closes the file. Close is idempotent.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		r.file.Close()
		return errors.Wrap(err, "failed to flush results file")
	}
	return errors.Wrap(r.file.Close(), "failed to close results file")
}

// Path returns the location of the results file.
func (r *CSVRecorder) Path() string {
	return r.path
}

var _ Recorder = (*CSVRecorder)(nil)
