package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CSVWriter incrementally appends simulation events to a CSV file,
// writing a header only when the file is newly created. Safe for
// concurrent use.
type CSVWriter struct {
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	flushed bool
}

// NewCSVWriter opens (creating if needed) filename and writes the header
// row on first creation.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create directory %q: %w", dir, err)
	}

	fileExists := false
	if _, err := os.Stat(filename); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open csv file: %w", err)
	}

	w := csv.NewWriter(file)

	if !fileExists {
		header := []string{"timestamp", "node", "event", "detail_ms"}
		if err := w.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("cannot write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: file, writer: w}, nil
}

// WriteRow appends one row: a node address, an event name ("send_ok",
// "send_failed", "parent_switch", "no_route", ...), and the event's
// associated duration (a send's round-trip latency, or zero when not
// applicable).
func (cw *CSVWriter) WriteRow(node, event string, detail time.Duration) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.flushed {
		return fmt.Errorf("cannot write: writer already closed")
	}

	record := []string{
		time.Now().Format(time.RFC3339Nano),
		node,
		event,
		fmt.Sprintf("%.3f", float64(detail.Milliseconds())),
	}

	if err := cw.writer.Write(record); err != nil {
		return fmt.Errorf("csv write error: %w", err)
	}
	return nil
}

// Flush forces the buffered rows to disk.
func (cw *CSVWriter) Flush() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush error: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.flushed {
		return nil
	}
	cw.writer.Flush()
	cw.flushed = true

	if err := cw.writer.Error(); err != nil {
		_ = cw.file.Close()
		return fmt.Errorf("flush error: %w", err)
	}
	return cw.file.Close()
}
