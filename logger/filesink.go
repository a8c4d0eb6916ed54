package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogRecord is the authoritative request-log schema written to the JSONL
// file sink, per spec.md §6.
type LogRecord struct {
	Timestamp     time.Time     `json:"timestamp"`
	Level         string        `json:"level"`
	Service       string        `json:"service"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	StatusCode    int           `json:"statusCode"`
	ResponseTime  time.Duration `json:"-"`
	ResponseMs    float64       `json:"responseTime"`
	RequestID     string        `json:"requestId"`
	ClientID      string        `json:"clientId"`
	IP            string        `json:"ip"`
	Authenticated bool          `json:"authenticated"`
}

// DeriveLevel maps an HTTP status code to a log level per spec.md §6:
// <400 info, <500 warn, ==503 fatal, else error.
func DeriveLevel(status int) string {
	switch {
	case status < 400:
		return "info"
	case status < 500:
		return "warn"
	case status == 503:
		return "fatal"
	default:
		return "error"
	}
}

// FileSink writes LogRecords as JSONL, rotating the output file on date
// change or after MaxLinesPerFile lines.
type FileSink struct {
	mu sync.Mutex

	dir             string
	service         string
	maxLinesPerFile int

	file      *os.File
	day       string
	index     int
	lineCount int
}

// NewFileSink creates a FileSink writing into dir. maxLinesPerFile <= 0
// defaults to 10000.
func NewFileSink(dir, service string, maxLinesPerFile int) (*FileSink, error) {
	if maxLinesPerFile <= 0 {
		maxLinesPerFile = 10000
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &FileSink{
		dir:             dir,
		service:         service,
		maxLinesPerFile: maxLinesPerFile,
	}, nil
}

// Write appends one JSONL record, rotating the underlying file first if
// the calendar day changed or the current file is at capacity.
func (f *FileSink) Write(rec LogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec.Service = f.service
	if rec.Level == "" {
		rec.Level = DeriveLevel(rec.StatusCode)
	}
	rec.ResponseMs = float64(rec.ResponseTime) / float64(time.Millisecond)

	today := rec.Timestamp.Format("2006-01-02")
	if f.file == nil || today != f.day || f.lineCount >= f.maxLinesPerFile {
		if err := f.rotate(rec.Timestamp, today); err != nil {
			return err
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := f.file.Write(append(data, '\n')); err != nil {
		return err
	}
	f.lineCount++
	return nil
}

func (f *FileSink) rotate(now time.Time, today string) error {
	if f.file != nil {
		_ = f.file.Close()
	}
	if today == f.day {
		f.index++
	} else {
		f.day = today
		f.index = 0
	}
	f.lineCount = 0

	name := fmt.Sprintf("%s_%s_%s_%03d.log", f.service, today, now.Format("150405"), f.index)
	file, err := os.OpenFile(filepath.Join(f.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	f.file = file
	return nil
}

// Close flushes and closes the current file, if any.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
