// Package audit emits one record per authorization decision. The sink is
// borrowed by the dispatcher; records are independent and may interleave
// across concurrent requests.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runshield/bashx/internal/redact"
)

// maxLogBytes is the file size at which the log rotates (10 MB).
const maxLogBytes = 10 * 1024 * 1024

// Record is a single audit event.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	Command   string    `json:"command"`
	Blocked   bool      `json:"blocked"`
	Reason    string    `json:"reason,omitempty"`
}

// NewRecord stamps a record with an id and timestamp.
func NewRecord(userID, command string, blocked bool, reason string) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Command:   command,
		Blocked:   blocked,
		Reason:    reason,
	}
}

// Sink receives records. Implementations must be safe for concurrent use.
type Sink interface {
	Record(Record)
}

// Logger appends JSONL records to a file, rotating at maxLogBytes and
// redacting credential-shaped text before anything is written.
type Logger struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewLogger opens (or creates) the audit log.
func NewLogger(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &Logger{path: path, file: file}, nil
}

// Record writes one event. Failures are reported to stderr rather than to
// the caller: audit must never turn an allowed command into a failed one.
func (l *Logger) Record(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "[bashx] warning: audit rotation failed: %v\n", err)
	}

	rec.Command = redact.Redact(rec.Command)
	if rec.Reason != "" {
		rec.Reason = redact.Redact(rec.Reason)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[bashx] warning: audit encode failed: %v\n", err)
		return
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "[bashx] warning: audit write failed: %v\n", err)
	}
}

// rotateIfNeeded renames the log to <path>.1 when it crosses maxLogBytes.
// Must be called with l.mu held.
func (l *Logger) rotateIfNeeded() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}
	if info.Size() < maxLogBytes {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close before rotation: %w", err)
	}
	rotated := l.path + ".1"
	_ = os.Remove(rotated)
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("reopen after rotation: %w", err)
	}
	l.file = f
	return nil
}

// Close releases the file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Memory keeps records in memory; used by tests and by the MCP history
// surface.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// Record appends to the in-memory list.
func (m *Memory) Record(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of everything recorded so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Multi fans a record out to several sinks.
type Multi []Sink

func (m Multi) Record(rec Record) {
	for _, s := range m {
		s.Record(rec)
	}
}
