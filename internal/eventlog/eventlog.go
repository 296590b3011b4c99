// Package eventlog implements the append-only, line-atomic event stream
// dashboards tail, grounded on the teacher's internal/logging.StreamHub and
// EventArchive, generalized to the flat record shape spec §3/§4.9 names.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Known event names, per spec §3.
const (
	EventProcessed       = "processed"
	EventSkippedCorrupt  = "skipped_corrupt"
	EventChunkFailed     = "chunk_failed"
	EventManifestWritten = "manifest_written"
	EventSyncSuccess     = "sync_success"
	EventSyncFailed      = "sync_failed"
	EventSyncSkipped     = "sync_skipped"
	EventPlanned         = "planned"
	EventPlanExceeded    = "plan_exceeded"
)

// Log appends one JSON record per line to LOG_DIR/pipeline.jsonl. Writes are
// serialized under a mutex and each Write call is a single buffered
// io.Writer.Write so a crash mid-write never leaves a partial line visible
// to a concurrent tailing reader.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates (or appends to) LOG_DIR/pipeline.jsonl.
func Open(logDir string) (*Log, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "pipeline.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	return &Log{file: f}, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	return l.file.Close()
}

// Write appends one event record with the given name and fields.
func (l *Log) Write(name string, fields map[string]any) error {
	record := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		record[k] = v
	}
	record["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	record["event"] = name

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("eventlog: marshal: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("eventlog: write: %w", err)
	}
	return nil
}
