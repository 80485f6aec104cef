// Package ingestlog appends one JSON line per ingested source to a
// durable log (C14), so a batch ingestion run can be audited or resumed
// without re-parsing already-processed sources. Append-only JSON-lines is
// the same format internal/observability's zerolog sink writes, kept
// consistent across this system's two file-log concerns.
package ingestlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Entry is one source's ingestion outcome.
type Entry struct {
	SourceID  string    `json:"source_id"`
	Status    string    `json:"status"` // "ok" | "error"
	Error     string    `json:"error,omitempty"`
	ChunkCount int      `json:"chunk_count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Log appends Entry records to a single file, serialized by a mutex since
// ingestion runs fan out across multiple workers. The set of already-"ok"
// source IDs is loaded once at Open so a re-run of the same batch can skip
// sources it already finished, per spec.md §6's "re-runs skip completed
// sources" purpose for this log.
type Log struct {
	mu        sync.Mutex
	f         *os.File
	processed map[string]bool
}

func Open(path string) (*Log, error) {
	processed, err := loadProcessed(path)
	if err != nil {
		return nil, fmt.Errorf("read ingestion log %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ingestion log %q: %w", path, err)
	}
	return &Log{f: f, processed: processed}, nil
}

// loadProcessed replays an existing log file, keeping the last status seen
// per source ID, so a source that failed and was later retried successfully
// is not treated as still-failing.
func loadProcessed(path string) (map[string]bool, error) {
	processed := make(map[string]bool)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return processed, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue // tolerate a partially-written last line from a crashed run
		}
		processed[e.SourceID] = e.Status == "ok"
	}
	return processed, scanner.Err()
}

// IsProcessed reports whether sourceID's most recent recorded outcome was a
// success, meaning an ingestion run may skip it.
func (l *Log) IsProcessed(sourceID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed[sourceID]
}

func (l *Log) Close() error {
	return l.f.Close()
}

func (l *Log) Record(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal ingestion log entry: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(append(b, '\n')); err != nil {
		return err
	}
	l.processed[e.SourceID] = e.Status == "ok"
	return nil
}

func (l *Log) Success(sourceID string, chunkCount int) error {
	return l.Record(Entry{SourceID: sourceID, Status: "ok", ChunkCount: chunkCount})
}

func (l *Log) Failure(sourceID string, err error) error {
	return l.Record(Entry{SourceID: sourceID, Status: "error", Error: err.Error()})
}
