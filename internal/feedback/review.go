// Package feedback keeps an append-only review log of enhancement runs.
//
// Each processed transcript becomes one JSON line. Reviewers read the log to
// find corrections the tools did not account for and feed them back into the
// context store as new sounds-like entries or terms.
package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/MrWong99/scribe/internal/transcript"
)

// Record is one review log entry.
type Record struct {
	Timestamp      time.Time           `json:"timestamp"`
	RunID          string              `json:"run_id"`
	Source         string              `json:"source"`
	Output         string              `json:"output,omitempty"`
	Project        string              `json:"project,omitempty"`
	Confidence     float64             `json:"confidence"`
	Retention      float64             `json:"retention"`
	ToolsUsed      []string            `json:"tools_used,omitempty"`
	ContextChanges int                 `json:"context_changes"`
	Unexplained    []transcript.Change `json:"unexplained,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Log appends records to a JSON-lines file. Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	now  func() time.Time
}

// NewLog returns a Log writing to path on fsys. The file and its directory
// are created on the first Append.
func NewLog(fsys afero.Fs, path string) *Log {
	return &Log{fs: fsys, path: path, now: time.Now}
}

// Append writes r as one line. A zero Timestamp is set to the current UTC
// time.
func (l *Log) Append(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = l.now().UTC()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	if err := l.fs.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("feedback: create dir: %w", err)
	}
	f, err := l.fs.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write: %w", err)
	}
	return nil
}
