package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const journalFile = "scores.jsonl"

// JournalEntry records one scoring run for a pull request.
type JournalEntry struct {
	Host           string             `json:"host"`
	Owner          string             `json:"owner"`
	Repo           string             `json:"repo"`
	Number         int                `json:"number"`
	Stage          string             `json:"stage"`
	Source         string             `json:"source,omitempty"`
	Category       string             `json:"category,omitempty"`
	FinalScore     float64            `json:"final_score"`
	MetricScores   map[string]float64 `json:"metric_scores,omitempty"`
	Bounty         float64            `json:"bounty,omitempty"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
	DeveloperID    string             `json:"developer_id,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// Writer manages scoring journals organized by repository and pull request.
type Writer struct {
	baseDir string
	mu      sync.Mutex
}

// NewWriter creates a new Writer with the specified base directory.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Path returns the journal path for a pull request.
// Directory structure: baseDir/host/owner/repo/number/scores.jsonl
func (w *Writer) Path(host, owner, repo string, number int) string {
	return filepath.Join(w.baseDir, host, filepath.FromSlash(owner), repo, fmt.Sprint(number), journalFile)
}

// Record appends entry as one JSON line and returns the journal path.
func (w *Writer) Record(entry JournalEntry) (string, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encoding journal entry: %w", err)
	}
	line = append(line, '\n')

	path := w.Path(entry.Host, entry.Owner, entry.Repo, entry.Number)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating journal directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return "", fmt.Errorf("writing journal: %w", err)
	}
	return path, nil
}
