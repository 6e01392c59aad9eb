package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestJournalWriter_Record(t *testing.T) {
	baseDir := t.TempDir()
	writer := NewWriter(baseDir)

	entry := JournalEntry{
		Host:         "github.com",
		Owner:        "owner",
		Repo:         "repo",
		Number:       42,
		Stage:        "score",
		Source:       "local",
		Category:     "medium",
		FinalScore:   6.0,
		MetricScores: map[string]float64{"code_size": 5.5},
		Timestamp:    time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	path, err := writer.Record(entry)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	want := filepath.Join(baseDir, "github.com", "owner", "repo", "42", "scores.jsonl")
	if path != want {
		t.Errorf("Record() path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var got JournalEntry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("journal line is not JSON: %v", err)
	}
	if got.FinalScore != 6.0 || got.Category != "medium" || got.Source != "local" {
		t.Errorf("journal entry = %+v, want the recorded run", got)
	}
}

func TestJournalWriter_NestedGroupOwner(t *testing.T) {
	baseDir := t.TempDir()
	writer := NewWriter(baseDir)

	got := writer.Path("gitlab.com", "group/sub", "repo", 7)
	want := filepath.Join(baseDir, "gitlab.com", "group", "sub", "repo", "7", "scores.jsonl")
	if got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestJournalWriter_AppendsConcurrently(t *testing.T) {
	baseDir := t.TempDir()
	writer := NewWriter(baseDir)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := writer.Record(JournalEntry{Host: "github.com", Owner: "o", Repo: "r", Number: 1, Stage: "score", FinalScore: float64(i)}); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	f, err := os.Open(writer.Path("github.com", "o", "r", 1))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Errorf("line %d is not JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 20 {
		t.Errorf("journal has %d lines, want 20", lines)
	}
}

func TestJournalWriter_FillsTimestamp(t *testing.T) {
	writer := NewWriter(t.TempDir())

	path, err := writer.Record(JournalEntry{Host: "github.com", Owner: "o", Repo: "r", Number: 2})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	var e JournalEntry
	json.Unmarshal(data, &e)
	if e.Timestamp.IsZero() {
		t.Error("Record() should stamp entries without a timestamp")
	}
}
