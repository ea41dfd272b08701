// Package store persists a run log in JSONL format, one completion record
// per line. The scheduler reads it back to decide whether a scheduled run was
// missed while the process was down.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rcollins/quotesync/internal/logger"
	"github.com/rcollins/quotesync/internal/refresh"
)

// RunsFilename is the run log file name inside the data directory.
const RunsFilename = "runs.jsonl"

// RunRecord is one persisted completion mark.
type RunRecord struct {
	Category    string    `json:"category"`
	StartedBy   string    `json:"started_by"`
	CompletedAt time.Time `json:"completed_at"`
	Success     bool      `json:"success"`
}

// Store appends and queries run records.
type Store struct {
	mu       sync.Mutex
	filePath string
	log      *logger.Logger
}

// New creates a store rooted at dataDir. The file is created lazily on the
// first append.
func New(dataDir string, log *logger.Logger) *Store {
	return &Store{
		filePath: filepath.Join(dataDir, RunsFilename),
		log:      log,
	}
}

// Exists reports whether the run log file has been created yet. A missing
// file means a fresh install; missed-run detection is skipped then.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.filePath)
	return err == nil
}

// Record implements refresh.Recorder by appending one completion mark.
func (s *Store) Record(category string, trigger refresh.Trigger, completedAt time.Time, success bool) error {
	return s.Append(RunRecord{
		Category:    category,
		StartedBy:   string(trigger),
		CompletedAt: completedAt,
		Success:     success,
	})
}

// Append writes one record as a JSON line, creating the file and its
// directory as needed.
func (s *Store) Append(rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// Load reads all records. A missing file yields an empty slice. Lines that
// fail to parse are skipped with a warning rather than failing the load.
func (s *Store) Load() ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunRecord{}, nil
		}
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer file.Close()

	var records []RunRecord
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			s.log.Warn("skipping malformed run log line",
				logger.Field{Key: "line", Value: lineNum},
				logger.Field{Key: "file", Value: s.filePath})
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}
	return records, nil
}

// LastSuccessfulRun returns the completion time of the newest successful
// record matching category and trigger, and whether one exists.
func (s *Store) LastSuccessfulRun(category string, trigger refresh.Trigger) (time.Time, bool) {
	records, err := s.Load()
	if err != nil {
		s.log.Error("failed to load run log", err)
		return time.Time{}, false
	}

	var last time.Time
	found := false
	for _, rec := range records {
		if !rec.Success || rec.Category != category || rec.StartedBy != string(trigger) {
			continue
		}
		if rec.CompletedAt.After(last) {
			last = rec.CompletedAt
			found = true
		}
	}
	return last, found
}
