package tasklog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"wosexport/pkg/logger"
	"wosexport/pkg/plan"
	"wosexport/pkg/query"
)

// Status is the outcome of one export range
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// SortOldestFirst is the sort order recorded for every export
const SortOldestFirst = "Date: oldest first"

// Record is one append-only entry describing an export range outcome
type Record struct {
	Query     string    `json:"query_content"`
	Start     int       `json:"start_record"`
	End       int       `json:"end_record"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	SortBy    string    `json:"sort_by,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	File      string    `json:"file,omitempty"`
	Error     string    `json:"error_msg,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
}

// Range returns the record's bounds
func (r Record) Range() plan.Range {
	return plan.Range{Start: r.Start, End: r.End}
}

// Succeeded reports whether the record marks a completed export
func (r Record) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Extension is the file extension of task log files
const Extension = ".jsonl"

// Store appends records to one JSON-lines file per query inside a directory
type Store struct {
	dir    string
	prefix string
	logger logger.Logger
	mu     sync.Mutex
}

// NewStore creates the log directory if needed and returns a Store that
// names its files <prefix><query key>.jsonl
func NewStore(dir, prefix string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create task log directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{dir: dir, prefix: prefix, logger: log}, nil
}

// Dir returns the directory holding the task logs
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the log file used for q
func (s *Store) Path(q string) string {
	return filepath.Join(s.dir, s.prefix+query.Key(q)+Extension)
}

// Append writes rec as one line and syncs it to disk
func (s *Store) Append(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode task record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(rec.Query)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open task log: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to write task log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync task log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close task log: %w", err)
	}

	s.logger.DebugWithFields("Task record appended", map[string]interface{}{
		"path":   path,
		"range":  rec.Range().String(),
		"status": string(rec.Status),
	})
	return nil
}

// Read returns the records for q in file order. Lines that do not parse,
// or that belong to another query, are skipped.
func (s *Store) Read(q string) ([]Record, error) {
	records, err := s.readFile(s.Path(q))
	if err != nil {
		return nil, err
	}
	return Filter(records, q), nil
}

// ReadAll returns the records of every task log file in the directory,
// ordered by file name and then line
func (s *Store) ReadAll() ([]Record, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	var all []Record
	for _, path := range files {
		records, err := s.readFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// Files lists task log files carrying the store's prefix
func (s *Store) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list task logs: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, s.prefix) || filepath.Ext(name) != Extension {
			continue
		}
		files = append(files, filepath.Join(s.dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (s *Store) readFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open task log: %w", err)
	}
	defer f.Close()

	var records []Record
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Query == "" {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read task log %s: %w", path, err)
	}

	if skipped > 0 {
		s.logger.WarnWithFields("Skipped malformed task log lines", map[string]interface{}{
			"path":    path,
			"skipped": skipped,
		})
	}
	return records, nil
}

// Filter keeps the records whose query equals q exactly
func Filter(records []Record, q string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Query == q {
			out = append(out, r)
		}
	}
	return out
}
