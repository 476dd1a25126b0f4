// Package failures works out which export ranges still need to be fetched.
package failures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"wosexport/pkg/checkpoint"
	"wosexport/pkg/logger"
	"wosexport/pkg/plan"
	"wosexport/pkg/query"
	"wosexport/pkg/tasklog"
)

// Source says how a report's missing ranges were derived
type Source string

const (
	// SourcePlan means the planned sequence was rebuilt from the manifest
	SourcePlan Source = "plan"
	// SourceFailureRecords means no manifest existed and only recorded
	// failures were considered
	SourceFailureRecords Source = "failure_records"
)

// Missing returns the planned ranges that have no success record, in plan
// order and without duplicates
func Missing(planned []plan.Range, records []tasklog.Record) []plan.Range {
	done := succeeded(records)

	out := []plan.Range{}
	seen := make(map[plan.Range]bool, len(planned))
	for _, r := range planned {
		if done[r] || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// FailedOnly returns ranges recorded as failed and never recorded as
// succeeded, sorted by start
func FailedOnly(records []tasklog.Record) []plan.Range {
	done := succeeded(records)

	failed := make(map[plan.Range]bool)
	for _, rec := range records {
		if rec.Status == tasklog.StatusFailure && !done[rec.Range()] {
			failed[rec.Range()] = true
		}
	}

	out := make([]plan.Range, 0, len(failed))
	for r := range failed {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

func succeeded(records []tasklog.Record) map[plan.Range]bool {
	done := make(map[plan.Range]bool)
	for _, rec := range records {
		if rec.Succeeded() {
			done[rec.Range()] = true
		}
	}
	return done
}

// Report summarizes what is still missing for one query
type Report struct {
	Query       string       `json:"query_content"`
	GeneratedAt time.Time    `json:"generated_at"`
	Source      Source       `json:"source"`
	Planned     int          `json:"planned_ranges"`
	Succeeded   int          `json:"succeeded_ranges"`
	Missing     []plan.Range `json:"missing_ranges"`
}

// Complete reports whether nothing is missing
func (r *Report) Complete() bool {
	return len(r.Missing) == 0
}

// Aggregator combines task logs and manifests into reports
type Aggregator struct {
	store     *tasklog.Store
	manifests *checkpoint.Manager
	logger    logger.Logger
}

// NewAggregator creates an aggregator. manifests may be nil, in which case
// only recorded failures are reported.
func NewAggregator(store *tasklog.Store, manifests *checkpoint.Manager, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Aggregator{store: store, manifests: manifests, logger: log}
}

// Aggregate reads every task log carrying the store's prefix, keeps the
// records for q, and reports the ranges that never succeeded. With a
// manifest the whole plan is checked, so ranges an interrupted run never
// reached count as missing.
func (a *Aggregator) Aggregate(q string) (*Report, error) {
	all, err := a.store.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read task logs: %w", err)
	}
	records := tasklog.Filter(all, q)

	report := &Report{Query: q, GeneratedAt: time.Now()}

	var manifest *checkpoint.Manifest
	if a.manifests != nil {
		manifest, err = a.manifests.Load(q)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	if manifest != nil {
		planned, err := manifest.Ranges()
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild plan: %w", err)
		}
		report.Source = SourcePlan
		report.Planned = len(planned)
		report.Missing = Missing(planned, records)
		report.Succeeded = countIn(planned, succeeded(records))
	} else {
		report.Source = SourceFailureRecords
		report.Missing = FailedOnly(records)
		report.Succeeded = len(succeeded(records))
	}

	a.logger.InfoWithFields("Aggregated export failures", map[string]interface{}{
		"query":     q,
		"source":    string(report.Source),
		"records":   len(records),
		"missing":   len(report.Missing),
		"succeeded": report.Succeeded,
	})
	return report, nil
}

func countIn(planned []plan.Range, done map[plan.Range]bool) int {
	n := 0
	for _, r := range planned {
		if done[r] {
			n++
		}
	}
	return n
}

// ReportPath is where WriteReport stores the report for q inside dir
func ReportPath(dir, q string) string {
	return filepath.Join(dir, "final_failed_records_"+query.Key(q)+".json")
}

// WriteReport persists r as indented JSON and returns the file path
func WriteReport(dir string, r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode failure report: %w", err)
	}

	path := ReportPath(dir, r.Query)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write failure report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to replace failure report: %w", err)
	}
	return path, nil
}
