package exporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wosexport/pkg/checkpoint"
	"wosexport/pkg/config"
	errs "wosexport/pkg/errors"
	"wosexport/pkg/failures"
	"wosexport/pkg/human"
	"wosexport/pkg/logger"
	"wosexport/pkg/navigate"
	"wosexport/pkg/plan"
	"wosexport/pkg/ratelimit"
	"wosexport/pkg/retry"
	"wosexport/pkg/storage"
	"wosexport/pkg/tasklog"
)

// Job describes one export run
type Job struct {
	Query string
	// Start and End bound the exported window; End 0 means the last record
	Start int
	End   int
	// StartIndex skips the first ranges of the plan
	StartIndex int
	// Resume continues from the saved manifest when it matches the window
	Resume bool
}

// RangeResult is the outcome of one range
type RangeResult struct {
	Range    plan.Range
	Status   tasklog.Status
	Attempts int
	File     string
	Err      error
}

// Summary reports what a run achieved
type Summary struct {
	Query      string
	RunID      string
	Total      int
	Planned    int
	Succeeded  int
	Failed     int
	Results    []RangeResult
	Missing    []plan.Range
	ReportPath string
	Duration   time.Duration
}

// Progress receives range events, for display
type Progress interface {
	RangeStarted(r plan.Range, index, total int)
	RangeFinished(res RangeResult)
}

type noProgress struct{}

func (noProgress) RangeStarted(plan.Range, int, int) {}
func (noProgress) RangeFinished(RangeResult)         {}

// Exporter runs export jobs on a logged-in browser
type Exporter struct {
	actor      *human.Actor
	nav        *navigate.Navigator
	downloads  *storage.Manager
	logs       *tasklog.Store
	manifests  *checkpoint.Manager
	aggregator *failures.Aggregator
	limiter    ratelimit.Limiter
	progress   Progress
	cfg        config.ExportConfig
	timeouts   config.TimeoutConfig
	logDir     string
	newRunID   func() string
	logger     logger.Logger
}

// Option configures an Exporter
type Option func(*Exporter)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLimiter replaces the export rate cap
func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Exporter) {
		if l != nil {
			e.limiter = l
		}
	}
}

// WithProgress reports range events to p
func WithProgress(p Progress) Option {
	return func(e *Exporter) {
		if p != nil {
			e.progress = p
		}
	}
}

// WithRunID replaces the run ID generator
func WithRunID(fn func() string) Option {
	return func(e *Exporter) {
		e.newRunID = fn
	}
}

// New wires an Exporter to the configured directories
func New(actor *human.Actor, nav *navigate.Navigator, cfg *config.Config, opts ...Option) (*Exporter, error) {
	e := &Exporter{
		actor:    actor,
		nav:      nav,
		limiter:  ratelimit.New(cfg.Export.ExportsPerHour, time.Hour),
		progress: noProgress{},
		cfg:      cfg.Export,
		timeouts: cfg.Timeouts,
		logDir:   cfg.Paths.LogDir,
		newRunID: func() string { return uuid.New().String() },
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.downloads, err = storage.NewManager(cfg.Paths.DownloadDir, actor.Pacer(), cfg.Pacing.Poll, e.logger); err != nil {
		return nil, err
	}
	if e.logs, err = tasklog.NewStore(cfg.Paths.LogDir, cfg.Export.LogPrefix, e.logger); err != nil {
		return nil, err
	}
	if e.manifests, err = checkpoint.NewManager(cfg.Paths.LogDir, e.logger); err != nil {
		return nil, err
	}
	e.aggregator = failures.NewAggregator(e.logs, e.manifests, e.logger)
	return e, nil
}

func (j *Job) normalize() error {
	j.Query = strings.TrimSpace(j.Query)
	if j.Query == "" {
		return errs.Validation("exporter.job", "query is empty")
	}
	if j.Start == 0 {
		j.Start = 1
	}
	if j.Start < 1 || j.End < 0 {
		return errs.Validation("exporter.job", "invalid window %d-%d", j.Start, j.End)
	}
	if j.End != 0 && j.End < j.Start {
		return errs.Validation("exporter.job", "window end %d is before start %d", j.End, j.Start)
	}
	if j.StartIndex < 0 {
		return errs.Validation("exporter.job", "negative start index %d", j.StartIndex)
	}
	return nil
}

// Run exports every planned range of the job. Failures of single ranges
// are recorded and skipped; errors reaching the results page or reading the
// count end the run. The summary is returned even when ctx is cancelled.
func (e *Exporter) Run(ctx context.Context, job Job) (*Summary, error) {
	if err := job.normalize(); err != nil {
		return nil, err
	}
	started := time.Now()
	log := e.logger.WithField("query", job.Query)

	resultsURL, err := e.nav.EnsureResults(ctx, job.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the results page: %w", err)
	}
	if err := e.nav.SortOldestFirst(ctx); err != nil {
		return nil, err
	}
	if ok, url, err := e.nav.OnResultsPage(ctx); err == nil && ok {
		resultsURL = url
	}
	total, err := e.nav.ResultCount(ctx)
	if err != nil {
		return nil, err
	}

	manifest, startIndex, err := e.prepareManifest(job, total, log)
	if err != nil {
		return nil, err
	}
	ranges, err := manifest.Ranges()
	if err != nil {
		return nil, err
	}

	summary := &Summary{Query: job.Query, RunID: manifest.RunID, Total: total, Planned: len(ranges)}
	log.InfoWithFields("Export plan ready", map[string]interface{}{
		"total":       total,
		"ranges":      len(ranges),
		"start_index": startIndex,
		"run_id":      manifest.RunID,
	})

	for i := startIndex; i < len(ranges); i++ {
		if err := ctx.Err(); err != nil {
			return e.finish(summary, started), err
		}

		e.progress.RangeStarted(ranges[i], i, len(ranges))
		res := e.exportRange(ctx, job.Query, manifest.RunID, ranges[i], resultsURL)
		summary.Results = append(summary.Results, res)
		e.progress.RangeFinished(res)

		if res.Status == "" {
			return e.finish(summary, started), res.Err
		}
		if err := e.manifests.Advance(manifest, i+1); err != nil {
			log.WithError(err).Warn("Failed to advance manifest")
		}
		logger.LogRunProgress(log, job.Query, i+1, len(ranges))

		if i < len(ranges)-1 {
			if err := e.actor.Pacer().Pause(ctx, e.actor.Pacing().BetweenExports); err != nil {
				return e.finish(summary, started), err
			}
		}
	}

	if err := e.reexport(ctx, job.Query, manifest.RunID, resultsURL, summary); err != nil {
		return e.finish(summary, started), err
	}

	report, err := e.aggregator.Aggregate(job.Query)
	if err != nil {
		return e.finish(summary, started), err
	}
	e.finish(summary, started)
	summary.Succeeded = report.Succeeded
	summary.Missing = report.Missing
	summary.Failed = len(report.Missing)
	if !report.Complete() {
		path, err := failures.WriteReport(e.logDir, report)
		if err != nil {
			return summary, err
		}
		summary.ReportPath = path
		log.WarnWithFields("Some ranges could not be exported", map[string]interface{}{
			"missing": len(report.Missing),
			"report":  path,
		})
	}
	return summary, nil
}

// finish stamps the duration and counts the final outcome of every range
// attempted in this run
func (e *Exporter) finish(s *Summary, started time.Time) *Summary {
	s.Duration = time.Since(started)

	final := make(map[plan.Range]tasklog.Status)
	for _, res := range s.Results {
		if res.Status != "" {
			final[res.Range] = res.Status
		}
	}
	s.Succeeded, s.Failed = 0, 0
	for _, status := range final {
		if status == tasklog.StatusSuccess {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// prepareManifest reuses the saved manifest when resuming the same window
// and count; otherwise it plans afresh. A start index moves the window start
// to that range, so skipped ranges are never reported missing.
func (e *Exporter) prepareManifest(job Job, total int, log logger.Logger) (*checkpoint.Manifest, int, error) {
	capacity := e.cfg.RecordsPerExport

	start := job.Start
	if job.StartIndex > 0 {
		ranges, err := plan.Window(job.Start, job.End, total, capacity)
		if err != nil {
			return nil, 0, err
		}
		if job.StartIndex >= len(ranges) {
			return nil, 0, errs.Validation("exporter.plan", "start index %d beyond %d planned ranges", job.StartIndex, len(ranges))
		}
		start = ranges[job.StartIndex].Start
		log.InfoWithFields("Skipping leading ranges", map[string]interface{}{
			"skipped": job.StartIndex,
			"start":   start,
		})
	}

	if job.Resume {
		existing, err := e.manifests.Load(job.Query)
		if err != nil {
			return nil, 0, err
		}
		switch {
		case existing == nil:
			log.Info("Nothing to resume, planning from scratch")
		case existing.Start != start || existing.End != job.End || existing.Capacity != capacity:
			log.Warn("Saved plan covers a different window, planning from scratch")
		case existing.TotalRecords != total:
			log.WarnWithFields("Result count changed since the saved plan, planning from scratch", map[string]interface{}{
				"saved":   existing.TotalRecords,
				"current": total,
			})
		default:
			log.InfoWithFields("Resuming saved plan", map[string]interface{}{"next_index": existing.NextIndex})
			return existing, existing.NextIndex, nil
		}
	}

	manifest, err := e.manifests.Create(job.Query, e.newRunID(), start, job.End, total, capacity)
	if err != nil {
		return nil, 0, err
	}
	return manifest, 0, nil
}

// exportRange retries one range and appends its outcome to the task log.
// A result with an empty Status means ctx ended the attempt.
func (e *Exporter) exportRange(ctx context.Context, q, runID string, r plan.Range, resultsURL string) RangeResult {
	log := e.logger.WithFields(map[string]interface{}{"query": q, "range": r.String()})

	cfg := &retry.Config{
		MaxAttempts: e.cfg.MaxAttempts,
		Backoff:     &retry.PacedBackoff{Pacer: e.actor.Pacer(), Range: e.actor.Pacing().Settle},
		// Element timeouts wrap context.DeadlineExceeded; only the run's own
		// context decides when to stop
		RetryIf: func(error) bool { return ctx.Err() == nil },
		OnRetry: func(ctx context.Context, attempt int, err error) error {
			if rerr := e.nav.Recover(ctx, resultsURL); rerr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithError(rerr).Warn("Recovery before retry failed")
			}
			return nil
		},
		Sleep:  e.actor.Pacer().Wait,
		Logger: log,
		Name:   "export_range",
	}

	file, attempts, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context, attempt int) (string, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", err
		}
		log.DebugWithFields("Exporting range", map[string]interface{}{"attempt": attempt})
		return e.exportOnce(ctx, q, r)
	})

	res := RangeResult{Range: r, Attempts: attempts, File: file, Err: err}
	if ctx.Err() != nil && err != nil {
		return res
	}

	rec := tasklog.Record{
		Query:    q,
		Start:    r.Start,
		End:      r.End,
		SortBy:   tasklog.SortOldestFirst,
		Attempts: attempts,
		RunID:    runID,
	}
	if err == nil {
		res.Status = tasklog.StatusSuccess
		rec.Status = tasklog.StatusSuccess
		rec.File = file
	} else {
		res.Status = tasklog.StatusFailure
		rec.Status = tasklog.StatusFailure
		rec.Error = err.Error()
	}
	if aerr := e.logs.Append(rec); aerr != nil {
		log.WithError(aerr).Error("Failed to write task log record")
	}

	logger.LogRangeOutcome(e.logger, q, r.Start, r.End, string(res.Status), attempts, err)
	return res
}

// reexport re-attempts ranges still missing after the main pass
func (e *Exporter) reexport(ctx context.Context, q, runID, resultsURL string, summary *Summary) error {
	for pass := 1; pass <= e.cfg.ReexportPasses; pass++ {
		report, err := e.aggregator.Aggregate(q)
		if err != nil {
			return err
		}
		if report.Complete() {
			return nil
		}

		e.logger.InfoWithFields("Re-exporting missing ranges", map[string]interface{}{
			"pass":    pass,
			"missing": len(report.Missing),
		})
		for i, r := range report.Missing {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.actor.Pacer().Pause(ctx, e.actor.Pacing().BetweenExports); err != nil {
				return err
			}

			e.progress.RangeStarted(r, i, len(report.Missing))
			res := e.exportRange(ctx, q, runID, r, resultsURL)
			summary.Results = append(summary.Results, res)
			e.progress.RangeFinished(res)
			if res.Status == "" {
				return res.Err
			}
		}
	}
	return nil
}
