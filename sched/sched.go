// Package sched turns classified texture assets into conversion jobs and
// drives them through the external converter under bounded concurrency.
//
// Jobs are grouped by recipe, pulled from one shared queue by a fixed-size
// worker pool, gated by the completion cache, and isolated from each
// other: a failed job never stops the batch. A job's result is recorded in
// the cache before its completion is reported to the progress observer.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/texforge/texforge/cache"
	"github.com/texforge/texforge/convert"
	"github.com/texforge/texforge/internal/pathutil"
	"github.com/texforge/texforge/texture"
	"github.com/texforge/texforge/vfs"
)

const defaultJobTimeout = 5 * time.Minute

// Job is one pending conversion.
type Job struct {
	Asset  texture.Asset
	Recipe Recipe

	// OutputDir mirrors the asset's logical folder under the output root.
	OutputDir string
}

// JobError describes one failed or dropped job.
type JobError struct {
	Path   string
	Detail string
}

// Progress is one observer event.
type Progress struct {
	// Done and Total count jobs, including skips.
	Done  int
	Total int

	// Path is the asset that just completed.
	Path string

	// Err is the failure reason, empty on success or skip.
	Err string
}

// ProgressFunc receives progress events. Implementations must be safe for
// concurrent calls; events arrive from multiple workers.
type ProgressFunc func(Progress)

// Summary is the run's final accounting. Partial success is always
// distinguishable from full success.
type Summary struct {
	Total     int
	Converted int
	Skipped   int
	Failed    int
	Errors    []JobError

	// Cancelled is set when the run stopped early; undispatched jobs are
	// not counted in any outcome bucket.
	Cancelled bool
}

// FullSuccess reports whether every job converted or skipped cleanly.
func (s Summary) FullSuccess() bool {
	return !s.Cancelled && s.Failed == 0 && s.Converted+s.Skipped == s.Total
}

// Scheduler executes conversion batches.
type Scheduler struct {
	conv     convert.Converter
	cc       cache.Cache
	preset   Preset
	workers  int
	retries  int
	timeout  time.Duration
	logger   *slog.Logger
	progress ProgressFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPreset selects the quality preset (default PresetQuality).
func WithPreset(p Preset) Option {
	return func(s *Scheduler) {
		s.preset = p
	}
}

// WithWorkers sets the worker pool size. Values < 1 fall back to the
// available core count.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		s.workers = n
	}
}

// WithRetries sets how many extra attempts a failed job gets. Failures
// are treated as deterministic input problems, so there is no backoff.
func WithRetries(n int) Option {
	return func(s *Scheduler) {
		if n < 0 {
			n = 0
		}
		s.retries = n
	}
}

// WithTimeout bounds a single converter invocation.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithProgress sets the progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scheduler) {
		s.progress = fn
	}
}

// New creates a Scheduler over the given converter and completion cache.
func New(conv convert.Converter, cc cache.Cache, opts ...Option) *Scheduler {
	s := &Scheduler{
		conv:    conv,
		cc:      cc,
		preset:  PresetQuality,
		timeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = runtime.NumCPU()
	}
	return s
}

func (s *Scheduler) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// BuildJobs resolves recipes and output locations for the asset set.
// Assets whose type has no recipe under the active preset are dropped.
func (s *Scheduler) BuildJobs(assets []texture.Asset, outRoot string) []Job {
	jobs := make([]Job, 0, len(assets))
	for _, asset := range assets {
		recipe, ok := ResolveRecipe(s.preset, asset.Type)
		if !ok {
			s.log().Warn("no recipe", "path", asset.Path, "type", asset.Type.String(), "preset", s.preset.String())
			continue
		}
		dir, _ := pathutil.Split(asset.Path)
		jobs = append(jobs, Job{
			Asset:     asset,
			Recipe:    recipe,
			OutputDir: filepath.Join(outRoot, filepath.FromSlash(dir)),
		})
	}
	return jobs
}

// Run executes all jobs for the asset set and returns the summary.
//
// Jobs are grouped by recipe and fed through one shared queue. The
// returned error is non-nil only for run-level failures; per-job failures
// land in the summary. Cancellation stops dispatch between jobs and yields
// a partial summary, not an error.
func (s *Scheduler) Run(ctx context.Context, assets []texture.Asset, outRoot string) (Summary, error) {
	jobs := s.BuildJobs(assets, outRoot)
	state := &runState{total: len(jobs)}

	queue := make(chan Job)
	var cancelled atomic.Bool

	var eg errgroup.Group
	eg.Go(func() error {
		defer close(queue)
		for _, batch := range groupByRecipe(jobs) {
			for _, job := range batch {
				select {
				case queue <- job:
				case <-ctx.Done():
					cancelled.Store(true)
					return nil
				}
			}
		}
		return nil
	})

	for range s.workers {
		eg.Go(func() error {
			for job := range queue {
				// Cancellation is honored between jobs, never mid-invocation.
				if ctx.Err() != nil {
					cancelled.Store(true)
					continue
				}
				s.runJob(ctx, job, state)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return state.summary(cancelled.Load()), err
	}

	sum := state.summary(cancelled.Load())
	s.log().Info("batch finished",
		"total", sum.Total,
		"converted", sum.Converted,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"cancelled", sum.Cancelled)
	return sum, nil
}

// runState accumulates outcomes across workers.
type runState struct {
	mu        sync.Mutex
	total     int
	done      int
	converted int
	skipped   int
	failed    int
	errors    []JobError
}

func (st *runState) summary(cancelled bool) Summary {
	st.mu.Lock()
	defer st.mu.Unlock()
	return Summary{
		Total:     st.total,
		Converted: st.converted,
		Skipped:   st.skipped,
		Failed:    st.failed,
		Errors:    append([]JobError(nil), st.errors...),
		Cancelled: cancelled,
	}
}

// runJob executes one job end to end: cache gate, dispatch with retries,
// cache record, observer notification.
func (s *Scheduler) runJob(ctx context.Context, job Job, state *runState) {
	fp := job.Asset.Entry.Fingerprint
	recipeID := job.Recipe.ID()

	if prev, ok, err := s.cc.Get(fp, recipeID); err != nil {
		// Cache errors degrade to a miss: redo the work.
		s.log().Warn("cache get failed", "path", job.Asset.Path, "error", err)
	} else if ok && prev.Status == cache.Success {
		s.finish(state, job, cache.Skipped, "")
		return
	}

	detail := ""
	status := cache.Success
	if err := s.dispatch(ctx, job); err != nil {
		status = cache.Failed
		detail = err.Error()
		s.log().Warn("job failed", "path", job.Asset.Path, "error", err)
	}

	res := cache.Result{
		Status:      status,
		Fingerprint: fp,
		RecipeID:    recipeID,
		Output:      job.Asset.Path,
		Detail:      detail,
	}
	if err := s.cc.Put(res); err != nil {
		// Non-fatal: losing a record only means redoing work next run.
		s.log().Warn("cache put failed", "path", job.Asset.Path, "error", err)
	}
	s.finish(state, job, status, detail)
}

// finish records the outcome and notifies the observer, in that order.
func (s *Scheduler) finish(state *runState, job Job, status cache.Status, detail string) {
	state.mu.Lock()
	state.done++
	switch status {
	case cache.Success:
		state.converted++
	case cache.Skipped:
		state.skipped++
	case cache.Failed:
		state.failed++
		state.errors = append(state.errors, JobError{Path: job.Asset.Path, Detail: detail})
	}
	done := state.done
	total := state.total
	state.mu.Unlock()

	if s.progress != nil {
		s.progress(Progress{Done: done, Total: total, Path: job.Asset.Path, Err: detail})
	}
}

// dispatch materializes the input, then invokes the converter with the
// configured retry budget.
func (s *Scheduler) dispatch(ctx context.Context, job Job) error {
	input, cleanup, err := s.materialize(job.Asset.Entry)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return fmt.Errorf("sched: output dir: %w", err)
	}

	req := convert.Request{
		Input:     input,
		OutputDir: job.OutputDir,
		Format:    job.Recipe.Format,
		MaxDim:    job.Recipe.MaxDim,
		SingleMip: job.Recipe.SingleMip,
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
		lastErr = s.conv.Convert(jobCtx, req)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// materialize returns an absolute on-disk input path for the entry,
// extracting archived entries to a temporary file.
func (s *Scheduler) materialize(e vfs.Entry) (string, func(), error) {
	if e.Kind == vfs.SourceLoose {
		abs, err := filepath.Abs(e.LoosePath)
		if err != nil {
			return "", nil, fmt.Errorf("sched: input path: %w", err)
		}
		return abs, func() {}, nil
	}

	data, err := vfs.ReadEntry(e)
	if err != nil {
		return "", nil, fmt.Errorf("sched: extract %s: %w", e.Path, err)
	}
	dir, err := os.MkdirTemp("", "texforge-*")
	if err != nil {
		return "", nil, fmt.Errorf("sched: temp dir: %w", err)
	}
	_, base := pathutil.Split(e.Path)
	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, fmt.Errorf("sched: extract %s: %w", e.Path, err)
	}
	return path, func() { _ = os.RemoveAll(dir) }, nil
}

// groupByRecipe batches jobs by recipe id in sorted key order.
func groupByRecipe(jobs []Job) [][]Job {
	byID := make(map[string][]Job)
	for _, job := range jobs {
		id := job.Recipe.ID()
		byID[id] = append(byID[id], job)
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	batches := make([][]Job, 0, len(ids))
	for _, id := range ids {
		batches = append(batches, byID[id])
	}
	return batches
}
