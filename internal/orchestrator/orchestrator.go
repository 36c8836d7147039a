// Package orchestrator fans a RepoSpec list out across bounded concurrency
// with per-operation timeouts and aggregates outcomes into a SyncSummary.
package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/reposentry/reposentry/internal/gitx"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/reposync"
)

// defaultTimeout is used when Options.Timeout is unset, per spec §5.
const defaultTimeout = 300 * time.Second

// minConcurrency / maxConcurrency bound the adaptive concurrency formula's
// output (spec §4.4).
const (
	minConcurrency = 1
	maxConcurrency = 12
)

// Options configures one orchestrator run.
type Options struct {
	// BaseParallel is the user-configured P_base (config.Sync.MaxParallel).
	BaseParallel int
	// Timeout is the per-operation deadline T. Defaults to 300s.
	Timeout time.Duration
	// SyncOptions is forwarded to the state machine for every repo.
	SyncOptions reposync.Options
	// Logger receives warn/info diagnostics; defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator dispatches RepoSpecs through a reposync.Machine with bounded
// concurrency and records results through a Store.
type Orchestrator struct {
	Machine *reposync.Machine
	Store   Store
}

// Store is the subset of the State Store the orchestrator writes through.
// A write failure is logged at warning level and never converted into a
// sync failure (spec §7).
type Store interface {
	RecordOutcome(ctx context.Context, outcome model.SyncOutcome) error
}

// New returns an Orchestrator using a default state machine and the given
// store.
func New(store Store) *Orchestrator {
	return &Orchestrator{Machine: reposync.New(), Store: store}
}

// EffectiveConcurrency computes P_eff from (P_base, repos) per spec §4.4.
func EffectiveConcurrency(baseParallel int, repos []model.RepoSpec) int {
	if baseParallel <= 0 {
		baseParallel = 4
	}

	sizeFactor := 1.0
	if len(repos) > 0 {
		var totalSize int64
		var sized int
		for _, r := range repos {
			if r.SizeBytes > 0 {
				totalSize += r.SizeBytes
				sized++
			}
		}
		var mean float64
		if len(repos) > 0 {
			mean = float64(totalSize) / float64(len(repos))
		}
		_ = sized
		switch {
		case mean > 50*1024*1024:
			sizeFactor = 0.5
		case mean > 10*1024*1024:
			sizeFactor = 0.75
		}
	}

	countFactor := 1.0
	switch {
	case len(repos) > 50:
		countFactor = math.Max(0.6, 3.0/float64(baseParallel))
	case len(repos) > 20:
		countFactor = 0.8
	}

	networkBase := float64(baseParallel)
	if baseParallel == 4 {
		networkBase = math.Min(6, float64(len(repos)))
	}

	calculated := int(math.Round(networkBase * sizeFactor * countFactor))
	if calculated < minConcurrency {
		calculated = minConcurrency
	}
	if calculated > maxConcurrency {
		calculated = maxConcurrency
	}
	return calculated
}

// Sync fans repos out across EffectiveConcurrency(opts) workers, one
// semaphore permit per in-flight repo, enforcing opts.Timeout per
// operation. Repos complete in no particular order, but each outcome is
// stored at its repo's input index, so SyncSummary.Outcomes follows the
// order of repos. Outcomes are then recorded through the Store and
// aggregated into a SyncSummary.
func (o *Orchestrator) Sync(ctx context.Context, repos []model.RepoSpec, opts Options) model.SyncSummary {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	concurrency := EffectiveConcurrency(opts.BaseParallel, repos)

	started := time.Now()
	outcomes := make([]model.SyncOutcome, len(repos))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, spec := range repos {
		wg.Add(1)
		go func(i int, spec model.RepoSpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = o.runOneWithTimeout(ctx, spec, opts.SyncOptions, timeout, logger)
		}(i, spec)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		if outcome.Kind == model.OutcomeFailed {
			logger.Warn("sync failed", "path", outcome.Path, "repo", outcome.RepoFullName, "error_class", outcome.ErrorClass, "error", outcome.Error)
		}
		if err := o.Store.RecordOutcome(ctx, outcome); err != nil {
			logger.Warn("state store write failed", "path", outcome.Path, "error", err)
		}
	}

	return compileSummary(outcomes, time.Since(started))
}

// runOneWithTimeout races the state machine's decision against a per-repo
// deadline; on deadline the outcome becomes Failed{"timed out"}. The
// orchestrator does not wait for an orphaned git subprocess past the
// timeout before recording the failure.
func (o *Orchestrator) runOneWithTimeout(ctx context.Context, spec model.RepoSpec, syncOpts reposync.Options, timeout time.Duration, logger *slog.Logger) model.SyncOutcome {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan model.SyncOutcome, 1)
	go func() {
		resultCh <- o.Machine.Decide(opCtx, spec, syncOpts)
	}()

	select {
	case outcome := <-resultCh:
		return outcome
	case <-opCtx.Done():
		if ctx.Err() != nil {
			// The parent context was canceled (daemon shutdown, Ctrl-C), not
			// this repo's own deadline — don't misclassify it as a timeout.
			logger.Warn("sync canceled", "path", spec.LocalPath)
			return model.Failed(spec.LocalPath, "sync canceled", "canceled", spec.FullName())
		}
		class := gitx.ClassifyError(opCtx.Err())
		logger.Warn("sync operation timed out", "path", spec.LocalPath, "timeout", timeout, "error_class", class)
		return model.Failed(spec.LocalPath, "Operation timed out after "+timeout.String(), class, spec.FullName())
	}
}

// Analyze runs the dry-run path: only the read-only analysis portion of the
// state machine, returning RepoStates without touching the Store.
func (o *Orchestrator) Analyze(ctx context.Context, repos []model.RepoSpec, opts Options, quiet bool) []model.RepoState {
	concurrency := EffectiveConcurrency(opts.BaseParallel, repos)
	states := make([]model.RepoState, len(repos))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, spec := range repos {
		wg.Add(1)
		go func(i int, spec model.RepoSpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			states[i] = o.Machine.Analyze(ctx, spec, quiet)
		}(i, spec)
	}
	wg.Wait()
	return states
}

// compileSummary implements the exact aggregation rule from spec §4.4 /
// the original engine's compile_summary: Cloned/Pulled/BranchSwitched/
// FetchedOnly/UpToDate count as successful; Skipped and Failed are their
// own buckets.
func compileSummary(outcomes []model.SyncOutcome, duration time.Duration) model.SyncSummary {
	summary := model.SyncSummary{Total: len(outcomes), Duration: duration, Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Successful():
			summary.Successful++
		case o.Kind == model.OutcomeSkipped:
			summary.Skipped++
		case o.Kind == model.OutcomeFailed:
			summary.Failed++
		}
	}
	return summary
}
