// Package mintworker keeps the recent-items cache warm and copies the
// account ids carried by mint events into the FID ledger.
package mintworker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/metrics"
)

const (
	defaultInterval   = time.Minute
	defaultMaxRuntime = 30 * time.Second
	retryBase         = time.Second
)

// Source is the data service side of the worker. *collectibles.Service
// satisfies it.
type Source interface {
	RefreshRecent(ctx context.Context) (collectibles.Page, error)
	RecentMintPage(ctx context.Context, cursor string) (chain.MintPage, error)
}

// Recorder stores authoritative ids. *fid.Service satisfies it.
type Recorder interface {
	RecordMintEvent(ctx context.Context, contract string, m chain.Mint) (bool, error)
}

// Journal keeps a history of runs. *db.RunJournal satisfies it.
type Journal interface {
	Start(ctx context.Context) (string, error)
	Finish(ctx context.Context, id string, stats map[string]any, runErr error) error
}

type Worker struct {
	log        zerolog.Logger
	src        Source
	rec        Recorder
	journal    Journal
	interval   time.Duration
	runDelay   time.Duration
	maxRuntime time.Duration
	contract   string
	metrics    *metrics.Metrics
}

type Options struct {
	Interval   time.Duration
	RunDelay   time.Duration
	MaxRuntime time.Duration
	Contract   string
	// Recorder and Journal are optional.
	Recorder Recorder
	Journal  Journal
}

func New(log zerolog.Logger, src Source, opts Options, m *metrics.Metrics) *Worker {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	rd := opts.RunDelay
	if rd < 0 {
		rd = 0
	}
	mr := opts.MaxRuntime
	if mr <= 0 {
		mr = defaultMaxRuntime
	}
	contract := opts.Contract
	if contract == "" {
		contract = chain.DefaultContract
	}
	return &Worker{
		log:        log,
		src:        src,
		rec:        opts.Recorder,
		journal:    opts.Journal,
		interval:   interval,
		runDelay:   rd,
		maxRuntime: mr,
		contract:   contract,
		metrics:    m,
	}
}

// Run refreshes until ctx is cancelled. The first run starts after RunDelay.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.src == nil {
		return
	}

	timer := time.NewTimer(w.runDelay)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := w.runOnce(ctx); err != nil {
			consecutiveFailures++
			w.log.Warn().Err(err).Int("failures", consecutiveFailures).Msg("recent items refresh failed")
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(w.interval, consecutiveFailures))
	}
}

// backoffDuration is the wait before the next run: the interval after a
// success, otherwise retryBase doubled per failure and capped at the interval.
func backoffDuration(interval time.Duration, failures int) time.Duration {
	if interval <= 0 {
		interval = defaultInterval
	}
	if failures <= 0 {
		return interval
	}
	if failures > 6 {
		failures = 6
	}
	d := retryBase * time.Duration(1<<failures)
	if d > interval {
		return interval
	}
	return d
}

func (w *Worker) runOnce(ctx context.Context) (err error) {
	w.metrics.IncRefreshRun()
	start := time.Now()
	defer func() {
		w.metrics.ObserveRefreshRunDuration(time.Since(start))
	}()

	runID := w.startRun(ctx)
	stats := map[string]any{}
	defer func() {
		w.finishRun(ctx, runID, stats, err)
	}()

	execCtx, cancel := context.WithTimeout(ctx, w.maxRuntime)
	defer cancel()

	page, err := w.src.RefreshRecent(execCtx)
	if err != nil {
		return err
	}
	stats["items"] = len(page.Items)

	if w.rec == nil {
		return nil
	}
	mp, err := w.src.RecentMintPage(execCtx, "")
	if err != nil {
		return err
	}
	recorded := 0
	for _, m := range mp.Mints {
		ok, err := w.rec.RecordMintEvent(execCtx, w.contract, m)
		if err != nil {
			w.log.Warn().Err(err).Str("token_id", m.TokenID).Msg("mint event not recorded")
			continue
		}
		if ok {
			recorded++
		}
	}
	stats["recorded"] = recorded

	w.log.Debug().
		Int("items", len(page.Items)).
		Int("recorded", recorded).
		Dur("elapsed", time.Since(start)).
		Msg("recent items refreshed")
	return nil
}

func (w *Worker) startRun(ctx context.Context) string {
	if w.journal == nil {
		return ""
	}
	id, err := w.journal.Start(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("refresh run not journaled")
		return ""
	}
	return id
}

func (w *Worker) finishRun(ctx context.Context, id string, stats map[string]any, runErr error) {
	if w.journal == nil || id == "" {
		return
	}
	if err := w.journal.Finish(ctx, id, stats, runErr); err != nil {
		w.log.Warn().Err(err).Str("run_id", id).Msg("refresh run not closed")
	}
}
