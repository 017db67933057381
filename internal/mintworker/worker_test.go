package mintworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/metrics"
)

type fakeSource struct {
	refreshFn func(ctx context.Context) (collectibles.Page, error)
	mintsFn   func(ctx context.Context, cursor string) (chain.MintPage, error)
}

func (f fakeSource) RefreshRecent(ctx context.Context) (collectibles.Page, error) {
	return f.refreshFn(ctx)
}

func (f fakeSource) RecentMintPage(ctx context.Context, cursor string) (chain.MintPage, error) {
	return f.mintsFn(ctx, cursor)
}

type fakeRecorder struct {
	recordFn func(contract string, m chain.Mint) (bool, error)
}

func (f fakeRecorder) RecordMintEvent(_ context.Context, contract string, m chain.Mint) (bool, error) {
	return f.recordFn(contract, m)
}

type fakeJournal struct {
	mu       sync.Mutex
	started  int
	finished []error
	stats    []map[string]any
}

func (f *fakeJournal) Start(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return "run-1", nil
}

func (f *fakeJournal) Finish(_ context.Context, _ string, stats map[string]any, runErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, runErr)
	f.stats = append(f.stats, stats)
	return nil
}

func threeItems(context.Context) (collectibles.Page, error) {
	return collectibles.Page{Items: []collectibles.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}}, nil
}

func TestWorker_RunOnce_RecordsMintEvents(t *testing.T) {
	var contracts []string
	src := fakeSource{
		refreshFn: threeItems,
		mintsFn: func(_ context.Context, cursor string) (chain.MintPage, error) {
			if cursor != "" {
				t.Fatalf("expected first page, got cursor %q", cursor)
			}
			return chain.MintPage{Mints: []chain.Mint{{TokenID: "1", FID: "10"}, {TokenID: "2", FID: "0"}, {TokenID: "3", FID: "30"}}}, nil
		},
	}
	rec := fakeRecorder{recordFn: func(contract string, m chain.Mint) (bool, error) {
		contracts = append(contracts, contract)
		switch m.TokenID {
		case "2":
			return false, nil
		case "3":
			return false, errors.New("db down")
		}
		return true, nil
	}}
	journal := &fakeJournal{}

	w := New(zerolog.Nop(), src, Options{Contract: "0xabc", Recorder: rec, Journal: journal}, metrics.New())
	if err := w.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	if len(contracts) != 3 || contracts[0] != "0xabc" {
		t.Fatalf("unexpected record calls %v", contracts)
	}
	if journal.started != 1 || len(journal.finished) != 1 || journal.finished[0] != nil {
		t.Fatalf("unexpected journal %+v", journal)
	}
	if got := journal.stats[0]; got["items"] != 3 || got["recorded"] != 1 {
		t.Fatalf("unexpected stats %v", got)
	}
}

func TestWorker_RunOnce_RefreshFailureIsJournaled(t *testing.T) {
	boom := errors.New("upstream 503")
	src := fakeSource{
		refreshFn: func(context.Context) (collectibles.Page, error) { return collectibles.Page{}, boom },
		mintsFn: func(context.Context, string) (chain.MintPage, error) {
			t.Fatalf("mint page should not be fetched after a failed refresh")
			return chain.MintPage{}, nil
		},
	}
	journal := &fakeJournal{}
	w := New(zerolog.Nop(), src, Options{Journal: journal, Recorder: fakeRecorder{}}, nil)

	if err := w.runOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected refresh error, got %v", err)
	}
	if len(journal.finished) != 1 || !errors.Is(journal.finished[0], boom) {
		t.Fatalf("expected failed run in journal, got %v", journal.finished)
	}
}

func TestWorker_RunOnce_WithoutRecorderSkipsMintPage(t *testing.T) {
	src := fakeSource{
		refreshFn: threeItems,
		mintsFn: func(context.Context, string) (chain.MintPage, error) {
			t.Fatalf("mint page should not be fetched without a recorder")
			return chain.MintPage{}, nil
		},
	}
	if err := New(zerolog.Nop(), src, Options{}, nil).runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
}

func TestBackoffDuration(t *testing.T) {
	cases := []struct {
		interval time.Duration
		failures int
		want     time.Duration
	}{
		{time.Minute, 0, time.Minute},
		{time.Minute, 1, 2 * time.Second},
		{time.Minute, 3, 8 * time.Second},
		{time.Minute, 6, time.Minute},
		{time.Minute, 50, time.Minute},
		{5 * time.Second, 3, 5 * time.Second},
		{0, 0, defaultInterval},
	}
	for _, tc := range cases {
		if got := backoffDuration(tc.interval, tc.failures); got != tc.want {
			t.Fatalf("backoffDuration(%v, %d) = %v, want %v", tc.interval, tc.failures, got, tc.want)
		}
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ran := make(chan struct{}, 4)
	src := fakeSource{refreshFn: func(ctx context.Context) (collectibles.Page, error) {
		ran <- struct{}{}
		return collectibles.Page{}, nil
	}}
	w := New(zerolog.Nop(), src, Options{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("first run never happened")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestWorker_NilIsNoop(t *testing.T) {
	var w *Worker
	w.Run(context.Background())
	New(zerolog.Nop(), nil, Options{}, nil).Run(context.Background())
}
