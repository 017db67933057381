package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"fc_explorer/core-go/internal/fid"
	"fc_explorer/core-go/internal/sqlcgen"
)

// Queryer is the subset of sqlcgen.Queries the ledger uses.
type Queryer interface {
	GetFidExtraction(ctx context.Context, contract string, tokenID string) (sqlcgen.FidExtraction, error)
	UpsertFidExtraction(ctx context.Context, arg sqlcgen.UpsertFidExtractionParams) error
}

// Ledger stores extraction outcomes in fid_extractions. It implements
// fid.Ledger.
type Ledger struct {
	q Queryer
}

func NewLedger(q Queryer) *Ledger {
	return &Ledger{q: q}
}

func (l *Ledger) LookupFID(ctx context.Context, contract, tokenID string) (fid.Result, bool, error) {
	row, err := l.q.GetFidExtraction(ctx, strings.ToLower(contract), tokenID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fid.Result{}, false, nil
	}
	if err != nil {
		return fid.Result{}, false, fmt.Errorf("get fid extraction: %w", err)
	}
	return fid.Result{ID: strconv.FormatInt(row.Fid, 10), Success: true, Method: row.Method}, true, nil
}

func (l *Ledger) RecordFID(ctx context.Context, contract, tokenID, txHash string, r fid.Result) error {
	if !r.Success {
		return nil
	}
	n, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("fid %q: %w", r.ID, err)
	}
	var hash *string
	if h := strings.TrimSpace(txHash); h != "" {
		hash = &h
	}
	err = l.q.UpsertFidExtraction(ctx, sqlcgen.UpsertFidExtractionParams{
		Contract: strings.ToLower(contract),
		TokenID:  tokenID,
		Fid:      n,
		Method:   r.Method,
		TxHash:   hash,
	})
	if err != nil {
		return fmt.Errorf("upsert fid extraction: %w", err)
	}
	return nil
}

// RunQueryer is the subset of sqlcgen.Queries the run journal uses.
type RunQueryer interface {
	InsertRefreshRun(ctx context.Context, status string, stats map[string]any) (sqlcgen.RefreshRun, error)
	UpdateRefreshRun(ctx context.Context, arg sqlcgen.UpdateRefreshRunParams) (sqlcgen.RefreshRun, error)
}

// RunJournal records background refresh runs in refresh_runs.
type RunJournal struct {
	q   RunQueryer
	now func() time.Time
}

func NewRunJournal(q RunQueryer) *RunJournal {
	return &RunJournal{q: q, now: time.Now}
}

// Start opens a run in the running state and returns its id.
func (j *RunJournal) Start(ctx context.Context) (string, error) {
	run, err := j.q.InsertRefreshRun(ctx, "running", nil)
	if err != nil {
		return "", fmt.Errorf("insert refresh run: %w", err)
	}
	return run.ID, nil
}

// Finish closes a run as succeeded or failed depending on runErr.
func (j *RunJournal) Finish(ctx context.Context, id string, stats map[string]any, runErr error) error {
	completed := j.now().UTC()
	arg := sqlcgen.UpdateRefreshRunParams{
		ID:          id,
		Status:      "succeeded",
		Stats:       stats,
		CompletedAt: &completed,
	}
	if runErr != nil {
		msg := runErr.Error()
		arg.Status = "failed"
		arg.LastError = &msg
	}
	if _, err := j.q.UpdateRefreshRun(ctx, arg); err != nil {
		return fmt.Errorf("update refresh run: %w", err)
	}
	return nil
}
