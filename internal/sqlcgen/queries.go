package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const getFidExtraction = `-- name: GetFidExtraction :one
SELECT contract, token_id, fid, method, tx_hash, created_at, updated_at
FROM fid_extractions
WHERE contract = $1 AND token_id = $2
`

func (q *Queries) GetFidExtraction(ctx context.Context, contract string, tokenID string) (FidExtraction, error) {
	row := q.db.QueryRow(ctx, getFidExtraction, contract, tokenID)
	var i FidExtraction
	err := row.Scan(
		&i.Contract,
		&i.TokenID,
		&i.Fid,
		&i.Method,
		&i.TxHash,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

// A mint_event row is only replaced by another mint_event row.
const upsertFidExtraction = `-- name: UpsertFidExtraction :exec
INSERT INTO fid_extractions (contract, token_id, fid, method, tx_hash)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (contract, token_id) DO UPDATE
SET fid = EXCLUDED.fid,
    method = EXCLUDED.method,
    tx_hash = COALESCE(EXCLUDED.tx_hash, fid_extractions.tx_hash),
    updated_at = now()
WHERE fid_extractions.method <> 'mint_event' OR EXCLUDED.method = 'mint_event'
`

type UpsertFidExtractionParams struct {
	Contract string
	TokenID  string
	Fid      int64
	Method   string
	TxHash   *string
}

func (q *Queries) UpsertFidExtraction(ctx context.Context, arg UpsertFidExtractionParams) error {
	_, err := q.db.Exec(ctx, upsertFidExtraction, arg.Contract, arg.TokenID, arg.Fid, arg.Method, arg.TxHash)
	return err
}

const listFidExtractions = `-- name: ListFidExtractions :many
SELECT contract, token_id, fid, method, tx_hash, created_at, updated_at
FROM fid_extractions
WHERE contract = $1
ORDER BY updated_at DESC, token_id ASC
LIMIT $2
`

func (q *Queries) ListFidExtractions(ctx context.Context, contract string, limit int32) ([]FidExtraction, error) {
	rows, err := q.db.Query(ctx, listFidExtractions, contract, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FidExtraction
	for rows.Next() {
		var i FidExtraction
		if err := rows.Scan(
			&i.Contract,
			&i.TokenID,
			&i.Fid,
			&i.Method,
			&i.TxHash,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertRefreshRun = `-- name: InsertRefreshRun :one
INSERT INTO refresh_runs (status, stats)
VALUES ($1, COALESCE($2, '{}'::jsonb))
RETURNING id, status, stats, started_at, completed_at, last_error
`

func (q *Queries) InsertRefreshRun(ctx context.Context, status string, stats map[string]any) (RefreshRun, error) {
	row := q.db.QueryRow(ctx, insertRefreshRun, status, stats)
	var i RefreshRun
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.Stats,
		&i.StartedAt,
		&i.CompletedAt,
		&i.LastError,
	)
	return i, err
}

const updateRefreshRun = `-- name: UpdateRefreshRun :one
UPDATE refresh_runs
SET status = $2,
    stats = COALESCE($3, stats),
    completed_at = $4,
    last_error = $5
WHERE id = $1
RETURNING id, status, stats, started_at, completed_at, last_error
`

type UpdateRefreshRunParams struct {
	ID          string
	Status      string
	Stats       map[string]any
	CompletedAt *time.Time
	LastError   *string
}

func (q *Queries) UpdateRefreshRun(ctx context.Context, arg UpdateRefreshRunParams) (RefreshRun, error) {
	row := q.db.QueryRow(ctx, updateRefreshRun, arg.ID, arg.Status, arg.Stats, arg.CompletedAt, arg.LastError)
	var i RefreshRun
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.Stats,
		&i.StartedAt,
		&i.CompletedAt,
		&i.LastError,
	)
	return i, err
}

const getLatestRefreshRun = `-- name: GetLatestRefreshRun :one
SELECT id, status, stats, started_at, completed_at, last_error
FROM refresh_runs
ORDER BY started_at DESC
LIMIT 1
`

func (q *Queries) GetLatestRefreshRun(ctx context.Context) (RefreshRun, error) {
	row := q.db.QueryRow(ctx, getLatestRefreshRun)
	var i RefreshRun
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.Stats,
		&i.StartedAt,
		&i.CompletedAt,
		&i.LastError,
	)
	return i, err
}
