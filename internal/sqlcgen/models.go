package sqlcgen

import "time"

type FidExtraction struct {
	Contract  string
	TokenID   string
	Fid       int64
	Method    string
	TxHash    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RefreshRun struct {
	ID          string
	Status      string
	Stats       map[string]any
	StartedAt   time.Time
	CompletedAt *time.Time
	LastError   *string
}
