package models

import "time"

// RefreshStatus describes the refresh coordinator for monitoring
type RefreshStatus struct {
	IsRunning bool       `json:"is_running"`
	LastRunAt *time.Time `json:"last_run_at"`
	NextRunAt *time.Time `json:"next_run_at"`
	LastError *string    `json:"last_error"`
}

// Refresh cycle outcomes
const (
	CycleCompleted = "completed"
	CycleFailed    = "failed"
	CycleSkipped   = "skipped"
	CycleEmpty     = "empty"
)

// RefreshEvent is published when a refresh cycle finishes or is skipped
type RefreshEvent struct {
	CycleID    string    `json:"cycle_id,omitempty"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Symbols    int       `json:"symbols"`
	Prices     int       `json:"prices"`
	Ratios     int       `json:"ratios"`
	Earnings   int       `json:"earnings"`
	Error      string    `json:"error,omitempty"`
}

// CacheEntryStat describes one cache entry without exposing its value
type CacheEntryStat struct {
	Key       string    `json:"key"`
	Expired   bool      `json:"expired"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CacheStats is the monitoring view of the cache store
type CacheStats struct {
	TotalEntries  int              `json:"total_entries"`
	RefreshLocked bool             `json:"refresh_locked"`
	Entries       []CacheEntryStat `json:"entries"`
}
