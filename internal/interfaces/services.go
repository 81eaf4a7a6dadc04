// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// PortfolioSource supplies the static holding list
type PortfolioSource interface {
	// Holdings returns the holdings in source order
	Holdings(ctx context.Context) ([]models.Holding, error)
}

// RefreshCoordinator runs single-flight refresh cycles
type RefreshCoordinator interface {
	// TryRunCycle runs one cycle unless one is already running.
	// Returns false when the cycle was skipped.
	TryRunCycle(ctx context.Context) bool

	// Trigger starts a cycle in the background unless one is already running.
	Trigger(ctx context.Context) bool

	// Status returns a copy of the current refresh status
	Status() models.RefreshStatus
}

// SnapshotAssembler builds the portfolio view from cached market data
type SnapshotAssembler interface {
	Assemble(ctx context.Context) (*models.PortfolioSnapshot, error)
}

// CacheInspector exposes read-only cache statistics
type CacheInspector interface {
	Stats() models.CacheStats
}

// RefreshNotifier receives refresh cycle events
type RefreshNotifier interface {
	Notify(event models.RefreshEvent)
}
