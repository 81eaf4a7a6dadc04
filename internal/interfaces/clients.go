// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// PriceFetcher retrieves the current market price for a symbol.
// One call is one attempt; implementations enforce their own timeout.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, symbol string) (*models.PriceQuote, error)
}

// RatioFetcher retrieves the P/E ratio and latest earnings date for a symbol.
// A nil field in the result means the source did not carry it.
type RatioFetcher interface {
	FetchRatioAndEarnings(ctx context.Context, symbol string) (*models.RatioEarnings, error)
}
