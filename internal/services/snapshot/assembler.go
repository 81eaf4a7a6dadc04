// Package snapshot assembles the portfolio view from holdings and cached
// market data. It only ever reads the cache in stale mode and never waits on
// or triggers a refresh.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/cache"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// ErrNoData is returned when there are no holdings to build a snapshot from
var ErrNoData = errors.New("portfolio data not available yet")

var hundred = decimal.NewFromInt(100)

// Assembler builds PortfolioSnapshots
type Assembler struct {
	source interfaces.PortfolioSource
	store  *cache.Store
	logger *common.Logger
	now    func() time.Time // injectable clock for testing
}

// NewAssembler creates an assembler reading holdings from source and market
// data from store
func NewAssembler(source interfaces.PortfolioSource, store *cache.Store, logger *common.Logger) *Assembler {
	return &Assembler{
		source: source,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Assemble returns the current snapshot. Holdings without a cached price are
// valued at their purchase price.
func (a *Assembler) Assemble(ctx context.Context) (*models.PortfolioSnapshot, error) {
	holdings, err := a.source.Holdings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read holdings: %w", err)
	}
	if len(holdings) == 0 {
		return nil, ErrNoData
	}

	now := a.now()
	enriched := make([]models.HoldingSnapshot, 0, len(holdings))
	missing := 0
	for _, h := range holdings {
		hs, cached := a.enrich(h, now)
		if !cached {
			missing++
		}
		enriched = append(enriched, hs)
	}
	if missing > 0 {
		a.logger.Debug().Int("holdings", len(holdings)).Int("without_price", missing).Msg("Snapshot uses purchase price for uncached holdings")
	}

	sectors := groupBySector(enriched)

	var invested, present decimal.Decimal
	for _, s := range sectors {
		invested = invested.Add(decimal.NewFromFloat(s.TotalInvestment))
		present = present.Add(decimal.NewFromFloat(s.TotalPresentValue))
	}
	gain, pct := gainLoss(invested, present)

	return &models.PortfolioSnapshot{
		TotalInvestment:         invested.InexactFloat64(),
		TotalPresentValue:       present.InexactFloat64(),
		TotalGainLoss:           gain,
		TotalGainLossPercentage: pct,
		Sectors:                 sectors,
		LastUpdated:             now,
	}, nil
}

// enrich values one holding from the cache. The bool reports whether a
// cached price was used.
func (a *Assembler) enrich(h models.Holding, now time.Time) (models.HoldingSnapshot, bool) {
	hs := models.HoldingSnapshot{
		Holding:     h,
		CMP:         h.PurchasePrice,
		LastUpdated: now,
	}

	cached := false
	if entry, ok := a.store.GetStaleEntry(cache.PriceKey(h.Symbol)); ok {
		if quote, ok := entry.Value.(models.PriceQuote); ok && quote.Price > 0 {
			hs.CMP = quote.Price
			hs.LastUpdated = entry.UpdatedAt
			cached = true
		}
	}

	if pe, ok := cache.Stale[float64](a.store, cache.PERatioKey(h.Symbol)); ok {
		hs.PERatio = &pe
	}
	if earnings, ok := cache.Stale[string](a.store, cache.EarningsKey(h.Symbol)); ok {
		hs.LatestEarnings = &earnings
	}

	invested := decimal.NewFromFloat(h.Investment)
	present := decimal.NewFromFloat(hs.CMP).Mul(decimal.NewFromFloat(h.Quantity))
	hs.PresentValue = present.InexactFloat64()
	hs.GainLoss, hs.GainLossPercentage = gainLoss(invested, present)

	return hs, cached
}

// groupBySector keeps sectors in the order they are first seen
func groupBySector(holdings []models.HoldingSnapshot) []models.SectorSummary {
	index := make(map[string]int)
	var sectors []models.SectorSummary

	for _, h := range holdings {
		name := h.SectorOrUnknown()
		i, ok := index[name]
		if !ok {
			i = len(sectors)
			index[name] = i
			sectors = append(sectors, models.SectorSummary{Sector: name})
		}
		sectors[i].Holdings = append(sectors[i].Holdings, h)
	}

	for i := range sectors {
		var invested, present decimal.Decimal
		for _, h := range sectors[i].Holdings {
			invested = invested.Add(decimal.NewFromFloat(h.Investment))
			present = present.Add(decimal.NewFromFloat(h.PresentValue))
		}
		sectors[i].TotalInvestment = invested.InexactFloat64()
		sectors[i].TotalPresentValue = present.InexactFloat64()
		sectors[i].GainLoss, sectors[i].GainLossPercentage = gainLoss(invested, present)
	}
	return sectors
}

// gainLoss returns present - invested and its percentage of invested,
// 0 when nothing was invested
func gainLoss(invested, present decimal.Decimal) (float64, float64) {
	gain := present.Sub(invested)
	if invested.Sign() <= 0 {
		return gain.InexactFloat64(), 0
	}
	return gain.InexactFloat64(), gain.Div(invested).Mul(hundred).InexactFloat64()
}

var _ interfaces.SnapshotAssembler = (*Assembler)(nil)
