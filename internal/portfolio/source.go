// Package portfolio loads the static holding list and serves it read-only
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// ErrNotConfigured is returned when neither a workbook nor inline holdings are set
var ErrNotConfigured = errors.New("no portfolio source configured")

// Source serves holdings loaded once at startup
type Source struct {
	holdings []models.Holding
}

// NewSource wraps an already built holding list. Derived fields are recomputed.
func NewSource(holdings []models.Holding) *Source {
	return &Source{holdings: finalize(holdings)}
}

// Load builds a Source from config. Inline holdings win over the workbook path.
func Load(cfg common.PortfolioConfig, logger *common.Logger) (*Source, error) {
	var (
		holdings []models.Holding
		err      error
	)

	switch {
	case len(cfg.Holdings) > 0:
		holdings = fromConfig(cfg.Holdings)
		logger.Info().Int("holdings", len(holdings)).Msg("Portfolio loaded from config")
	case cfg.FilePath != "":
		holdings, err = ReadWorkbook(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load portfolio data: %w", err)
		}
		logger.Info().Str("path", cfg.FilePath).Int("holdings", len(holdings)).Msg("Portfolio loaded from workbook")
	default:
		return nil, ErrNotConfigured
	}

	src := NewSource(holdings)
	logger.Debug().Strs("symbols", src.Symbols()).Msg("Portfolio symbols")
	return src, nil
}

// Holdings returns a copy of the holdings in source order
func (s *Source) Holdings(_ context.Context) ([]models.Holding, error) {
	out := make([]models.Holding, len(s.holdings))
	copy(out, s.holdings)
	return out, nil
}

// Len returns the number of holdings
func (s *Source) Len() int {
	return len(s.holdings)
}

// Symbols returns the non-empty symbols in source order
func (s *Source) Symbols() []string {
	symbols := make([]string, 0, len(s.holdings))
	for _, h := range s.holdings {
		if h.Symbol != "" {
			symbols = append(symbols, h.Symbol)
		}
	}
	return symbols
}

func fromConfig(items []common.HoldingConfig) []models.Holding {
	holdings := make([]models.Holding, 0, len(items))
	for i, item := range items {
		name := item.Name
		if name == "" {
			name = fmt.Sprintf("Stock %d", i+1)
		}
		holdings = append(holdings, models.Holding{
			Symbol:        strings.TrimSpace(item.Symbol),
			Name:          name,
			Exchange:      item.Exchange,
			Sector:        strings.TrimSpace(item.Sector),
			Quantity:      item.Quantity,
			PurchasePrice: item.PurchasePrice,
		})
	}
	return holdings
}

// finalize fills defaults, investment, and each holding's share of the total.
func finalize(in []models.Holding) []models.Holding {
	out := make([]models.Holding, len(in))
	total := decimal.Zero
	investments := make([]decimal.Decimal, len(in))

	for i, h := range in {
		if h.Quantity < 0 {
			h.Quantity = 0
		}
		if h.PurchasePrice < 0 {
			h.PurchasePrice = 0
		}
		if h.Exchange == "" {
			h.Exchange = models.DefaultExchange
		}
		if h.Sector == "" {
			h.Sector = models.UnknownSector
		}
		inv := decimal.NewFromFloat(h.PurchasePrice).Mul(decimal.NewFromFloat(h.Quantity))
		h.Investment = inv.InexactFloat64()
		investments[i] = inv
		total = total.Add(inv)
		out[i] = h
	}

	for i := range out {
		if total.IsPositive() {
			out[i].PortfolioPercentage = investments[i].Div(total).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
		} else {
			out[i].PortfolioPercentage = 0
		}
	}
	return out
}

var _ interfaces.PortfolioSource = (*Source)(nil)
