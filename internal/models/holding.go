// Package models defines data structures for Folio
package models

// UnknownSector labels holdings whose source row carries no sector.
const UnknownSector = "Unknown"

// DefaultExchange is used when a holding does not name its listing venue.
const DefaultExchange = "NSE"

// Holding is one portfolio position as loaded from the portfolio source.
// Holdings are built once at load time and never mutated afterwards.
type Holding struct {
	Symbol              string  `json:"symbol"` // may be empty when the source row is malformed
	Name                string  `json:"particulars"`
	Exchange            string  `json:"exchange"`
	Sector              string  `json:"sector"`
	Quantity            float64 `json:"quantity"`
	PurchasePrice       float64 `json:"purchase_price"`
	Investment          float64 `json:"investment"`           // purchase price x quantity
	PortfolioPercentage float64 `json:"portfolio_percentage"` // share of total investment
}

// SectorOrUnknown returns the sector label, or UnknownSector when blank.
func (h Holding) SectorOrUnknown() string {
	if h.Sector == "" {
		return UnknownSector
	}
	return h.Sector
}
