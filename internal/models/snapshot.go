package models

import "time"

// HoldingSnapshot is a holding enriched with cached market data
type HoldingSnapshot struct {
	Holding
	CMP                float64   `json:"cmp"`
	PresentValue       float64   `json:"present_value"`
	GainLoss           float64   `json:"gain_loss"`
	GainLossPercentage float64   `json:"gain_loss_percentage"`
	PERatio            *float64  `json:"pe_ratio"`
	LatestEarnings     *string   `json:"latest_earnings"`
	LastUpdated        time.Time `json:"last_updated"`
}

// SectorSummary aggregates the holdings of one sector
type SectorSummary struct {
	Sector             string            `json:"sector"`
	TotalInvestment    float64           `json:"total_investment"`
	TotalPresentValue  float64           `json:"total_present_value"`
	GainLoss           float64           `json:"gain_loss"`
	GainLossPercentage float64           `json:"gain_loss_percentage"`
	Holdings           []HoldingSnapshot `json:"holdings"`
}

// PortfolioSnapshot is the assembled, read-time view of the portfolio.
// It is derived on every request and never stored.
type PortfolioSnapshot struct {
	TotalInvestment         float64         `json:"total_investment"`
	TotalPresentValue       float64         `json:"total_present_value"`
	TotalGainLoss           float64         `json:"total_gain_loss"`
	TotalGainLossPercentage float64         `json:"total_gain_loss_percentage"`
	Sectors                 []SectorSummary `json:"sectors"`
	LastUpdated             time.Time       `json:"last_updated"`
}
