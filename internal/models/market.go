package models

import "time"

// PriceQuote is a current market price for one symbol
type PriceQuote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"cmp"`
	Currency  string    `json:"currency,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// RatioEarnings carries the P/E ratio and latest earnings date for a symbol.
// Either field may be nil when the source page omits it.
type RatioEarnings struct {
	Symbol         string    `json:"symbol"`
	PERatio        *float64  `json:"pe_ratio"`
	LatestEarnings *string   `json:"latest_earnings"`
	Timestamp      time.Time `json:"timestamp"`
}
