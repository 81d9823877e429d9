package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 style currency code.
type Currency string

const (
	CurrencyTRY Currency = "TRY"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// StockStatus reports availability at a single source.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLimited    StockStatus = "limited"
	StockOutOfStock StockStatus = "out_of_stock"
	StockUnknown    StockStatus = "unknown"
)

// Known reports whether the status carries availability information.
func (s StockStatus) Known() bool {
	switch s {
	case StockInStock, StockLimited, StockOutOfStock:
		return true
	}
	return false
}

// Well-known source names. Providers may use any other name; trust then falls
// back to the configured prior or the default.
const (
	SourceGovStats     = "gov_stats"
	SourceCuratedDB    = "curated_db"
	SourceHistoricalDB = "historical_db"
	SourceWebScrape    = "web_scrape"
	SourceAIEstimate   = "ai_estimate"
)

// MetaOriginSource names the live source a historical_db quote was first
// reported by.
const MetaOriginSource = "origin_source"

// Quote is a single price observation from one source.
// SourceTrust of zero means the source did not state a trust value.
type Quote struct {
	ProductKey  string          `json:"product_key"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    Currency        `json:"currency"`
	Unit        string          `json:"unit,omitempty"`
	Source      string          `json:"source"`
	SourceTrust float64         `json:"source_trust,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	Quantity    float64         `json:"quantity,omitempty"`
	AsOf        time.Time       `json:"as_of"`
	StockStatus StockStatus     `json:"stock_status,omitempty"`
	Meta        map[string]any  `json:"meta,omitempty"`
}

// Price returns the unit price as float64 for statistics.
func (q Quote) Price() float64 {
	return q.UnitPrice.InexactFloat64()
}

// Rejection explains why a quote was excluded before fusion.
type Rejection struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Rejection reason codes.
const (
	RejectNonPositivePrice = "non_positive_price"
	RejectUnknownCurrency  = "unknown_currency"
	RejectBadTimestamp     = "unparseable_timestamp"
	RejectFutureTimestamp  = "future_timestamp"
	RejectStale            = "stale"
	RejectTrustOutOfRange  = "trust_out_of_range"
)

// SourceAccuracy is the historical deviation of a source from fused prices.
type SourceAccuracy struct {
	MeanDeviation float64 `json:"mean_deviation"`
	Samples       int     `json:"samples"`
}
