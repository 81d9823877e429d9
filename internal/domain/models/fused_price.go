package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend direction labels shared by volatility and forecast.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// Volatility classification labels.
const (
	VolatilityLow    = "low"
	VolatilityMedium = "medium"
	VolatilityHigh   = "high"
)

// SourceWeight is the normalized contribution of one surviving quote.
type SourceWeight struct {
	Source    string          `json:"source"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Weight    float64         `json:"weight"`
}

// BrandPrice is the trust-weighted price of one brand.
type BrandPrice struct {
	Brand string          `json:"brand"`
	Price decimal.Decimal `json:"price"`
	Count int             `json:"count"`
}

type Forecast struct {
	NextPeriod float64 `json:"next_period"`
	Confidence float64 `json:"confidence"`
	Trend      string  `json:"trend"`
	Clamped    bool    `json:"clamped,omitempty"`
}

type Volatility struct {
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	Trend                  string  `json:"trend"`
	Classification         string  `json:"classification"`
}

// FusedPrice is the consolidated estimate for one product. Values handed out
// by the engine or the cache are never mutated afterwards.
type FusedPrice struct {
	ProductKey      string          `json:"product_key"`
	Price           decimal.Decimal `json:"price"`
	Confidence      float64         `json:"confidence"`
	Unit            string          `json:"unit,omitempty"`
	Currency        Currency        `json:"currency"`
	Sources         []SourceWeight  `json:"sources"`
	PriceByBrand    []BrandPrice    `json:"price_by_brand,omitempty"`
	StockStatus     StockStatus     `json:"stock_status"`
	Forecast        *Forecast       `json:"forecast,omitempty"`
	Volatility      *Volatility     `json:"volatility,omitempty"`
	AsOf            time.Time       `json:"as_of"`
	Rejections      []Rejection     `json:"rejections,omitempty"`
	OutliersRemoved []string        `json:"outliers_removed,omitempty"`
}

// Clone returns a deep copy so callers may attach enrichment without touching
// a shared value.
func (f FusedPrice) Clone() FusedPrice {
	out := f
	out.Sources = append([]SourceWeight(nil), f.Sources...)
	out.PriceByBrand = append([]BrandPrice(nil), f.PriceByBrand...)
	out.Rejections = append([]Rejection(nil), f.Rejections...)
	out.OutliersRemoved = append([]string(nil), f.OutliersRemoved...)
	if f.Forecast != nil {
		fc := *f.Forecast
		out.Forecast = &fc
	}
	if f.Volatility != nil {
		v := *f.Volatility
		out.Volatility = &v
	}
	return out
}
