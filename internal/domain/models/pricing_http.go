package models

// Requests for pricing HTTP endpoints. Defined in domain for consistency and reuse.

type PriceRequest struct {
	ProductKey string `param:"key" validate:"required,max=200"`
	Refresh    bool   `query:"refresh" json:"refresh"`
}

type FuseOptionsRequest struct {
	EnableValidation  *bool `json:"enable_validation,omitempty"`
	EnableBrandPrices *bool `json:"enable_brand_prices,omitempty"`
	UseDynamicTrust   *bool `json:"use_dynamic_trust,omitempty"`
	MinSourceCount    int   `json:"min_source_count" validate:"gte=0,lte=50"`
}

type FuseRequest struct {
	ProductKey string             `json:"product_key" validate:"required,max=200"`
	Quotes     []Quote            `json:"quotes" validate:"required,min=1,max=500"`
	Options    FuseOptionsRequest `json:"options"`
}

type RiskRequest struct {
	ProductKey string `param:"key" validate:"required,max=200"`
	WindowDays int    `query:"window_days" json:"window_days" default:"365" validate:"gte=7,lte=3650"`
}

type RiskAnalyzeRequest struct {
	ProductKey   string             `json:"product_key" validate:"max=200"`
	Quotes       []Quote            `json:"quotes" validate:"max=500"`
	PriceHistory []PricePoint       `json:"price_history" validate:"max=10000"`
	StockHistory []StockObservation `json:"stock_history" validate:"max=10000"`
}

type NormalizeRequest struct {
	Name string `query:"name" json:"name" validate:"required,max=300"`
}
