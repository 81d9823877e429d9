package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	xhttp "PriceFusion/pkg/http"
	"PriceFusion/pkg/util"
)

var _ domrepo.QuoteProvider = (*HTTPProvider)(nil)

// HTTPConfig describes one external quote service.
type HTTPConfig struct {
	Name     string
	URL      string
	Trust    float64
	Timeout  time.Duration
	Attempts int
}

// quoteResponse is the wire shape external services answer with.
type quoteResponse struct {
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    string          `json:"currency"`
	Unit        string          `json:"unit"`
	Brand       string          `json:"brand"`
	Quantity    float64         `json:"quantity"`
	AsOf        string          `json:"as_of"`
	StockStatus string          `json:"stock_status"`
	SourceTrust float64         `json:"source_trust"`
	Meta        map[string]any  `json:"meta"`
}

// HTTPProvider POSTs {"product_key": ...} to a quote service (statistics
// office, scraper, estimator) and maps the JSON answer to a Quote.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *xhttp.Client
	now    func() time.Time
}

func NewHTTPProvider(cfg HTTPConfig, opts ...xhttp.ClientOption) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}, opts...)
	return &HTTPProvider{cfg: cfg, client: xhttp.NewClient(opts...), now: time.Now}
}

func (p *HTTPProvider) Name() string { return p.cfg.Name }

func (p *HTTPProvider) Fetch(ctx context.Context, productKey string) (*models.Quote, error) {
	var resp quoteResponse
	err := p.client.SendWithRetry(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    p.cfg.URL,
		Body:   map[string]string{"product_key": productKey},
	}, &resp, p.cfg.Attempts)
	if errors.Is(err, xhttp.ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.cfg.Name, err)
	}
	return p.toQuote(productKey, resp), nil
}

// toQuote keeps a zero AsOf when the service sent an unparseable timestamp so
// the validator can reject it.
func (p *HTTPProvider) toQuote(productKey string, r quoteResponse) *models.Quote {
	q := &models.Quote{
		ProductKey:  productKey,
		UnitPrice:   r.UnitPrice,
		Currency:    models.Currency(r.Currency),
		Unit:        r.Unit,
		Source:      p.cfg.Name,
		SourceTrust: r.SourceTrust,
		Brand:       r.Brand,
		Quantity:    r.Quantity,
		StockStatus: models.StockStatus(r.StockStatus),
		Meta:        r.Meta,
	}
	if q.SourceTrust == 0 {
		q.SourceTrust = p.cfg.Trust
	}
	if r.AsOf == "" {
		q.AsOf = p.now()
	} else if t, ok := util.ParseTime(r.AsOf); ok {
		q.AsOf = t
	}
	return q
}
