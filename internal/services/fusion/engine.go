package fusion

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/services/features"
)

const pricePlaces = 4

// Engine turns a batch of quotes for one product into a FusedPrice. It is
// synchronous, holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg       Config
	validator *Validator
	trust     *TrustScorer
	now       func() time.Time
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{cfg: cfg.withDefaults(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.validator = NewValidator(e.cfg, e.now)
	e.trust = NewTrustScorer(e.cfg, e.now)
	return e
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Validator() *Validator { return e.validator }

func (e *Engine) TrustScorer() *TrustScorer { return e.trust }

// weighted is a quote plus its raw trust weight.
type weighted struct {
	q     models.Quote
	price float64
	trust float64
}

// Fuse validates, filters outliers and combines quotes. On failure it returns
// a *Error carrying the observed and required counts.
func (e *Engine) Fuse(quotes []models.Quote, opts Options) (models.FusedPrice, error) {
	required := opts.MinSourceCount
	if required <= 0 {
		required = e.cfg.MinSourceCount
	}

	var valid []models.Quote
	var rejections []models.Rejection
	if opts.EnableValidation {
		valid, rejections = e.validator.ValidateBatch(quotes)
	} else {
		valid, rejections = positiveOnly(quotes)
	}

	valid, mismatched := dominantCurrency(valid)
	rejections = append(rejections, mismatched...)

	if len(valid) < required {
		return models.FusedPrice{}, &Error{
			Reason:     ErrInsufficientSources,
			Observed:   len(valid),
			Required:   required,
			Rejections: rejections,
		}
	}

	mode := TrustStatic
	if opts.UseDynamicTrust {
		mode = TrustDynamic
	}
	items := make([]weighted, len(valid))
	for i, q := range valid {
		items[i] = weighted{q: q, price: q.Price(), trust: e.trust.Score(q, mode, opts.Accuracy)}
	}

	kept, dropped := rejectOutliers(items, e.cfg.MADThreshold)

	weights := normalizedWeights(kept)
	var price float64
	for i, it := range kept {
		price += weights[i] * it.price
	}
	var fused decimal.Decimal
	if !math.IsNaN(price) && !math.IsInf(price, 0) {
		fused = roundPrice(price)
	}
	if fused.Sign() <= 0 {
		return models.FusedPrice{}, &Error{
			Reason:     ErrFusionFailed,
			Detail:     "weighted price is not a positive number",
			Observed:   len(kept),
			Required:   required,
			Rejections: rejections,
		}
	}

	fp := models.FusedPrice{
		ProductKey:  firstProductKey(kept),
		Price:       fused,
		Confidence:  e.confidence(kept),
		Unit:        commonUnit(kept),
		Currency:    kept[0].q.Currency,
		Sources:     make([]models.SourceWeight, len(kept)),
		StockStatus: aggregateStock(kept),
		AsOf:        newest(kept),
		Rejections:  rejections,
	}
	for i, it := range kept {
		fp.Sources[i] = models.SourceWeight{Source: it.q.Source, UnitPrice: it.q.UnitPrice, Weight: weights[i]}
	}
	for _, it := range dropped {
		fp.OutliersRemoved = append(fp.OutliersRemoved, it.q.Source)
	}
	if opts.EnableBrandPrices {
		fp.PriceByBrand = brandBreakdown(kept)
	}
	return fp, nil
}

// roundPrice rounds to pricePlaces unless that would turn a positive price
// into zero; such prices keep their full precision.
func roundPrice(p float64) decimal.Decimal {
	d := decimal.NewFromFloat(p)
	if r := d.Round(pricePlaces); r.Sign() > 0 || d.Sign() <= 0 {
		return r
	}
	return d
}

func positiveOnly(quotes []models.Quote) ([]models.Quote, []models.Rejection) {
	out := make([]models.Quote, 0, len(quotes))
	var rejected []models.Rejection
	for _, q := range quotes {
		if q.UnitPrice.Sign() <= 0 {
			rejected = append(rejected, models.Rejection{
				Source: q.Source, Reason: models.RejectNonPositivePrice, Detail: "price " + q.UnitPrice.String(),
			})
			continue
		}
		out = append(out, q)
	}
	return out, rejected
}

// dominantCurrency keeps the currency quoted most often (first seen wins a tie).
// Quotes are never converted between currencies.
func dominantCurrency(quotes []models.Quote) ([]models.Quote, []models.Rejection) {
	if len(quotes) == 0 {
		return quotes, nil
	}
	counts := make(map[models.Currency]int)
	best := quotes[0].Currency
	for _, q := range quotes {
		counts[q.Currency]++
		if counts[q.Currency] > counts[best] {
			best = q.Currency
		}
	}
	if len(counts) == 1 {
		return quotes, nil
	}
	kept := make([]models.Quote, 0, counts[best])
	var rejected []models.Rejection
	for _, q := range quotes {
		if q.Currency != best {
			rejected = append(rejected, models.Rejection{
				Source: q.Source, Reason: "currency_mismatch", Detail: string(q.Currency) + " != " + string(best),
			})
			continue
		}
		kept = append(kept, q)
	}
	return kept, rejected
}

// rejectOutliers drops items further than threshold*MAD from the median and
// repeats until nothing else is dropped, so a second pass over the result is a
// no-op. A zero MAD stops the pass. At least one item always survives; if a
// pass would drop everything the two items closest to the median are kept.
func rejectOutliers(items []weighted, threshold float64) (kept, dropped []weighted) {
	kept = items
	for len(kept) > 1 {
		prices := make([]float64, len(kept))
		for i, it := range kept {
			prices[i] = it.price
		}
		med := features.Median(prices)
		mad := features.MAD(prices, med)
		if mad == 0 {
			break
		}

		next := make([]weighted, 0, len(kept))
		var out []weighted
		for _, it := range kept {
			if math.Abs(it.price-med)/mad > threshold {
				out = append(out, it)
				continue
			}
			next = append(next, it)
		}
		if len(out) == 0 {
			break
		}
		if len(next) == 0 {
			next, out = closestTo(kept, med, 2)
			dropped = append(dropped, out...)
			kept = next
			break
		}
		dropped = append(dropped, out...)
		kept = next
	}
	return kept, dropped
}

func closestTo(items []weighted, center float64, n int) (near, far []weighted) {
	sorted := append([]weighted(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].price-center) < math.Abs(sorted[j].price-center)
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n], sorted[n:]
}

// normalizedWeights scales trust to sum to 1, falling back to equal weights
// when every trust is zero.
func normalizedWeights(items []weighted) []float64 {
	w := make([]float64, len(items))
	var total float64
	for _, it := range items {
		total += it.trust
	}
	for i, it := range items {
		if total > 0 {
			w[i] = it.trust / total
		} else {
			w[i] = 1 / float64(len(items))
		}
	}
	return w
}

// confidence grows with distinct sources, agreement (inverse CV) and average
// trust. It stays below SparseCap while too few distinct sources agree.
func (e *Engine) confidence(items []weighted) float64 {
	cc := e.cfg.Confidence
	prices := make([]float64, len(items))
	distinct := make(map[string]struct{})
	var trustSum float64
	for i, it := range items {
		prices[i] = it.price
		distinct[it.q.Source] = struct{}{}
		trustSum += it.trust
	}

	coverage := math.Min(1, float64(len(distinct))/float64(cc.FullCoverageSources))
	agreement := 1 / (1 + features.CoefficientOfVariation(prices)/cc.AgreementScale)
	avgTrust := trustSum / float64(len(items))

	wsum := cc.CoverageWeight + cc.AgreementWeight + cc.TrustWeight
	conf := (cc.CoverageWeight*coverage + cc.AgreementWeight*agreement + cc.TrustWeight*avgTrust) / wsum
	if len(distinct) < cc.MinAgreeingSources {
		conf = math.Min(conf, cc.SparseCap)
	}
	return features.Clamp(conf, 0, 1)
}

// aggregateStock reduces per-source stock status. Any out_of_stock with no
// in_stock wins; otherwise disagreement reads as limited.
func aggregateStock(items []weighted) models.StockStatus {
	counts := make(map[models.StockStatus]int)
	for _, it := range items {
		if it.q.StockStatus.Known() {
			counts[it.q.StockStatus]++
		}
	}
	switch {
	case len(counts) == 0:
		return models.StockUnknown
	case counts[models.StockOutOfStock] > 0 && counts[models.StockInStock] == 0:
		return models.StockOutOfStock
	case len(counts) > 1:
		return models.StockLimited
	}
	for s := range counts {
		return s
	}
	return models.StockUnknown
}

func brandBreakdown(items []weighted) []models.BrandPrice {
	type acc struct {
		sum, trust, plain float64
		n                 int
	}
	groups := make(map[string]*acc)
	for _, it := range items {
		if it.q.Brand == "" {
			continue
		}
		g, ok := groups[it.q.Brand]
		if !ok {
			g = &acc{}
			groups[it.q.Brand] = g
		}
		g.sum += it.trust * it.price
		g.trust += it.trust
		g.plain += it.price
		g.n++
	}
	out := make([]models.BrandPrice, 0, len(groups))
	for brand, g := range groups {
		p := g.plain / float64(g.n)
		if g.trust > 0 {
			p = g.sum / g.trust
		}
		out = append(out, models.BrandPrice{Brand: brand, Price: roundPrice(p), Count: g.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Brand < out[j].Brand })
	return out
}

func commonUnit(items []weighted) string {
	counts := make(map[string]int)
	best := ""
	for _, it := range items {
		if it.q.Unit == "" {
			continue
		}
		counts[it.q.Unit]++
		if counts[it.q.Unit] > counts[best] {
			best = it.q.Unit
		}
	}
	return best
}

func firstProductKey(items []weighted) string {
	for _, it := range items {
		if it.q.ProductKey != "" {
			return it.q.ProductKey
		}
	}
	return ""
}

func newest(items []weighted) time.Time {
	var t time.Time
	for _, it := range items {
		if it.q.AsOf.After(t) {
			t = it.q.AsOf
		}
	}
	return t
}
