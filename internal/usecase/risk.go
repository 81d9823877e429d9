package usecase

import (
	"context"
	"time"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	"PriceFusion/internal/domain/service"
	"PriceFusion/internal/services/fusion"
	"PriceFusion/pkg/logger"
)

const defaultRiskWindowDays = 365

// QuoteValidator drops quotes that must not count towards risk scoring.
type QuoteValidator interface {
	ValidateBatch(quotes []models.Quote) ([]models.Quote, []models.Rejection)
}

// RiskUseCase gathers quotes and histories for a product and scores its
// supply and price risk.
type RiskUseCase struct {
	source    QuoteSource
	validator QuoteValidator
	analyzer  service.RiskAnalyzer
	store     domrepo.Store
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// NewRiskUseCase falls back to a validator with default fusion settings when
// validator is nil.
func NewRiskUseCase(source QuoteSource, validator QuoteValidator, analyzer service.RiskAnalyzer, store domrepo.Store, metrics domrepo.Metrics, log *logger.Logger) *RiskUseCase {
	if validator == nil {
		validator = fusion.NewValidator(fusion.DefaultConfig(), nil)
	}
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RiskUseCase{
		source:    source,
		validator: validator,
		analyzer:  analyzer,
		store:     store,
		metrics:   metrics,
		log:       log.With("risk"),
		now:       time.Now,
	}
}

// Analyze scores productKey over the last windowDays (365 when not positive).
// Live quotes come from the providers; when none answer the newest stored
// quotes are used instead.
func (uc *RiskUseCase) Analyze(ctx context.Context, productKey string, windowDays int) (models.RiskAnalysis, error) {
	start := uc.now()
	if windowDays <= 0 {
		windowDays = defaultRiskWindowDays
	}
	to := uc.now()
	from := to.AddDate(0, 0, -windowDays)

	var quotes []models.Quote
	if uc.source != nil {
		res := uc.source.Fetch(ctx, productKey)
		quotes = res.Quotes
	}

	var prices []models.PricePoint
	var stock []models.StockObservation
	if uc.store != nil {
		if len(quotes) == 0 {
			stored, err := uc.store.LatestQuotes(ctx, productKey, from)
			if err != nil {
				uc.log.Warn("stored quotes unavailable", logger.String("product", productKey), logger.Error(err))
			}
			quotes = stored
		}
		var err error
		if prices, err = uc.store.PriceHistory(ctx, productKey, from, to); err != nil {
			uc.log.Warn("price history unavailable", logger.String("product", productKey), logger.Error(err))
		}
		if stock, err = uc.store.StockHistory(ctx, productKey, from, to); err != nil {
			uc.log.Warn("stock history unavailable", logger.String("product", productKey), logger.Error(err))
		}
	}

	quotes = uc.validate(productKey, quotes)
	ra, err := uc.analyzer.AnalyzeRisk(quotes, prices, stock)
	if err != nil {
		uc.metrics.RecordError("risk")
		return models.RiskAnalysis{}, err
	}
	ra.ProductKey = productKey
	uc.log.Debug("risk analyzed",
		logger.String("product", productKey),
		logger.Float("score", ra.OverallRiskScore),
		logger.String("level", ra.RiskLevel),
		logger.Int("quotes", len(quotes)),
		logger.Int("price_points", len(prices)),
		logger.Int("stock_points", len(stock)),
	)
	uc.metrics.RecordLatency("risk", uc.now().Sub(start).Seconds())
	return ra, nil
}

// AnalyzeSupplied scores caller-provided data without touching providers or
// storage.
func (uc *RiskUseCase) AnalyzeSupplied(_ context.Context, productKey string, quotes []models.Quote, prices []models.PricePoint, stock []models.StockObservation) (models.RiskAnalysis, error) {
	quotes = uc.validate(productKey, quotes)
	ra, err := uc.analyzer.AnalyzeRisk(quotes, prices, stock)
	if err != nil {
		return models.RiskAnalysis{}, err
	}
	ra.ProductKey = productKey
	return ra, nil
}

func (uc *RiskUseCase) validate(productKey string, quotes []models.Quote) []models.Quote {
	if len(quotes) == 0 {
		return quotes
	}
	valid, rejected := uc.validator.ValidateBatch(quotes)
	for _, r := range rejected {
		uc.metrics.RecordRejection(r.Reason)
		uc.log.Debug("quote rejected for risk",
			logger.String("product", productKey),
			logger.String("source", r.Source),
			logger.String("reason", r.Reason),
		)
	}
	return valid
}
