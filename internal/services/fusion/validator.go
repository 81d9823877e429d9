package fusion

import (
	"fmt"
	"time"

	"PriceFusion/internal/domain/models"
)

// Validator rejects quotes that cannot take part in fusion. It never panics
// and never returns an error; bad input becomes a Rejection.
type Validator struct {
	maxAge     time.Duration
	currencies map[models.Currency]struct{}
	now        func() time.Time
}

func NewValidator(cfg Config, now func() time.Time) *Validator {
	cfg = cfg.withDefaults()
	if now == nil {
		now = time.Now
	}
	set := make(map[models.Currency]struct{}, len(cfg.Currencies))
	for _, c := range cfg.Currencies {
		set[c] = struct{}{}
	}
	return &Validator{maxAge: cfg.MaxPriceAge, currencies: set, now: now}
}

// Validate passes q through unchanged with a nil Rejection when it is usable,
// otherwise it returns the zero Quote and the reason.
func (v *Validator) Validate(q models.Quote) (models.Quote, *models.Rejection) {
	if r := v.check(q); r != nil {
		return models.Quote{}, r
	}
	return q, nil
}

func (v *Validator) check(q models.Quote) *models.Rejection {
	reject := func(reason, detail string) *models.Rejection {
		return &models.Rejection{Source: q.Source, Reason: reason, Detail: detail}
	}

	if q.UnitPrice.Sign() <= 0 {
		return reject(models.RejectNonPositivePrice, "price "+q.UnitPrice.String())
	}
	if _, ok := v.currencies[q.Currency]; !ok {
		return reject(models.RejectUnknownCurrency, fmt.Sprintf("currency %q", q.Currency))
	}
	if q.AsOf.IsZero() {
		return reject(models.RejectBadTimestamp, "missing as_of")
	}
	now := v.now()
	if q.AsOf.After(now) {
		return reject(models.RejectFutureTimestamp, "as_of "+q.AsOf.Format(time.RFC3339))
	}
	if age := now.Sub(q.AsOf); age > v.maxAge {
		return reject(models.RejectStale, fmt.Sprintf("age %s exceeds %s", age.Round(time.Hour), v.maxAge))
	}
	if q.SourceTrust < 0 || q.SourceTrust > 1 {
		return reject(models.RejectTrustOutOfRange, fmt.Sprintf("trust %.3f", q.SourceTrust))
	}
	return nil
}

// ValidateBatch splits quotes into valid ones and rejections, preserving order.
func (v *Validator) ValidateBatch(quotes []models.Quote) ([]models.Quote, []models.Rejection) {
	valid := make([]models.Quote, 0, len(quotes))
	var rejected []models.Rejection
	for _, q := range quotes {
		vq, r := v.Validate(q)
		if r != nil {
			rejected = append(rejected, *r)
			continue
		}
		valid = append(valid, vq)
	}
	return valid, rejected
}
