package fusion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceFusion/internal/domain/models"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(DefaultConfig(), fixedClock)

	tests := []struct {
		name   string
		mutate func(q *models.Quote)
		reason string
	}{
		{"valid", func(q *models.Quote) {}, ""},
		{"zero price", func(q *models.Quote) { q.UnitPrice = decimal.Zero }, models.RejectNonPositivePrice},
		{"negative price", func(q *models.Quote) { q.UnitPrice = decimal.NewFromInt(-3) }, models.RejectNonPositivePrice},
		{"unknown currency", func(q *models.Quote) { q.Currency = "XYZ" }, models.RejectUnknownCurrency},
		{"missing timestamp", func(q *models.Quote) { q.AsOf = time.Time{} }, models.RejectBadTimestamp},
		{"future timestamp", func(q *models.Quote) { q.AsOf = testNow.Add(time.Minute) }, models.RejectFutureTimestamp},
		{"stale", func(q *models.Quote) { q.AsOf = testNow.Add(-31 * 24 * time.Hour) }, models.RejectStale},
		{"exactly max age", func(q *models.Quote) { q.AsOf = testNow.Add(-30 * 24 * time.Hour) }, ""},
		{"trust above one", func(q *models.Quote) { q.SourceTrust = 1.5 }, models.RejectTrustOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := quote("A", 10, 0.5)
			tt.mutate(&q)
			got, r := v.Validate(q)
			if tt.reason == "" {
				assert.Nil(t, r)
				assert.Equal(t, q, got)
				return
			}
			require.NotNil(t, r)
			assert.Equal(t, models.Quote{}, got)
			assert.Equal(t, tt.reason, r.Reason)
			assert.Equal(t, "A", r.Source)
		})
	}
}

func TestValidator_ValidateBatch(t *testing.T) {
	v := NewValidator(DefaultConfig(), fixedClock)
	bad := quote("B", 0, 0.5)
	valid, rejected := v.ValidateBatch([]models.Quote{quote("A", 1, 0.5), bad, quote("C", 2, 0.5)})

	require.Len(t, valid, 2)
	assert.Equal(t, "A", valid[0].Source)
	assert.Equal(t, "C", valid[1].Source)
	require.Len(t, rejected, 1)
	assert.Equal(t, "B", rejected[0].Source)

	valid, rejected = v.ValidateBatch(nil)
	assert.Empty(t, valid)
	assert.Empty(t, rejected)
}
