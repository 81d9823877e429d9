package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordFusion("ok")
	r.RecordFusion("ok")
	r.RecordCache(true)
	r.RecordCache(false)
	r.RecordCache(false)
	r.RecordOutliers(3)
	r.RecordLastPrice("milk", 31.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fusions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cache.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.outliers))
	assert.Equal(t, 31.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("milk")))
}
