package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/service/ratelimit"
	"PriceFusion/pkg/logger"
	"PriceFusion/pkg/queue"
)

// JobRefreshProduct is the queue message type of a single product refresh.
const JobRefreshProduct = "refresh_product"

// Refresher recomputes one fused price.
type Refresher interface {
	Refresh(ctx context.Context, productKey string) (models.FusedPrice, error)
}

// PopularProducts lists the most quoted products since a point in time.
type PopularProducts interface {
	PopularProducts(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// RefreshPayload is the body of a refresh_product message.
type RefreshPayload struct {
	ProductKey string `json:"product_key"`
	RunID      string `json:"run_id,omitempty"`
}

// RefreshSettings select the products of a batch run.
type RefreshSettings struct {
	Products []string
	Popular  int
	Lookback time.Duration
}

// RefreshJob refreshes the configured and popular products. With a queue
// publisher it enqueues one refresh_product message per product; otherwise it
// refreshes sequentially in-process.
type RefreshJob struct {
	refresher Refresher
	popular   PopularProducts
	publisher queue.Publisher
	pacer     *ratelimit.Pacer
	cfg       RefreshSettings
	log       *logger.Logger
}

func NewRefreshJob(refresher Refresher, popular PopularProducts, publisher queue.Publisher, pacer *ratelimit.Pacer, cfg RefreshSettings, log *logger.Logger) *RefreshJob {
	if pacer == nil {
		pacer = ratelimit.NewPacer(0)
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * 24 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RefreshJob{
		refresher: refresher,
		popular:   popular,
		publisher: publisher,
		pacer:     pacer,
		cfg:       cfg,
		log:       log.With("refresh"),
	}
}

// Products returns the configured keys followed by the most quoted ones,
// without duplicates.
func (j *RefreshJob) Products(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(k string) {
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range j.cfg.Products {
		add(k)
	}
	if j.popular != nil && j.cfg.Popular > 0 {
		keys, err := j.popular.PopularProducts(ctx, time.Now().Add(-j.cfg.Lookback), j.cfg.Popular)
		if err != nil {
			j.log.Warn("popular products unavailable", logger.Error(err))
		}
		for _, k := range keys {
			add(k)
		}
	}
	return out
}

// Run is the scheduler entry point.
func (j *RefreshJob) Run(ctx context.Context) error {
	runID := uuid.NewString()
	products := j.Products(ctx)
	if len(products) == 0 {
		j.log.Debug("nothing to refresh", logger.String("run_id", runID))
		return nil
	}
	j.log.Info("refresh run started",
		logger.String("run_id", runID),
		logger.Int("products", len(products)),
		logger.Bool("queued", j.publisher != nil),
	)

	var failed int
	for _, key := range products {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if j.publisher != nil {
			if err := j.publisher.PublishMessage(ctx, JobRefreshProduct, RefreshPayload{ProductKey: key, RunID: runID}); err != nil {
				failed++
				j.log.Warn("enqueue refresh failed", logger.String("product", key), logger.Error(err))
			}
			continue
		}
		if err := refreshPaced(ctx, j.pacer, j.refresher, key); err != nil {
			failed++
			j.log.Warn("refresh failed", logger.String("product", key), logger.Error(err))
		}
	}
	j.log.Info("refresh run finished",
		logger.String("run_id", runID),
		logger.Int("products", len(products)),
		logger.Int("failed", failed),
	)
	if failed == len(products) {
		return fmt.Errorf("refresh run %s: all %d products failed", runID, failed)
	}
	return nil
}

func refreshPaced(ctx context.Context, pacer *ratelimit.Pacer, r Refresher, key string) error {
	if err := pacer.Wait(ctx); err != nil {
		return err
	}
	_, err := r.Refresh(ctx, key)
	return err
}

// RefreshProductJob consumes refresh_product messages from the queue.
type RefreshProductJob struct {
	refresher Refresher
	pacer     *ratelimit.Pacer
	log       *logger.Logger
}

var _ queue.Job = (*RefreshProductJob)(nil)

func NewRefreshProductJob(refresher Refresher, pacer *ratelimit.Pacer, log *logger.Logger) *RefreshProductJob {
	if pacer == nil {
		pacer = ratelimit.NewPacer(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RefreshProductJob{refresher: refresher, pacer: pacer, log: log.With("refresh-job")}
}

func (j *RefreshProductJob) Name() string { return "refresh product price" }
func (j *RefreshProductJob) Type() string { return JobRefreshProduct }

func (j *RefreshProductJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.Decode[RefreshPayload](payload)
	if err != nil {
		return err
	}
	if p.ProductKey == "" {
		return errors.New("refresh_product: empty product_key")
	}
	if err := refreshPaced(ctx, j.pacer, j.refresher, p.ProductKey); err != nil {
		return fmt.Errorf("refresh %s: %w", p.ProductKey, err)
	}
	j.log.Debug("product refreshed", logger.String("product", p.ProductKey), logger.String("run_id", p.RunID))
	return nil
}
