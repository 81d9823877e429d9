package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	applogger "PriceFusion/pkg/logger"
	"PriceFusion/pkg/util"
)

var _ domrepo.Store = (*QuoteStore)(nil)

const insertChunk = 500

// QuoteStore persists quotes and fused prices in a SQL database and derives
// price and stock history from them.
type QuoteStore struct {
	db      *sql.DB
	d       dialect
	l       *applogger.Logger
	closeFn func() error
	now     func() time.Time
}

func newQuoteStore(db *sql.DB, d dialect, closeFn func() error) *QuoteStore {
	if closeFn == nil {
		closeFn = db.Close
	}
	return &QuoteStore{db: db, d: d, l: applogger.Nop(), closeFn: closeFn, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *QuoteStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l.With("store")
	}
}

// Dialect names the backend.
func (s *QuoteStore) Dialect() string { return s.d.name }

func (s *QuoteStore) Init(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s schema: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *QuoteStore) SaveQuotes(ctx context.Context, quotes []models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	ingested := s.d.timeArg(s.now())
	for start := 0; start < len(quotes); start += insertChunk {
		end := min(start+insertChunk, len(quotes))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*11)
		for _, q := range quotes[start:end] {
			if q.ProductKey == "" || q.Source == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				q.ProductKey,
				q.Source,
				s.d.priceArg(q.UnitPrice),
				string(q.Currency),
				q.Unit,
				q.Brand,
				q.Quantity,
				string(q.StockStatus),
				q.SourceTrust,
				s.d.timeArg(q.AsOf),
				ingested,
			)
		}
		if len(values) == 0 {
			continue
		}
		stmt := "INSERT INTO quotes (product_key, source, price, currency, unit, brand, quantity, stock_status, source_trust, as_of, ingested_at) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, s.d.rebind(stmt), args...); err != nil {
			s.l.Error("save quotes failed", applogger.String("backend", s.d.name), applogger.Int("rows", len(values)), applogger.Error(err))
			return fmt.Errorf("save quotes: %w", err)
		}
	}
	return nil
}

func (s *QuoteStore) SaveFusion(ctx context.Context, fp models.FusedPrice) error {
	payload, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("encode fused price: %w", err)
	}
	computed := fp.AsOf
	if computed.IsZero() {
		computed = s.now()
	}
	const stmt = "INSERT INTO fused_prices (product_key, price, currency, confidence, source_count, stock_status, computed_at, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	_, err = s.db.ExecContext(ctx, s.d.rebind(stmt),
		fp.ProductKey,
		s.d.priceArg(fp.Price),
		string(fp.Currency),
		fp.Confidence,
		len(fp.Sources),
		string(fp.StockStatus),
		s.d.timeArg(computed),
		string(payload),
	)
	if err != nil {
		s.l.Error("save fusion failed", applogger.String("backend", s.d.name), applogger.String("product", fp.ProductKey), applogger.Error(err))
		return fmt.Errorf("save fusion: %w", err)
	}
	return nil
}

// LatestQuotes returns the newest quote per source observed since the given
// time, newest first.
func (s *QuoteStore) LatestQuotes(ctx context.Context, productKey string, since time.Time) ([]models.Quote, error) {
	all, err := s.quotes(ctx, productKey, since, s.now().Add(time.Minute))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(all))
	out := make([]models.Quote, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		q := all[i]
		if _, dup := seen[q.Source]; dup {
			continue
		}
		seen[q.Source] = struct{}{}
		out = append(out, q)
	}
	return out, nil
}

// PriceHistory returns daily mean fused prices, falling back to daily mean
// quote prices when the product was never fused in the window.
func (s *QuoteStore) PriceHistory(ctx context.Context, productKey string, from, to time.Time) ([]models.PricePoint, error) {
	samples, err := s.fusedSamples(ctx, productKey, from, to)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		quotes, err := s.quotes(ctx, productKey, from, to)
		if err != nil {
			return nil, err
		}
		for _, q := range quotes {
			samples = append(samples, sample{at: q.AsOf, price: q.Price()})
		}
	}
	return dailyMeans(samples), nil
}

func (s *QuoteStore) fusedSamples(ctx context.Context, productKey string, from, to time.Time) ([]sample, error) {
	q := fmt.Sprintf("SELECT %s, computed_at FROM fused_prices WHERE product_key = ? AND computed_at >= ? AND computed_at <= ? ORDER BY computed_at ASC", s.d.priceColumn)
	rows, err := s.db.QueryContext(ctx, s.d.rebind(q), productKey, s.d.timeArg(from), s.d.timeArg(to))
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	defer rows.Close()

	var out []sample
	for rows.Next() {
		var (
			price decimal.Decimal
			raw   any
		)
		if err := rows.Scan(&price, &raw); err != nil {
			return nil, fmt.Errorf("scan fused price: %w", err)
		}
		at, err := decodeTime(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sample{at: at, price: price.InexactFloat64()})
	}
	return out, rows.Err()
}

// StockHistory lists every quote with a known stock status, using the
// source as the market.
func (s *QuoteStore) StockHistory(ctx context.Context, productKey string, from, to time.Time) ([]models.StockObservation, error) {
	quotes, err := s.quotes(ctx, productKey, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]models.StockObservation, 0, len(quotes))
	for _, q := range quotes {
		if !q.StockStatus.Known() {
			continue
		}
		out = append(out, models.StockObservation{Date: q.AsOf, Status: q.StockStatus, Market: q.Source})
	}
	return out, nil
}

// PopularProducts ranks products by quote count since the given time.
func (s *QuoteStore) PopularProducts(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	const q = "SELECT product_key, count(*) AS n FROM quotes WHERE as_of >= ? GROUP BY product_key ORDER BY n DESC, product_key ASC LIMIT ?"
	rows, err := s.db.QueryContext(ctx, s.d.rebind(q), s.d.timeArg(since), limit)
	if err != nil {
		return nil, fmt.Errorf("popular products: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan popular product: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *QuoteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *QuoteStore) Close() error { return s.closeFn() }

// quotes loads quotes in [from, to] ordered oldest first.
func (s *QuoteStore) quotes(ctx context.Context, productKey string, from, to time.Time) ([]models.Quote, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT product_key, source, %s, currency, unit, brand, quantity, stock_status, source_trust, as_of
		FROM quotes WHERE product_key = ? AND as_of >= ? AND as_of <= ? ORDER BY as_of ASC`, s.d.priceColumn)
	rows, err := s.db.QueryContext(ctx, s.d.rebind(q), productKey, s.d.timeArg(from), s.d.timeArg(to))
	if err != nil {
		s.l.Error("quote query failed", applogger.String("backend", s.d.name), applogger.String("product", productKey), applogger.Error(err))
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var out []models.Quote
	for rows.Next() {
		var (
			qt              models.Quote
			currency, stock string
			raw             any
		)
		if err := rows.Scan(&qt.ProductKey, &qt.Source, &qt.UnitPrice, &currency, &qt.Unit, &qt.Brand, &qt.Quantity, &stock, &qt.SourceTrust, &raw); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		if qt.AsOf, err = decodeTime(raw); err != nil {
			return nil, err
		}
		qt.Currency = models.Currency(currency)
		qt.StockStatus = models.StockStatus(stock)
		out = append(out, qt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote rows: %w", err)
	}
	s.l.Debug("quotes loaded",
		applogger.String("backend", s.d.name),
		applogger.String("product", productKey),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

type sample struct {
	at    time.Time
	price float64
}

func dailyMeans(samples []sample) []models.PricePoint {
	type acc struct {
		sum float64
		n   int
	}
	days := make(map[time.Time]*acc)
	for _, s := range samples {
		day := util.StartOfDay(s.at)
		a, ok := days[day]
		if !ok {
			a = &acc{}
			days[day] = a
		}
		a.sum += s.price
		a.n++
	}
	out := make([]models.PricePoint, 0, len(days))
	for day, a := range days {
		out = append(out, models.PricePoint{Date: day, Price: a.sum / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
