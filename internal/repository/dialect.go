package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dialect captures what differs between the SQL backends: placeholders,
// column types and how timestamps and prices travel over the driver.
type dialect struct {
	name       string
	schema     []string
	numbered   bool // $1, $2 instead of ?
	nativeTime bool // driver takes and returns time.Time
	// priceColumn is the select expression yielding the price as text.
	priceColumn string
}

func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) timeArg(t time.Time) any {
	if d.nativeTime {
		return t.UTC()
	}
	return t.UnixMilli()
}

func (d dialect) priceArg(p decimal.Decimal) any {
	if d.nativeTime {
		return p.InexactFloat64()
	}
	return p.StringFixed(4)
}

func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case []byte:
		ms, err := strconv.ParseInt(string(t), 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unexpected time column type %T", v)
}

var sqliteDialect = dialect{
	name:        "sqlite",
	priceColumn: "price",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			product_key  TEXT NOT NULL,
			source       TEXT NOT NULL,
			price        TEXT NOT NULL,
			currency     TEXT NOT NULL,
			unit         TEXT NOT NULL DEFAULT '',
			brand        TEXT NOT NULL DEFAULT '',
			quantity     REAL NOT NULL DEFAULT 0,
			stock_status TEXT NOT NULL DEFAULT '',
			source_trust REAL NOT NULL DEFAULT 0,
			as_of        INTEGER NOT NULL,
			ingested_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_product_asof ON quotes (product_key, as_of)`,
		`CREATE TABLE IF NOT EXISTS fused_prices (
			product_key  TEXT NOT NULL,
			price        TEXT NOT NULL,
			currency     TEXT NOT NULL,
			confidence   REAL NOT NULL,
			source_count INTEGER NOT NULL,
			stock_status TEXT NOT NULL DEFAULT '',
			computed_at  INTEGER NOT NULL,
			payload      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fused_product_computed ON fused_prices (product_key, computed_at)`,
	},
}

var postgresDialect = dialect{
	name:        "postgres",
	numbered:    true,
	priceColumn: "price::text",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			product_key  TEXT NOT NULL,
			source       TEXT NOT NULL,
			price        NUMERIC(18,4) NOT NULL,
			currency     TEXT NOT NULL,
			unit         TEXT NOT NULL DEFAULT '',
			brand        TEXT NOT NULL DEFAULT '',
			quantity     DOUBLE PRECISION NOT NULL DEFAULT 0,
			stock_status TEXT NOT NULL DEFAULT '',
			source_trust DOUBLE PRECISION NOT NULL DEFAULT 0,
			as_of        BIGINT NOT NULL,
			ingested_at  BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_product_asof ON quotes (product_key, as_of)`,
		`CREATE TABLE IF NOT EXISTS fused_prices (
			product_key  TEXT NOT NULL,
			price        NUMERIC(18,4) NOT NULL,
			currency     TEXT NOT NULL,
			confidence   DOUBLE PRECISION NOT NULL,
			source_count INTEGER NOT NULL,
			stock_status TEXT NOT NULL DEFAULT '',
			computed_at  BIGINT NOT NULL,
			payload      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fused_product_computed ON fused_prices (product_key, computed_at)`,
	},
}

var clickhouseDialect = dialect{
	name:        "clickhouse",
	nativeTime:  true,
	priceColumn: "toString(price)",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			product_key  String,
			source       LowCardinality(String),
			price        Decimal(18, 4),
			currency     LowCardinality(String),
			unit         String,
			brand        String,
			quantity     Float64,
			stock_status LowCardinality(String),
			source_trust Float64,
			as_of        DateTime64(3, 'UTC'),
			ingested_at  DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(as_of)
		ORDER BY (product_key, as_of)`,
		`CREATE TABLE IF NOT EXISTS fused_prices (
			product_key  String,
			price        Decimal(18, 4),
			currency     LowCardinality(String),
			confidence   Float64,
			source_count UInt32,
			stock_status LowCardinality(String),
			computed_at  DateTime64(3, 'UTC'),
			payload      String
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(computed_at)
		ORDER BY (product_key, computed_at)`,
	},
}
