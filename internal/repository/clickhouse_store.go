package repository

import (
	pkgch "PriceFusion/pkg/clickhouse"
)

// NewClickHouseStore stores quotes in MergeTree tables of the client's
// database. Closing the store closes the client.
func NewClickHouseStore(ch *pkgch.Client) *QuoteStore {
	return newQuoteStore(ch.DB(), clickhouseDialect, ch.Close)
}
