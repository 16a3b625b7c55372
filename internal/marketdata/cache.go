// Package marketdata caches the per-market scaling and risk metadata
// the rest of the SDK needs: price/size decimal precision, minimum
// order sizes, and margin fractions. Loaded once per session and
// immutable afterward, per spec.md §4.6.
//
// Grounded on the teacher's internal/market.Scanner, which polls an
// external API and republishes results; this cache keeps the same
// "fetch via REST, store as an atomically-swapped map" shape but drops
// the polling loop, since §4.6 requires a single load rather than
// continuous re-scanning.
package marketdata

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// Fetcher retrieves market metadata from the exchange. Implemented by
// internal/restclient.Client.
type Fetcher interface {
	OrderBookDetails(ctx context.Context, marketIDs ...types.MarketId) ([]types.MarketMetadata, error)
}

// Cache is a read-mostly, immutable-after-load store of market
// metadata. The zero value is unusable; construct with New.
type Cache struct {
	data atomic.Pointer[map[types.MarketId]types.MarketMetadata]
}

// New returns an empty cache. Call Load before using Get/ScalePrice/
// ScaleSize.
func New() *Cache {
	c := &Cache{}
	empty := make(map[types.MarketId]types.MarketMetadata)
	c.data.Store(&empty)
	return c
}

// Load fetches metadata for marketIDs (or every market, if none are
// given) and replaces the cache's contents atomically. Safe to call
// concurrently with readers; not safe to call concurrently with itself.
func (c *Cache) Load(ctx context.Context, fetcher Fetcher, marketIDs ...types.MarketId) error {
	fetched, err := fetcher.OrderBookDetails(ctx, marketIDs...)
	if err != nil {
		return lerrors.New(lerrors.KindTransport, "marketdata.Load", err)
	}

	next := make(map[types.MarketId]types.MarketMetadata, len(fetched))
	for _, m := range fetched {
		next[m.MarketId] = m
	}
	c.data.Store(&next)
	return nil
}

// Get returns the cached metadata for a market.
func (c *Cache) Get(marketID types.MarketId) (types.MarketMetadata, bool) {
	m, ok := (*c.data.Load())[marketID]
	return m, ok
}

// ScalePrice converts a decimal display price to integer ticks for
// marketID. This is the single point where user-facing decimal input
// crosses into the integer domain the signer and wire codec require.
func (c *Cache) ScalePrice(marketID types.MarketId, price decimal.Decimal) (types.Price, error) {
	meta, ok := c.Get(marketID)
	if !ok {
		return 0, lerrors.New(lerrors.KindValidation, "marketdata.ScalePrice", fmt.Errorf("unknown market %d", marketID))
	}
	scaled := price.Shift(meta.PriceDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, lerrors.New(lerrors.KindValidation, "marketdata.ScalePrice", fmt.Errorf("price %s has more precision than market %d allows (%d decimals)", price, marketID, meta.PriceDecimals))
	}
	return types.Price(scaled.IntPart()), nil
}

// ScaleSize converts a decimal display size to integer base-lot units
// for marketID.
func (c *Cache) ScaleSize(marketID types.MarketId, size decimal.Decimal) (types.BaseQty, error) {
	meta, ok := c.Get(marketID)
	if !ok {
		return 0, lerrors.New(lerrors.KindValidation, "marketdata.ScaleSize", fmt.Errorf("unknown market %d", marketID))
	}
	scaled := size.Shift(meta.SizeDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, lerrors.New(lerrors.KindValidation, "marketdata.ScaleSize", fmt.Errorf("size %s has more precision than market %d allows (%d decimals)", size, marketID, meta.SizeDecimals))
	}
	qty := types.BaseQty(scaled.IntPart())
	if qty < meta.MinBaseAmount {
		return 0, lerrors.New(lerrors.KindValidation, "marketdata.ScaleSize", fmt.Errorf("size %s is below market %d's minimum (%s)", size, marketID, meta.MinBaseAmount.Decimal(meta.SizeDecimals)))
	}
	return qty, nil
}

// RoundPrice rounds a decimal price to a valid tick for marketID,
// rounding up when roundUp is true and down otherwise. Used
// for derived prices (e.g. a slippage-protected market-order limit)
// where the caller wants a marketable tick rather than an exact one.
func (c *Cache) RoundPrice(marketID types.MarketId, price decimal.Decimal, roundUp bool) (types.Price, error) {
	meta, ok := c.Get(marketID)
	if !ok {
		return 0, lerrors.New(lerrors.KindValidation, "marketdata.RoundPrice", fmt.Errorf("unknown market %d", marketID))
	}
	scaled := price.Shift(meta.PriceDecimals)
	if roundUp {
		return types.Price(scaled.Ceil().IntPart()), nil
	}
	return types.Price(scaled.Floor().IntPart()), nil
}

// UnscalePrice converts integer ticks back to a decimal display price.
func (c *Cache) UnscalePrice(marketID types.MarketId, price types.Price) (decimal.Decimal, error) {
	meta, ok := c.Get(marketID)
	if !ok {
		return decimal.Decimal{}, lerrors.New(lerrors.KindValidation, "marketdata.UnscalePrice", fmt.Errorf("unknown market %d", marketID))
	}
	return price.Decimal(meta.PriceDecimals), nil
}

// UnscaleSize converts integer base-lot units back to a decimal display
// size.
func (c *Cache) UnscaleSize(marketID types.MarketId, qty types.BaseQty) (decimal.Decimal, error) {
	meta, ok := c.Get(marketID)
	if !ok {
		return decimal.Decimal{}, lerrors.New(lerrors.KindValidation, "marketdata.UnscaleSize", fmt.Errorf("unknown market %d", marketID))
	}
	return qty.Decimal(meta.SizeDecimals), nil
}
