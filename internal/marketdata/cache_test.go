package marketdata

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lighter-client/lighterclient/pkg/types"
)

type fakeFetcher struct {
	metas []types.MarketMetadata
}

func (f fakeFetcher) OrderBookDetails(_ context.Context, marketIDs ...types.MarketId) ([]types.MarketMetadata, error) {
	if len(marketIDs) == 0 {
		return f.metas, nil
	}
	want := marketIDs[0]
	for _, m := range f.metas {
		if m.MarketId == want {
			return []types.MarketMetadata{m}, nil
		}
	}
	return nil, nil
}

func newLoadedCache(t *testing.T) *Cache {
	t.Helper()
	c := New()
	err := c.Load(context.Background(), fakeFetcher{metas: []types.MarketMetadata{
		{MarketId: 1, Symbol: "BTC-PERP", PriceDecimals: 1, SizeDecimals: 5, MinBaseAmount: 100},
	}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestScalePriceRoundTripsExactly(t *testing.T) {
	t.Parallel()

	c := newLoadedCache(t)
	price, err := decimal.NewFromString("3000.00")
	if err != nil {
		t.Fatal(err)
	}

	ticks, err := c.ScalePrice(1, price)
	if err != nil {
		t.Fatalf("ScalePrice: %v", err)
	}
	if ticks != 30000 {
		t.Fatalf("ScalePrice(3000.00) = %d, want 30000", ticks)
	}

	back, err := c.UnscalePrice(1, ticks)
	if err != nil {
		t.Fatalf("UnscalePrice: %v", err)
	}
	if !back.Equal(price) {
		t.Fatalf("round trip = %s, want %s", back, price)
	}
}

func TestScalePriceRejectsExcessPrecision(t *testing.T) {
	t.Parallel()

	c := newLoadedCache(t)
	price, _ := decimal.NewFromString("3000.001")
	if _, err := c.ScalePrice(1, price); err == nil {
		t.Fatal("expected error for price with more precision than the market allows")
	}
}

func TestScaleSizeRejectsBelowMinimum(t *testing.T) {
	t.Parallel()

	c := newLoadedCache(t)
	size, _ := decimal.NewFromString("0.00001")
	if _, err := c.ScaleSize(1, size); err == nil {
		t.Fatal("expected error for size below market minimum")
	}
}

func TestGetUnknownMarket(t *testing.T) {
	t.Parallel()

	c := newLoadedCache(t)
	if _, ok := c.Get(999); ok {
		t.Fatal("expected unknown market to be absent")
	}
}
