package orderbuilder

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/internal/marketdata"
	"github.com/lighter-client/lighterclient/internal/nonce"
	"github.com/lighter-client/lighterclient/internal/signer"
	"github.com/lighter-client/lighterclient/internal/signing"
	"github.com/lighter-client/lighterclient/pkg/types"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type staticFetcher struct{}

func (staticFetcher) NextNonce(_ context.Context, _ types.AccountId, _ types.ApiKeyIndex) (types.Nonce, error) {
	return 0, nil
}

type metaFetcher struct{ metas []types.MarketMetadata }

func (f metaFetcher) OrderBookDetails(_ context.Context, _ ...types.MarketId) ([]types.MarketMetadata, error) {
	return f.metas, nil
}

type fakeTransport struct {
	accepted bool
	err      error
	calls    []string
}

func (t *fakeTransport) SendTx(_ context.Context, _ types.TxType, payloadJSON string) (bool, error) {
	t.calls = append(t.calls, payloadJSON)
	return t.accepted, t.err
}

type fakeBbo struct{ bid, ask decimal.Decimal }

func (f fakeBbo) Bbo(_ context.Context, _ types.MarketId) (decimal.Decimal, decimal.Decimal, error) {
	return f.bid, f.ask, nil
}

func newTestSigner(t *testing.T) *signer.Signer {
	t.Helper()
	key, err := signing.ParseKey(testPrivateKey)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	nm, err := nonce.New(1, []types.ApiKeyIndex{0}, staticFetcher{}, nonce.ModeOptimistic, nil)
	if err != nil {
		t.Fatalf("nonce.New: %v", err)
	}
	return signer.New(key, nm, 1)
}

func newTestCache(t *testing.T) *marketdata.Cache {
	t.Helper()
	c := marketdata.New()
	err := c.Load(context.Background(), metaFetcher{metas: []types.MarketMetadata{
		{MarketId: 1, Symbol: "ETH-PERP", PriceDecimals: 2, SizeDecimals: 4, MinBaseAmount: 1},
	}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLimitOrderSignsAndSubmits(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{accepted: true}
	b := Order(newTestSigner(t), newTestCache(t), nil, transport, 1).
		Buy().
		Qty(decimal.NewFromFloat(0.5)).
		Limit(decimal.NewFromFloat(2500.25)).
		PostOnly().
		AutoClientID()

	out, err := b.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Accepted {
		t.Fatal("expected submission to be accepted")
	}
	if len(transport.calls) != 1 {
		t.Fatalf("expected exactly one SendTx call, got %d", len(transport.calls))
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	t.Parallel()

	b := Order(newTestSigner(t), newTestCache(t), nil, &fakeTransport{accepted: true}, 1).
		Buy().Qty(decimal.NewFromFloat(1)).Limit(decimal.NewFromFloat(100)).AutoClientID()

	if _, err := b.Sign(context.Background()); err != nil {
		t.Fatalf("first Sign: %v", err)
	}
	if _, err := b.Sign(context.Background()); err == nil {
		t.Fatal("expected second Sign on the same builder to fail")
	}
}

func TestMarketOrderWithoutSlippageIsRejected(t *testing.T) {
	t.Parallel()

	b := Order(newTestSigner(t), newTestCache(t), fakeBbo{}, &fakeTransport{}, 1).
		Sell().Qty(decimal.NewFromFloat(1)).Market().AutoClientID()

	_, err := b.Sign(context.Background())
	if err == nil {
		t.Fatal("expected validation error for market order without slippage")
	}
	if !lerrors.Is(err, lerrors.KindValidation) {
		t.Fatalf("expected KindValidation, got %v", err)
	}
}

func TestMarketOrderDerivesProtectivePriceFromSlippage(t *testing.T) {
	t.Parallel()

	bbo := fakeBbo{bid: decimal.NewFromInt(2000), ask: decimal.NewFromInt(2010)}
	b := Order(newTestSigner(t), newTestCache(t), bbo, &fakeTransport{accepted: true}, 1).
		Buy().Qty(decimal.NewFromFloat(0.1)).Market().WithSlippage(decimal.NewFromFloat(0.01)).AutoClientID()

	payload, err := b.Sign(context.Background())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	// best ask 2010, +1% = 2030.10, rounded up at 2 decimals -> 203010 ticks.
	if payload.Tx.Price != 203010 {
		t.Fatalf("Price = %d, want 203010", payload.Tx.Price)
	}
	if payload.Tx.OrderType != types.OrderTypeMarket {
		t.Fatalf("OrderType = %v, want OrderTypeMarket", payload.Tx.OrderType)
	}
	if payload.Tx.TimeInForce != types.TimeInForceImmediateOrCancel {
		t.Fatalf("TimeInForce = %v, want IOC", payload.Tx.TimeInForce)
	}
}

func TestPostOnlyRejectedOnMarketOrder(t *testing.T) {
	t.Parallel()

	bbo := fakeBbo{bid: decimal.NewFromInt(2000), ask: decimal.NewFromInt(2010)}
	b := Order(newTestSigner(t), newTestCache(t), bbo, &fakeTransport{}, 1).
		Buy().Qty(decimal.NewFromFloat(0.1)).Market().WithSlippage(decimal.NewFromFloat(0.01)).
		PostOnly().AutoClientID()

	_, err := b.Sign(context.Background())
	if err == nil {
		t.Fatal("expected validation error: post_only is not valid on a market order")
	}
}

func TestOrderRequiresClientOrderIndex(t *testing.T) {
	t.Parallel()

	b := Order(newTestSigner(t), newTestCache(t), nil, &fakeTransport{}, 1).
		Buy().Qty(decimal.NewFromFloat(1)).Limit(decimal.NewFromFloat(100))

	if _, err := b.Sign(context.Background()); err == nil {
		t.Fatal("expected validation error for missing client order index")
	}
}

func TestCancelOrderSignsAndSubmits(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{accepted: true}
	out, err := Cancel(newTestSigner(t), transport, 1, 77).Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Accepted {
		t.Fatal("expected cancel submission to be accepted")
	}
}

func TestCancelAllOrdersSignsAndSubmits(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{accepted: true}
	out, err := CancelAll(newTestSigner(t), transport, types.TimeInForceGoodTillTime, 1700000000000).Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Accepted {
		t.Fatal("expected cancel-all submission to be accepted")
	}
}
