package signer

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/internal/nonce"
	"github.com/lighter-client/lighterclient/internal/signing"
	"github.com/lighter-client/lighterclient/internal/wire"
	"github.com/lighter-client/lighterclient/pkg/types"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type staticFetcher struct{ n types.Nonce }

func (f staticFetcher) NextNonce(_ context.Context, _ types.AccountId, _ types.ApiKeyIndex) (types.Nonce, error) {
	return f.n, nil
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := signing.ParseKey(testPrivateKey)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	nm, err := nonce.New(1, []types.ApiKeyIndex{0}, staticFetcher{n: 0}, nonce.ModeOptimistic, nil)
	if err != nil {
		t.Fatalf("nonce.New: %v", err)
	}
	return New(key, nm, 1)
}

func TestSignCreateOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	key, err := signing.ParseKey(testPrivateKey)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	n := types.Nonce(7)
	idx := types.ApiKeyIndex(0)

	params := CreateOrderParams{
		MarketId: 1, ClientOrderIndex: 1, BaseAmount: 100, Price: 2500,
		IsAsk: false, OrderType: types.OrderTypeLimit, TimeInForce: types.TimeInForcePostOnly,
		Nonce: &n, ApiKeyIndex: &idx,
	}

	nm1, _ := nonce.New(1, []types.ApiKeyIndex{0}, staticFetcher{}, nonce.ModeOptimistic, nil)
	nm2, _ := nonce.New(1, []types.ApiKeyIndex{0}, staticFetcher{}, nonce.ModeOptimistic, nil)

	s1 := New(key, nm1, 1)
	s2 := New(key, nm2, 1)

	got1, err := s1.SignCreateOrder(context.Background(), params)
	if err != nil {
		t.Fatalf("SignCreateOrder: %v", err)
	}
	got2, err := s2.SignCreateOrder(context.Background(), params)
	if err != nil {
		t.Fatalf("SignCreateOrder: %v", err)
	}

	if got1.Tx.Signature != got2.Tx.Signature {
		t.Fatalf("identical inputs produced different signatures: %q vs %q", got1.Tx.Signature, got2.Tx.Signature)
	}
	if got1.Json != got2.Json {
		t.Fatal("identical inputs produced different JSON payloads")
	}
}

func TestSignCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	_, err := s.SignCreateOrder(context.Background(), CreateOrderParams{
		MarketId: 1, BaseAmount: 0, Price: 100,
	})
	if err == nil {
		t.Fatal("expected validation error for zero base amount")
	}
	if !lerrors.Is(err, lerrors.KindValidation) {
		t.Fatalf("expected KindValidation, got %v", err)
	}
}

func TestSignCreateOrderUsesSuppliedNonceAndKeyVerbatim(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	n := types.Nonce(42)
	idx := types.ApiKeyIndex(3)

	out, err := s.SignCreateOrder(context.Background(), CreateOrderParams{
		MarketId: 1, BaseAmount: 1, Price: 1, Nonce: &n, ApiKeyIndex: &idx,
	})
	if err != nil {
		t.Fatalf("SignCreateOrder: %v", err)
	}
	if out.Tx.Nonce != 42 || out.Tx.ApiKeyIndex != 3 {
		t.Fatalf("nonce/key not passed through: got nonce=%d key=%d", out.Tx.Nonce, out.Tx.ApiKeyIndex)
	}
}

func TestSignCancelOrderProducesRecoverableSignature(t *testing.T) {
	t.Parallel()

	key, err := signing.ParseKey(testPrivateKey)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	s := newTestSigner(t)

	out, err := s.SignCancelOrder(context.Background(), CancelOrderParams{MarketId: 1, OrderIndex: 9})
	if err != nil {
		t.Fatalf("SignCancelOrder: %v", err)
	}
	if out.Tx.Signature == "" {
		t.Fatal("expected non-empty signature")
	}
	if !signing.Verify(key.Address(), wire.CanonicalCancelOrder(out.Tx), common.FromHex(out.Tx.Signature)) {
		t.Fatal("signature does not recover to the signing key's address")
	}
}

func TestCreateAuthTokenWithExpiryDefaultsTTL(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	before := time.Now()
	res, err := s.CreateAuthTokenWithExpiry(0, 0)
	after := time.Now()
	if err != nil {
		t.Fatalf("CreateAuthTokenWithExpiry: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if res.ExpiresAt.Before(before.Add(DefaultAuthTokenTTL)) || res.ExpiresAt.After(after.Add(DefaultAuthTokenTTL)) {
		t.Fatal("expected default TTL to be applied")
	}
}
