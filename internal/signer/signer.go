// Package signer composes the wire codec, crypto primitives, and nonce
// manager into the high-level operations callers actually use: sign a
// create-order, cancel-order, cancel-all, or mint a bearer auth token.
//
// Grounded on the teacher's internal/exchange.Client.buildOrderPayload,
// which takes loose arguments, resolves identifiers, canonicalizes, and
// signs in one call — the shape kept here is the same "gather, encode,
// sign" pipeline, generalized to the four transaction variants this
// venue has instead of Polymarket's single order struct.
package signer

import (
	"context"
	"fmt"
	"time"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/internal/nonce"
	"github.com/lighter-client/lighterclient/internal/signing"
	"github.com/lighter-client/lighterclient/internal/wire"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// DefaultAuthTokenTTL is how long a minted auth token is valid for when
// the caller does not specify an expiry.
const DefaultAuthTokenTTL = 10 * time.Minute

// Signer turns high-level intents into signed, wire-ready payloads.
type Signer struct {
	key     *signing.Key
	nonces  *nonce.Manager
	account types.AccountId
}

// New constructs a Signer for one account, backed by key for signatures
// and nonces for nonce allocation.
func New(key *signing.Key, nonces *nonce.Manager, account types.AccountId) *Signer {
	return &Signer{key: key, nonces: nonces, account: account}
}

// resolveNonce returns the supplied nonce/key pair unchanged when both
// are set. With only a key, it asks the nonce manager for that key's next
// nonce; with no key, it asks for a fresh round-robin pair and ignores
// any supplied nonce.
func (s *Signer) resolveNonce(ctx context.Context, apiKeyIndex *types.ApiKeyIndex, nonceVal *types.Nonce) (types.ApiKeyIndex, types.Nonce, error) {
	if apiKeyIndex != nil && nonceVal != nil {
		return *apiKeyIndex, *nonceVal, nil
	}
	if apiKeyIndex != nil {
		n, err := s.nonces.NextNonceForKey(ctx, *apiKeyIndex)
		if err != nil {
			return 0, 0, lerrors.New(lerrors.KindNonce, "signer.resolveNonce", err)
		}
		return *apiKeyIndex, n, nil
	}
	idx, n, err := s.nonces.NextNonce(ctx)
	if err != nil {
		return 0, 0, lerrors.New(lerrors.KindNonce, "signer.resolveNonce", err)
	}
	return idx, n, nil
}

// CreateOrderParams holds the arguments to SignCreateOrder. Nonce and
// ApiKeyIndex are pointers so the zero value ("not supplied") is
// distinguishable from an explicit zero.
type CreateOrderParams struct {
	MarketId         types.MarketId
	ClientOrderIndex int64
	BaseAmount       types.BaseQty
	Price            types.Price
	IsAsk            bool
	OrderType        types.OrderType
	TimeInForce      types.TimeInForce
	ReduceOnly       bool
	TriggerPrice     types.Price
	OrderExpiry      int64
	Nonce            *types.Nonce
	ApiKeyIndex      *types.ApiKeyIndex
}

// SignCreateOrder signs a new-order transaction.
func (s *Signer) SignCreateOrder(ctx context.Context, p CreateOrderParams) (types.SignedPayload[types.CreateOrder], error) {
	var zero types.SignedPayload[types.CreateOrder]

	if p.BaseAmount <= 0 {
		return zero, lerrors.New(lerrors.KindValidation, "signer.SignCreateOrder", fmt.Errorf("base_amount must be positive, got %d", p.BaseAmount))
	}
	if p.Price < 0 {
		return zero, lerrors.New(lerrors.KindValidation, "signer.SignCreateOrder", fmt.Errorf("price must be non-negative, got %d", p.Price))
	}

	apiKeyIndex, n, err := s.resolveNonce(ctx, p.ApiKeyIndex, p.Nonce)
	if err != nil {
		return zero, err
	}

	tx := types.CreateOrder{
		MarketId:         p.MarketId,
		ClientOrderIndex: p.ClientOrderIndex,
		BaseAmount:       p.BaseAmount,
		Price:            p.Price,
		IsAsk:            p.IsAsk,
		OrderType:        p.OrderType,
		TimeInForce:      p.TimeInForce,
		ReduceOnly:       p.ReduceOnly,
		TriggerPrice:     p.TriggerPrice,
		OrderExpiry:      p.OrderExpiry,
		Nonce:            n,
		ApiKeyIndex:      apiKeyIndex,
	}

	sig, err := s.key.SignHex(wire.CanonicalCreateOrder(tx))
	if err != nil {
		return zero, lerrors.New(lerrors.KindAuth, "signer.SignCreateOrder", err)
	}
	tx.Signature = sig

	js, err := wire.MarshalSigned(tx)
	if err != nil {
		return zero, lerrors.New(lerrors.KindProtocol, "signer.SignCreateOrder", err)
	}

	return types.SignedPayload[types.CreateOrder]{TxType: types.TxTypeCreateOrder, Tx: tx, Json: js}, nil
}

// CancelOrderParams holds the arguments to SignCancelOrder.
type CancelOrderParams struct {
	MarketId    types.MarketId
	OrderIndex  int64
	Nonce       *types.Nonce
	ApiKeyIndex *types.ApiKeyIndex
}

// SignCancelOrder signs a cancel-single-order transaction.
func (s *Signer) SignCancelOrder(ctx context.Context, p CancelOrderParams) (types.SignedPayload[types.CancelOrder], error) {
	var zero types.SignedPayload[types.CancelOrder]

	apiKeyIndex, n, err := s.resolveNonce(ctx, p.ApiKeyIndex, p.Nonce)
	if err != nil {
		return zero, err
	}

	tx := types.CancelOrder{
		MarketId:    p.MarketId,
		OrderIndex:  p.OrderIndex,
		Nonce:       n,
		ApiKeyIndex: apiKeyIndex,
	}

	sig, err := s.key.SignHex(wire.CanonicalCancelOrder(tx))
	if err != nil {
		return zero, lerrors.New(lerrors.KindAuth, "signer.SignCancelOrder", err)
	}
	tx.Signature = sig

	js, err := wire.MarshalSigned(tx)
	if err != nil {
		return zero, lerrors.New(lerrors.KindProtocol, "signer.SignCancelOrder", err)
	}

	return types.SignedPayload[types.CancelOrder]{TxType: types.TxTypeCancelOrder, Tx: tx, Json: js}, nil
}

// CancelAllOrdersParams holds the arguments to SignCancelAllOrders.
type CancelAllOrdersParams struct {
	TimeInForceCutoff types.TimeInForce
	CutoffMs          int64
	Nonce             *types.Nonce
	ApiKeyIndex       *types.ApiKeyIndex
}

// SignCancelAllOrders signs a cancel-all transaction.
func (s *Signer) SignCancelAllOrders(ctx context.Context, p CancelAllOrdersParams) (types.SignedPayload[types.CancelAllOrders], error) {
	var zero types.SignedPayload[types.CancelAllOrders]

	apiKeyIndex, n, err := s.resolveNonce(ctx, p.ApiKeyIndex, p.Nonce)
	if err != nil {
		return zero, err
	}

	tx := types.CancelAllOrders{
		TimeInForceCutoff: p.TimeInForceCutoff,
		CutoffMs:          p.CutoffMs,
		Nonce:             n,
		ApiKeyIndex:       apiKeyIndex,
	}

	sig, err := s.key.SignHex(wire.CanonicalCancelAllOrders(tx))
	if err != nil {
		return zero, lerrors.New(lerrors.KindAuth, "signer.SignCancelAllOrders", err)
	}
	tx.Signature = sig

	js, err := wire.MarshalSigned(tx)
	if err != nil {
		return zero, lerrors.New(lerrors.KindProtocol, "signer.SignCancelAllOrders", err)
	}

	// A cancel-all invalidates every resting order placed under this key;
	// the caller's nonce counter is already past this point, nothing else
	// to invalidate locally.
	return types.SignedPayload[types.CancelAllOrders]{TxType: types.TxTypeCancelAllOrders, Tx: tx, Json: js}, nil
}

// AuthTokenResult is the bearer credential returned to the caller for
// use on authenticated WebSocket channels.
type AuthTokenResult struct {
	Token     string
	ExpiresAt time.Time
}

// CreateAuthTokenWithExpiry mints a bearer auth token for apiKeyIndex,
// valid until ttl from now (DefaultAuthTokenTTL if ttl <= 0). The token
// is not a ledger transaction and does not consume a nonce.
func (s *Signer) CreateAuthTokenWithExpiry(apiKeyIndex types.ApiKeyIndex, ttl time.Duration) (AuthTokenResult, error) {
	if ttl <= 0 {
		ttl = DefaultAuthTokenTTL
	}
	expiresAt := time.Now().Add(ttl)

	tx := types.AuthToken{
		AccountId:   s.account,
		ApiKeyIndex: apiKeyIndex,
		Expiry:      expiresAt.UnixMilli(),
	}

	sig, err := s.key.SignHex(wire.CanonicalAuthToken(tx))
	if err != nil {
		return AuthTokenResult{}, lerrors.New(lerrors.KindAuth, "signer.CreateAuthTokenWithExpiry", err)
	}
	tx.Signature = sig

	js, err := wire.MarshalSigned(tx)
	if err != nil {
		return AuthTokenResult{}, lerrors.New(lerrors.KindProtocol, "signer.CreateAuthTokenWithExpiry", err)
	}

	return AuthTokenResult{Token: js, ExpiresAt: expiresAt}, nil
}

// ———————————————————————————————————————————————————————————————————
// Wire constant helpers — spec.md §4.2 requires these be exposed so
// callers never hardcode the exchange's integer discriminators.
// ———————————————————————————————————————————————————————————————————

func OrderTypeLimit() types.OrderType   { return types.OrderTypeLimit }
func OrderTypeMarket() types.OrderType  { return types.OrderTypeMarket }
func TimeInForcePostOnly() types.TimeInForce           { return types.TimeInForcePostOnly }
func TimeInForceGoodTillTime() types.TimeInForce       { return types.TimeInForceGoodTillTime }
func TimeInForceImmediateOrCancel() types.TimeInForce  { return types.TimeInForceImmediateOrCancel }
