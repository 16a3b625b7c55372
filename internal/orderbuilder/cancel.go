package orderbuilder

import (
	"context"
	"fmt"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/internal/signer"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// CancelBuilder assembles a single cancel-order transaction. Unlike
// Builder it has no price/size to validate, so it exposes only the
// nonce/key overrides before Submit. Per spec.md §4.5, cancel builders
// are not useful to inspect pre-signed, so signing is reachable only
// through Submit.
type CancelBuilder struct {
	signer    *signer.Signer
	transport Transport

	marketID   types.MarketId
	orderIndex int64

	nonce       *types.Nonce
	apiKeyIndex *types.ApiKeyIndex

	consumed bool
}

// Cancel starts a builder that cancels one resting order identified by
// marketID and orderIndex.
func Cancel(s *signer.Signer, transport Transport, marketID types.MarketId, orderIndex int64) *CancelBuilder {
	return &CancelBuilder{signer: s, transport: transport, marketID: marketID, orderIndex: orderIndex}
}

func (b *CancelBuilder) WithNonce(n types.Nonce) *CancelBuilder {
	b.nonce = &n
	return b
}

func (b *CancelBuilder) WithApiKey(idx types.ApiKeyIndex) *CancelBuilder {
	b.apiKeyIndex = &idx
	return b
}

func (b *CancelBuilder) sign(ctx context.Context) (types.SignedPayload[types.CancelOrder], error) {
	var zero types.SignedPayload[types.CancelOrder]
	if b.consumed {
		return zero, lerrors.New(lerrors.KindValidation, "orderbuilder.CancelBuilder.Submit", fmt.Errorf("builder already consumed"))
	}
	b.consumed = true
	return b.signer.SignCancelOrder(ctx, signer.CancelOrderParams{
		MarketId:    b.marketID,
		OrderIndex:  b.orderIndex,
		Nonce:       b.nonce,
		ApiKeyIndex: b.apiKeyIndex,
	})
}

// Submit signs and submits the cancel through the builder's transport.
// Cancel builders have no Sign escape hatch — a pre-signed cancel isn't
// useful to inspect, per spec.md §4.5.
func (b *CancelBuilder) Submit(ctx context.Context) (OrderSubmission, error) {
	payload, err := b.sign(ctx)
	if err != nil {
		return OrderSubmission{}, err
	}
	ok, err := b.transport.SendTx(ctx, payload.TxType, payload.Json)
	if err != nil {
		return OrderSubmission{}, err
	}
	return OrderSubmission{Accepted: ok, Json: payload.Json}, nil
}

// CancelAllBuilder assembles a cancel-all-orders transaction: every order
// resting under the signing account older than the given time-in-force
// cutoff is cancelled.
type CancelAllBuilder struct {
	signer    *signer.Signer
	transport Transport

	tifCutoff types.TimeInForce
	cutoffMs  int64

	nonce       *types.Nonce
	apiKeyIndex *types.ApiKeyIndex

	consumed bool
}

// CancelAll starts a cancel-all builder. tifCutoff/cutoffMs mirror the
// venue's CancelAllOrders semantics: orders placed before cutoffMs under
// the matching time-in-force class are cancelled.
func CancelAll(s *signer.Signer, transport Transport, tifCutoff types.TimeInForce, cutoffMs int64) *CancelAllBuilder {
	return &CancelAllBuilder{signer: s, transport: transport, tifCutoff: tifCutoff, cutoffMs: cutoffMs}
}

func (b *CancelAllBuilder) WithNonce(n types.Nonce) *CancelAllBuilder {
	b.nonce = &n
	return b
}

func (b *CancelAllBuilder) WithApiKey(idx types.ApiKeyIndex) *CancelAllBuilder {
	b.apiKeyIndex = &idx
	return b
}

func (b *CancelAllBuilder) sign(ctx context.Context) (types.SignedPayload[types.CancelAllOrders], error) {
	var zero types.SignedPayload[types.CancelAllOrders]
	if b.consumed {
		return zero, lerrors.New(lerrors.KindValidation, "orderbuilder.CancelAllBuilder.Submit", fmt.Errorf("builder already consumed"))
	}
	b.consumed = true
	return b.signer.SignCancelAllOrders(ctx, signer.CancelAllOrdersParams{
		TimeInForceCutoff: b.tifCutoff,
		CutoffMs:          b.cutoffMs,
		Nonce:             b.nonce,
		ApiKeyIndex:       b.apiKeyIndex,
	})
}

// Submit signs and submits the cancel-all through the builder's
// transport. No Sign escape hatch, per spec.md §4.5.
func (b *CancelAllBuilder) Submit(ctx context.Context) (OrderSubmission, error) {
	payload, err := b.sign(ctx)
	if err != nil {
		return OrderSubmission{}, err
	}
	ok, err := b.transport.SendTx(ctx, payload.TxType, payload.Json)
	if err != nil {
		return OrderSubmission{}, err
	}
	return OrderSubmission{Accepted: ok, Json: payload.Json}, nil
}
