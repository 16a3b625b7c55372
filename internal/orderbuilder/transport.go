// Package orderbuilder provides the fluent order-construction API:
// order(market).buy().qty(...).limit(...)....sign()/submit(). It composes
// the signer, market metadata cache, and an injected transport so callers
// never hand-assemble a CreateOrder/CancelOrder/CancelAllOrders struct
// themselves.
//
// Grounded on the lubluniky CTF-exchange order builder
// (other_examples/.../internal-orderbuilder-builder.go.go): that file's
// CalculateLimitOrderAmounts/CalculateMarketOrderAmounts pattern — derive
// a protective limit price from slippage, then round to a valid tick — is
// reused here for Market().WithSlippage(). The fluent method-chaining
// shape itself follows spec.md §4.5; the underlying "gather, validate,
// sign" pipeline is the teacher's internal/strategy order-placement flow
// generalized to this venue's four transaction variants.
package orderbuilder

import (
	"context"

	"github.com/lighter-client/lighterclient/internal/restclient"
	"github.com/lighter-client/lighterclient/internal/wsclient"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// Transport submits a signed payload and reports whether the exchange
// accepted it. Implemented by both internal/restclient.Client and
// internal/wsclient.Client via the adapters below, so a builder can be
// wired to either transport interchangeably.
type Transport interface {
	SendTx(ctx context.Context, txType types.TxType, payloadJSON string) (bool, error)
}

// RestTransport adapts internal/restclient.Client to Transport.
type RestTransport struct {
	Client *restclient.Client
}

func (t RestTransport) SendTx(ctx context.Context, txType types.TxType, payloadJSON string) (bool, error) {
	result, err := t.Client.SendTx(ctx, txType, payloadJSON)
	if err != nil {
		return false, err
	}
	return result.Success(), nil
}

// WsTransport adapts internal/wsclient.Client to Transport.
type WsTransport struct {
	Client *wsclient.Client
}

func (t WsTransport) SendTx(ctx context.Context, txType types.TxType, payloadJSON string) (bool, error) {
	return t.Client.SendTx(ctx, txType, payloadJSON)
}

// ToRestBatchItem converts a signed payload into the batch item shape
// internal/restclient.Client.SendTxBatch expects.
func ToRestBatchItem[T any](p types.SignedPayload[T]) restclient.BatchItem {
	return restclient.BatchItem{TxType: p.TxType, PayloadJSON: p.Json}
}

// ToWsBatchItem converts a signed payload into the batch item shape
// internal/wsclient.Client.SendTxBatch expects.
func ToWsBatchItem[T any](p types.SignedPayload[T]) wsclient.BatchItem {
	return wsclient.BatchItem{TxType: p.TxType, PayloadJSON: p.Json}
}
