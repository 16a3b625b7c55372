package orderbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/internal/marketdata"
	"github.com/lighter-client/lighterclient/internal/signer"
	"github.com/lighter-client/lighterclient/pkg/types"
)

type priceMode int

const (
	priceModeUnset priceMode = iota
	priceModeLimit
	priceModeMarket
)

// OrderSubmission is the result of submitting a signed order through an
// injected Transport.
type OrderSubmission struct {
	Accepted bool
	Json     string
}

// Builder assembles one order through a fluent call chain and produces
// either a signed payload (Sign) or a submitted order (Submit). A Builder
// is single-use: calling Sign or Submit a second time returns an error.
type Builder struct {
	signer     *signer.Signer
	marketdata *marketdata.Cache
	bbo        BboSource
	transport  Transport

	marketID types.MarketId

	sideSet bool
	isAsk   bool

	qtySet bool
	qty    decimal.Decimal

	mode       priceMode
	limitPrice decimal.Decimal

	tifSet bool
	tif    types.TimeInForce

	reduceOnly bool

	expirySet bool
	expiry    int64

	slippageSet bool
	slippage    decimal.Decimal

	nonce       *types.Nonce
	apiKeyIndex *types.ApiKeyIndex

	clientOrderIndexSet bool
	clientOrderIndex    int64
	autoClientID        bool

	consumed bool
}

// Order starts a new order builder for marketID. s signs the resulting
// transaction, md resolves tick/lot scaling, bbo supplies the top of book
// for slippage-derived market orders (may be nil if the order will always
// be a limit order), and transport submits the signed payload.
func Order(s *signer.Signer, md *marketdata.Cache, bbo BboSource, transport Transport, marketID types.MarketId) *Builder {
	return &Builder{signer: s, marketdata: md, bbo: bbo, transport: transport, marketID: marketID}
}

func (b *Builder) Buy() *Builder {
	b.sideSet, b.isAsk = true, false
	return b
}

func (b *Builder) Sell() *Builder {
	b.sideSet, b.isAsk = true, true
	return b
}

// Qty sets the order size as a decimal display quantity.
func (b *Builder) Qty(qty decimal.Decimal) *Builder {
	b.qtySet, b.qty = true, qty
	return b
}

// Limit makes this a limit order at the given decimal display price.
func (b *Builder) Limit(price decimal.Decimal) *Builder {
	b.mode, b.limitPrice = priceModeLimit, price
	return b
}

// Market makes this a market order. WithSlippage is required alongside it
// since the venue has no bare market-order transaction: a protective
// limit price is derived from the current top of book instead.
func (b *Builder) Market() *Builder {
	b.mode = priceModeMarket
	return b
}

// PostOnly marks a limit order so it is rejected rather than crossing the
// book. Not valid on a market order.
func (b *Builder) PostOnly() *Builder {
	b.tifSet, b.tif = true, types.TimeInForcePostOnly
	return b
}

// IOC marks the order immediate-or-cancel: fill what's available, cancel
// the remainder. The only valid time-in-force for a market order.
func (b *Builder) IOC() *Builder {
	b.tifSet, b.tif = true, types.TimeInForceImmediateOrCancel
	return b
}

func (b *Builder) ReduceOnly() *Builder {
	b.reduceOnly = true
	return b
}

// ExpiresAt sets an explicit expiry (unix milliseconds). Without this the
// order carries ExpiryServerDefault and the exchange applies its own
// default.
func (b *Builder) ExpiresAt(unixMillis int64) *Builder {
	b.expirySet, b.expiry = true, unixMillis
	return b
}

// WithSlippage sets the fractional tolerance (e.g. 0.005 for 0.5%) used
// to derive a market order's protective limit price. Only valid with
// Market().
func (b *Builder) WithSlippage(fraction decimal.Decimal) *Builder {
	b.slippageSet, b.slippage = true, fraction
	return b
}

// WithNonce pins an explicit nonce instead of letting the signer allocate
// one. Must be paired with WithApiKey.
func (b *Builder) WithNonce(n types.Nonce) *Builder {
	b.nonce = &n
	return b
}

// WithApiKey pins the signing key index instead of letting the signer
// round-robin across configured keys.
func (b *Builder) WithApiKey(idx types.ApiKeyIndex) *Builder {
	b.apiKeyIndex = &idx
	return b
}

// WithClientOrderIndex sets an explicit client-assigned order id.
func (b *Builder) WithClientOrderIndex(i int64) *Builder {
	b.clientOrderIndexSet, b.clientOrderIndex = true, i
	return b
}

// AutoClientID derives a client order index from the current time
// instead of requiring the caller to track one. One of this or
// WithClientOrderIndex is required.
func (b *Builder) AutoClientID() *Builder {
	b.autoClientID = true
	return b
}

// Sign validates the accumulated state, resolves a protective price for
// market orders, and returns the signed CreateOrder payload without
// submitting it.
func (b *Builder) Sign(ctx context.Context) (types.SignedPayload[types.CreateOrder], error) {
	var zero types.SignedPayload[types.CreateOrder]
	if b.consumed {
		return zero, lerrors.New(lerrors.KindValidation, "orderbuilder.Sign", fmt.Errorf("builder already consumed"))
	}
	b.consumed = true

	params, err := b.resolve(ctx)
	if err != nil {
		return zero, err
	}
	return b.signer.SignCreateOrder(ctx, params)
}

// Submit signs and submits the order through the builder's transport.
func (b *Builder) Submit(ctx context.Context) (OrderSubmission, error) {
	if b.consumed {
		return OrderSubmission{}, lerrors.New(lerrors.KindValidation, "orderbuilder.Submit", fmt.Errorf("builder already consumed"))
	}
	b.consumed = true

	params, err := b.resolve(ctx)
	if err != nil {
		return OrderSubmission{}, err
	}
	payload, err := b.signer.SignCreateOrder(ctx, params)
	if err != nil {
		return OrderSubmission{}, err
	}
	ok, err := b.transport.SendTx(ctx, payload.TxType, payload.Json)
	if err != nil {
		return OrderSubmission{}, err
	}
	return OrderSubmission{Accepted: ok, Json: payload.Json}, nil
}

func (b *Builder) resolve(ctx context.Context) (signer.CreateOrderParams, error) {
	const op = "orderbuilder.resolve"
	var zero signer.CreateOrderParams

	if !b.sideSet {
		return zero, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("order requires Buy() or Sell()"))
	}
	if !b.qtySet || !b.qty.IsPositive() {
		return zero, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("order requires a positive Qty()"))
	}
	if b.mode == priceModeUnset {
		return zero, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("order requires Limit() or Market()"))
	}
	if b.mode == priceModeLimit && b.slippageSet {
		return zero, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("with_slippage is only valid for Market() orders"))
	}
	if b.mode == priceModeMarket && b.tifSet && b.tif != types.TimeInForceImmediateOrCancel {
		return zero, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("market orders must use IOC"))
	}
	if !b.clientOrderIndexSet && !b.autoClientID {
		return zero, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("order requires WithClientOrderIndex() or AutoClientID()"))
	}

	qty, err := b.marketdata.ScaleSize(b.marketID, b.qty)
	if err != nil {
		return zero, err
	}

	var price types.Price
	orderType := signer.OrderTypeLimit()
	tif := b.tif
	if !b.tifSet {
		tif = types.TimeInForceGoodTillTime
	}

	switch b.mode {
	case priceModeLimit:
		price, err = b.marketdata.ScalePrice(b.marketID, b.limitPrice)
		if err != nil {
			return zero, err
		}
	case priceModeMarket:
		orderType = signer.OrderTypeMarket()
		if !b.tifSet {
			tif = types.TimeInForceImmediateOrCancel
		}
		if !b.slippageSet {
			return zero, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("market orders require WithSlippage()"))
		}
		if b.bbo == nil {
			return zero, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("market orders require a BboSource"))
		}
		bid, ask, err := b.bbo.Bbo(ctx, b.marketID)
		if err != nil {
			return zero, err
		}
		var best, protective decimal.Decimal
		if b.isAsk {
			best = bid
			protective = best.Sub(best.Mul(b.slippage))
		} else {
			best = ask
			protective = best.Add(best.Mul(b.slippage))
		}
		price, err = b.marketdata.RoundPrice(b.marketID, protective, !b.isAsk)
		if err != nil {
			return zero, err
		}
	}

	expiry := types.ExpiryServerDefault
	if b.expirySet {
		expiry = b.expiry
	}

	clientOrderIndex := b.clientOrderIndex
	if b.autoClientID && !b.clientOrderIndexSet {
		clientOrderIndex = time.Now().UnixNano()
	}

	return signer.CreateOrderParams{
		MarketId:         b.marketID,
		ClientOrderIndex: clientOrderIndex,
		BaseAmount:       qty,
		Price:            price,
		IsAsk:            b.isAsk,
		OrderType:        orderType,
		TimeInForce:      tif,
		ReduceOnly:       b.reduceOnly,
		OrderExpiry:      expiry,
		Nonce:            b.nonce,
		ApiKeyIndex:      b.apiKeyIndex,
	}, nil
}
