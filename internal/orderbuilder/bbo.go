package orderbuilder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/internal/restclient"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// BboSource supplies the best bid/ask a Market() order needs to derive a
// protective limit price from slippage.
type BboSource interface {
	Bbo(ctx context.Context, marketID types.MarketId) (bid, ask decimal.Decimal, err error)
}

// RestBboSource reads the top of book straight off the REST order-book
// snapshot. Callers quoting continuously should prefer a source backed by
// the WebSocket bbo channel or the top-of-book guard instead, so this is
// meant for one-shot or low-frequency order placement.
type RestBboSource struct {
	Client *restclient.Client
}

func (s RestBboSource) Bbo(ctx context.Context, marketID types.MarketId) (decimal.Decimal, decimal.Decimal, error) {
	book, err := s.Client.OrderBook(ctx, marketID, 1)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return decimal.Decimal{}, decimal.Decimal{}, lerrors.New(lerrors.KindValidation, "orderbuilder.RestBboSource.Bbo", fmt.Errorf("market %d has an empty side of the book", marketID))
	}
	bid, err := decimal.NewFromString(book.Bids[0].Price)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, lerrors.New(lerrors.KindProtocol, "orderbuilder.RestBboSource.Bbo", err)
	}
	ask, err := decimal.NewFromString(book.Asks[0].Price)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, lerrors.New(lerrors.KindProtocol, "orderbuilder.RestBboSource.Bbo", err)
	}
	return bid, ask, nil
}
