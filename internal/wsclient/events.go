package wsclient

import "github.com/lighter-client/lighterclient/pkg/types"

// Kind discriminates the demultiplexed event taxonomy from spec.md
// §4.3.2. Every event on the stream carries exactly one of these, and a
// frame no decoder recognises becomes Unknown. Some inbound frames
// produce no event: JSON pings (answered with a pong), "subscribed"
// confirmations, code frames handed to a waiting SendTx/SendTxBatch
// call, and duplicate-subscription errors inside the grace window after
// connect. An event is dropped, with a warning logged, when the
// stream's buffer is full.
type Kind int

const (
	KindConnected Kind = iota
	KindPong
	KindOrderBook
	KindBBO
	KindMarketStats
	KindTrade
	KindTransaction
	KindExecutedTransaction
	KindHeight
	KindAccount
	KindClosed
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindPong:
		return "pong"
	case KindOrderBook:
		return "order_book"
	case KindBBO:
		return "bbo"
	case KindMarketStats:
		return "market_stats"
	case KindTrade:
		return "trade"
	case KindTransaction:
		return "transaction"
	case KindExecutedTransaction:
		return "executed_transaction"
	case KindHeight:
		return "height"
	case KindAccount:
		return "account"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is the single type carried on the client's event stream. Only
// the field(s) relevant to Kind are populated.
type Event struct {
	Kind Kind

	MarketId types.MarketId

	OrderBook   types.OrderBookState
	Bbo         types.BboQuote
	MarketStats types.MarketStats
	Trades      []types.TradeData
	TxAcks      []types.TxAck
	ExecutedTxs []types.ExecutedTx
	Height      types.BlockHeight
	Account     types.AccountEventEnvelope
	Close       types.CloseInfo
	Raw         string
}
