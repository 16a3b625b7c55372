package wsclient

import (
	"encoding/json"
	"strings"

	"github.com/lighter-client/lighterclient/pkg/types"
)

// channelDecoder turns one channel-tagged frame into a typed Event. It
// returns ok=false if the frame doesn't actually match its own channel
// shape, in which case the caller falls back to Unknown.
type channelDecoder func(data []byte) (Event, bool)

// newChannelDecoder resolves a decoder for a subscribed channel name.
// Channel names are colon-separated, e.g. "order_book:7" or
// "account_market_orders:7:42"; the prefix selects the decoder, the
// suffix carries the scoping identifiers already encoded in the
// payload itself, so only the prefix is consulted here.
func newChannelDecoder(channel string) channelDecoder {
	prefix := channel
	if i := strings.IndexByte(channel, ':'); i >= 0 {
		prefix = channel[:i]
	}

	switch prefix {
	case "order_book":
		return decodeOrderBook
	case "bbo":
		return decodeBbo
	case "market_stats":
		return decodeMarketStats
	case "trade":
		return decodeTrade
	case "account_all_orders", "account_market_orders", "user_stats", "account_tx":
		return decodeAccount
	case TransactionChannel:
		return decodeTransaction
	case ExecutedTransactionChannel:
		return decodeExecutedTransaction
	case HeightChannel:
		return decodeHeight
	default:
		return nil
	}
}

func decodeOrderBook(data []byte) (Event, bool) {
	var payload struct {
		MarketId types.MarketId         `json:"market_id"`
		Bids     []types.OrderBookLevel `json:"bids"`
		Asks     []types.OrderBookLevel `json:"asks"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, false
	}
	return Event{
		Kind:     KindOrderBook,
		MarketId: payload.MarketId,
		OrderBook: types.OrderBookState{
			MarketId: payload.MarketId,
			Bids:     payload.Bids,
			Asks:     payload.Asks,
		},
	}, true
}

func decodeBbo(data []byte) (Event, bool) {
	var payload struct {
		MarketId types.MarketId `json:"market_id"`
		BestBid  string         `json:"best_bid"`
		BestAsk  string         `json:"best_ask"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, false
	}
	return Event{
		Kind:     KindBBO,
		MarketId: payload.MarketId,
		Bbo:      types.BboQuote{BestBid: payload.BestBid, BestAsk: payload.BestAsk},
	}, true
}

func decodeMarketStats(data []byte) (Event, bool) {
	var payload types.MarketStats
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, false
	}
	return Event{Kind: KindMarketStats, MarketId: payload.MarketId, MarketStats: payload}, true
}

func decodeTrade(data []byte) (Event, bool) {
	var payload struct {
		MarketId types.MarketId    `json:"market_id"`
		Trades   []types.TradeData `json:"trades"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, false
	}
	return Event{Kind: KindTrade, MarketId: payload.MarketId, Trades: payload.Trades}, true
}

func decodeAccount(data []byte) (Event, bool) {
	var payload struct {
		Channel   string         `json:"channel"`
		AccountId types.AccountId `json:"account_id"`
		Snapshot  bool           `json:"snapshot"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, false
	}
	return Event{
		Kind: KindAccount,
		Account: types.AccountEventEnvelope{
			AccountId: payload.AccountId,
			Snapshot:  payload.Snapshot,
			Channel:   payload.Channel,
			Event:     json.RawMessage(data),
		},
	}, true
}

func decodeTransaction(data []byte) (Event, bool) {
	var payload struct {
		Acks []types.TxAck `json:"acks"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Acks) == 0 {
		var single types.TxAck
		if err := json.Unmarshal(data, &single); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindTransaction, TxAcks: []types.TxAck{single}}, true
	}
	return Event{Kind: KindTransaction, TxAcks: payload.Acks}, true
}

func decodeExecutedTransaction(data []byte) (Event, bool) {
	var payload struct {
		Executed []types.ExecutedTx `json:"executed"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Executed) == 0 {
		var single types.ExecutedTx
		if err := json.Unmarshal(data, &single); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindExecutedTransaction, ExecutedTxs: []types.ExecutedTx{single}}, true
	}
	return Event{Kind: KindExecutedTransaction, ExecutedTxs: payload.Executed}, true
}

func decodeHeight(data []byte) (Event, bool) {
	var payload struct {
		Height int64 `json:"height"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, false
	}
	return Event{Kind: KindHeight, Height: types.BlockHeight(payload.Height)}, true
}
