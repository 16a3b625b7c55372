// Package types defines the shared data model for the Lighter trading SDK.
//
// This package is the common vocabulary for the client — market/account
// identifiers, transaction variants, order-book snapshots, and WebSocket
// event payloads. It has no dependency on any other internal package, so
// every layer (signing, nonce management, REST, WebSocket, TOB-guard,
// order building) can import it.
package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Identifiers
// ————————————————————————————————————————————————————————————————————————

// MarketId identifies a perpetual-futures market.
type MarketId int64

// AccountId identifies a trading account.
type AccountId int64

// ApiKeyIndex selects one of an account's configured signing keys.
type ApiKeyIndex int32

// Nonce is a per-(account, api_key) monotonically increasing sequence number.
type Nonce int64

// Price is an integer count of tick-sized units. Use MarketMetadata to
// convert to/from a decimal display value; no float ever reaches the
// signed buffer.
type Price int64

// BaseQty is an integer count of size-lot units. Must be positive and
// non-zero for any order.
type BaseQty int64

// BlockHeight is the exchange's monotonic block counter, carried on the
// "height" WebSocket channel.
type BlockHeight int64

// Decimal converts ticks to a decimal price given the market's price
// precision. ticks * 10^-decimals, computed without floating point.
func (p Price) Decimal(priceDecimals int32) decimal.Decimal {
	return decimal.New(int64(p), -priceDecimals)
}

// Decimal converts size-lot units to a decimal quantity given the
// market's size precision.
func (q BaseQty) Decimal(sizeDecimals int32) decimal.Decimal {
	return decimal.New(int64(q), -sizeDecimals)
}

// ————————————————————————————————————————————————————————————————————————
// Order enums — closed, wire-stable integer discriminators.
// ————————————————————————————————————————————————————————————————————————

// OrderType enumerates the order execution styles the exchange supports.
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
	OrderTypeStopLoss
	OrderTypeTakeProfit
)

// TimeInForce enumerates how an order behaves once it reaches the book.
type TimeInForce int

const (
	TimeInForceGoodTillTime TimeInForce = iota
	TimeInForceImmediateOrCancel
	TimeInForcePostOnly
)

// TxType is the stable integer discriminator carried on the wire for each
// transaction variant. Values are part of the exchange's wire contract and
// must never drift.
type TxType int

const (
	TxTypeCreateOrder TxType = 1
	// TxTypeCancelOrder's value is an assumption: only the CreateOrder
	// and CancelAllOrders discriminators are confirmed against the venue,
	// and this standalone CancelOrder value is unconfirmed.
	TxTypeCancelOrder     TxType = 2
	TxTypeCancelAllOrders TxType = 3
)

// ExpiryServerDefault is the sentinel order_expiry value meaning "let the
// server pick the default expiry" — the client neither computes nor
// overrides an expiry in that case.
const ExpiryServerDefault int64 = -1

// ————————————————————————————————————————————————————————————————————————
// Transaction variants — a closed sum type, one struct per variant.
// ————————————————————————————————————————————————————————————————————————

// CreateOrder is the transaction payload for placing a new order.
type CreateOrder struct {
	MarketId         MarketId    `json:"market_id"`
	ClientOrderIndex int64       `json:"client_order_index"`
	BaseAmount       BaseQty     `json:"base_amount"`
	Price            Price       `json:"price"`
	IsAsk            bool        `json:"is_ask"`
	OrderType        OrderType   `json:"order_type"`
	TimeInForce      TimeInForce `json:"time_in_force"`
	ReduceOnly       bool        `json:"reduce_only"`
	TriggerPrice     Price       `json:"trigger_price"`
	OrderExpiry      int64       `json:"order_expiry"`
	Nonce            Nonce       `json:"nonce"`
	ApiKeyIndex      ApiKeyIndex `json:"api_key_index"`
	Signature        string      `json:"signature"`
}

// CancelOrder is the transaction payload for cancelling a single order.
type CancelOrder struct {
	MarketId    MarketId    `json:"market_id"`
	OrderIndex  int64       `json:"order_index"`
	Nonce       Nonce       `json:"nonce"`
	ApiKeyIndex ApiKeyIndex `json:"api_key_index"`
	Signature   string      `json:"signature"`
}

// CancelAllOrders is the transaction payload for cancelling every order
// older than a given time-in-force cutoff.
type CancelAllOrders struct {
	TimeInForceCutoff TimeInForce `json:"time_in_force_cutoff"`
	CutoffMs          int64       `json:"cutoff_ms"`
	Nonce             Nonce       `json:"nonce"`
	ApiKeyIndex       ApiKeyIndex `json:"api_key_index"`
	Signature         string      `json:"signature"`
}

// AuthToken is issued as a bearer credential for authenticated WebSocket
// channels. It is never submitted as a ledger transaction.
type AuthToken struct {
	AccountId   AccountId   `json:"account_id"`
	ApiKeyIndex ApiKeyIndex `json:"api_key_index"`
	Expiry      int64       `json:"expiry"`
	Signature   string      `json:"signature"`
}

// SignedPayload is the canonical, single-use wire form of a signed
// transaction: its JSON encoding plus the transaction-type discriminator.
// A SignedPayload's nonce may never be reused.
type SignedPayload[T any] struct {
	TxType TxType `json:"-"`
	Tx     T      `json:"-"`
	Json   string `json:"-"`
}

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// MarketMetadata is the immutable-for-the-session scaling/risk information
// the client needs for one market. Loaded once at startup via
// GET /orderBookDetails and never mutated afterward.
type MarketMetadata struct {
	MarketId              MarketId
	Symbol                string
	PriceDecimals         int32
	SizeDecimals          int32
	MinBaseAmount         BaseQty
	MinQuoteAmount        decimal.Decimal
	InitialMarginFraction decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// OrderBookLevel is a single bid or ask level. RemainingSize is
// authoritative for "current" liquidity at the level; a level with
// RemainingSize <= 0 is logically absent.
type OrderBookLevel struct {
	Price         string `json:"price"`
	InitialSize   string `json:"initial_size"`
	RemainingSize string `json:"remaining_size"`
}

// OrderBookState is an ordered order-book snapshot: bids descending by
// price, asks ascending by price.
type OrderBookState struct {
	MarketId  MarketId
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
	Timestamp time.Time
}

// BboQuote is an optional best-bid / best-ask pair.
type BboQuote struct {
	BestBid string
	BestAsk string
}

// ————————————————————————————————————————————————————————————————————————
// Misc market payloads
// ————————————————————————————————————————————————————————————————————————

// MarketStats is the per-market trailing volume/trade-count payload
// carried on the "market_stats" WebSocket channel and GET /exchangeStats.
type MarketStats struct {
	MarketId       MarketId `json:"market_id"`
	DailyVolume    string   `json:"daily_volume"`
	DailyTrades    int64    `json:"daily_trades"`
	LastTradePrice string   `json:"last_trade_price"`
	MarkPrice      string   `json:"mark_price"`
}

// TradeData is a single public trade print carried on the "trade" channel.
type TradeData struct {
	MarketId  MarketId `json:"market_id"`
	TradeId   int64    `json:"trade_id"`
	Price     string   `json:"price"`
	Size      string   `json:"size"`
	IsAsk     bool     `json:"is_ask"`
	Timestamp int64    `json:"timestamp"`
}

// TxAck is a single acknowledgement for a submitted transaction, delivered
// on the "transaction" WebSocket channel.
type TxAck struct {
	Code    int    `json:"code"`
	TxHash  string `json:"tx_hash"`
	Message string `json:"message,omitempty"`
}

// ExecutedTx is a confirmed, chain-included transaction, delivered on the
// "executed_transaction" WebSocket channel.
type ExecutedTx struct {
	TxHash string `json:"tx_hash"`
	Height int64  `json:"height"`
}

// CloseInfo describes why a WebSocket connection closed.
type CloseInfo struct {
	Code   int
	Reason string
}

// AccountEventEnvelope carries an account-scoped WebSocket event whose
// internal shape varies by channel and by venue revision. Rather than
// binding to one schema, the envelope keeps the event as raw JSON and
// exposes structural queries that walk the tree — this is forward
// compatible with fields the venue adds later, per the "dynamic
// account-event payloads" design note.
type AccountEventEnvelope struct {
	AccountId AccountId
	Snapshot  bool
	Channel   string
	Event     json.RawMessage
}

// Positions walks the raw event tree for a "positions" array scoped to
// marketID, if marketID is non-nil, or every position otherwise.
// Returns the matching elements as raw JSON, or nil if the event has no
// positions field.
func (e AccountEventEnvelope) Positions(marketID *MarketId) ([]json.RawMessage, error) {
	return e.queryArray("positions", marketID)
}

// Orders walks the raw event tree for an "orders" array, optionally
// scoped to marketID.
func (e AccountEventEnvelope) Orders(marketID *MarketId) ([]json.RawMessage, error) {
	return e.queryArray("orders", marketID)
}

// Trades walks the raw event tree for a "trades" array, optionally
// scoped to marketID.
func (e AccountEventEnvelope) Trades(marketID *MarketId) ([]json.RawMessage, error) {
	return e.queryArray("trades", marketID)
}

func (e AccountEventEnvelope) queryArray(field string, marketID *MarketId) ([]json.RawMessage, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(e.Event, &root); err != nil {
		return nil, fmt.Errorf("account event: unmarshal envelope: %w", err)
	}
	raw, ok := root[field]
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("account event: unmarshal %s: %w", field, err)
	}
	if marketID == nil {
		return items, nil
	}

	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var scoped struct {
			MarketId MarketId `json:"market_id"`
		}
		if err := json.Unmarshal(item, &scoped); err != nil {
			continue
		}
		if scoped.MarketId == *marketID {
			out = append(out, item)
		}
	}
	return out, nil
}
