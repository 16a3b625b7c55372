// Package restclient implements the HTTP REST surface consumed from
// the exchange: market metadata, order books, account state, nonce
// lookups, and transaction submission.
//
// Grounded on the teacher's internal/exchange/client.go: a resty client
// with a base URL, retry-on-5xx, and per-category rate limiting. The
// Polymarket-specific order/cancel endpoints are replaced with this
// venue's orderBookDetails/orderBook/account/nextNonce/sendTx surface,
// but the wrapping — rate limit, then request, then status check — is
// unchanged.
package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// Client is the REST API client for the exchange.
type Client struct {
	http   *resty.Client
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithDryRun makes mutating calls (SendTx, SendTxBatch) return a fake
// success response without making any network request, for tests and
// examples run without a live exchange.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) { c.dryRun = dryRun }
}

// WithRateLimiter overrides the default token buckets, e.g. once the
// venue's published per-category limits are known.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) { c.rl = rl }
}

// New constructs a REST client pointed at apiURL.
func New(apiURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	c := &Client{
		http:   httpClient,
		rl:     NewRateLimiter(),
		logger: logger.With("component", "restclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// marketMetadataDTO is the wire shape of one entry in orderBookDetails;
// numeric scaling fields arrive as strings/decimals and are converted
// to the internal integer/decimal representation on the way in.
type marketMetadataDTO struct {
	MarketId              types.MarketId `json:"market_id"`
	Symbol                string         `json:"symbol"`
	PriceDecimals         int32          `json:"price_decimals"`
	SizeDecimals          int32          `json:"size_decimals"`
	MinBaseAmount         int64          `json:"min_base_amount"`
	MinQuoteAmount        string         `json:"min_quote_amount"`
	InitialMarginFraction string         `json:"initial_margin_fraction"`
}

type orderBookDetailsResponse struct {
	Code              int                 `json:"code"`
	OrderBookDetails  []marketMetadataDTO `json:"order_book_details"`
}

// OrderBookDetails fetches market metadata. When marketIDs is empty the
// exchange returns every market.
func (c *Client) OrderBookDetails(ctx context.Context, marketIDs ...types.MarketId) ([]types.MarketMetadata, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, lerrors.New(lerrors.KindTransport, "restclient.OrderBookDetails", err)
	}

	req := c.http.R().SetContext(ctx)
	if len(marketIDs) == 1 {
		req.SetQueryParam("market_id", fmt.Sprintf("%d", marketIDs[0]))
	}

	var result orderBookDetailsResponse
	resp, err := req.SetResult(&result).Get("/orderBookDetails")
	if err != nil {
		return nil, lerrors.New(lerrors.KindTransport, "restclient.OrderBookDetails", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, lerrors.New(lerrors.KindProtocol, "restclient.OrderBookDetails", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	wanted := make(map[types.MarketId]bool, len(marketIDs))
	for _, id := range marketIDs {
		wanted[id] = true
	}

	out := make([]types.MarketMetadata, 0, len(result.OrderBookDetails))
	for _, dto := range result.OrderBookDetails {
		if len(wanted) > 0 && !wanted[dto.MarketId] {
			continue
		}
		minQuote, err := parseDecimal(dto.MinQuoteAmount)
		if err != nil {
			return nil, lerrors.New(lerrors.KindProtocol, "restclient.OrderBookDetails", err)
		}
		imf, err := parseDecimal(dto.InitialMarginFraction)
		if err != nil {
			return nil, lerrors.New(lerrors.KindProtocol, "restclient.OrderBookDetails", err)
		}
		out = append(out, types.MarketMetadata{
			MarketId:              dto.MarketId,
			Symbol:                dto.Symbol,
			PriceDecimals:         dto.PriceDecimals,
			SizeDecimals:          dto.SizeDecimals,
			MinBaseAmount:         types.BaseQty(dto.MinBaseAmount),
			MinQuoteAmount:        minQuote,
			InitialMarginFraction: imf,
		})
	}
	return out, nil
}

type orderBookResponse struct {
	Code int                    `json:"code"`
	Bids []types.OrderBookLevel `json:"bids"`
	Asks []types.OrderBookLevel `json:"asks"`
}

// OrderBook fetches an L2 order-book snapshot for one market, capped at
// limit levels per side (0 means the exchange default).
func (c *Client) OrderBook(ctx context.Context, marketID types.MarketId, limit int) (types.OrderBookState, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.OrderBookState{}, lerrors.New(lerrors.KindTransport, "restclient.OrderBook", err)
	}

	req := c.http.R().SetContext(ctx).SetQueryParam("market_id", fmt.Sprintf("%d", marketID))
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}

	var result orderBookResponse
	resp, err := req.SetResult(&result).Get("/orderBook")
	if err != nil {
		return types.OrderBookState{}, lerrors.New(lerrors.KindTransport, "restclient.OrderBook", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.OrderBookState{}, lerrors.New(lerrors.KindProtocol, "restclient.OrderBook", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	return types.OrderBookState{
		MarketId:  marketID,
		Bids:      result.Bids,
		Asks:      result.Asks,
		Timestamp: time.Now(),
	}, nil
}

// ExchangeStats fetches per-market trailing volume and trade counts.
func (c *Client) ExchangeStats(ctx context.Context) ([]types.MarketStats, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, lerrors.New(lerrors.KindTransport, "restclient.ExchangeStats", err)
	}

	var result struct {
		Stats []types.MarketStats `json:"stats"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&result).Get("/exchangeStats")
	if err != nil {
		return nil, lerrors.New(lerrors.KindTransport, "restclient.ExchangeStats", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, lerrors.New(lerrors.KindProtocol, "restclient.ExchangeStats", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return result.Stats, nil
}

// Account fetches the raw account snapshot (positions, balances, open
// orders). The exchange's account schema is richer and more volatile
// than this SDK's core data model, so the response is surfaced as raw
// JSON for the caller to decode against whatever fields they need,
// matching the "raw JSON with structural queries" approach used for
// account WebSocket events (spec Design Notes, "Dynamic account-event
// payloads").
func (c *Client) Account(ctx context.Context, accountIndex types.AccountId) (json.RawMessage, error) {
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("account_index", fmt.Sprintf("%d", accountIndex)).
		Get("/account")
	if err != nil {
		return nil, lerrors.New(lerrors.KindTransport, "restclient.Account", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, lerrors.New(lerrors.KindProtocol, "restclient.Account", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return resp.Body(), nil
}

// AccountActiveOrders fetches open orders for an account, optionally
// filtered to one market.
func (c *Client) AccountActiveOrders(ctx context.Context, accountIndex types.AccountId, marketID *types.MarketId) (json.RawMessage, error) {
	req := c.http.R().SetContext(ctx).SetQueryParam("account_index", fmt.Sprintf("%d", accountIndex))
	if marketID != nil {
		req.SetQueryParam("market_id", fmt.Sprintf("%d", *marketID))
	}
	resp, err := req.Get("/accountActiveOrders")
	if err != nil {
		return nil, lerrors.New(lerrors.KindTransport, "restclient.AccountActiveOrders", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, lerrors.New(lerrors.KindProtocol, "restclient.AccountActiveOrders", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return resp.Body(), nil
}

type nextNonceResponse struct {
	Code  int         `json:"code"`
	Nonce types.Nonce `json:"nonce"`
}

// NextNonce fetches the exchange's authoritative next-nonce value for
// an (account, api_key_index) pair. Implements nonce.Fetcher.
func (c *Client) NextNonce(ctx context.Context, account types.AccountId, apiKeyIndex types.ApiKeyIndex) (types.Nonce, error) {
	if err := c.rl.Nonce.Wait(ctx); err != nil {
		return 0, lerrors.New(lerrors.KindTransport, "restclient.NextNonce", err)
	}

	var result nextNonceResponse
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("account_index", fmt.Sprintf("%d", account)).
		SetQueryParam("api_key_index", fmt.Sprintf("%d", apiKeyIndex)).
		SetResult(&result).
		Get("/nextNonce")
	if err != nil {
		return 0, lerrors.New(lerrors.KindTransport, "restclient.NextNonce", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, lerrors.New(lerrors.KindProtocol, "restclient.NextNonce", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return result.Nonce, nil
}

// TxResult is the exchange's response to a single submitted transaction.
type TxResult struct {
	Code    int    `json:"code"`
	TxHash  string `json:"tx_hash"`
	Message string `json:"message,omitempty"`
}

// Success reports whether the exchange accepted the transaction.
func (r TxResult) Success() bool { return r.Code == http.StatusOK }

// SendTx submits one signed payload. The correlation id is generated
// client-side (google/uuid) for local bookkeeping; it is not part of
// the wire envelope unless the exchange's ack explicitly echoes one.
func (c *Client) SendTx(ctx context.Context, txType types.TxType, payloadJSON string) (TxResult, error) {
	correlationID := uuid.New().String()

	if c.dryRun {
		c.logger.Info("dry run: send_tx", "correlation_id", correlationID, "tx_type", txType)
		return TxResult{Code: http.StatusOK, TxHash: "dryrun-" + correlationID}, nil
	}

	if err := c.rl.SendTx.Wait(ctx); err != nil {
		return TxResult{}, lerrors.New(lerrors.KindTransport, "restclient.SendTx", err)
	}

	body := map[string]any{
		"type":     "sendtx",
		"tx_type":  txType,
		"tx_info":  payloadJSON,
	}

	var result TxResult
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&result).Post("/sendTx")
	if err != nil {
		return TxResult{}, lerrors.New(lerrors.KindTransport, "restclient.SendTx", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return TxResult{}, lerrors.New(lerrors.KindSubmissionRejected, "restclient.SendTx", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	return result, nil
}

// MaxBatchSize is the exchange's cap on the number of transactions in
// one send_batch_tx call.
const MaxBatchSize = 50

// BatchItem is one entry submitted through SendTxBatch.
type BatchItem struct {
	TxType      types.TxType
	PayloadJSON string
}

// SendTxBatch submits up to MaxBatchSize signed payloads in one batch,
// returning a per-item success flag in submission order.
func (c *Client) SendTxBatch(ctx context.Context, items []BatchItem) ([]bool, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > MaxBatchSize {
		return nil, lerrors.New(lerrors.KindValidation, "restclient.SendTxBatch", fmt.Errorf("batch limit is %d, got %d", MaxBatchSize, len(items)))
	}

	if c.dryRun {
		c.logger.Info("dry run: send_batch_tx", "count", len(items))
		results := make([]bool, len(items))
		for i := range results {
			results[i] = true
		}
		return results, nil
	}

	if err := c.rl.SendTx.Wait(ctx); err != nil {
		return nil, lerrors.New(lerrors.KindTransport, "restclient.SendTxBatch", err)
	}

	txTypes := make([]types.TxType, len(items))
	txInfos := make([]string, len(items))
	for i, item := range items {
		txTypes[i] = item.TxType
		txInfos[i] = item.PayloadJSON
	}

	body := map[string]any{
		"type":     "sendtxbatch",
		"tx_types": txTypes,
		"tx_infos": txInfos,
	}

	var result struct {
		Results []TxResult `json:"results"`
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&result).Post("/sendTxBatch")
	if err != nil {
		return nil, lerrors.New(lerrors.KindTransport, "restclient.SendTxBatch", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, lerrors.New(lerrors.KindProtocol, "restclient.SendTxBatch", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	out := make([]bool, len(result.Results))
	for i, r := range result.Results {
		out[i] = r.Success()
	}
	return out, nil
}
