// Package lighterclient is the top-level client SDK: it wires the nonce
// manager, signer, REST transport, WebSocket transport, market metadata
// cache, top-of-book guard, and order builder into one object a caller
// constructs once per account.
//
// Grounded on the teacher's internal/engine.Engine: New(cfg, logger) wires
// every subsystem and returns one object; Start/Stop bracket a background
// goroutine's lifetime behind a context and a sync.WaitGroup. The engine's
// market-making-specific concerns (scanner, risk kill switch, per-market
// strategy goroutines) have no equivalent here — this client exposes the
// underlying operations for the caller to drive, rather than running a
// trading loop of its own — but the construction and shutdown shape is
// the same "wire everything in New, tear down in Stop" pattern.
package lighterclient

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/internal/marketdata"
	"github.com/lighter-client/lighterclient/internal/nonce"
	"github.com/lighter-client/lighterclient/internal/orderbuilder"
	"github.com/lighter-client/lighterclient/internal/restclient"
	"github.com/lighter-client/lighterclient/internal/signer"
	"github.com/lighter-client/lighterclient/internal/signing"
	"github.com/lighter-client/lighterclient/internal/tobguard"
	"github.com/lighter-client/lighterclient/internal/wsclient"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// Credentials identifies the trading account and the signing keys
// configured for it. One ECDSA key signs every transaction for the
// account; ApiKeys' indices become the nonce manager's round-robin lanes
// — this venue's api_key_index namespaces nonces and rate limits, it does
// not select a different signing key, matching how the teacher's wallet
// key signs both its L1 auth and its (HMAC-secret-only) L2 API keys.
type Credentials struct {
	AccountId types.AccountId
	ApiKeys   map[types.ApiKeyIndex]string
}

// Options configures a Client at construction time.
type Options struct {
	ApiURL    string
	WsURL     string
	DryRun    bool
	NonceMode nonce.Mode
	Logger    *slog.Logger
}

// Client is the constructed SDK entry point.
type Client struct {
	logger *slog.Logger

	rest   *restclient.Client
	ws     *wsclient.Client
	signer *signer.Signer
	nonces *nonce.Manager
	market *marketdata.Cache

	guardsMu sync.Mutex
	guards   map[types.MarketId]*tobguard.Guard

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every subsystem for one account. It does not dial the
// WebSocket or fetch market metadata — call Start and LoadMarkets for
// those.
func New(creds Credentials, opts Options) (*Client, error) {
	const op = "lighterclient.New"

	if len(creds.ApiKeys) == 0 {
		return nil, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("credentials must configure at least one signing key"))
	}
	if opts.ApiURL == "" {
		return nil, lerrors.New(lerrors.KindValidation, op, fmt.Errorf("ApiURL is required"))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	indices := make([]types.ApiKeyIndex, 0, len(creds.ApiKeys))
	var primaryKeyHex string
	for idx, keyHex := range creds.ApiKeys {
		indices = append(indices, idx)
		if primaryKeyHex == "" {
			primaryKeyHex = keyHex
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	// The lowest configured index is the canonical signing key; every
	// lane should share the same key under this venue's convention, but
	// pin one deterministically in case a caller configures mismatched
	// values by mistake.
	primaryKeyHex = creds.ApiKeys[indices[0]]

	key, err := signing.ParseKey(primaryKeyHex)
	if err != nil {
		return nil, lerrors.New(lerrors.KindAuth, op, err)
	}

	rest := restclient.New(opts.ApiURL, logger, restclient.WithDryRun(opts.DryRun))

	nm, err := nonce.New(creds.AccountId, indices, rest, opts.NonceMode, logger)
	if err != nil {
		return nil, lerrors.New(lerrors.KindValidation, op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		logger: logger.With("component", "lighterclient"),
		rest:   rest,
		ws:     wsclient.New(opts.WsURL, logger),
		signer: signer.New(key, nm, creds.AccountId),
		nonces: nm,
		market: marketdata.New(),
		guards: make(map[types.MarketId]*tobguard.Guard),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// LoadMarkets fetches and caches metadata for marketIDs (every market, if
// none given). Must be called before ScalePrice/ScaleSize-dependent
// operations — including order building — will work for those markets.
func (c *Client) LoadMarkets(ctx context.Context, marketIDs ...types.MarketId) error {
	return c.market.Load(ctx, c.rest, marketIDs...)
}

// Start dials the WebSocket transport in the background and begins its
// reconnect loop. Subscriptions registered before or after Start are
// honored on every (re)connect.
func (c *Client) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.ws.Connect(c.ctx); err != nil && c.ctx.Err() == nil {
			c.logger.Error("websocket connection loop exited", "error", err)
		}
	}()
}

// Stop cancels the background connection loop and waits for it to exit.
func (c *Client) Stop() {
	c.cancel()
	c.ws.Close()
	c.wg.Wait()
}

// Rest returns the underlying REST transport for operations this client
// doesn't wrap directly (ExchangeStats, Account, AccountActiveOrders).
func (c *Client) Rest() *restclient.Client { return c.rest }

// WS returns the underlying WebSocket transport for subscribing to
// channels and consuming its event stream directly.
func (c *Client) WS() *wsclient.Client { return c.ws }

// Events returns the demultiplexed WebSocket event stream.
func (c *Client) Events() <-chan wsclient.Event { return c.ws.Events() }

// Subscribe registers a channel subscription, sent immediately if
// connected and resent on every reconnect.
func (c *Client) Subscribe(channel string) error { return c.ws.Subscribe(channel) }

// Order starts a new order builder for marketID, wired to this client's
// signer, market cache, REST-derived top of book, and REST transport.
func (c *Client) Order(marketID types.MarketId) *orderbuilder.Builder {
	return orderbuilder.Order(c.signer, c.market, orderbuilder.RestBboSource{Client: c.rest}, orderbuilder.RestTransport{Client: c.rest}, marketID)
}

// Cancel starts a builder that cancels one resting order.
func (c *Client) Cancel(marketID types.MarketId, orderIndex int64) *orderbuilder.CancelBuilder {
	return orderbuilder.Cancel(c.signer, orderbuilder.RestTransport{Client: c.rest}, marketID, orderIndex)
}

// CancelAll starts a builder that cancels every order older than cutoffMs
// under the given time-in-force class.
func (c *Client) CancelAll(tifCutoff types.TimeInForce, cutoffMs int64) *orderbuilder.CancelAllBuilder {
	return orderbuilder.CancelAll(c.signer, orderbuilder.RestTransport{Client: c.rest}, tifCutoff, cutoffMs)
}

// authRefreshMargin is how far ahead of a minted token's expiry the
// background refresh loop re-mints it, per spec.md §4.2's requirement
// that token expiry be handled by re-minting, not by reconnecting.
const authRefreshMargin = 30 * time.Second

// Authenticate mints a bearer auth token for apiKeyIndex and applies it
// to the WebSocket transport so account-scoped channel subscriptions
// become active. It then keeps the token fresh in the background for
// the lifetime of the client, re-minting shortly before expiry without
// ever reconnecting the socket.
func (c *Client) Authenticate(ctx context.Context, apiKeyIndex types.ApiKeyIndex, ttl time.Duration) (signer.AuthTokenResult, error) {
	result, err := c.signer.CreateAuthTokenWithExpiry(apiKeyIndex, ttl)
	if err != nil {
		return signer.AuthTokenResult{}, err
	}
	c.ws.SetAuthToken(result.Token)

	c.wg.Add(1)
	go c.refreshAuthLoop(apiKeyIndex, ttl, result.ExpiresAt)

	return result, nil
}

func (c *Client) refreshAuthLoop(apiKeyIndex types.ApiKeyIndex, ttl time.Duration, expiresAt time.Time) {
	defer c.wg.Done()

	for {
		wait := time.Until(expiresAt) - authRefreshMargin
		if wait < 0 {
			wait = 0
		}
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(wait):
		}
		if c.ctx.Err() != nil {
			return
		}

		result, err := c.signer.CreateAuthTokenWithExpiry(apiKeyIndex, ttl)
		if err != nil {
			c.logger.Error("failed to refresh auth token", "error", err, "api_key_index", apiKeyIndex)
			// Retry sooner than a full TTL so a transient signing failure
			// doesn't leave the token to expire unrefreshed.
			expiresAt = time.Now().Add(authRefreshMargin)
			continue
		}
		c.ws.SetAuthToken(result.Token)
		expiresAt = result.ExpiresAt
	}
}

// Guard returns the top-of-book guard for marketID, creating it with
// tobguard.DefaultConfig on first use. The same guard instance is
// returned on every call for a given market, so its EMA/TTL state
// accumulates across the market's lifetime.
func (c *Client) Guard(marketID types.MarketId) *tobguard.Guard {
	c.guardsMu.Lock()
	defer c.guardsMu.Unlock()
	g, ok := c.guards[marketID]
	if !ok {
		g = tobguard.New(tobguard.DefaultConfig(), c.logger)
		c.guards[marketID] = g
	}
	return g
}
