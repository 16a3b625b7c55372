// Package wsclient implements the multiplexed WebSocket client: a
// subscription builder, typed event demultiplexing, JSON and protocol
// level keepalive, reconnect with re-subscription, and ack-correlated
// transaction submission.
//
// Grounded on the teacher's internal/exchange/ws.go (WSFeed): dial,
// ping loop, read loop with a deadline, exponential-backoff reconnect.
// The teacher has two fixed feeds (market, user) with hardcoded event
// types; this client generalizes that into one connection multiplexing
// an open-ended, caller-declared set of channels (spec.md §4.3.1).
// Writes are serialized through the mutex that guards the connection,
// and transaction acks are matched to waiting callers through a FIFO
// queue.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lighter-client/lighterclient/internal/lerrors"
	"github.com/lighter-client/lighterclient/pkg/types"
)

// State is the connection lifecycle defined in spec.md §4.3.6.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateSubscribed
	StateAuthenticated
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateSubscribed:
		return "subscribed"
	case StateAuthenticated:
		return "authenticated"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Backoff tunes the reconnect delay, per spec.md Design Notes
// ("Backoff and jitter").
type Backoff struct {
	Min        time.Duration
	Max        time.Duration
	Multiplier float64
	JitterStep time.Duration
}

// DefaultBackoff matches the 250ms-to-2s range named in spec.md §4.3.4.
func DefaultBackoff() Backoff {
	return Backoff{Min: 250 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2, JitterStep: 50 * time.Millisecond}
}

func (b Backoff) next(attempt int) time.Duration {
	d := float64(b.Min)
	for i := 0; i < attempt; i++ {
		d *= b.Multiplier
	}
	if time.Duration(d) > b.Max {
		d = float64(b.Max)
	}
	jitter := time.Duration(rand.Int63n(int64(b.JitterStep) + 1))
	return time.Duration(d) + jitter
}

const (
	jsonPingWatchdog    = 15 * time.Second
	ackTimeout          = 5 * time.Second
	duplicateSubGrace   = 3 * time.Second
	duplicateSubErrCode = 30003
)

// Client is a single multiplexed WebSocket connection to the exchange.
type Client struct {
	url     string
	logger  *slog.Logger
	backoff Backoff

	mu           sync.Mutex
	conn         *websocket.Conn
	state        State
	desired      []string // append-only declared subscriptions, in order
	desiredSet   map[string]bool
	authToken    string
	reconnecting bool
	closed       bool

	pendingMu sync.Mutex
	pending   []chan json.RawMessage // FIFO ack-correlation queue

	reconnectedAt time.Time

	events chan Event
}

// New constructs a client for the given stream URL. Call Connect to
// open the socket; channels declared via Subscribe before Connect are
// sent as part of the initial handshake.
func New(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:        url,
		logger:     logger.With("component", "wsclient"),
		backoff:    DefaultBackoff(),
		desiredSet: make(map[string]bool),
		events:     make(chan Event, 256),
		state:      StateDisconnected,
	}
}

// Events returns the stream of demultiplexed events. The channel is
// never closed, not even by Close.
func (c *Client) Events() <-chan Event { return c.events }

// Subscribe declares channel as part of the desired subscription set.
// Safe to call before or after Connect; if the connection is already
// open, the subscribe message is sent immediately, otherwise it is
// included in the next handshake.
func (c *Client) Subscribe(channel string) error {
	c.mu.Lock()
	alreadyDesired := c.desiredSet[channel]
	if !alreadyDesired {
		c.desired = append(c.desired, channel)
		c.desiredSet[channel] = true
	}
	conn := c.conn
	token := c.authToken
	c.mu.Unlock()

	if alreadyDesired || conn == nil {
		return nil
	}
	return c.writeJSON(map[string]any{"type": "subscribe", "channel": channel, "auth": token})
}

// SetAuthToken stores a bearer token for account-scoped channels. The
// token is sent in the auth field of every subsequent subscribe message,
// including the resubscriptions on each reconnect; subscribe messages
// already sent on the open connection are not re-sent with it.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	if c.state >= StateOpen {
		c.state = StateAuthenticated
	}
	c.mu.Unlock()
}

// Connect opens the socket and runs the connection loop until ctx is
// cancelled or Close is called. Reconnects automatically per spec.md
// §4.3.4. Blocks; run it in its own goroutine.
func (c *Client) Connect(ctx context.Context) error {
	attempt := 0
	for {
		err := c.runOnce(ctx)

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed || ctx.Err() != nil {
			return ctx.Err()
		}

		wait := c.backoff.next(attempt)
		attempt++
		c.logger.Warn("websocket disconnected, reconnecting", "error", err, "wait", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Close permanently stops the client and closes the underlying socket.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.state = StateClosing
	conn := c.conn
	c.mu.Unlock()

	c.failPending(fmt.Errorf("wsclient: closed"))

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) runOnce(ctx context.Context) (err error) {
	c.mu.Lock()
	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, dialErr := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if dialErr != nil {
		return lerrors.New(lerrors.KindTransport, "wsclient.Connect", dialErr)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	desired := append([]string(nil), c.desired...)
	token := c.authToken
	c.reconnectedAt = time.Now()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		c.failPending(fmt.Errorf("wsclient: connection closed"))
		c.emit(Event{Kind: KindClosed, Close: closeInfoFromErr(err)})
	}()

	for _, channel := range desired {
		if err := c.writeJSONOn(conn, map[string]any{"type": "subscribe", "channel": channel, "auth": token}); err != nil {
			return err
		}
	}
	if len(desired) > 0 {
		c.mu.Lock()
		c.state = StateSubscribed
		c.mu.Unlock()
	}

	c.emit(Event{Kind: KindConnected})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.watchdog(pingCtx, conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return lerrors.New(lerrors.KindTransport, "wsclient.read", err)
		}
		c.dispatch(conn, data)
	}
}

// closeInfoFromErr derives a CloseInfo from the error that ended
// runOnce's read loop. A clean server-initiated close carries a
// *websocket.CloseError with the protocol's code and reason; anything
// else (a reset connection, a dial failure, ctx cancellation) is
// reported as an abnormal closure with the error text as the reason.
func closeInfoFromErr(err error) types.CloseInfo {
	if err == nil {
		return types.CloseInfo{Code: websocket.CloseNormalClosure}
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return types.CloseInfo{Code: closeErr.Code, Reason: closeErr.Text}
	}
	return types.CloseInfo{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
}

// watchdog replaces gorilla/websocket's default PingHandler with one that
// answers each protocol-level ping with a pong frame, emits KindPong, and
// resets the read deadline. After jsonPingWatchdog of silence the read
// deadline fails the read loop, and Connect reconnects.
func (c *Client) watchdog(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(jsonPingWatchdog))
	conn.SetPingHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(jsonPingWatchdog))
		c.emit(Event{Kind: KindPong})
		return conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(ackTimeout))
	})
	<-ctx.Done()
}

func (c *Client) dispatch(conn *websocket.Conn, data []byte) {
	var envelope struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		Code    *int   `json:"code"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.emit(Event{Kind: KindUnknown, Raw: string(data)})
		return
	}

	conn.SetReadDeadline(time.Now().Add(jsonPingWatchdog))

	switch {
	case envelope.Type == "ping":
		if err := c.writeJSONOn(conn, map[string]any{"type": "pong"}); err != nil {
			c.logger.Warn("failed to answer json ping", "error", err)
		}
		return

	case envelope.Type == "connected":
		c.emit(Event{Kind: KindConnected})
		return

	case envelope.Type == "subscribed":
		return

	case envelope.Code != nil:
		c.handleAckFrame(data, *envelope.Code)
		return

	case envelope.Channel != "":
		if c.dispatchChannel(envelope.Channel, data) {
			return
		}
	}

	c.emit(Event{Kind: KindUnknown, Raw: string(data)})
}

func (c *Client) handleAckFrame(data []byte, code int) {
	if code == duplicateSubErrCode {
		c.mu.Lock()
		inGrace := time.Since(c.reconnectedAt) < duplicateSubGrace
		c.mu.Unlock()
		if inGrace {
			return
		}
	}

	c.pendingMu.Lock()
	var waiter chan json.RawMessage
	if len(c.pending) > 0 {
		waiter = c.pending[0]
		c.pending = c.pending[1:]
	}
	c.pendingMu.Unlock()

	if waiter != nil {
		waiter <- data
		return
	}
	c.emit(Event{Kind: KindUnknown, Raw: string(data)})
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	failure, _ := json.Marshal(map[string]any{"code": 0, "message": err.Error()})
	for _, w := range pending {
		w <- failure
	}
}

func (c *Client) dispatchChannel(channel string, data []byte) bool {
	d := newChannelDecoder(channel)
	if d == nil {
		return false
	}
	evt, ok := d(data)
	if !ok {
		return false
	}
	c.emit(evt)
	return true
}

func (c *Client) emit(evt Event) {
	select {
	case c.events <- evt:
	default:
		c.logger.Warn("event channel full, dropping event", "kind", evt.Kind)
	}
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return lerrors.New(lerrors.KindTransport, "wsclient.writeJSON", fmt.Errorf("not connected"))
	}
	return c.writeJSONOn(conn, v)
}

func (c *Client) writeJSONOn(conn *websocket.Conn, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(ackTimeout))
	return conn.WriteJSON(v)
}

// SendTx submits one signed transaction and waits for its acknowledgement.
func (c *Client) SendTx(ctx context.Context, txType types.TxType, payloadJSON string) (bool, error) {
	waiter := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending = append(c.pending, waiter)
	c.pendingMu.Unlock()

	if err := c.writeJSON(map[string]any{"type": "sendtx", "tx_type": txType, "tx_info": payloadJSON}); err != nil {
		return false, err
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(ackTimeout):
		return false, lerrors.New(lerrors.KindTimeout, "wsclient.SendTx", fmt.Errorf("no acknowledgement within %s", ackTimeout))
	case raw := <-waiter:
		var ack struct {
			Code int `json:"code"`
		}
		if err := json.Unmarshal(raw, &ack); err != nil {
			return false, lerrors.New(lerrors.KindProtocol, "wsclient.SendTx", err)
		}
		return ack.Code == 200, nil
	}
}

// MaxBatchSize is the cap on transactions in one SendTxBatch call, per
// spec.md Testable Property 8.
const MaxBatchSize = 50

// BatchItem is one entry submitted through SendTxBatch.
type BatchItem struct {
	TxType      types.TxType
	PayloadJSON string
}

// SendTxBatch submits up to MaxBatchSize signed transactions in one
// envelope and returns a per-item success flag in submission order.
func (c *Client) SendTxBatch(ctx context.Context, items []BatchItem) ([]bool, error) {
	if len(items) > MaxBatchSize {
		return nil, lerrors.New(lerrors.KindValidation, "wsclient.SendTxBatch", fmt.Errorf("batch limit is %d, got %d", MaxBatchSize, len(items)))
	}
	if len(items) == 0 {
		return nil, nil
	}

	waiter := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending = append(c.pending, waiter)
	c.pendingMu.Unlock()

	txTypes := make([]types.TxType, len(items))
	txInfos := make([]string, len(items))
	for i, it := range items {
		txTypes[i] = it.TxType
		txInfos[i] = it.PayloadJSON
	}
	if err := c.writeJSON(map[string]any{"type": "sendtxbatch", "tx_types": txTypes, "tx_infos": txInfos}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(ackTimeout):
		return nil, lerrors.New(lerrors.KindTimeout, "wsclient.SendTxBatch", fmt.Errorf("no acknowledgement within %s", ackTimeout))
	case raw := <-waiter:
		var batchAck struct {
			Results []struct {
				Code int `json:"code"`
			} `json:"results"`
		}
		if err := json.Unmarshal(raw, &batchAck); err != nil {
			return nil, lerrors.New(lerrors.KindProtocol, "wsclient.SendTxBatch", err)
		}
		out := make([]bool, len(batchAck.Results))
		for i, r := range batchAck.Results {
			out[i] = r.Code == 200
		}
		return out, nil
	}
}
