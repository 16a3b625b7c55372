// Package nonce hands out per-api-key nonces to signers, in either a
// strict (wait-for-ack) or optimistic (increment-then-trust) mode.
//
// Grounded on GoPolymarket-polygate's internal/manager/nonce.go, which
// keeps a map[address]nonce behind a mutex and offers a Reset path that
// re-syncs from an authoritative source after a rejection. That shape
// (map + mutex + resync) carries over; the exchange-specific nonce
// fetch is abstracted behind the Fetcher interface so this package has
// no REST dependency of its own.
package nonce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lighter-client/lighterclient/pkg/types"
)

// Mode selects how aggressively the manager hands out nonces.
type Mode int

const (
	// ModeOptimistic increments the local counter immediately on
	// NextNonce, trusting the caller to submit transactions in order.
	// This is the default for hot paths.
	ModeOptimistic Mode = iota
	// ModeStrict makes NextNonce for a key return an error, handing out
	// no nonce, while the prior allocation on that key has not been
	// acknowledged.
	ModeStrict
)

// Fetcher retrieves the exchange's authoritative next-nonce value for
// an (account, api_key_index) pair. Implemented by internal/restclient.
type Fetcher interface {
	NextNonce(ctx context.Context, account types.AccountId, apiKeyIndex types.ApiKeyIndex) (types.Nonce, error)
}

type keyState struct {
	mu         sync.Mutex
	next       types.Nonce
	loaded     bool
	pendingAck bool // strict mode: an allocation is outstanding
}

// Manager allocates nonces for one account across one or more
// configured api-key indices.
type Manager struct {
	account types.AccountId
	fetcher Fetcher
	mode    Mode
	logger  *slog.Logger

	mu      sync.Mutex // guards keys map and rr (not each key's counter)
	keys    map[types.ApiKeyIndex]*keyState
	order   []types.ApiKeyIndex
	rrNext  int
}

// New constructs a Manager for the given account and api-key indices.
// NextNonce rotates through indices in the order given; NextNonceForKey
// allocates on one specific index.
func New(account types.AccountId, indices []types.ApiKeyIndex, fetcher Fetcher, mode Mode, logger *slog.Logger) (*Manager, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("nonce: at least one api key index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		account: account,
		fetcher: fetcher,
		mode:    mode,
		logger:  logger.With("component", "nonce"),
		keys:    make(map[types.ApiKeyIndex]*keyState, len(indices)),
		order:   append([]types.ApiKeyIndex(nil), indices...),
	}
	for _, idx := range indices {
		m.keys[idx] = &keyState{}
	}
	return m, nil
}

func (m *Manager) stateFor(idx types.ApiKeyIndex) (*keyState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks, ok := m.keys[idx]
	if !ok {
		return nil, fmt.Errorf("nonce: api key index %d is not configured", idx)
	}
	return ks, nil
}

// pickKey returns the next api-key index to use, round robin across
// the configured set.
func (m *Manager) pickKey() types.ApiKeyIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.order[m.rrNext%len(m.order)]
	m.rrNext++
	return idx
}

// NextNonce returns the next nonce to sign with, choosing an api-key
// index by round robin across the manager's configured set. Safe for
// concurrent use from multiple goroutines.
func (m *Manager) NextNonce(ctx context.Context) (types.ApiKeyIndex, types.Nonce, error) {
	idx := m.pickKey()
	n, err := m.NextNonceForKey(ctx, idx)
	return idx, n, err
}

// NextNonceForKey returns the next nonce for a specific api-key index.
func (m *Manager) NextNonceForKey(ctx context.Context, idx types.ApiKeyIndex) (types.Nonce, error) {
	ks, err := m.stateFor(idx)
	if err != nil {
		return 0, err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if m.mode == ModeStrict && ks.pendingAck {
		return 0, fmt.Errorf("nonce: api key %d has an unacknowledged allocation outstanding", idx)
	}

	if !ks.loaded {
		fetched, err := m.fetcher.NextNonce(ctx, m.account, idx)
		if err != nil {
			return 0, fmt.Errorf("nonce: initial fetch for key %d: %w", idx, err)
		}
		ks.next = fetched
		ks.loaded = true
	}

	n := ks.next
	ks.next++
	if m.mode == ModeStrict {
		ks.pendingAck = true
	}
	return n, nil
}

// AcknowledgeSuccess marks the most recent allocation for idx as
// confirmed, clearing the strict-mode hold.
func (m *Manager) AcknowledgeSuccess(idx types.ApiKeyIndex) {
	ks, err := m.stateFor(idx)
	if err != nil {
		return
	}
	ks.mu.Lock()
	ks.pendingAck = false
	ks.mu.Unlock()
}

// AcknowledgeNonceFailure marks the last allocation on idx as failed.
// Callers must follow this with RefreshNonce before allocating again;
// any signed payloads already produced against the now-discarded range
// must not be submitted.
func (m *Manager) AcknowledgeNonceFailure(idx types.ApiKeyIndex) {
	ks, err := m.stateFor(idx)
	if err != nil {
		return
	}
	ks.mu.Lock()
	ks.pendingAck = false
	ks.mu.Unlock()
	m.logger.Warn("nonce allocation failed", "api_key_index", idx)
}

// RefreshNonce re-synchronises the counter for idx from the exchange's
// authoritative next-nonce endpoint. Any allocations issued past the
// returned value are invalid and must be re-signed.
func (m *Manager) RefreshNonce(ctx context.Context, idx types.ApiKeyIndex) error {
	ks, err := m.stateFor(idx)
	if err != nil {
		return err
	}

	fetched, err := m.fetcher.NextNonce(ctx, m.account, idx)
	if err != nil {
		return fmt.Errorf("nonce: refresh for key %d: %w", idx, err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.next = fetched
	ks.loaded = true
	ks.pendingAck = false
	m.logger.Info("nonce refreshed", "api_key_index", idx, "next", fetched)
	return nil
}
