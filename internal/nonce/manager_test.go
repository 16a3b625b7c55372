package nonce

import (
	"context"
	"sync"
	"testing"

	"github.com/lighter-client/lighterclient/pkg/types"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	vals  map[types.ApiKeyIndex]types.Nonce
}

func newFakeFetcher(seed map[types.ApiKeyIndex]types.Nonce) *fakeFetcher {
	return &fakeFetcher{vals: seed}
}

func (f *fakeFetcher) NextNonce(_ context.Context, _ types.AccountId, idx types.ApiKeyIndex) (types.Nonce, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.vals[idx], nil
}

func TestNextNonceAllocatesSequentially(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[types.ApiKeyIndex]types.Nonce{1: 10})
	m, err := New(1, []types.ApiKeyIndex{1}, fetcher, ModeOptimistic, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for want := types.Nonce(10); want < 14; want++ {
		_, got, err := m.NextNonce(context.Background())
		if err != nil {
			t.Fatalf("NextNonce: %v", err)
		}
		if got != want {
			t.Fatalf("NextNonce() = %d, want %d", got, want)
		}
	}
}

func TestNextNonceConcurrentIsDistinct(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[types.ApiKeyIndex]types.Nonce{1: 0})
	m, err := New(1, []types.ApiKeyIndex{1}, fetcher, ModeOptimistic, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 200
	seen := make(chan types.Nonce, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, nonce, err := m.NextNonce(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			seen <- nonce
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[types.Nonce]bool, n)
	for v := range seen {
		if unique[v] {
			t.Fatalf("nonce %d allocated more than once", v)
		}
		unique[v] = true
	}
	if len(unique) != n {
		t.Fatalf("got %d distinct nonces, want %d", len(unique), n)
	}
}

func TestRoundRobinAcrossKeys(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[types.ApiKeyIndex]types.Nonce{1: 0, 2: 100})
	m, err := New(1, []types.ApiKeyIndex{1, 2}, fetcher, ModeOptimistic, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	idxA, nonceA, err := m.NextNonce(context.Background())
	if err != nil {
		t.Fatalf("NextNonce: %v", err)
	}
	idxB, nonceB, err := m.NextNonce(context.Background())
	if err != nil {
		t.Fatalf("NextNonce: %v", err)
	}
	if idxA == idxB {
		t.Fatalf("expected round robin to alternate keys, got %d twice", idxA)
	}
	if nonceA != 0 && nonceA != 100 {
		t.Fatalf("unexpected nonce %d for key %d", nonceA, idxA)
	}
	_ = nonceB
}

func TestStrictModeRefusesUntilAcknowledged(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[types.ApiKeyIndex]types.Nonce{1: 0})
	m, err := New(1, []types.ApiKeyIndex{1}, fetcher, ModeStrict, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, _, err := m.NextNonce(context.Background()); err != nil {
		t.Fatalf("first NextNonce: %v", err)
	}
	if _, _, err := m.NextNonce(context.Background()); err == nil {
		t.Fatal("expected second NextNonce to fail while first allocation is unacknowledged")
	}

	m.AcknowledgeSuccess(1)
	if _, _, err := m.NextNonce(context.Background()); err != nil {
		t.Fatalf("NextNonce after acknowledge: %v", err)
	}
}

func TestRefreshNonceResyncsFromExchange(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[types.ApiKeyIndex]types.Nonce{1: 5})
	m, err := New(1, []types.ApiKeyIndex{1}, fetcher, ModeOptimistic, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, nonce, err := m.NextNonce(context.Background()); err != nil || nonce != 5 {
		t.Fatalf("NextNonce() = %d, %v, want 5, nil", nonce, err)
	}

	m.AcknowledgeNonceFailure(1)
	fetcher.vals[1] = 50
	if err := m.RefreshNonce(context.Background(), 1); err != nil {
		t.Fatalf("RefreshNonce: %v", err)
	}

	if _, nonce, err := m.NextNonce(context.Background()); err != nil || nonce != 50 {
		t.Fatalf("NextNonce() after refresh = %d, %v, want 50, nil", nonce, err)
	}
}

func TestRejectionOnOneKeyDoesNotInvalidateOthers(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[types.ApiKeyIndex]types.Nonce{1: 0, 2: 0})
	m, err := New(1, []types.ApiKeyIndex{1, 2}, fetcher, ModeOptimistic, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := m.NextNonceForKey(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	m.AcknowledgeNonceFailure(1)

	nonce, err := m.NextNonceForKey(context.Background(), 2)
	if err != nil {
		t.Fatalf("key 2 should be unaffected by key 1 failure: %v", err)
	}
	if nonce != 0 {
		t.Fatalf("NextNonceForKey(2) = %d, want 0", nonce)
	}
}

func TestUnconfiguredKeyErrors(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[types.ApiKeyIndex]types.Nonce{1: 0})
	m, err := New(1, []types.ApiKeyIndex{1}, fetcher, ModeOptimistic, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.NextNonceForKey(context.Background(), 9); err == nil {
		t.Fatal("expected error for unconfigured api key index")
	}
}
