package tobguard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lighter-client/lighterclient/pkg/types"
)

func level(price, remaining string) types.OrderBookLevel {
	return types.OrderBookLevel{Price: price, InitialSize: remaining, RemainingSize: remaining}
}

func snapshot(bid, ask string) types.OrderBookState {
	return types.OrderBookState{
		MarketId: 1,
		Bids:     []types.OrderBookLevel{level(bid, "10")},
		Asks:     []types.OrderBookLevel{level(ask, "10")},
	}
}

func TestProcessNonCrossingBboNeverCrosses(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig(), nil)
	out, err := g.Process(snapshot("100", "101"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Bbo == nil {
		t.Fatal("expected a Bbo outcome")
	}
	if !out.Bbo.Ask.GreaterThan(out.Bbo.Bid) {
		t.Fatalf("ask %s is not greater than bid %s", out.Bbo.Ask, out.Bbo.Bid)
	}
}

func TestProcessEscalatesAfterSustainedCrossing(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxCrossFrames = 3
	g := New(cfg, nil)

	var last Outcome
	for i := 0; i < cfg.MaxCrossFrames+1; i++ {
		out, err := g.Process(snapshot("100", "99"))
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		last = out
	}

	if last.Escalate == nil {
		t.Fatalf("expected escalation after %d consecutive crossed snapshots, got %+v", cfg.MaxCrossFrames+1, last)
	}
}

func TestProcessResetsCrossedCounterOnCleanSnapshot(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxCrossFrames = 2
	g := New(cfg, nil)

	for i := 0; i < cfg.MaxCrossFrames; i++ {
		if _, err := g.Process(snapshot("100", "99")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := g.Process(snapshot("100", "101")); err != nil {
		t.Fatal(err)
	}

	// Crossing again for MaxCrossFrames snapshots must not escalate,
	// proving the counter reset rather than simply continuing to climb.
	var out Outcome
	var err error
	for i := 0; i < cfg.MaxCrossFrames; i++ {
		out, err = g.Process(snapshot("100", "99"))
		if err != nil {
			t.Fatal(err)
		}
	}
	if out.Escalate != nil {
		t.Fatal("expected no escalation immediately after the counter reset")
	}
}

func TestProcessNeverReturnsCrossedBboDuringSustainedCrossing(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxCrossFrames = 5
	g := New(cfg, nil)

	clean, _ := decimal.NewFromString("101")
	cleanBid, _ := decimal.NewFromString("100")
	g.MarkFresh(cleanBid, clean)

	sawEscalate := false
	for i := 0; i < cfg.MaxCrossFrames+2; i++ {
		out, err := g.Process(snapshot("100", "99"))
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if out.Bbo != nil {
			if !out.Bbo.Ask.GreaterThan(out.Bbo.Bid) {
				t.Fatalf("iteration %d: Bbo outcome is crossed or flat: bid=%s ask=%s", i, out.Bbo.Bid, out.Bbo.Ask)
			}
		}
		if out.Escalate != nil {
			sawEscalate = true
		}
	}
	if !sawEscalate {
		t.Fatal("expected sustained crossing to eventually escalate")
	}
}

func TestProcessSkipsStaleAskForDeeperLevel(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinTTL = 10 * time.Millisecond
	cfg.MinUpdates = 3
	g := New(cfg, nil)

	staleSnapshot := types.OrderBookState{
		MarketId: 1,
		Bids:     []types.OrderBookLevel{level("100", "10")},
		Asks: []types.OrderBookLevel{
			level("100", "10"),
			level("102", "10"),
		},
	}

	for i := 0; i < 5; i++ {
		if _, err := g.Process(staleSnapshot); err != nil {
			t.Fatal(err)
		}
		time.Sleep(15 * time.Millisecond)
	}

	out, err := g.Process(staleSnapshot)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bbo == nil {
		t.Fatalf("expected a Bbo outcome once the stale top ask is skipped, got %+v", out)
	}
	if !out.Bbo.StaleAsk || !out.Bbo.Skipped {
		t.Fatalf("expected StaleAsk and Skipped to be set, got %+v", out.Bbo)
	}
	want, _ := decimal.NewFromString("102")
	if !out.Bbo.Ask.Equal(want) {
		t.Fatalf("expected deeper ask level 102, got %s", out.Bbo.Ask)
	}
}

func TestEmptySideIsAnError(t *testing.T) {
	t.Parallel()

	g := New(DefaultConfig(), nil)
	_, err := g.Process(types.OrderBookState{MarketId: 1})
	if err == nil {
		t.Fatal("expected an error for a snapshot with no levels on either side")
	}
}
