// Package tobguard turns a stream of raw order-book snapshots into a
// safe top-of-book quote, filtering out stale or crossed top levels
// that a naive "first bid, first ask" read would otherwise surface.
//
// Grounded on the teacher's internal/market.Book.BestBidAsk /
// IsStale, which derive a best-bid/ask pair from a locally mirrored
// book and separately track a staleness clock. This package keeps that
// "derive top, track freshness" split but replaces the single staleness
// clock with the per-side EMA/TTL/escalation algorithm this spec
// requires, since a binary-outcome market's book does not need to
// distinguish a stale top level from a stale book the way a
// perpetual-futures book does.
package tobguard

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lighter-client/lighterclient/pkg/types"
)

// Config tunes the guard's staleness and escalation thresholds.
type Config struct {
	TTLMultiplier  int
	MinTTL         time.Duration
	MaxTTL         time.Duration
	MinUpdates     int
	ScanDepth      int
	MaxCrossFrames int
	EmaAlpha       float64
}

// DefaultConfig matches the defaults named in spec.md §4.4.
func DefaultConfig() Config {
	return Config{
		TTLMultiplier:  4,
		MinTTL:         200 * time.Millisecond,
		MaxTTL:         1500 * time.Millisecond,
		MinUpdates:     3,
		ScanDepth:      8,
		MaxCrossFrames: 6,
		EmaAlpha:       0.3,
	}
}

// Bbo is the guard's safe top-of-book outcome.
type Bbo struct {
	Bid      decimal.Decimal
	Ask      decimal.Decimal
	Skipped  bool
	StaleBid bool
	StaleAsk bool
}

// Escalate signals that the guard could not produce a trustworthy quote
// from the available levels and the caller should fall back to a fresh
// REST snapshot, a subscription reconnect, or both.
type Escalate struct {
	Reason string
}

// Outcome is the result of processing one snapshot: exactly one of Bbo
// or Escalate is non-nil.
type Outcome struct {
	Bbo      *Bbo
	Escalate *Escalate
}

type sideState struct {
	price       decimal.Decimal
	hasPrice    bool
	lastChange  time.Time
	sinceChange int
	emaInterval time.Duration
}

func (s *sideState) observe(now time.Time, price decimal.Decimal, alpha float64) {
	if !s.hasPrice || !price.Equal(s.price) {
		if s.hasPrice && !s.lastChange.IsZero() {
			interval := now.Sub(s.lastChange)
			if s.emaInterval == 0 {
				s.emaInterval = interval
			} else {
				s.emaInterval = time.Duration(float64(s.emaInterval)*(1-alpha) + float64(interval)*alpha)
			}
		}
		s.price = price
		s.hasPrice = true
		s.lastChange = now
		s.sinceChange = 0
		return
	}
	s.sinceChange++
}

func (s *sideState) ttl(cfg Config) time.Duration {
	ttl := s.emaInterval * time.Duration(cfg.TTLMultiplier)
	if ttl < cfg.MinTTL {
		return cfg.MinTTL
	}
	if ttl > cfg.MaxTTL {
		return cfg.MaxTTL
	}
	return ttl
}

func (s *sideState) isStale(now time.Time, cfg Config) bool {
	if !s.hasPrice {
		return false
	}
	return now.Sub(s.lastChange) > s.ttl(cfg) && s.sinceChange >= cfg.MinUpdates
}

// Guard is safe for concurrent use; typically one guard per market.
type Guard struct {
	cfg           Config
	logger        *slog.Logger
	mu            sync.Mutex
	bid           sideState
	ask           sideState
	crossedFrames int

	hasLastClean bool
	lastCleanBid decimal.Decimal
	lastCleanAsk decimal.Decimal
}

// New constructs a Guard with cfg. Pass DefaultConfig() unless the
// caller has venue-specific tuning.
func New(cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{cfg: cfg, logger: logger.With("component", "tobguard")}
}

func filterLevels(levels []types.OrderBookLevel) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(levels))
	for _, l := range levels {
		remaining, err := decimal.NewFromString(l.RemainingSize)
		if err != nil || !remaining.IsPositive() {
			continue
		}
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			continue
		}
		out = append(out, price)
	}
	return out
}

// Process runs the guard algorithm over one raw snapshot.
func (g *Guard) Process(snapshot types.OrderBookState) (Outcome, error) {
	bids := filterLevels(snapshot.Bids)
	asks := filterLevels(snapshot.Asks)

	if len(bids) == 0 || len(asks) == 0 {
		return Outcome{}, fmt.Errorf("tobguard: snapshot for market %d has an empty side after filtering", snapshot.MarketId)
	}

	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.bid.observe(now, bids[0], g.cfg.EmaAlpha)
	g.ask.observe(now, asks[0], g.cfg.EmaAlpha)

	crossed := func(bid, ask decimal.Decimal) bool { return ask.LessThanOrEqual(bid) }

	bestBid := bids[0]
	bestAsk := asks[0]
	skipped := false
	staleBid := false
	staleAsk := false

	if crossed(bestBid, bestAsk) {
		if g.ask.isStale(now, g.cfg) {
			if found, ok := firstAskAbove(asks, bestBid, g.cfg.ScanDepth); ok {
				bestAsk = found
				skipped = true
				staleAsk = true
			}
		}
		if crossed(bestBid, bestAsk) && g.bid.isStale(now, g.cfg) {
			if found, ok := firstBidBelow(bids, bestAsk, g.cfg.ScanDepth); ok {
				bestBid = found
				skipped = true
				staleBid = true
			}
		}
	}

	if crossed(bestBid, bestAsk) {
		g.crossedFrames++
		if g.crossedFrames > g.cfg.MaxCrossFrames {
			return Outcome{Escalate: &Escalate{Reason: fmt.Sprintf("book crossed for %d consecutive snapshots", g.crossedFrames)}}, nil
		}
		// Scanning couldn't resolve the cross and the escalation threshold
		// hasn't been reached yet. A crossed quote must never reach a Bbo
		// outcome (spec.md §8 Property 5), so hold the last known-clean
		// quote instead of surfacing this snapshot's values. If there is
		// no clean quote on record yet, there is nothing safe to hold —
		// escalate immediately rather than inventing one.
		if !g.hasLastClean {
			return Outcome{Escalate: &Escalate{Reason: "book crossed with no prior clean quote to fall back on"}}, nil
		}
		return Outcome{Bbo: &Bbo{Bid: g.lastCleanBid, Ask: g.lastCleanAsk, Skipped: true, StaleBid: true, StaleAsk: true}}, nil
	}

	g.crossedFrames = 0
	g.hasLastClean = true
	g.lastCleanBid = bestBid
	g.lastCleanAsk = bestAsk

	return Outcome{Bbo: &Bbo{Bid: bestBid, Ask: bestAsk, Skipped: skipped, StaleBid: staleBid, StaleAsk: staleAsk}}, nil
}

func firstAskAbove(asks []decimal.Decimal, bid decimal.Decimal, depth int) (decimal.Decimal, bool) {
	limit := depth
	if limit > len(asks) {
		limit = len(asks)
	}
	for i := 0; i < limit; i++ {
		if asks[i].GreaterThan(bid) {
			return asks[i], true
		}
	}
	return decimal.Decimal{}, false
}

func firstBidBelow(bids []decimal.Decimal, ask decimal.Decimal, depth int) (decimal.Decimal, bool) {
	limit := depth
	if limit > len(bids) {
		limit = len(bids)
	}
	for i := 0; i < limit; i++ {
		if bids[i].LessThan(ask) {
			return bids[i], true
		}
	}
	return decimal.Decimal{}, false
}

// MarkFresh resets the guard's internal clocks using a REST-derived
// quote, so a freshly fetched snapshot is not immediately flagged stale
// against stats accumulated before the refresh.
func (g *Guard) MarkFresh(bid, ask decimal.Decimal) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bid = sideState{price: bid, hasPrice: true, lastChange: now}
	g.ask = sideState{price: ask, hasPrice: true, lastChange: now}
	g.crossedFrames = 0
	if ask.GreaterThan(bid) {
		g.hasLastClean = true
		g.lastCleanBid = bid
		g.lastCleanAsk = ask
	}
}
