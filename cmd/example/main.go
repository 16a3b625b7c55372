// Command example is a thin demonstration program for the SDK: it loads
// configuration, connects, subscribes to one market's order book, and
// places a single post-only limit order before waiting for a shutdown
// signal. It is not part of the SDK's contract — it exists to show the
// client wired end to end the way cmd/bot/main.go showed the teacher's
// engine wired end to end.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lighter-client/lighterclient"
	"github.com/lighter-client/lighterclient/internal/config"
	"github.com/lighter-client/lighterclient/internal/wsclient"
	"github.com/lighter-client/lighterclient/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("LIGHTER_CONFIG"); p != "" {
		cfgPath = p
	}

	bundle, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := bundle.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(bundle.Logging.Level)}
	if bundle.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	creds, err := bundle.Credentials()
	if err != nil {
		logger.Error("failed to build credentials", "error", err)
		os.Exit(1)
	}

	client, err := lighterclient.New(lighterclient.Credentials{
		AccountId: creds.AccountId,
		ApiKeys:   creds.ApiKeys,
	}, lighterclient.Options{
		ApiURL:    bundle.ApiURL,
		WsURL:     bundle.WsURL,
		DryRun:    bundle.DryRun,
		NonceMode: bundle.NonceManagerMode(),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to construct client", "error", err)
		os.Exit(1)
	}

	const demoMarket = types.MarketId(1)

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.LoadMarkets(loadCtx, demoMarket); err != nil {
		logger.Error("failed to load market metadata", "error", err)
		loadCancel()
		os.Exit(1)
	}
	loadCancel()

	if err := client.Subscribe(wsclient.OrderBookChannel(int64(demoMarket))); err != nil {
		logger.Error("failed to register subscription", "error", err)
		os.Exit(1)
	}
	client.Start()

	if bundle.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	go func() {
		for evt := range client.Events() {
			if evt.Kind == wsclient.KindOrderBook {
				logger.Info("order book update", "market_id", evt.MarketId, "bids", len(evt.OrderBook.Bids), "asks", len(evt.OrderBook.Asks))
			}
		}
	}()

	placeCtx, placeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	submission, err := client.Order(demoMarket).
		Buy().
		Qty(decimal.NewFromFloat(0.01)).
		Limit(decimal.NewFromFloat(2500)).
		PostOnly().
		AutoClientID().
		Submit(placeCtx)
	placeCancel()
	if err != nil {
		logger.Error("order submission failed", "error", err)
	} else {
		logger.Info("order submitted", "accepted", submission.Accepted)
	}

	logger.Info("example client started", "account_id", creds.AccountId, "dry_run", bundle.DryRun)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	client.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
