package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spot-traderv1/config"
	"spot-traderv1/internal/api"
	"spot-traderv1/internal/bot"
	"spot-traderv1/internal/exchange"
	"spot-traderv1/internal/logger"
	"spot-traderv1/internal/metrics"
	"spot-traderv1/internal/notification"
	"spot-traderv1/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.Init("bot", logger.ParseLevel(cfg.Server.LogLevel))

	store, err := sqlite.New(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("store init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer store.Close()

	notifiers := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(
			cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}

	client := exchange.New(cfg.Binance, log)
	mtr := metrics.New()

	svc := bot.New(bot.Config{
		HistoryLimit:  cfg.Trading.HistoryLimit,
		Retention:     cfg.Trading.Retention,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
		StopLossPct:   cfg.Trading.StopLossPct,
		StrategyTag:   cfg.Trading.StrategyTag,
		Strategy:      cfg.Strategy.DecisionParams(),
	}, client, store, notifiers, log, mtr)

	ctrl := api.New(cfg.Server.APIAddr, svc, log)
	ctrl.Start()

	mtrSrv := metrics.NewServer(cfg.Server.MetricsAddr, svc.Status, log)
	mtrSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Trading.Autostart {
		if err := svc.Start(ctx, cfg.Trading.Market, cfg.Trading.Timeframe); err != nil {
			log.Error("autostart failed", slog.Any("err", err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		log.Warn("bot stop timed out", slog.Any("err", err))
	}
	ctrl.Stop(shutdownCtx)
	mtrSrv.Stop(shutdownCtx)
}
