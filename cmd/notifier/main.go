package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/restohub/orderwatch/internal/alert"
	"github.com/restohub/orderwatch/internal/config"
	alertsHandler "github.com/restohub/orderwatch/internal/handler/alerts"
	healthHandler "github.com/restohub/orderwatch/internal/handler/health"
	"github.com/restohub/orderwatch/internal/reconciler"
	"github.com/restohub/orderwatch/internal/relevance"
	"github.com/restohub/orderwatch/internal/router"
	"github.com/restohub/orderwatch/internal/seenset"
	"github.com/restohub/orderwatch/internal/transport"
	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/messaging/ws"
	"github.com/restohub/orderwatch/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	m := metrics.NewMetrics("orderwatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seen set: redis for reload survival, in-memory if redis is down at
	// startup or fails later. Either way the process keeps running.
	var seen seenset.Store
	redisStore, err := seenset.NewRedisStore(ctx, seenset.RedisConfig{
		URL:        cfg.Redis.URL,
		Key:        cfg.Redis.SeenKey,
		SessionTTL: cfg.Redis.SessionTTL,
	})
	if err != nil {
		appLogger.Error(err, "redis unavailable, seen set is in-memory only for this session")
		m.SeenSetDegradations.Inc()
		seen = seenset.NewMemoryStore()
	} else {
		defer redisStore.Close()
		seen = seenset.NewFallbackStore(redisStore, appLogger, m)
	}

	filter := relevance.NewFilter(relevance.Windows{
		Push: cfg.Relevance.PushWindow,
		Poll: cfg.Relevance.PollWindow,
	})

	ctrl := alert.NewController(alert.Config{
		Expiry:     cfg.Alerts.Expiry,
		CueRepeat:  cfg.Alerts.CueRepeat,
		HistoryCap: cfg.Alerts.HistoryCap,
	}, alert.NewTerminalCue(), seen, appLogger, m)

	rec := reconciler.NewReconciler(reconciler.Config{
		DeferDelay: cfg.Push.DeferDelay,
	}, filter, seen, ctrl, appLogger, m)
	rec.Start(ctx)

	poller := transport.NewPoller(transport.PollerConfig{
		BaseURL:  cfg.Orders.BaseURL,
		Interval: cfg.Orders.PollInterval,
		Timeout:  cfg.Orders.FetchTimeout,
	}, rec, appLogger, m)
	go poller.Run(ctx)

	pushClient := ws.NewClient(ws.Config{
		URL:          cfg.Push.URL,
		Room:         cfg.Push.Room,
		ReconnectMin: cfg.Push.ReconnectMin,
		ReconnectMax: cfg.Push.ReconnectMax,
	}, appLogger)
	pushClient.OnReconnect(m.PushReconnects.Inc)

	pushListener := transport.NewPushListener(pushClient, rec, appLogger, m)
	go func() {
		if err := pushListener.Run(ctx); err != nil {
			appLogger.Error(err, "push listener stopped")
		}
	}()

	r := router.NewRouter(
		alertsHandler.NewHandler(ctrl, rec, seen),
		healthHandler.NewHandler(nil),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("starting dashboard API", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	cancel()
	pushClient.Close()
	rec.Stop()
	ctrl.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "forced shutdown")
	}
}
