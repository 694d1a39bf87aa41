// Command engine is the entry point for the Sherwood trading engine. It
// loads the settings document, wires the exchange adapters, the lifecycle
// substrate, and the control panel HTTP transport, then blocks until a
// graceful shutdown completes.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alexherrero/sherwood-engine/config"
	"github.com/alexherrero/sherwood-engine/controlpanel"
	"github.com/alexherrero/sherwood-engine/errs"
	"github.com/alexherrero/sherwood-engine/events"
	"github.com/alexherrero/sherwood-engine/exchange"
	"github.com/alexherrero/sherwood-engine/exchanges/binance"
	"github.com/alexherrero/sherwood-engine/lifecycle"
	"github.com/alexherrero/sherwood-engine/notifications"
	"github.com/alexherrero/sherwood-engine/timeouts"
)

// defaultRequestsPerMinute bounds each exchange account's outbound REST
// call rate absent a more specific per-venue figure from the settings
// document (spec.md leaves the limit's source an Open Question; DESIGN.md
// records this default).
const defaultRequestsPerMinute = 1200

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	settingsPath := os.Getenv("SETTINGS_PATH")
	if settingsPath == "" {
		settingsPath = "settings.toml"
	}

	cfg, err := config.Load(settingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := config.ApplyLogLevel(cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}

	log.Info().Str("settings", settingsPath).Msg("starting sherwood engine")

	bus := events.NewBus(0)
	notifLog := notifications.NewLog(0)
	go notifLog.FollowBus(bus)

	registry := exchange.NewRegistry()
	timeoutMgr := timeouts.NewManager()
	blocker := exchange.NewBlocker()
	shutdownSvc := lifecycle.NewShutdownService()
	appManager := lifecycle.NewApplicationManager()
	engineCtx := lifecycle.NewEngineContext(appManager, registry, blocker, shutdownSvc, timeoutMgr, bus)
	tradingEngine := lifecycle.NewTradingEngine(engineCtx)

	// Wired before any exchange is registered so registration failures,
	// startup block/unblock transitions, and shutdown phases are all
	// captured in the same operational log the control panel surfaces.
	engineCtx.Notifications = notifLog
	shutdownSvc.SetNotifications(notifLog)
	appManager.SetNotifications(notifLog)

	for _, settings := range cfg.Exchanges() {
		id, err := exchange.ParseAccountID(settings.ExchangeAccountID)
		if err != nil {
			log.Fatal().Err(err).Str("exchange_account_id", settings.ExchangeAccountID).Msg("invalid exchange_account_id")
		}

		ex := binance.New(id, settings, bus)
		registry.Register(ex)
		ex.SetLimiter(timeoutMgr.Register(id, defaultRequestsPerMinute, time.Minute))

		if settings.SubscribeToMarketData {
			// Connection failures are transient per spec §7's
			// ExchangeUnavailable kind: log, notify, block the account
			// from originating new requests, and continue rather than
			// abort startup over one venue being unreachable. Nothing
			// in the engine or the control panel lifts this block; it
			// stays until UnblockAutomatic or UnblockManual is called
			// for the account.
			if err := ex.ConnectMarketData(context.Background()); err != nil {
				log.Error().Err(err).Str("exchange", id.String()).Msg("failed to connect market data stream")
				notifLog.Err("market data connect failed", err.Error())
				if errs.Is(err, errs.ExchangeUnavailable) {
					blocker.Block(id, exchange.Unavailable, exchange.Automatic)
				}
			}
		}
	}

	panel := controlpanel.New(appManager, cfg, func() any {
		return map[string]any{
			"exchanges": registry.Len(),
			"recent":    notifLog.Recent(50),
		}
	})

	httpAddr := os.Getenv("CONTROL_PANEL_ADDR")
	if httpAddr == "" {
		httpAddr = ":8090"
	}
	server := &http.Server{
		Addr:         httpAddr,
		Handler:      panel.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpAddr).Msg("control panel listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("control panel server failed")
			appManager.SpawnGracefulShutdown("control-panel-server-failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		appManager.SpawnGracefulShutdown("os-signal")
	}()

	tradingEngine.Run()

	if err := server.Close(); err != nil {
		log.Error().Err(err).Msg("control panel server close failed")
	}

	log.Info().Msg("sherwood engine exited cleanly")
	os.Exit(0)
}
