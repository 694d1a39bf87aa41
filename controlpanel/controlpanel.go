// Package controlpanel is the HTTP transport for the five admin commands
// from spec §6.1: health, stop, get_config, set_config, stats. No
// authentication is applied — providing it is an explicit Non-goal — so
// the router is deliberately trimmed to exactly this fixed surface rather
// than the teacher's broad REST API.
//
// Grounded on api/router.go for the middleware stack (chi, RequestID,
// Recoverer, httprate) and original_source/control_panel/endpoints.rs for
// the exact command set and the set_config UTF-8-decode-or-400 behavior.
package controlpanel

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/alexherrero/sherwood-engine/config"
	"github.com/alexherrero/sherwood-engine/lifecycle"
	"github.com/alexherrero/sherwood-engine/tracing"
)

// StatsProvider supplies the payload for the stats command. The engine
// wires in whatever read-only snapshot it wants exposed.
type StatsProvider func() any

// Panel is the control panel's HTTP handler set.
type Panel struct {
	appManager *lifecycle.ApplicationManager
	cfg        *config.Config
	stats      StatsProvider
}

// New constructs a Panel bound to the given ApplicationManager (for stop),
// Config (for get_config/set_config), and stats provider.
func New(appManager *lifecycle.ApplicationManager, cfg *config.Config, stats StatsProvider) *Panel {
	if stats == nil {
		stats = func() any { return map[string]string{} }
	}
	return &Panel{appManager: appManager, cfg: cfg, stats: stats}
}

// Router builds the http.Handler exposing exactly the five commands.
func (p *Panel) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(zerologMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/health", p.health)
	r.Post("/stop", p.stop)
	r.Get("/config", p.getConfig)
	r.Post("/config", p.setConfig)
	r.Get("/stats", p.statsHandler)

	return r
}

func (p *Panel) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (p *Panel) stop(w http.ResponseWriter, r *http.Request) {
	p.appManager.SpawnGracefulShutdown("control-panel")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "shutdown requested"})
}

// exchangeView is what get_config serializes: config.ExchangeSettings minus
// APIKey/SecretKey, which must never cross the unauthenticated panel.
type exchangeView struct {
	ExchangeAccountID     string                       `json:"exchange_account_id"`
	IsMarginTrading       bool                         `json:"is_margin_trading"`
	CurrencyPairs         []config.CurrencyPairSetting `json:"currency_pairs"`
	WebsocketChannels     []string                     `json:"websocket_channels"`
	WebSocketHost         string                       `json:"web_socket_host"`
	WebSocket2Host        string                       `json:"web_socket2_host"`
	RestHost              string                       `json:"rest_host"`
	SubscribeToMarketData bool                         `json:"subscribe_to_market_data"`
}

func (p *Panel) getConfig(w http.ResponseWriter, r *http.Request) {
	settings := p.cfg.Exchanges()
	views := make([]exchangeView, len(settings))
	for i, ex := range settings {
		views[i] = exchangeView{
			ExchangeAccountID:     ex.ExchangeAccountID,
			IsMarginTrading:       ex.IsMarginTrading,
			CurrencyPairs:         ex.CurrencyPairs,
			WebsocketChannels:     ex.WebsocketChannels,
			WebSocketHost:         ex.WebSocketHost,
			WebSocket2Host:        ex.WebSocket2Host,
			RestHost:              ex.RestHost,
			SubscribeToMarketData: ex.SubscribeToMarketData,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (p *Panel) setConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	// The control panel owns bytes<->string decoding; the core only ever
	// sees a UTF-8 string and fails with ConfigInvalid on malformed content.
	result, err := p.cfg.SetConfig(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (p *Panel) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func zerologMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.WithTraceID(r.Context(), tracing.NewTraceID())
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		tracing.Logger(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("control panel request")
	})
}
