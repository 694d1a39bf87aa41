// Package binance is the concrete Exchange adapter for Binance: REST order
// cancellation via github.com/adshao/go-binance/v2 and a market-data
// websocket dialer via github.com/gorilla/websocket, satisfying the
// exchange.Exchange interface the lifecycle package depends on.
//
// Grounded on data/providers/binance.go (client construction, rate-limited
// REST calls, Binance/Binance.US host split) and realtime/websocket.go
// (the teacher's only other gorilla/websocket user) — generalized from
// "fetch candles for a UI" to "stream market data for the core" and from
// "REST-only provider" to a full Exchange adapter that also cancels orders.
package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	binancesdk "github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/alexherrero/sherwood-engine/cancel"
	"github.com/alexherrero/sherwood-engine/config"
	"github.com/alexherrero/sherwood-engine/errs"
	"github.com/alexherrero/sherwood-engine/events"
	"github.com/alexherrero/sherwood-engine/exchange"
	"github.com/alexherrero/sherwood-engine/timeouts"
)

// Exchange is the Binance-backed exchange.Exchange implementation. One
// instance per configured exchange_account_id.
type Exchange struct {
	id      exchange.AccountID
	client  *binancesdk.Client
	bus     *events.Bus
	symbols []string

	wsHost  string
	limiter *timeouts.Limiter

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped chan struct{}
}

// SetLimiter installs the outbound-request admission limiter REST calls
// consult before hitting the venue. Nil-safe: without one, calls proceed
// unthrottled.
func (e *Exchange) SetLimiter(limiter *timeouts.Limiter) {
	e.limiter = limiter
}

// New constructs a Binance Exchange adapter from its TOML settings.
func New(id exchange.AccountID, settings config.ExchangeSettings, bus *events.Bus) *Exchange {
	client := binancesdk.NewClient(settings.APIKey, settings.SecretKey)
	if settings.RestHost != "" {
		client.BaseURL = settings.RestHost
	}

	symbols := make([]string, 0, len(settings.CurrencyPairs))
	for _, cp := range settings.CurrencyPairs {
		symbol := cp.CurrencyPair
		if symbol == "" {
			symbol = cp.Base + cp.Quote
		}
		symbols = append(symbols, symbol)
	}

	return &Exchange{
		id:      id,
		client:  client,
		bus:     bus,
		symbols: symbols,
		wsHost:  settings.WebSocketHost,
	}
}

// AccountID satisfies exchange.Exchange.
func (e *Exchange) AccountID() exchange.AccountID { return e.id }

// CancelOpenedOrders lists the venue's open orders for each configured
// symbol over REST and cancels each one, so orders placed outside this
// process's lifetime are swept up too. The adapter keeps no local order
// cache: the listing runs whether addMissing is true or false, and
// addMissing does not change what is cancelled.
func (e *Exchange) CancelOpenedOrders(token *cancel.Token, addMissing bool) error {
	ctx := token.Context()

	var firstErr error
	for _, symbol := range e.symbols {
		select {
		case <-token.Done():
			return nil
		default:
		}

		if !e.reserve(token) {
			return errs.Wrap(errs.RateLimited, "rate limiter admission cancelled before listing open orders", ctx.Err())
		}

		orders, err := e.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
		if err != nil {
			log.Error().Err(err).Str("exchange", e.id.String()).Str("symbol", symbol).Msg("failed to list open orders")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, order := range orders {
			select {
			case <-token.Done():
				return firstErr
			default:
			}
			if !e.reserve(token) {
				return errs.Wrap(errs.RateLimited, "rate limiter admission cancelled before cancelling order", ctx.Err())
			}
			_, err := e.client.NewCancelOrderService().Symbol(symbol).OrderID(order.OrderID).Do(ctx)
			if err != nil {
				log.Error().Err(err).Str("exchange", e.id.String()).Int64("order_id", order.OrderID).Msg("failed to cancel order")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}

// reserve consults the admission limiter, if one is installed, blocking
// until a slot is available or token is cancelled. Without a limiter every
// call is admitted immediately.
func (e *Exchange) reserve(token *cancel.Token) bool {
	if e.limiter == nil {
		return true
	}
	return e.limiter.Reserve(token)
}

// Disconnect tears down the market-data websocket connection, if any.
func (e *Exchange) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return nil
	}
	if e.stopped != nil {
		close(e.stopped)
		e.stopped = nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

// ConnectMarketData dials the exchange's market-data websocket host and
// republishes every received frame as an events.Event tagged with this
// exchange's AccountID. It returns once the initial dial succeeds; reads
// continue on a background goroutine until Disconnect is called.
func (e *Exchange) ConnectMarketData(ctx context.Context) error {
	if e.wsHost == "" {
		return fmt.Errorf("binance exchange %s has no web_socket_host configured", e.id)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, e.wsHost, nil)
	if err != nil {
		return errs.Wrap(errs.ExchangeUnavailable, fmt.Sprintf("dial market data websocket for %s", e.id), err)
	}

	e.mu.Lock()
	e.conn = conn
	e.stopped = make(chan struct{})
	stopped := e.stopped
	e.mu.Unlock()

	go e.readLoop(conn, stopped)
	return nil
}

func (e *Exchange) readLoop(conn *websocket.Conn, stopped chan struct{}) {
	for {
		select {
		case <-stopped:
			return
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("exchange", e.id.String()).Msg("market data websocket closed unexpectedly")
			}
			return
		}

		e.bus.Publish(events.Event{
			ExchangeAccountID: e.id,
			Type:              "market_data",
			Payload:           payload,
			Time:              time.Now(),
		})
	}
}
