package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexherrero/sherwood-engine/cancel"
	"github.com/alexherrero/sherwood-engine/errs"
	"github.com/alexherrero/sherwood-engine/events"
	"github.com/alexherrero/sherwood-engine/exchange"
	"github.com/alexherrero/sherwood-engine/notifications"
	"github.com/alexherrero/sherwood-engine/timeouts"
	"github.com/alexherrero/sherwood-engine/tracing"
)

// defaultCancelOpenedOrdersTimeout bounds how long the shutdown sequence
// waits for best-effort order cancellation before giving up and moving on.
const defaultCancelOpenedOrdersTimeout = 5 * time.Second

// EngineContext is the composition root: it owns the exchange registry,
// the blocker, the shutdown service, the rate limiters and the event bus,
// and drives the phased graceful-shutdown state machine that ties all of
// them together.
//
// Grounded on original_source/core/src/lifecycle/trading_engine.rs's
// EngineContext::graceful_shutdown, translated from Rust's
// AtomicBool+CAS/oneshot::Sender/tokio::select! into sync/atomic.Bool,
// a mutex-guarded close-once channel, and a plain select over two channels.
type EngineContext struct {
	Exchanges          *exchange.Registry
	ShutdownService    *ShutdownService
	ExchangeBlocker    *exchange.Blocker
	ApplicationManager *ApplicationManager
	TimeoutManager     *timeouts.Manager
	Events             *events.Bus

	// CancelOpenedOrdersTimeout bounds step 5 of the shutdown sequence.
	// Defaults to defaultCancelOpenedOrdersTimeout; tests may shrink it.
	CancelOpenedOrdersTimeout time.Duration

	// Notifications, if set before GracefulShutdown can be triggered,
	// receives a record of the shutdown's start, the completion of steps
	// 3 through 6, the finish, and every block/unblock the ExchangeBlocker
	// applies. Nil-safe: a nil log just
	// means nothing is recorded.
	Notifications *notifications.Log

	shutdownStarted atomic.Bool

	finishMu   sync.Mutex
	finishCh   chan struct{}
	finishSent bool
}

// NewEngineContext constructs the composition root and installs it as
// appManager's weak back-reference.
func NewEngineContext(
	appManager *ApplicationManager,
	registry *exchange.Registry,
	blocker *exchange.Blocker,
	shutdownSvc *ShutdownService,
	timeoutMgr *timeouts.Manager,
	bus *events.Bus,
) *EngineContext {
	ctx := &EngineContext{
		Exchanges:                 registry,
		ShutdownService:           shutdownSvc,
		ExchangeBlocker:           blocker,
		ApplicationManager:        appManager,
		TimeoutManager:            timeoutMgr,
		Events:                    bus,
		CancelOpenedOrdersTimeout: defaultCancelOpenedOrdersTimeout,
		finishCh:                  make(chan struct{}),
	}
	appManager.SetupEngineContext(ctx)

	blocker.OnBlock = func(id exchange.AccountID, reason exchange.BlockReason, blockType exchange.BlockType) {
		if ctx.Notifications != nil {
			ctx.Notifications.Warn("exchange blocked", fmt.Sprintf("%s blocked for %s (%s)", id, reason, blockType))
		}
	}
	blocker.OnUnblock = func(id exchange.AccountID, reason exchange.BlockReason, unblockType exchange.BlockType) {
		if ctx.Notifications != nil {
			ctx.Notifications.Info("exchange unblocked", fmt.Sprintf("%s unblocked from %s (%s)", id, reason, unblockType))
		}
	}

	return ctx
}

// GetEventsChannel returns a fresh subscription to the event bus. Slow
// consumers are disconnected and observe their channel close instead of
// stalling producers.
func (c *EngineContext) GetEventsChannel() *events.Subscription {
	return c.Events.Subscribe()
}

// FinishedGracefulShutdown returns a channel closed exactly once, when the
// graceful shutdown sequence has completed. TradingEngine.Run awaits it.
func (c *EngineContext) FinishedGracefulShutdown() <-chan struct{} {
	return c.finishCh
}

// GracefulShutdown runs the canonical shutdown sequence described in
// spec §4.6.1. Guarded by an atomic compare-and-swap on shutdownStarted:
// every call after the first effective one returns immediately with no
// side effects.
func (c *EngineContext) GracefulShutdown() {
	if !c.shutdownStarted.CompareAndSwap(false, true) {
		return
	}

	ctx := tracing.WithTraceID(context.Background(), tracing.NewTraceID())
	log := tracing.Logger(ctx)
	log.Info().Msg("graceful shutdown started")
	c.notify("graceful shutdown started", "")

	// Step 1: block every exchange from originating new outbound requests.
	for _, id := range c.Exchanges.IDs() {
		c.ExchangeBlocker.Block(id, exchange.GracefulShutdown, exchange.Manual)
	}

	// Step 2: cancel the root stop token. Cooperating tasks begin winding down.
	c.ApplicationManager.StopToken().Cancel()

	// Step 3: drain registered services.
	c.ShutdownService.GracefulShutdown()
	c.notify("shutdown phase: services drained", "")

	// Step 4: freeze the blocker and release any remaining waiters.
	c.ExchangeBlocker.StopBlocker()
	c.notify("shutdown phase: blocker frozen", "")

	// Step 5: best-effort order cancellation under a deadline. Runs after
	// cancellation has propagated, so strategies have had a chance to stop
	// issuing new orders before we sweep up what's left on the venues.
	c.runCancelOpenedOrdersWithDeadline(ctx)
	c.notify("shutdown phase: opened orders swept", "")

	// Step 6: disconnect every exchange concurrently.
	var wg sync.WaitGroup
	for _, ex := range c.Exchanges.All() {
		wg.Add(1)
		go func(ex exchange.Exchange) {
			defer wg.Done()
			if err := ex.Disconnect(); err != nil {
				log.Error().Err(err).Str("exchange", ex.AccountID().String()).Msg("disconnect failed")
				if c.Notifications != nil {
					c.Notifications.Err("exchange disconnect failed", fmt.Sprintf("%s: %v", ex.AccountID(), err))
				}
			}
		}(ex)
	}
	wg.Wait()
	c.notify("shutdown phase: exchanges disconnected", "")

	// Step 7: consume the one-shot finish signal exactly once.
	c.finishMu.Lock()
	if c.finishSent {
		c.finishMu.Unlock()
		err := errs.New(errs.InvariantViolation, "finish_graceful_shutdown_sender consumed more than once")
		c.notify("invariant violation", err.Msg)
		log.Fatal().Err(err).Msg("invariant violation, aborting")
		return
	}
	c.finishSent = true
	close(c.finishCh)
	c.finishMu.Unlock()

	// Step 8: clear the back-reference.
	c.ApplicationManager.UnsetEngineContext()

	log.Info().Msg("graceful shutdown finished")
	c.notify("graceful shutdown finished", "")
}

// notify records an info-level shutdown phase transition if a Log has been
// installed.
func (c *EngineContext) notify(title, message string) {
	if c.Notifications != nil {
		c.Notifications.Info(title, message)
	}
}

func (c *EngineContext) runCancelOpenedOrdersWithDeadline(ctx context.Context) {
	log := tracing.Logger(ctx)
	token := cancel.New()
	done := make(chan struct{})

	go func() {
		c.cancelOpenedOrders(ctx, token, true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.CancelOpenedOrdersTimeout):
		token.Cancel()
		log.Error().
			Dur("timeout", c.CancelOpenedOrdersTimeout).
			Msg("cancel opened orders timed out, shutdown continues")
	}
}

func (c *EngineContext) cancelOpenedOrders(ctx context.Context, token *cancel.Token, addMissing bool) {
	log := tracing.Logger(ctx)
	log.Info().Msg("canceling opened orders started")

	var wg sync.WaitGroup
	for _, ex := range c.Exchanges.All() {
		wg.Add(1)
		go func(ex exchange.Exchange) {
			defer wg.Done()
			if err := ex.CancelOpenedOrders(token, addMissing); err != nil {
				log.Error().Err(err).Str("exchange", ex.AccountID().String()).Msg("cancel opened orders failed")
			}
		}(ex)
	}
	wg.Wait()

	log.Info().Msg("canceling opened orders finished")
}
