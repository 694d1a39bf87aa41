// Package lifecycle implements the engine's composition root and shutdown
// machinery: ApplicationManager owns the process-wide cancellation token,
// ShutdownService sequences cooperating services through termination, and
// EngineContext drives the phased graceful-shutdown state machine that ties
// both together with the exchange registry and blocker.
//
// Grounded on original_source/core/src/lifecycle/trading_engine.rs for the
// EngineContext/TradingEngine shape, and on engine/trading_engine.go for
// the surrounding Go idiom (zerolog logging, mutex-guarded state, %w error
// wrapping) — the teacher has no ApplicationManager/ShutdownService
// equivalent, so those two are built directly from spec §4.2/§4.4.
package lifecycle

import (
	"sync"
	"weak"

	"github.com/rs/zerolog/log"

	"github.com/alexherrero/sherwood-engine/cancel"
	"github.com/alexherrero/sherwood-engine/notifications"
)

// ApplicationManager holds the root cancellation token and is the one
// object every long-running task is handed, regardless of how deep it sits
// in the call graph: any of them can request shutdown without needing a
// strong reference to the composition root.
//
// Its reference to EngineContext is deliberately weak (weak.Pointer) —
// EngineContext holds a strong reference back to ApplicationManager, and a
// strong reference in both directions would leave nothing to ever collect
// either. The weak pointer is installed once, after EngineContext
// construction, and cleared as the final step of graceful shutdown.
type ApplicationManager struct {
	stopToken *cancel.Token

	mu            sync.Mutex
	engineCtx     weak.Pointer[EngineContext]
	hasEngineCtx  bool
	notifications *notifications.Log
}

// NewApplicationManager creates an ApplicationManager with a fresh root
// stop token and no registered engine context.
func NewApplicationManager() *ApplicationManager {
	return &ApplicationManager{stopToken: cancel.New()}
}

// SetNotifications installs the operational log that SpawnGracefulShutdown
// records to. Nil-safe: a nil or never-set log just means nothing is
// recorded.
func (m *ApplicationManager) SetNotifications(log *notifications.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = log
}

// StopToken returns the canonical token observed by long-running tasks.
func (m *ApplicationManager) StopToken() *cancel.Token {
	return m.stopToken
}

// SetupEngineContext installs ctx as the weak back-reference. Idempotent:
// only the first call has any effect.
func (m *ApplicationManager) SetupEngineContext(ctx *EngineContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasEngineCtx {
		return
	}
	m.engineCtx = weak.Make(ctx)
	m.hasEngineCtx = true
}

// UnsetEngineContext clears the back-reference. Called as the last step of
// EngineContext.GracefulShutdown.
func (m *ApplicationManager) UnsetEngineContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engineCtx = weak.Pointer[EngineContext]{}
	m.hasEngineCtx = false
}

// SpawnGracefulShutdown cancels the stop token and, if an engine context is
// registered, launches its graceful shutdown sequence in the background.
// Safe to call from any task, any number of times, concurrently — the
// token cancel is idempotent and EngineContext.GracefulShutdown guards its
// own phased sequence with a compare-and-swap, so only the first effective
// call does any work.
//
// If no engine context has been registered yet, this is not an error: the
// stop token is still cancelled, and the attempt is logged.
func (m *ApplicationManager) SpawnGracefulShutdown(reason string) {
	m.stopToken.Cancel()

	m.mu.Lock()
	ctx := m.engineCtx.Value()
	notifLog := m.notifications
	m.mu.Unlock()

	if ctx == nil {
		log.Warn().Str("reason", reason).Msg("graceful shutdown requested with no engine context registered")
		if notifLog != nil {
			notifLog.Warn("graceful shutdown requested with no engine context", reason)
		}
		return
	}

	log.Info().Str("reason", reason).Msg("graceful shutdown requested")
	if notifLog != nil {
		notifLog.Info("graceful shutdown requested", reason)
	}
	go ctx.GracefulShutdown()
}
