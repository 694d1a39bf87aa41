package lifecycle

import (
	"testing"
	"time"

	"github.com/alexherrero/sherwood-engine/events"
	"github.com/alexherrero/sherwood-engine/exchange"
	"github.com/alexherrero/sherwood-engine/timeouts"
)

func TestTradingEngine_RunReturnsAfterGracefulShutdown(t *testing.T) {
	appManager := NewApplicationManager()
	reg := exchange.NewRegistry()
	ctx := NewEngineContext(appManager, reg, exchange.NewBlocker(), NewShutdownService(), timeouts.NewManager(), events.NewBus(4))
	engine := NewTradingEngine(ctx)

	done := make(chan struct{})
	go func() {
		engine.Run()
		close(done)
	}()

	appManager.SpawnGracefulShutdown("test")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown completed")
	}
}

func TestTradingEngine_RunBlocksUntilFinishSignal(t *testing.T) {
	appManager := NewApplicationManager()
	reg := exchange.NewRegistry()
	ctx := NewEngineContext(appManager, reg, exchange.NewBlocker(), NewShutdownService(), timeouts.NewManager(), events.NewBus(4))
	engine := NewTradingEngine(ctx)

	done := make(chan struct{})
	go func() {
		engine.Run()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Run returned before shutdown was ever requested")
	case <-time.After(50 * time.Millisecond):
	}

	appManager.SpawnGracefulShutdown("test")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown completed")
	}
}
