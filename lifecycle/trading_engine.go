package lifecycle

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/alexherrero/sherwood-engine/errs"
)

// TradingEngine is a thin driver: it waits for the engine context's
// graceful shutdown to complete, isolates any panic escaping that wait,
// and returns. It does not itself run the shutdown sequence.
type TradingEngine struct {
	Context *EngineContext
}

// NewTradingEngine wraps ctx in a driver ready for Run.
func NewTradingEngine(ctx *EngineContext) *TradingEngine {
	return &TradingEngine{Context: ctx}
}

// Run blocks until the engine context finishes its graceful shutdown. A
// panic during the wait is recovered, logged, and escalated to
// ApplicationManager.SpawnGracefulShutdown rather than crashing the
// process.
func (e *TradingEngine) Run() {
	defer func() {
		if r := recover(); r != nil {
			err := errs.New(errs.PanicCaught, fmt.Sprintf("recovered panic in trading engine: %v", r))
			log.Error().Interface("panic", r).Msg("panic caught while running trading engine")
			if notif := e.Context.Notifications; notif != nil {
				notif.Err("panic caught", err.Msg)
			}
			e.Context.ApplicationManager.SpawnGracefulShutdown("panic-caught")
		}
	}()

	<-e.Context.FinishedGracefulShutdown()
}
