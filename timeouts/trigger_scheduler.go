package timeouts

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// trigger is a (count_threshold, handler, armed?) tuple. It fires its
// handler once when the available-request count crosses up through
// count_threshold, then re-arms on a later scheduler tick if the count
// drops below the threshold again.
//
// Grounded on
// original_source/src/core/exchanges/timeouts/more_or_equals_available_requests_count_trigger_scheduler.rs:
// the commented-out "isGreater" branch there is not implemented — crossing
// above the threshold is a plain early return with no scheduling, which is
// the only behavior the original file actually runs.
type trigger struct {
	countThreshold int
	handler        func() error

	mu    sync.Mutex
	armed bool
}

// scheduleHandler is called once per scheduler tick (i.e. once per
// request admitted by Limiter.TryReserve or Limiter.Reserve). It arms and enqueues a detached one-shot wakeup if
// available is below threshold and nothing is already pending.
func (t *trigger) scheduleHandler(available int, lastRequestTime time.Time, period time.Duration, now time.Time) {
	if available >= t.countThreshold {
		return
	}

	t.mu.Lock()
	if t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = true
	t.mu.Unlock()

	// The window is strictly monotonic in time, so last_request_time +
	// period is an upper bound on when at least one slot must free —
	// waking at that instant guarantees the handler sees available >= 1.
	delay := lastRequestTime.Add(period).Sub(now)
	if delay < 0 {
		delay = 0
	}

	go t.fire(delay)
}

func (t *trigger) fire(delay time.Duration) {
	timer := time.NewTimer(delay)
	<-timer.C

	if err := t.handler(); err != nil {
		log.Error().Err(err).Msg("trigger handler failed")
	}

	t.mu.Lock()
	t.armed = false
	t.mu.Unlock()
}

// TriggerScheduler holds every registered trigger for one rate limiter and
// arms/schedules them on each admission tick.
type TriggerScheduler struct {
	mu       sync.Mutex
	triggers []*trigger
}

// NewTriggerScheduler creates an empty scheduler.
func NewTriggerScheduler() *TriggerScheduler {
	return &TriggerScheduler{}
}

// RegisterTrigger adds a handler that fires the first time available
// requests reaches at least countThreshold. Re-armable: after firing it can
// fire again on a later tick if available drops back below threshold.
func (s *TriggerScheduler) RegisterTrigger(countThreshold int, handler func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = append(s.triggers, &trigger{countThreshold: countThreshold, handler: handler})
}

// Tick runs one scheduler tick against every registered trigger. Handler
// invocation happens outside of any lock, in a detached goroutine the
// scheduler does not await.
func (s *TriggerScheduler) Tick(available int, lastRequestTime time.Time, period time.Duration) {
	now := time.Now()

	s.mu.Lock()
	triggers := make([]*trigger, len(s.triggers))
	copy(triggers, s.triggers)
	s.mu.Unlock()

	for _, tr := range triggers {
		tr.scheduleHandler(available, lastRequestTime, period, now)
	}
}
