// Package timeouts implements the per-exchange outbound request admission
// policy: a sliding-window "at most N requests per period" limiter plus a
// trigger scheduler that wakes registered handlers as capacity frees up.
//
// Grounded on
// original_source/src/core/exchanges/timeouts/more_or_equals_available_requests_count_trigger_scheduler.rs
// and the surrounding timeout-manager module in original_source/src/core/exchanges/timeouts/,
// adapted from Rust's Arc<Mutex<VecDeque<_>>> bookkeeping to a plain
// mutex-guarded slice — the teacher repo has no equivalent concern, so this
// package is built from the original implementation directly.
package timeouts

import (
	"sync"
	"time"

	"github.com/alexherrero/sherwood-engine/cancel"
	"github.com/alexherrero/sherwood-engine/exchange"
)

// Limiter enforces "at most limit requests started within any period-long
// sliding window" for one exchange account. The zero value is not usable —
// construct with NewLimiter.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	period time.Duration

	requests        []time.Time // ascending, oldest first
	lastRequestTime time.Time

	scheduler *TriggerScheduler
}

// NewLimiter creates a Limiter admitting at most limit requests in any
// rolling window of period.
func NewLimiter(limit int, period time.Duration) *Limiter {
	return &Limiter{
		limit:     limit,
		period:    period,
		scheduler: NewTriggerScheduler(),
	}
}

// RegisterTrigger wires a handler that fires once available requests
// reaches at least countThreshold, re-arming whenever it drops back below.
func (l *Limiter) RegisterTrigger(countThreshold int, handler func() error) {
	l.scheduler.RegisterTrigger(countThreshold, handler)
}

// dropExpired removes every recorded request older than period relative to
// now. Caller must hold l.mu.
func (l *Limiter) dropExpired(now time.Time) {
	cutoff := now.Add(-l.period)
	i := 0
	for i < len(l.requests) && !l.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.requests = l.requests[i:]
	}
}

// admit is the core admission check. Caller must hold l.mu. Returns whether
// a slot was consumed, how many slots remain afterward, and — when
// rejected — the earliest time a slot will next free up.
func (l *Limiter) admit(now time.Time) (admitted bool, available int, earliest time.Time) {
	l.dropExpired(now)

	if len(l.requests) < l.limit {
		l.requests = append(l.requests, now)
		l.lastRequestTime = now
		available = l.limit - len(l.requests)
		return true, available, time.Time{}
	}

	if len(l.requests) == 0 {
		// limit <= 0: no slot ever frees, so report one period from now.
		return false, 0, now.Add(l.period)
	}
	return false, 0, l.requests[0].Add(l.period)
}

// TryReserve attempts to consume one slot without waiting. On success it
// returns (true, zero time); on rejection it returns (false, earliest time
// a slot will next free up) without suspending the caller — the rejecting
// operation variant from spec step 3.
func (l *Limiter) TryReserve() (bool, time.Time) {
	l.mu.Lock()
	admitted, available, earliest := l.admit(time.Now())
	lastRequestTime := l.lastRequestTime
	period := l.period
	l.mu.Unlock()

	if admitted {
		l.scheduler.Tick(available, lastRequestTime, period)
	}
	return admitted, earliest
}

// Reserve blocks the caller until a slot is available or token is
// cancelled — the suspending operation variant from spec step 3. Returns
// false if token was cancelled before a slot could be reserved.
func (l *Limiter) Reserve(token *cancel.Token) bool {
	for {
		l.mu.Lock()
		admitted, available, earliest := l.admit(time.Now())
		lastRequestTime := l.lastRequestTime
		period := l.period
		l.mu.Unlock()

		if admitted {
			l.scheduler.Tick(available, lastRequestTime, period)
			return true
		}

		wait := time.Until(earliest)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			continue
		case <-token.Done():
			timer.Stop()
			return false
		}
	}
}

// Available reports how many requests could still be admitted right now
// without waiting.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropExpired(time.Now())
	return l.limit - len(l.requests)
}

// LastRequestTime reports the time of the most recently admitted request,
// or the zero time if none have been admitted yet.
func (l *Limiter) LastRequestTime() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRequestTime
}

// Manager owns one Limiter per exchange account.
type Manager struct {
	mu       sync.RWMutex
	limiters map[exchange.AccountID]*Limiter
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{limiters: make(map[exchange.AccountID]*Limiter)}
}

// Register creates (or replaces) the Limiter for accountID.
func (m *Manager) Register(accountID exchange.AccountID, limit int, period time.Duration) *Limiter {
	l := NewLimiter(limit, period)
	m.mu.Lock()
	m.limiters[accountID] = l
	m.mu.Unlock()
	return l
}

// Get returns the Limiter registered for accountID, if any.
func (m *Manager) Get(accountID exchange.AccountID) (*Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limiters[accountID]
	return l, ok
}
