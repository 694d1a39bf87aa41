package timeouts

import (
	"testing"
	"time"

	"github.com/alexherrero/sherwood-engine/cancel"
	"github.com/alexherrero/sherwood-engine/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLimiter_AdmitsUpToLimitWithinWindow is invariant 5 from spec.md §8:
// at most limit requests are admitted within any period-long window.
func TestLimiter_AdmitsUpToLimitWithinWindow(t *testing.T) {
	l := NewLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		admitted, _ := l.TryReserve()
		require.True(t, admitted)
	}

	admitted, earliest := l.TryReserve()
	assert.False(t, admitted)
	assert.False(t, earliest.IsZero())
}

func TestLimiter_ExpiredRequestsFreeSlots(t *testing.T) {
	l := NewLimiter(1, 20*time.Millisecond)

	admitted, _ := l.TryReserve()
	require.True(t, admitted)

	admitted, _ = l.TryReserve()
	require.False(t, admitted, "single slot already consumed")

	time.Sleep(30 * time.Millisecond)

	admitted, _ = l.TryReserve()
	assert.True(t, admitted, "slot should have expired out of the window")
}

// TestLimiter_ReserveBlocksUntilCapacityFrees is scenario S4 from spec.md §8.
func TestLimiter_ReserveBlocksUntilCapacityFrees(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)
	tok := cancel.New()

	require.True(t, l.Reserve(tok))

	start := time.Now()
	ok := l.Reserve(tok)
	elapsed := time.Since(start)

	assert.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestLimiter_ReserveReturnsFalseOnCancel(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	tok := cancel.New()

	require.True(t, l.Reserve(tok))

	done := make(chan bool)
	go func() { done <- l.Reserve(tok) }()

	time.Sleep(10 * time.Millisecond)
	tok.Cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Reserve did not return after cancellation")
	}
}

func TestLimiter_AvailableReflectsWindow(t *testing.T) {
	l := NewLimiter(2, time.Hour)
	assert.Equal(t, 2, l.Available())

	_, _ = l.TryReserve()
	assert.Equal(t, 1, l.Available())
}

func TestManager_RegisterAndGet(t *testing.T) {
	m := NewManager()
	id := exchange.NewAccountID("Binance", 0)

	_, ok := m.Get(id)
	assert.False(t, ok)

	m.Register(id, 5, time.Minute)
	l, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, 5, l.Available())
}
