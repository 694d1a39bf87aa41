package cancel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToken_CancelIsMonotonic(t *testing.T) {
	tok := New()
	assert.False(t, tok.IsCancelled())

	tok.Cancel()
	assert.True(t, tok.IsCancelled())

	// Cancelling again must not panic and must stay cancelled.
	tok.Cancel()
	assert.True(t, tok.IsCancelled())
}

func TestToken_ChildInheritsParentCancellation(t *testing.T) {
	parent := New()
	child := parent.Child()

	assert.False(t, child.IsCancelled())
	parent.Cancel()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child token did not observe parent cancellation")
	}
	assert.True(t, child.IsCancelled())
}

func TestToken_ChildCancelDoesNotAffectParent(t *testing.T) {
	parent := New()
	child := parent.Child()

	child.Cancel()
	assert.True(t, child.IsCancelled())
	assert.False(t, parent.IsCancelled())
}

func TestToken_ConcurrentCancelIsSafe(t *testing.T) {
	tok := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok.Cancel()
		}()
	}
	wg.Wait()
	assert.True(t, tok.IsCancelled())
}
