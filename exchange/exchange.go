package exchange

import (
	"sync"

	"github.com/alexherrero/sherwood-engine/cancel"
)

// Exchange is an owned, reference-countable handle representing one
// authenticated connection set to a venue. Implementations (see
// exchanges/binance) own the REST client and the market-data websocket;
// the core only ever calls the two lifecycle-relevant operations below.
type Exchange interface {
	// AccountID returns this exchange connection's identity.
	AccountID() AccountID

	// CancelOpenedOrders cancels every order the engine currently has open
	// on this venue. If addMissing is true, the adapter first runs a
	// discovery pass (e.g. "list all open orders" over REST) to catch
	// orders the engine's local cache doesn't know about, rather than
	// relying solely on that cache. Cooperative: the implementation must
	// check token between individual cancel calls and return promptly once
	// it observes cancellation, leaving any remaining orders uncancelled.
	CancelOpenedOrders(token *cancel.Token, addMissing bool) error

	// Disconnect closes the market-data stream and releases any other
	// connection-held resources. Idempotent.
	Disconnect() error
}

// Registry is a concurrent AccountID -> Exchange map. Writers are expected
// only during EngineContext construction; after that the set of exchanges
// is immutable and reads never block on other reads.
type Registry struct {
	mu        sync.RWMutex
	exchanges map[AccountID]Exchange
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{exchanges: make(map[AccountID]Exchange)}
}

// Register adds an exchange under its AccountID, overwriting any previous
// entry for the same id.
func (r *Registry) Register(ex Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges[ex.AccountID()] = ex
}

// Get returns the exchange registered under id, if any.
func (r *Registry) Get(id AccountID) (Exchange, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.exchanges[id]
	return ex, ok
}

// All returns every registered exchange, in no particular order.
func (r *Registry) All() []Exchange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Exchange, 0, len(r.exchanges))
	for _, ex := range r.exchanges {
		out = append(out, ex)
	}
	return out
}

// IDs returns every registered AccountID, in no particular order.
func (r *Registry) IDs() []AccountID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AccountID, 0, len(r.exchanges))
	for id := range r.exchanges {
		out = append(out, id)
	}
	return out
}

// Len returns the number of registered exchanges.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exchanges)
}
