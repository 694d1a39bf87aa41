// Package cancel provides a tree-structured cooperative cancellation signal.
package cancel

import "context"

// Token is a tree-structured cooperative cancellation signal. Cancelling a
// token cancels every token derived from it via Child. Once cancelled, a
// token stays cancelled — there is no un-cancel.
//
// Token is a thin wrapper around context.Context/CancelFunc: the tree
// propagation this needs is exactly what context.WithCancel already gives a
// derived context, and every long-running operation in this codebase already
// threads a context.Context through, so operations that only need "am I
// still allowed to keep going" can use token.Context() directly instead of a
// parallel polling API.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a fresh, unparented Token.
func New() *Token {
	return FromContext(context.Background())
}

// FromContext creates a Token whose lifetime is bound to parent: cancelling
// parent cancels the returned Token, but not vice versa.
func FromContext(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Cancel marks the token (and all of its descendants) cancelled. Idempotent.
func (t *Token) Cancel() {
	t.cancel()
}

// IsCancelled reports whether the token has been cancelled, directly or by
// an ancestor.
func (t *Token) IsCancelled() bool {
	select {
	case <-t.ctx.Done():
		return true
	default:
		return false
	}
}

// Done returns a channel that's closed when the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Child returns a new Token that is cancelled whenever t is cancelled (in
// addition to being independently cancellable).
func (t *Token) Child() *Token {
	return FromContext(t.ctx)
}

// Context returns the context.Context backing this token, for interop with
// APIs (REST clients, timers) that take a context.Context directly.
func (t *Token) Context() context.Context {
	return t.ctx
}
