// Package identity wraps sign-in/sign-out and exposes the authenticated
// principal as a value that changes over time. OAuth flow internals live
// in the external provider; this adapter only verifies the id token it
// hands back.
package identity

import (
	"context"
	"errors"
	"sync"

	"retrolog/pkg/models"
)

// ErrBadCredential is returned when a token or passphrase fails
// verification.
var ErrBadCredential = errors.New("bad credential")

// Provider is the identity provider adapter.
type Provider interface {
	// SignIn verifies credential and installs the resulting principal.
	SignIn(ctx context.Context, credential string) (*models.Principal, error)
	// SignOut clears the current principal.
	SignOut()
	// Current returns the current principal, or nil when anonymous.
	Current() *models.Principal
	// OnChange registers fn to run on every principal change. The
	// returned cancel func is idempotent.
	OnChange(fn func(*models.Principal)) func()
}

// watchers implements the OnChange fanout shared by providers.
type watchers struct {
	mu   sync.Mutex
	next int
	m    map[int]func(*models.Principal)
}

func (w *watchers) add(fn func(*models.Principal)) func() {
	w.mu.Lock()
	if w.m == nil {
		w.m = map[int]func(*models.Principal){}
	}
	w.next++
	token := w.next
	w.m[token] = fn
	w.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.m, token)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) notify(p *models.Principal) {
	w.mu.Lock()
	fns := make([]func(*models.Principal), 0, len(w.m))
	for _, fn := range w.m {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}
