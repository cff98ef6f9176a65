package authsync

import (
	"context"
	"sync"

	"github.com/goliatone/go-router"
)

var authCtxKey = &contextKey{"auth"}
var clientAuthCtxKey = &contextKey{"client-auth"}

type contextKey struct {
	name string
}

// AuthAccessor resolves the full authentication result for the current
// request. The middleware installs a memoized accessor so the resolver runs
// at most once per request, and only if something reads it.
type AuthAccessor func() (AuthResult, error)

// WithAuthContext sets the full-result accessor in the given context. This
// is the server-only channel: the value it yields must never be serialized.
func WithAuthContext(ctx context.Context, accessor AuthAccessor) context.Context {
	return context.WithValue(ctx, authCtxKey, accessor)
}

// AuthFromContext resolves and returns the full authentication result.
// Returns ErrNoAuthContext when the middleware never ran for this context.
func AuthFromContext(ctx context.Context) (AuthResult, error) {
	accessor, ok := ctx.Value(authCtxKey).(AuthAccessor)
	if !ok {
		return AuthResult{}, ErrNoAuthContext
	}
	return accessor()
}

// WithClientAuthContext sets the sanitized projection in the given context.
// This is the hydration channel: the only auth value eligible to cross the
// server/client boundary.
func WithClientAuthContext(ctx context.Context, ca ClientAuth) context.Context {
	return context.WithValue(ctx, clientAuthCtxKey, ca)
}

// ClientAuthFromContext finds the hydration payload in the context.
func ClientAuthFromContext(ctx context.Context) (ClientAuth, bool) {
	ca, ok := ctx.Value(clientAuthCtxKey).(ClientAuth)
	return ca, ok
}

// GetRouterAuth resolves the full result stored by the middleware in the
// router context locals.
func GetRouterAuth(c router.Context, key string) (AuthResult, error) {
	if key == "" {
		key = DefaultAuthKey
	}
	raw := c.Locals(key)
	if raw == nil {
		return AuthResult{}, ErrNoAuthContext
	}
	accessor, ok := raw.(AuthAccessor)
	if !ok {
		return AuthResult{}, ErrNoAuthContext
	}
	return accessor()
}

// GetRouterClientAuth returns the hydration payload stored by the middleware
// in the router context locals.
func GetRouterClientAuth(c router.Context, key string) (ClientAuth, bool) {
	if key == "" {
		key = DefaultClientAuthKey
	}
	raw := c.Locals(key)
	if raw == nil {
		return ClientAuth{}, false
	}
	ca, ok := raw.(ClientAuth)
	return ca, ok
}

// memoizeAuth wraps an accessor so the underlying resolution happens once,
// no matter how many consumers read the channel.
func memoizeAuth(fn AuthAccessor) AuthAccessor {
	var once sync.Once
	var res AuthResult
	var err error

	return func() (AuthResult, error) {
		once.Do(func() {
			res, err = fn()
		})
		return res, err
	}
}
