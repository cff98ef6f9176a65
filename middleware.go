package authsync

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	// DefaultAuthKey is the router locals key holding the full-result accessor.
	DefaultAuthKey = "authsync:auth"
	// DefaultClientAuthKey is the router locals key holding the hydration payload.
	DefaultClientAuthKey = "authsync:client"
)

type MiddlewareConfig struct {
	Config   Config
	Resolver SessionResolver

	// Filter skips the middleware for matching requests.
	Filter func(router.Context) bool

	// SuccessHandler runs after the channels are populated. Defaults to
	// ctx.Next().
	SuccessHandler router.HandlerFunc

	// ErrorHandler receives resolver transport failures. Unauthenticated
	// requests never reach it: absence of a user is a valid terminal state.
	ErrorHandler router.ErrorHandler

	// AuthKey and ClientAuthKey override the router locals keys.
	AuthKey       string
	ClientAuthKey string

	// SkipHydration leaves the client channel empty and defers resolution
	// entirely to the first server-side read of the auth accessor.
	SkipHydration bool

	Logger Logger

	// latch overrides the process-wide config latch in tests.
	latch *configLatch
}

// New returns the request middleware. It runs once per request before any
// route handler: resolves the full AuthResult, derives the sanitized
// projection, and publishes both channels. On the first invocation
// process-wide it validates configuration and fails fast when invalid.
func New(config ...MiddlewareConfig) router.MiddlewareFunc {
	cfg := getMiddlewareDefaults(config...)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if err := cfg.latch.validate(cfg.Config); err != nil {
				return err
			}

			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			accessor := memoizeAuth(func() (AuthResult, error) {
				return cfg.Resolver.Resolve(ctx.Context(), ctx)
			})

			stdCtx := WithAuthContext(ctx.Context(), accessor)
			ctx.Locals(cfg.AuthKey, accessor)

			if !cfg.SkipHydration {
				res, err := accessor()
				if err != nil {
					return cfg.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryAuth, "failed to resolve session"))
				}

				ca, err := SanitizeAuth(res)
				if err != nil {
					return cfg.ErrorHandler(ctx, err)
				}

				stdCtx = WithClientAuthContext(stdCtx, ca)
				ctx.Locals(cfg.ClientAuthKey, ca)
			}

			ctx.SetContext(stdCtx)

			return cfg.SuccessHandler(ctx)
		}
	}
}

func getMiddlewareDefaults(config ...MiddlewareConfig) MiddlewareConfig {
	var cfg MiddlewareConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Resolver == nil {
		panic("AUTHSYNC: middleware configuration: Resolver is required.")
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	if cfg.AuthKey == "" {
		cfg.AuthKey = DefaultAuthKey
	}

	if cfg.ClientAuthKey == "" {
		cfg.ClientAuthKey = DefaultClientAuthKey
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		logger := cfg.Logger
		cfg.ErrorHandler = func(c router.Context, err error) error {
			var richErr *errors.Error
			if !errors.As(err, &richErr) {
				richErr = errors.Wrap(err, errors.CategoryInternal, "unexpected auth middleware error").
					WithCode(errors.CodeInternal)
			}
			logger.Error("auth middleware error", "error", richErr.Message, "category", richErr.Category)
			return c.JSON(richErr.Code, map[string]any{
				"error": richErr.Message,
			})
		}
	}

	if cfg.latch == nil {
		cfg.latch = &processLatch
	}

	return cfg
}
