package authsync

import (
	"sync"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
)

// Config holds the process-wide options the middleware validates before
// serving the first authenticated request.
type Config struct {
	// ClientID identifies this application with the auth service.
	ClientID string `env:"AUTHSYNC_CLIENT_ID"`
	// RedirectURI is the app origin; its host classifies sign-out redirects
	// as internal or external.
	RedirectURI string `env:"AUTHSYNC_REDIRECT_URI"`
	// CookiePassword seals the session cookie. Minimum 32 characters.
	CookiePassword string `env:"AUTHSYNC_COOKIE_PASSWORD"`
	// CookieName is the session cookie name.
	CookieName string `env:"AUTHSYNC_COOKIE_NAME" envDefault:"authsync_session"`
	// SigningKey verifies (and for the default refresher, signs) access
	// tokens. Leave empty when JWKSetURL is configured.
	SigningKey string `env:"AUTHSYNC_SIGNING_KEY"`
	// JWKSetURL enables JWKS validation for externally issued tokens.
	JWKSetURL string `env:"AUTHSYNC_JWKS_URL"`
	// APIHostname is the auth service host, used by session termination.
	APIHostname string   `env:"AUTHSYNC_API_HOSTNAME"`
	Issuer      string   `env:"AUTHSYNC_ISSUER"`
	Audience    []string `env:"AUTHSYNC_AUDIENCE"`
	// TokenExpiration is the access token lifetime in minutes.
	TokenExpiration int `env:"AUTHSYNC_TOKEN_EXPIRATION" envDefault:"5"`
}

// ConfigFromEnv reads configuration from AUTHSYNC_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryValidation, "failed to parse authsync environment").
			WithTextCode(textCodeInvalidConfig)
	}
	return cfg, nil
}

// Validate checks the configuration. Idempotent and side-effect free; the
// middleware runs it once per process through the config latch.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.RedirectURI, validation.Required, is.URL),
		validation.Field(&c.CookiePassword, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.SigningKey, validation.Required.When(c.JWKSetURL == "")),
		validation.Field(&c.JWKSetURL, is.URL),
		validation.Field(&c.APIHostname, is.Host),
		validation.Field(&c.TokenExpiration, validation.Min(1)),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid authsync configuration").
			WithTextCode(textCodeInvalidConfig).
			WithMetadata(map[string]any{"fields": err.Error()})
	}
	return nil
}

// configLatch validates configuration at most once per process. Once
// serializes concurrent first requests; the stored error is re-read on
// every request after.
type configLatch struct {
	once sync.Once
	err  error
}

func (l *configLatch) validate(cfg Config) error {
	l.once.Do(func() {
		l.err = cfg.Validate()
	})
	return l.err
}

var processLatch configLatch

// resetProcessLatch exists for tests that exercise the first-request path.
func resetProcessLatch() {
	processLatch = configLatch{}
}
