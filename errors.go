package authsync

import (
	"net"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	textCodeInvalidConfig    = "INVALID_AUTHSYNC_CONFIG"
	textCodeMissingSessionID = "MISSING_SESSION_ID"
	textCodeServerOnly       = "SERVER_ONLY_AUTH_RESULT"
	textCodeNoAuthContext    = "NO_AUTH_CONTEXT"
	textCodeRefreshFailed    = "TOKEN_REFRESH_FAILED"
	textCodeSignInRequired   = "SIGN_IN_REQUIRED"
)

// ErrInvalidConfig wraps configuration validation failures. Fatal: surfaced
// on the first request and on every request after until the operator fixes
// the setup.
var ErrInvalidConfig = errors.New("invalid authsync configuration", errors.CategoryValidation).
	WithTextCode(textCodeInvalidConfig).
	WithCode(errors.CodeInternal)

// ErrMissingSessionID is returned when a resolver produces an authenticated
// result without a session id.
var ErrMissingSessionID = errors.New("authenticated result is missing a session id", errors.CategoryInternal).
	WithTextCode(textCodeMissingSessionID).
	WithCode(errors.CodeInternal)

// ErrServerOnlyResult guards the serialization boundary: AuthResult holds
// the access token and must not be marshaled.
var ErrServerOnlyResult = errors.New("AuthResult is server-only, serialize ClientAuth instead", errors.CategoryInternal).
	WithTextCode(textCodeServerOnly).
	WithCode(errors.CodeInternal)

// ErrNoAuthContext is returned when auth state is read from a context the
// middleware never touched.
var ErrNoAuthContext = errors.New("no auth context, did the middleware run?", errors.CategoryInternal).
	WithTextCode(textCodeNoAuthContext).
	WithCode(errors.CodeInternal)

// ErrRefreshFailed wraps unexpected failures from the token refresh
// operation. Precondition misses (no user, token, session, or refresh token)
// are not errors and degrade to the unauthenticated projection instead.
var ErrRefreshFailed = errors.New("token refresh failed", errors.CategoryOperation).
	WithTextCode(textCodeRefreshFailed).
	WithCode(errors.CodeInternal)

// ErrSignInRequired is returned by refresh actions invoked with
// EnsureSignedIn when no session survives the refresh.
var ErrSignInRequired = errors.New("sign in required", errors.CategoryAuth).
	WithTextCode(textCodeSignInRequired).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsFetchError reports whether an error looks like a connectivity failure
// rather than an application-level rejection. The expiry watcher uses it to
// tell "the network is gone" apart from "the session is gone".
func IsFetchError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "fetch failed") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host")
}
