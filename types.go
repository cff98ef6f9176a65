package authsync

import (
	"context"
	"fmt"

	"github.com/goliatone/go-router"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SessionResolver produces the full authentication result for a request.
// An unauthenticated request resolves to the zero AuthResult, not an error.
type SessionResolver interface {
	Resolve(ctx context.Context, c router.Context) (AuthResult, error)
}

// TokenValidator validates a raw access token and returns its claims.
type TokenValidator interface {
	Validate(tokenString string) (*SessionClaims, error)
}

// TokenRefresher exchanges a refresh token for a new authentication result.
type TokenRefresher interface {
	Refresh(ctx context.Context, req RefreshRequest) (AuthResult, error)
}

// RefreshRequest carries everything the refresh operation needs. The
// organization id, when set, scopes the refreshed session to that org.
type RefreshRequest struct {
	AccessToken    string
	RefreshToken   string
	User           *User
	Impersonator   *Impersonator
	OrganizationID string
}

// SessionEnder terminates a session with the upstream identity service and
// returns the location the browser should land on afterwards.
type SessionEnder interface {
	EndSession(ctx context.Context, sessionID, returnTo string) (string, error)
}

// UserLoader optionally hydrates the full user for a subject id. When absent
// the resolver builds the user from token claims alone.
type UserLoader interface {
	LoadUser(ctx context.Context, userID string) (*User, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHSYNC "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
