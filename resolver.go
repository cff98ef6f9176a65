package authsync

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	repository "github.com/goliatone/go-repository-bun"
)

// TokenSessionResolver is the default SessionResolver: it reads the session
// cookie, validates the access token, and loads the backing session record.
// Invalid, expired, or absent credentials resolve to the unauthenticated
// result; only store transport failures surface as errors.
type TokenSessionResolver struct {
	validator  TokenValidator
	store      SessionStore
	cookieName string
	userLoader UserLoader
	logger     Logger
}

var _ SessionResolver = (*TokenSessionResolver)(nil)

func NewTokenSessionResolver(validator TokenValidator, store SessionStore, cfg Config) *TokenSessionResolver {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "authsync_session"
	}

	return &TokenSessionResolver{
		validator:  validator,
		store:      store,
		cookieName: cookieName,
		logger:     defLogger{},
	}
}

func (r *TokenSessionResolver) WithLogger(logger Logger) *TokenSessionResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithUserLoader hydrates the full user from an external source instead of
// building it from token claims.
func (r *TokenSessionResolver) WithUserLoader(loader UserLoader) *TokenSessionResolver {
	r.userLoader = loader
	return r
}

func (r *TokenSessionResolver) Resolve(ctx context.Context, c router.Context) (AuthResult, error) {
	raw := c.Cookies(r.cookieName)
	if raw == "" {
		return AuthResult{}, nil
	}

	claims, err := r.validator.Validate(raw)
	if err != nil {
		// A bad or expired token is an unauthenticated request, not a failure.
		r.logger.Debug("session token rejected", "error", err)
		return AuthResult{}, nil
	}

	if claims.SessionID == "" {
		r.logger.Debug("session token carries no session id, treating as unauthenticated")
		return AuthResult{}, nil
	}

	sess, err := r.store.Get(ctx, claims.SessionID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return AuthResult{}, nil
		}
		return AuthResult{}, errors.Wrap(err, errors.CategoryInternal, "failed to load session record")
	}

	if sess.UserID != claims.UserID() {
		// Token subject and stored session disagree. Treat as signed out
		// rather than leaking a half-valid session.
		r.logger.Warn("session record does not match token subject", "session_id", claims.SessionID)
		return AuthResult{}, nil
	}

	user, err := r.resolveUser(ctx, claims)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		User:           user,
		AccessToken:    raw,
		SessionID:      claims.SessionID,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
		Roles:          claims.Roles,
		Permissions:    claims.Permissions,
		Entitlements:   claims.Entitlements,
		Claims:         claims,
		Impersonator:   claims.Impersonator,
	}, nil
}

func (r *TokenSessionResolver) resolveUser(ctx context.Context, claims *SessionClaims) (*User, error) {
	if r.userLoader != nil {
		user, err := r.userLoader.LoadUser(ctx, claims.UserID())
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user")
		}
		return user, nil
	}

	return &User{
		ID:        claims.UserID(),
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}, nil
}
