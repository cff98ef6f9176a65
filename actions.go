package authsync

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// CheckSessionMessage is the (empty) input for the session liveness probe.
type CheckSessionMessage struct{}

func (m CheckSessionMessage) Type() string { return "auth.check_session" }

type RefreshAuthMessage struct {
	// EnsureSignedIn turns a signed-out refresh outcome into
	// ErrSignInRequired instead of the unauthenticated projection.
	EnsureSignedIn bool `json:"ensureSignedIn,omitempty"`
	// OrganizationID optionally scopes the refreshed session.
	OrganizationID string `json:"organizationId,omitempty"`
}

func (m RefreshAuthMessage) Type() string { return "auth.refresh" }

type SwitchOrganizationMessage struct {
	OrganizationID string `json:"organizationId"`
}

func (m SwitchOrganizationMessage) Type() string { return "auth.switch_organization" }

type SignOutMessage struct {
	ReturnTo string `json:"returnTo,omitempty"`
}

func (m SignOutMessage) Type() string { return "auth.sign_out" }

// Redirect is the tagged sign-out outcome: External destinations require a
// full page load, internal ones are navigated to in place.
type Redirect struct {
	Location string `json:"location"`
	External bool   `json:"external"`
}

type SignOutResult struct {
	Redirect *Redirect `json:"redirect,omitempty"`
}

// Actions implements the request-scoped server operations. Each call reads
// the current request's auth state from the context channel the middleware
// populated; none of them keeps state between calls.
type Actions struct {
	store     SessionStore
	refresher TokenRefresher
	ender     SessionEnder
	logger    Logger
	appHost   string
	timeout   time.Duration
}

type ActionsOption func(*Actions)

func WithActionsLogger(logger Logger) ActionsOption {
	return func(a *Actions) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithSessionEnder(ender SessionEnder) ActionsOption {
	return func(a *Actions) {
		if ender != nil {
			a.ender = ender
		}
	}
}

func WithActionsTimeout(d time.Duration) ActionsOption {
	return func(a *Actions) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewActions(store SessionStore, refresher TokenRefresher, cfg Config, opts ...ActionsOption) *Actions {
	a := &Actions{
		store:     store,
		refresher: refresher,
		ender:     noopSessionEnder{},
		logger:    defLogger{},
		appHost:   hostOf(cfg.RedirectURI),
		timeout:   10 * time.Second,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// CheckSession reports whether the current request resolved to a user.
// Pure liveness probe: no mutation, idempotent between session changes.
func (a *Actions) CheckSession(ctx context.Context) (bool, error) {
	res, err := AuthFromContext(ctx)
	if err != nil {
		if errors.Is(err, ErrNoAuthContext) {
			return false, err
		}
		return false, errors.Wrap(err, errors.CategoryAuth, "session check could not resolve auth")
	}
	return res.Authenticated(), nil
}

// RefreshAuth re-derives the session through the token refresher and returns
// the sanitized projection. Missing preconditions are "log me out" signals,
// answered with the zero projection; only refresher failures are errors.
func (a *Actions) RefreshAuth(ctx context.Context, msg RefreshAuthMessage) (ClientAuth, error) {
	refreshed, err := a.refresh(ctx, msg.OrganizationID)
	if err != nil {
		return ClientAuth{}, err
	}

	ca, err := SanitizeAuth(refreshed)
	if err != nil {
		return ClientAuth{}, err
	}

	if msg.EnsureSignedIn && !ca.Authenticated() {
		return ClientAuth{}, ErrSignInRequired
	}

	return ca, nil
}

// SwitchToOrganization refreshes the session scoped to the given
// organization. Same precondition mechanics as RefreshAuth; a refresh that
// drops the user carries full logout semantics.
func (a *Actions) SwitchToOrganization(ctx context.Context, msg SwitchOrganizationMessage) (ClientAuth, error) {
	refreshed, err := a.refresh(ctx, msg.OrganizationID)
	if err != nil {
		return ClientAuth{}, err
	}
	return SanitizeAuth(refreshed)
}

// GetAccessToken returns the current access token when a user is present.
// Server-side capability only: the HTTP controller never routes it.
func (a *Actions) GetAccessToken(ctx context.Context) (string, bool) {
	res, err := AuthFromContext(ctx)
	if err != nil || !res.Authenticated() {
		return "", false
	}
	return res.AccessToken, true
}

// RefreshAccessToken refreshes the session and returns only the new access
// token. Empty on any missing precondition.
func (a *Actions) RefreshAccessToken(ctx context.Context) (string, error) {
	refreshed, err := a.refresh(ctx, "")
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// SignOut terminates the session and signals where the browser should go.
// The redirect is the success path, not an error; any other failure during
// sign-out propagates unchanged.
func (a *Actions) SignOut(ctx context.Context, msg SignOutMessage) (SignOutResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := AuthFromContext(ctx)
	if err != nil && !errors.Is(err, ErrNoAuthContext) {
		return SignOutResult{}, err
	}

	returnTo := msg.ReturnTo
	if returnTo == "" {
		returnTo = "/"
	}

	if !res.Authenticated() || res.SessionID == "" {
		return SignOutResult{Redirect: a.redirect(returnTo)}, nil
	}

	err = a.store.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return a.store.DeleteTx(ctx, tx, res.SessionID)
	})
	if err != nil {
		return SignOutResult{}, errors.Wrap(err, errors.CategoryInternal, "sign out could not delete session")
	}

	location, err := a.ender.EndSession(ctx, res.SessionID, returnTo)
	if err != nil {
		return SignOutResult{}, err
	}

	a.logger.Info("session terminated", "session_id", res.SessionID)

	return SignOutResult{Redirect: a.redirect(location)}, nil
}

func (a *Actions) refresh(ctx context.Context, organizationID string) (AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := AuthFromContext(ctx)
	if err != nil {
		if errors.Is(err, ErrNoAuthContext) {
			return AuthResult{}, nil
		}
		return AuthResult{}, err
	}

	if !res.Authenticated() || res.AccessToken == "" || res.SessionID == "" {
		return AuthResult{}, nil
	}

	sess, err := a.store.Get(ctx, res.SessionID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return AuthResult{}, nil
		}
		return AuthResult{}, errors.Wrap(err, errors.CategoryInternal, "refresh could not load session record")
	}

	if sess.RefreshToken == "" {
		return AuthResult{}, nil
	}

	refreshed, err := a.refresher.Refresh(ctx, RefreshRequest{
		AccessToken:    res.AccessToken,
		RefreshToken:   sess.RefreshToken,
		User:           res.User,
		Impersonator:   res.Impersonator,
		OrganizationID: organizationID,
	})
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return AuthResult{}, richErr
		}
		return AuthResult{}, errors.Wrap(err, ErrRefreshFailed.Category, ErrRefreshFailed.Message).
			WithTextCode(textCodeRefreshFailed)
	}

	return refreshed, nil
}

// redirect tags a location as internal or external relative to the app host.
func (a *Actions) redirect(location string) *Redirect {
	return &Redirect{
		Location: location,
		External: isExternalLocation(location, a.appHost),
	}
}

func isExternalLocation(location, appHost string) bool {
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Host != appHost
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// noopSessionEnder lands sign-outs on the requested return path without an
// upstream logout round trip.
type noopSessionEnder struct{}

func (noopSessionEnder) EndSession(_ context.Context, _, returnTo string) (string, error) {
	return returnTo, nil
}
