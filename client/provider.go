// Package client holds the hydrated authentication mirror on the untrusted
// side of the boundary: state initialized once from the server's sanitized
// payload, mutated only through the server actions, and watched for
// mid-page session expiry.
package client

import (
	"context"
	"net/url"
	"sync"

	authsync "github.com/goliatone/go-authsync"
)

// Actions is the remote boundary the provider calls into. HTTPActions talks
// to the registered action routes; InProcessActions short-circuits for
// same-process rendering and tests.
type Actions interface {
	CheckSession(ctx context.Context) (bool, error)
	RefreshAuth(ctx context.Context, msg authsync.RefreshAuthMessage) (authsync.ClientAuth, error)
	SwitchToOrganization(ctx context.Context, msg authsync.SwitchOrganizationMessage) (authsync.ClientAuth, error)
	SignOut(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error)
}

// Navigator performs the navigation side of sign-out and expiry handling.
type Navigator interface {
	// Navigate changes routes in place.
	Navigate(path string)
	// Assign loads a full page, leaving the app.
	Assign(url string)
	// Reload reloads the current page.
	Reload()
}

// State is the mirrored authentication snapshot the UI reads. Loading is
// true only while a refresh or organization switch is in flight.
type State struct {
	User           *authsync.User
	SessionID      string
	OrganizationID string
	Role           string
	Roles          []string
	Permissions    []string
	Entitlements   []string
	FeatureFlags   []string
	Impersonator   *authsync.Impersonator
	Loading        bool
}

// ErrorDescriptor is how operation failures reach the UI: returned, never
// thrown, so a failed refresh cannot take the tree down.
type ErrorDescriptor struct {
	Error string `json:"error"`
}

// Provider owns the client auth state machine.
type Provider struct {
	mu      sync.Mutex
	state   State
	mounted bool

	// gen orders overlapping refresh/switch calls: a resolution from a
	// stale generation is dropped instead of overwriting newer state.
	gen uint64

	// checking is the expiry-check re-entrancy latch. Boolean, not a
	// queue: overlapping wake events are dropped.
	checking bool

	actions   Actions
	nav       Navigator
	logger    authsync.Logger
	appHost   string
	source    EventSource
	unsub     func()
	watch     bool
	onExpired func()
}

type ProviderOption func(*Provider)

func WithNavigator(nav Navigator) ProviderOption {
	return func(p *Provider) {
		if nav != nil {
			p.nav = nav
		}
	}
}

func WithLogger(logger authsync.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAppHost sets the host used to classify sign-out redirects; locations
// on any other host require a full page load.
func WithAppHost(host string) ProviderOption {
	return func(p *Provider) {
		p.appHost = host
	}
}

// WithSessionExpiryCheck enables or disables the expiry watcher. Disabled,
// the provider registers no listeners and wake events never reach
// CheckSession.
func WithSessionExpiryCheck(enabled bool) ProviderOption {
	return func(p *Provider) {
		p.watch = enabled
	}
}

// WithOnSessionExpired overrides the default full-reload reaction to an
// expired session.
func WithOnSessionExpired(fn func()) ProviderOption {
	return func(p *Provider) {
		p.onExpired = fn
	}
}

// WithEventSource attaches the visibility/focus event feed the watcher
// subscribes to on mount.
func WithEventSource(source EventSource) ProviderOption {
	return func(p *Provider) {
		p.source = source
	}
}

func NewProvider(actions Actions, opts ...ProviderOption) *Provider {
	if actions == nil {
		panic("AUTHSYNC: client provider: Actions is required.")
	}

	p := &Provider{
		actions: actions,
		logger:  noopLogger{},
		watch:   true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Mount initializes the mirror from the hydration payload. The server
// already computed this state: mounting never issues a network call. When
// the expiry watcher is enabled, Mount subscribes it to the event source.
// Remounting replaces the previous subscription, it never stacks one.
func (p *Provider) Mount(payload authsync.ClientAuth) {
	p.mu.Lock()
	p.state = stateFrom(payload)
	p.mounted = true
	p.mu.Unlock()

	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}

	if p.watch && p.source != nil {
		p.unsub = p.source.Subscribe(func() {
			p.Wake(context.Background())
		})
	}
}

// Unmount tears the provider down and deregisters the expiry watcher.
func (p *Provider) Unmount() {
	p.mu.Lock()
	p.mounted = false
	p.state = State{}
	p.mu.Unlock()

	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
}

// UseAuth returns the current mirror. Calling it outside a mounted provider
// is a programming error and panics immediately so misuse is caught during
// development, never papered over with defaults.
func (p *Provider) UseAuth() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.mounted {
		panic("authsync/client: UseAuth called outside a mounted provider")
	}

	return p.state
}

// RefreshOptions mirrors the optional refresh inputs.
type RefreshOptions struct {
	EnsureSignedIn bool
	OrganizationID string
}

// RefreshAuth re-derives the session server-side and replaces every
// mirrored field atomically: fields absent on the result are cleared, not
// left stale. Loading returns to false on every exit path. Failures come
// back as an ErrorDescriptor for the UI to render.
func (p *Provider) RefreshAuth(ctx context.Context, opts RefreshOptions) *ErrorDescriptor {
	gen := p.begin()

	result, err := p.actions.RefreshAuth(ctx, authsync.RefreshAuthMessage{
		EnsureSignedIn: opts.EnsureSignedIn,
		OrganizationID: opts.OrganizationID,
	})
	if err != nil {
		p.settle(gen, nil)
		p.logger.Error("refresh auth failed", "error", err)
		return &ErrorDescriptor{Error: err.Error()}
	}

	p.settle(gen, &result)
	return nil
}

// SwitchToOrganization refreshes the session scoped to the organization. A
// result with no user clears every mirrored field together: switching orgs
// can invalidate the whole session.
func (p *Provider) SwitchToOrganization(ctx context.Context, organizationID string) *ErrorDescriptor {
	gen := p.begin()

	result, err := p.actions.SwitchToOrganization(ctx, authsync.SwitchOrganizationMessage{
		OrganizationID: organizationID,
	})
	if err != nil {
		p.settle(gen, nil)
		p.logger.Error("switch organization failed", "error", err)
		return &ErrorDescriptor{Error: err.Error()}
	}

	p.settle(gen, &result)
	return nil
}

// SignOut terminates the session and consumes the redirect signal: external
// destinations get a full page load, internal routes are navigated to in
// place. Any non-redirect failure is returned unchanged.
func (p *Provider) SignOut(ctx context.Context, returnTo string) error {
	p.requireMounted()

	result, err := p.actions.SignOut(ctx, authsync.SignOutMessage{ReturnTo: returnTo})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.state = State{}
	p.mu.Unlock()

	if result.Redirect == nil || p.nav == nil {
		return nil
	}

	if p.isExternal(result.Redirect) {
		p.nav.Assign(result.Redirect.Location)
	} else {
		p.nav.Navigate(result.Redirect.Location)
	}

	return nil
}

func (p *Provider) isExternal(r *authsync.Redirect) bool {
	if r.External {
		return true
	}
	if p.appHost == "" {
		return false
	}
	return externalTo(r.Location, p.appHost)
}

// begin marks an operation in flight: Loading true, next generation.
func (p *Provider) begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.mounted {
		panic("authsync/client: auth operation invoked outside a mounted provider")
	}

	p.gen++
	p.state.Loading = true
	return p.gen
}

// settle applies an operation's outcome. Stale generations are dropped: a
// later call owns the state and the Loading flag. A nil result keeps the
// previous fields (failed operation), a non-nil result replaces all of them
// in one transition.
func (p *Provider) settle(gen uint64, result *authsync.ClientAuth) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		return
	}

	if result != nil {
		p.state = stateFrom(*result)
	}
	p.state.Loading = false
}

func (p *Provider) requireMounted() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.mounted {
		panic("authsync/client: auth operation invoked outside a mounted provider")
	}
}

func stateFrom(ca authsync.ClientAuth) State {
	return State{
		User:           ca.User,
		SessionID:      ca.SessionID,
		OrganizationID: ca.OrganizationID,
		Role:           ca.Role,
		Roles:          ca.Roles,
		Permissions:    ca.Permissions,
		Entitlements:   ca.Entitlements,
		FeatureFlags:   ca.FeatureFlags,
		Impersonator:   ca.Impersonator,
	}
}

func externalTo(location, appHost string) bool {
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Host != appHost
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
