package client_test

import (
	"context"
	"errors"
	"testing"

	authsync "github.com/goliatone/go-authsync"
	"github.com/goliatone/go-authsync/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeActions drives the provider without a server. Each func field defaults
// to a zero-value answer; the counters prove which boundary calls happened.
type fakeActions struct {
	checkFn   func(ctx context.Context) (bool, error)
	refreshFn func(ctx context.Context, msg authsync.RefreshAuthMessage) (authsync.ClientAuth, error)
	switchFn  func(ctx context.Context, msg authsync.SwitchOrganizationMessage) (authsync.ClientAuth, error)
	signOutFn func(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error)

	checks    int
	refreshes int
	switches  int
	signOuts  int
}

func (f *fakeActions) CheckSession(ctx context.Context) (bool, error) {
	f.checks++
	if f.checkFn != nil {
		return f.checkFn(ctx)
	}
	return true, nil
}

func (f *fakeActions) RefreshAuth(ctx context.Context, msg authsync.RefreshAuthMessage) (authsync.ClientAuth, error) {
	f.refreshes++
	if f.refreshFn != nil {
		return f.refreshFn(ctx, msg)
	}
	return authsync.ClientAuth{}, nil
}

func (f *fakeActions) SwitchToOrganization(ctx context.Context, msg authsync.SwitchOrganizationMessage) (authsync.ClientAuth, error) {
	f.switches++
	if f.switchFn != nil {
		return f.switchFn(ctx, msg)
	}
	return authsync.ClientAuth{}, nil
}

func (f *fakeActions) SignOut(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error) {
	f.signOuts++
	if f.signOutFn != nil {
		return f.signOutFn(ctx, msg)
	}
	return authsync.SignOutResult{}, nil
}

type fakeNavigator struct {
	navigated []string
	assigned  []string
	reloads   int
}

func (n *fakeNavigator) Navigate(path string) { n.navigated = append(n.navigated, path) }
func (n *fakeNavigator) Assign(url string)    { n.assigned = append(n.assigned, url) }
func (n *fakeNavigator) Reload()              { n.reloads++ }

type fakeEventSource struct {
	handler    func()
	subscribes int
	cancels    int
}

func (s *fakeEventSource) Subscribe(handler func()) func() {
	s.subscribes++
	s.handler = handler
	return func() { s.cancels++ }
}

func hydratedPayload() authsync.ClientAuth {
	return authsync.ClientAuth{
		User:           &authsync.User{ID: "user_01", Email: "jo@example.com"},
		SessionID:      "session_01",
		OrganizationID: "org_01",
		Role:           "admin",
		Roles:          []string{"admin"},
		Permissions:    []string{"posts:write"},
		Entitlements:   []string{"audit-logs"},
		FeatureFlags:   []string{"beta"},
		Impersonator:   &authsync.Impersonator{Email: "support@example.com"},
	}
}

func TestProviderMountUnauthenticated(t *testing.T) {
	actions := &fakeActions{}
	p := client.NewProvider(actions, client.WithSessionExpiryCheck(false))

	p.Mount(authsync.ClientAuth{})

	state := p.UseAuth()
	assert.Nil(t, state.User)
	assert.Empty(t, state.SessionID)
	assert.False(t, state.Loading)

	// Mounting hydrates from the payload alone.
	assert.Equal(t, 0, actions.checks)
	assert.Equal(t, 0, actions.refreshes)
}

func TestProviderMountExposesPayload(t *testing.T) {
	p := client.NewProvider(&fakeActions{}, client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	state := p.UseAuth()
	require.NotNil(t, state.User)
	assert.Equal(t, "user_01", state.User.ID)
	assert.Equal(t, "session_01", state.SessionID)
	assert.Equal(t, "org_01", state.OrganizationID)
	assert.Equal(t, "admin", state.Role)
	assert.Equal(t, []string{"posts:write"}, state.Permissions)
	assert.Equal(t, []string{"audit-logs"}, state.Entitlements)
	assert.Equal(t, []string{"beta"}, state.FeatureFlags)
	require.NotNil(t, state.Impersonator)
	assert.Equal(t, "support@example.com", state.Impersonator.Email)
	assert.False(t, state.Loading)
}

func TestProviderUseAuthPanicsUnmounted(t *testing.T) {
	p := client.NewProvider(&fakeActions{})
	assert.Panics(t, func() { p.UseAuth() })

	p.Mount(authsync.ClientAuth{})
	p.Unmount()
	assert.Panics(t, func() { p.UseAuth() })
}

func TestProviderRequiresActions(t *testing.T) {
	assert.Panics(t, func() { client.NewProvider(nil) })
}

func TestProviderRefreshAuthReplacesState(t *testing.T) {
	next := hydratedPayload()
	next.OrganizationID = ""
	next.Role = "member"
	next.Roles = []string{"member"}

	var loadingDuringCall bool
	actions := &fakeActions{}
	p := client.NewProvider(actions, client.WithSessionExpiryCheck(false))

	actions.refreshFn = func(ctx context.Context, msg authsync.RefreshAuthMessage) (authsync.ClientAuth, error) {
		loadingDuringCall = p.UseAuth().Loading
		assert.True(t, msg.EnsureSignedIn)
		return next, nil
	}

	p.Mount(hydratedPayload())

	errDesc := p.RefreshAuth(context.Background(), client.RefreshOptions{EnsureSignedIn: true})
	require.Nil(t, errDesc)
	assert.True(t, loadingDuringCall)

	state := p.UseAuth()
	assert.False(t, state.Loading)
	assert.Equal(t, "member", state.Role)

	// Replacement is atomic: the field absent on the result cleared.
	assert.Empty(t, state.OrganizationID)
}

func TestProviderRefreshAuthFailureKeepsState(t *testing.T) {
	actions := &fakeActions{
		refreshFn: func(ctx context.Context, msg authsync.RefreshAuthMessage) (authsync.ClientAuth, error) {
			return authsync.ClientAuth{}, errors.New("boom")
		},
	}
	p := client.NewProvider(actions, client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	errDesc := p.RefreshAuth(context.Background(), client.RefreshOptions{})
	require.NotNil(t, errDesc)
	assert.Equal(t, "boom", errDesc.Error)

	state := p.UseAuth()
	require.NotNil(t, state.User)
	assert.Equal(t, "session_01", state.SessionID)
	assert.False(t, state.Loading)
}

func TestProviderRefreshAuthPanicsUnmounted(t *testing.T) {
	p := client.NewProvider(&fakeActions{})
	assert.Panics(t, func() {
		p.RefreshAuth(context.Background(), client.RefreshOptions{})
	})
}

func TestProviderSwitchToOrganization(t *testing.T) {
	next := hydratedPayload()
	next.OrganizationID = "org_02"

	actions := &fakeActions{
		switchFn: func(ctx context.Context, msg authsync.SwitchOrganizationMessage) (authsync.ClientAuth, error) {
			assert.Equal(t, "org_02", msg.OrganizationID)
			return next, nil
		},
	}
	p := client.NewProvider(actions, client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	errDesc := p.SwitchToOrganization(context.Background(), "org_02")
	require.Nil(t, errDesc)
	assert.Equal(t, "org_02", p.UseAuth().OrganizationID)
}

func TestProviderSwitchClearsEverythingOnLogout(t *testing.T) {
	actions := &fakeActions{
		switchFn: func(ctx context.Context, msg authsync.SwitchOrganizationMessage) (authsync.ClientAuth, error) {
			return authsync.ClientAuth{}, nil
		},
	}
	p := client.NewProvider(actions, client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	errDesc := p.SwitchToOrganization(context.Background(), "org_02")
	require.Nil(t, errDesc)

	state := p.UseAuth()
	assert.Nil(t, state.User)
	assert.Empty(t, state.SessionID)
	assert.Empty(t, state.OrganizationID)
	assert.Empty(t, state.Roles)
	assert.Nil(t, state.Impersonator)
	assert.False(t, state.Loading)
}

func TestProviderStaleResolutionIsDropped(t *testing.T) {
	slowResult := hydratedPayload()
	slowResult.OrganizationID = "org_stale"

	fastResult := hydratedPayload()
	fastResult.OrganizationID = "org_fresh"

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})

	call := 0
	actions := &fakeActions{}
	actions.refreshFn = func(ctx context.Context, msg authsync.RefreshAuthMessage) (authsync.ClientAuth, error) {
		call++
		if call == 1 {
			close(started)
			<-release
			return slowResult, nil
		}
		return fastResult, nil
	}

	p := client.NewProvider(actions, client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	go func() {
		defer close(done)
		p.RefreshAuth(context.Background(), client.RefreshOptions{})
	}()
	<-started

	// A later refresh resolves first and owns the state.
	require.Nil(t, p.RefreshAuth(context.Background(), client.RefreshOptions{}))
	assert.Equal(t, "org_fresh", p.UseAuth().OrganizationID)

	close(release)
	<-done

	state := p.UseAuth()
	assert.Equal(t, "org_fresh", state.OrganizationID)
	assert.False(t, state.Loading)
}

func TestProviderSignOutNavigatesInternally(t *testing.T) {
	nav := &fakeNavigator{}
	actions := &fakeActions{
		signOutFn: func(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error) {
			assert.Equal(t, "/goodbye", msg.ReturnTo)
			return authsync.SignOutResult{
				Redirect: &authsync.Redirect{Location: "/goodbye"},
			}, nil
		},
	}

	p := client.NewProvider(actions,
		client.WithNavigator(nav),
		client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	require.NoError(t, p.SignOut(context.Background(), "/goodbye"))

	assert.Equal(t, []string{"/goodbye"}, nav.navigated)
	assert.Empty(t, nav.assigned)

	state := p.UseAuth()
	assert.Nil(t, state.User)
	assert.Empty(t, state.SessionID)
}

func TestProviderSignOutAssignsExternally(t *testing.T) {
	nav := &fakeNavigator{}
	actions := &fakeActions{
		signOutFn: func(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error) {
			return authsync.SignOutResult{
				Redirect: &authsync.Redirect{
					Location: "https://auth.example.com/logout",
					External: true,
				},
			}, nil
		},
	}

	p := client.NewProvider(actions,
		client.WithNavigator(nav),
		client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	require.NoError(t, p.SignOut(context.Background(), ""))

	assert.Equal(t, []string{"https://auth.example.com/logout"}, nav.assigned)
	assert.Empty(t, nav.navigated)
}

func TestProviderSignOutClassifiesByAppHost(t *testing.T) {
	nav := &fakeNavigator{}
	actions := &fakeActions{
		signOutFn: func(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error) {
			// Untagged absolute URL on a foreign host.
			return authsync.SignOutResult{
				Redirect: &authsync.Redirect{Location: "https://elsewhere.example.com/bye"},
			}, nil
		},
	}

	p := client.NewProvider(actions,
		client.WithNavigator(nav),
		client.WithAppHost("app.example.com"),
		client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	require.NoError(t, p.SignOut(context.Background(), ""))
	assert.Equal(t, []string{"https://elsewhere.example.com/bye"}, nav.assigned)
}

func TestProviderSignOutFailurePropagates(t *testing.T) {
	actions := &fakeActions{
		signOutFn: func(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error) {
			return authsync.SignOutResult{}, errors.New("upstream down")
		},
	}

	p := client.NewProvider(actions, client.WithSessionExpiryCheck(false))
	p.Mount(hydratedPayload())

	err := p.SignOut(context.Background(), "")
	require.EqualError(t, err, "upstream down")
}
