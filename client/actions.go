package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	authsync "github.com/goliatone/go-authsync"
)

// HTTPActions talks to the action routes registered by
// authsync.RegisterActionRoutes. Each call posts a {"data": ...} envelope
// and decodes the sanitized response. The underlying client must carry the
// session cookie (a cookie jar, or a transport adding it).
type HTTPActions struct {
	baseURL string
	client  *http.Client
	routes  authsync.ActionRoutes
}

var _ Actions = (*HTTPActions)(nil)

type HTTPActionsOption func(*HTTPActions)

func WithHTTPClient(c *http.Client) HTTPActionsOption {
	return func(h *HTTPActions) {
		if c != nil {
			h.client = c
		}
	}
}

func WithRoutes(routes authsync.ActionRoutes) HTTPActionsOption {
	return func(h *HTTPActions) {
		h.routes = routes
	}
}

func NewHTTPActions(baseURL string, opts ...HTTPActionsOption) *HTTPActions {
	h := &HTTPActions{
		baseURL: baseURL,
		routes: authsync.ActionRoutes{
			CheckSession:       "/auth/session/check",
			RefreshAuth:        "/auth/session/refresh",
			SwitchOrganization: "/auth/organization/switch",
			RefreshToken:       "/auth/token/refresh",
			SignOut:            "/auth/signout",
		},
		client: &http.Client{
			// Sign-out answers with a redirect the provider interprets;
			// following it here would lose the Location.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

func (h *HTTPActions) CheckSession(ctx context.Context) (bool, error) {
	var out struct {
		Authenticated bool `json:"authenticated"`
	}
	if _, err := h.post(ctx, h.routes.CheckSession, authsync.CheckSessionMessage{}, &out); err != nil {
		return false, err
	}
	return out.Authenticated, nil
}

func (h *HTTPActions) RefreshAuth(ctx context.Context, msg authsync.RefreshAuthMessage) (authsync.ClientAuth, error) {
	var out authsync.ClientAuth
	if _, err := h.post(ctx, h.routes.RefreshAuth, msg, &out); err != nil {
		return authsync.ClientAuth{}, err
	}
	return out, nil
}

func (h *HTTPActions) SwitchToOrganization(ctx context.Context, msg authsync.SwitchOrganizationMessage) (authsync.ClientAuth, error) {
	var out authsync.ClientAuth
	if _, err := h.post(ctx, h.routes.SwitchOrganization, msg, &out); err != nil {
		return authsync.ClientAuth{}, err
	}
	return out, nil
}

func (h *HTTPActions) SignOut(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error) {
	var out authsync.SignOutResult
	resp, err := h.post(ctx, h.routes.SignOut, msg, &out)
	if err != nil {
		return authsync.SignOutResult{}, err
	}

	// The Location header is authoritative when the body carried nothing.
	if out.Redirect == nil {
		if loc := resp.Header.Get("Location"); loc != "" {
			out.Redirect = &authsync.Redirect{Location: loc}
		}
	}

	return out, nil
}

func (h *HTTPActions) post(ctx context.Context, path string, data any, out any) (*http.Response, error) {
	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var remote struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &remote) == nil && remote.Error != "" {
			return resp, fmt.Errorf("action %s failed: %s", path, remote.Error)
		}
		return resp, fmt.Errorf("action %s failed with status %d", path, resp.StatusCode)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

// InProcessActions adapts the server-side Actions service for same-process
// use: server-rendered trees and tests skip the HTTP round trip.
type InProcessActions struct {
	Service *authsync.Actions
}

var _ Actions = (*InProcessActions)(nil)

func (a *InProcessActions) CheckSession(ctx context.Context) (bool, error) {
	return a.Service.CheckSession(ctx)
}

func (a *InProcessActions) RefreshAuth(ctx context.Context, msg authsync.RefreshAuthMessage) (authsync.ClientAuth, error) {
	return a.Service.RefreshAuth(ctx, msg)
}

func (a *InProcessActions) SwitchToOrganization(ctx context.Context, msg authsync.SwitchOrganizationMessage) (authsync.ClientAuth, error) {
	return a.Service.SwitchToOrganization(ctx, msg)
}

func (a *InProcessActions) SignOut(ctx context.Context, msg authsync.SignOutMessage) (authsync.SignOutResult, error) {
	return a.Service.SignOut(ctx, msg)
}
