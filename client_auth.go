package authsync

// ClientAuth is the sanitized projection of an AuthResult: the only
// authentication shape that may be serialized to the browser. It never
// carries the access token, and raw claims are reduced to the hoisted
// feature flags. The zero value is the unauthenticated state.
type ClientAuth struct {
	User           *User         `json:"user"`
	SessionID      string        `json:"sessionId,omitempty"`
	OrganizationID string        `json:"organizationId,omitempty"`
	Role           string        `json:"role,omitempty"`
	Roles          []string      `json:"roles,omitempty"`
	Permissions    []string      `json:"permissions,omitempty"`
	Entitlements   []string      `json:"entitlements,omitempty"`
	FeatureFlags   []string      `json:"featureFlags,omitempty"`
	Impersonator   *Impersonator `json:"impersonator,omitempty"`
}

// Authenticated reports whether the projection carries a user.
func (c ClientAuth) Authenticated() bool {
	return c.User != nil
}

// SanitizeAuth derives the client-safe projection from a full result.
//
// Unauthenticated results project to the zero ClientAuth with no other
// field populated. Authenticated results must carry a session id; a missing
// one is a resolver contract violation, not a sign-out signal.
func SanitizeAuth(res AuthResult) (ClientAuth, error) {
	if res.User == nil {
		return ClientAuth{}, nil
	}

	if res.SessionID == "" {
		return ClientAuth{}, ErrMissingSessionID.WithMetadata(map[string]any{
			"user_id": res.User.ID,
		})
	}

	var flags []string
	if res.Claims != nil && len(res.Claims.FeatureFlags) > 0 {
		flags = make([]string, len(res.Claims.FeatureFlags))
		copy(flags, res.Claims.FeatureFlags)
	}

	return ClientAuth{
		User:           res.User,
		SessionID:      res.SessionID,
		OrganizationID: res.OrganizationID,
		Role:           res.Role,
		Roles:          res.Roles,
		Permissions:    res.Permissions,
		Entitlements:   res.Entitlements,
		FeatureFlags:   flags,
		Impersonator:   res.Impersonator,
	}, nil
}
