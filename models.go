package authsync

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the identity attached to a session. It carries no secrets and is
// shared verbatim between the full result and the sanitized projection.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	FirstName         string     `json:"first_name,omitempty"`
	LastName          string     `json:"last_name,omitempty"`
	EmailVerified     bool       `json:"email_verified"`
	ProfilePictureURL string     `json:"profile_picture_url,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// Impersonator marks a session where an administrative user acts on behalf
// of another identity.
type Impersonator struct {
	Email  string `json:"email"`
	Reason string `json:"reason,omitempty"`
}

// SessionClaims are the structured claims carried by an access token.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID      string        `json:"sid,omitempty"`
	OrganizationID string        `json:"org_id,omitempty"`
	Role           string        `json:"role,omitempty"`
	Roles          []string      `json:"roles,omitempty"`
	Permissions    []string      `json:"permissions,omitempty"`
	Entitlements   []string      `json:"entitlements,omitempty"`
	FeatureFlags   []string      `json:"feature_flags,omitempty"`
	Impersonator   *Impersonator `json:"act,omitempty"`
	Email          string        `json:"email,omitempty"`
	FirstName      string        `json:"first_name,omitempty"`
	LastName       string        `json:"last_name,omitempty"`
}

// UserID returns the subject the claims were issued for.
func (c *SessionClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time, zero when unset.
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// AuthResult is the full, server-only authentication result for one request.
// User == nil means the request is unauthenticated; every other field is
// meaningful only when User is set.
type AuthResult struct {
	User           *User
	AccessToken    string
	SessionID      string
	OrganizationID string
	Role           string
	Roles          []string
	Permissions    []string
	Entitlements   []string
	Claims         *SessionClaims
	Impersonator   *Impersonator
}

// Authenticated reports whether the result carries a user.
func (r AuthResult) Authenticated() bool {
	return r.User != nil
}

// MarshalJSON refuses serialization: AuthResult carries the access token and
// must never cross the server boundary. Serialize the ClientAuth projection
// instead.
func (r AuthResult) MarshalJSON() ([]byte, error) {
	return nil, ErrServerOnlyResult
}

func (r AuthResult) String() string {
	user := "<nil>"
	if r.User != nil {
		user = r.User.ID
	}
	return fmt.Sprintf(
		"user=%s session=%s org=%s role=%s token_set=%t",
		user,
		r.SessionID,
		r.OrganizationID,
		r.Role,
		r.AccessToken != "",
	)
}
