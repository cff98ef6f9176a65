package authsync

import (
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService signs and validates access tokens carrying SessionClaims.
// HS256 with the configured signing key by default; JWKS-backed validation
// for externally issued tokens via WithJWKS.
type TokenService struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
	keyFunc         jwt.Keyfunc
}

func NewTokenService(cfg Config, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		signingKey:      []byte(cfg.SigningKey),
		tokenExpiration: cfg.TokenExpiration,
		issuer:          cfg.Issuer,
		audience:        jwt.ClaimStrings(cfg.Audience),
		logger:          logger,
	}
}

// WithJWKS switches validation to a remote JWK Set. Tokens minted locally
// are still signed with the configured key.
func (ts *TokenService) WithJWKS(jwksURL string) (*TokenService, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load JWK Set").
			WithMetadata(map[string]any{"url": jwksURL})
	}
	ts.keyFunc = jwks.Keyfunc
	return ts, nil
}

// SignClaims signs session claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign access token")
	}

	return signed, nil
}

// Mint issues a fresh access token for the given claims: new jti, issued-at
// and expiration; issuer and audience from configuration.
func (ts *TokenService) Mint(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	now := time.Now()
	claims.RegisteredClaims.ID = uuid.NewString()
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Minute))
	if ts.issuer != "" {
		claims.RegisteredClaims.Issuer = ts.issuer
	}
	if len(ts.audience) > 0 {
		aud := make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
		claims.RegisteredClaims.Audience = aud
	}

	return ts.SignClaims(claims)
}

// Validate parses and validates a token string, returning structured claims.
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	return ts.parse(tokenString, true)
}

// ParseExpired parses a token without enforcing expiration. The refresher
// uses it to carry prior claims into the next token.
func (ts *TokenService) ParseExpired(tokenString string) (*SessionClaims, error) {
	return ts.parse(tokenString, false)
}

func (ts *TokenService) parse(tokenString string, enforceExpiry bool) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}
	if !enforceExpiry {
		parserOptions = append(parserOptions, jwt.WithoutClaimsValidation())
	}

	keyFunc := ts.keyFunc
	if keyFunc == nil {
		keyFunc = func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return ts.signingKey, nil
		}
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, keyFunc, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(err, errors.CategoryAuth, "token is expired").
				WithCode(errors.CodeUnauthorized)
		}
		return nil, errors.Wrap(err, errors.CategoryAuth, "token is malformed").
			WithCode(errors.CodeUnauthorized)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, errors.New("unable to decode session claims", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized)
}
