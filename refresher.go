package authsync

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenMintRefresher is the default TokenRefresher. It carries the prior
// token's claims into a freshly minted access token, rotates the refresh
// token, and persists both on the session record in one transaction.
type TokenMintRefresher struct {
	tokens *TokenService
	store  SessionStore
	logger Logger
	now    func() time.Time
}

var _ TokenRefresher = (*TokenMintRefresher)(nil)

func NewTokenMintRefresher(tokens *TokenService, store SessionStore) *TokenMintRefresher {
	return &TokenMintRefresher{
		tokens: tokens,
		store:  store,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (m *TokenMintRefresher) WithLogger(logger Logger) *TokenMintRefresher {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *TokenMintRefresher) Refresh(ctx context.Context, req RefreshRequest) (AuthResult, error) {
	claims, err := m.tokens.ParseExpired(req.AccessToken)
	if err != nil {
		return AuthResult{}, errors.Wrap(err, errors.CategoryOperation, "refresh could not read prior token").
			WithTextCode(textCodeRefreshFailed)
	}

	if claims.SessionID == "" {
		// Refreshing a token that never belonged to a session terminates it.
		return AuthResult{}, nil
	}

	if req.OrganizationID != "" {
		claims.OrganizationID = req.OrganizationID
	}

	accessToken, err := m.tokens.Mint(claims)
	if err != nil {
		return AuthResult{}, errors.Wrap(err, errors.CategoryOperation, "refresh could not mint access token").
			WithTextCode(textCodeRefreshFailed)
	}

	refreshToken := uuid.NewString()

	// The compare and the rotation must share the transaction: a second
	// refresh presenting the same token has to see the rotated value or
	// nothing.
	err = m.store.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		record, err := m.store.GetTx(ctx, tx, claims.SessionID)
		if err != nil {
			return err
		}

		if record.RefreshToken != req.RefreshToken {
			return errors.New("refresh token mismatch", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(textCodeRefreshFailed)
		}

		record.AccessToken = accessToken
		record.RefreshToken = refreshToken
		record.OrganizationID = claims.OrganizationID

		_, err = m.store.PutTx(ctx, tx, record)
		return err
	})
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return AuthResult{}, richErr
		}
		return AuthResult{}, errors.Wrap(err, errors.CategoryOperation, "refresh could not update session record").
			WithTextCode(textCodeRefreshFailed)
	}

	return AuthResult{
		User:           req.User,
		AccessToken:    accessToken,
		SessionID:      claims.SessionID,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
		Roles:          claims.Roles,
		Permissions:    claims.Permissions,
		Entitlements:   claims.Entitlements,
		Claims:         claims,
		Impersonator:   req.Impersonator,
	}, nil
}
