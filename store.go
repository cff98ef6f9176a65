package authsync

import (
	"context"
	"database/sql"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionRecord is the stored half of a session: the refresh token never
// leaves this table, and its absence degrades every refresh-style action to
// the unauthenticated projection.
type SessionRecord struct {
	bun.BaseModel `bun:"table:auth_sessions,alias:aus"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	SessionID      string    `bun:"session_id,notnull,unique" json:"session_id"`
	UserID         string    `bun:"user_id,notnull" json:"user_id"`
	AccessToken    string    `bun:"access_token" json:"-"`
	RefreshToken   string    `bun:"refresh_token" json:"-"`
	OrganizationID string    `bun:"organization_id" json:"organization_id,omitempty"`

	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt *time.Time `bun:"updated_at" json:"updated_at,omitempty"`
}

// SessionStore persists session records. The Tx variants run on the given
// bun.IDB; inside a RunInTx closure they are the only way to keep the
// statements on the transaction.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)
	GetTx(ctx context.Context, tx bun.IDB, sessionID string) (*SessionRecord, error)
	Put(ctx context.Context, record *SessionRecord) (*SessionRecord, error)
	PutTx(ctx context.Context, tx bun.IDB, record *SessionRecord) (*SessionRecord, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteTx(ctx context.Context, tx bun.IDB, sessionID string) error
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

type sessions struct {
	repository.Repository[*SessionRecord]
	db *bun.DB
}

var _ SessionStore = (*sessions)(nil)

// NewSessionStore returns a bun-backed SessionStore.
func NewSessionStore(db *bun.DB) SessionStore {
	repo := repository.NewRepository[*SessionRecord](db, repository.ModelHandlers[*SessionRecord]{
		NewRecord: func() *SessionRecord { return &SessionRecord{} },
		GetID: func(r *SessionRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *SessionRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "session_id"
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (s *sessions) Get(ctx context.Context, sessionID string) (*SessionRecord, error) {
	return s.GetTx(ctx, s.db, sessionID)
}

func (s *sessions) GetTx(ctx context.Context, tx bun.IDB, sessionID string) (*SessionRecord, error) {
	return s.Repository.GetByIdentifierTx(ctx, tx, sessionID)
}

func (s *sessions) Put(ctx context.Context, record *SessionRecord) (*SessionRecord, error) {
	return s.PutTx(ctx, s.db, record)
}

func (s *sessions) PutTx(ctx context.Context, tx bun.IDB, record *SessionRecord) (*SessionRecord, error) {
	record.EnsureID()

	existing, err := s.Repository.GetByIdentifierTx(ctx, tx, record.SessionID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return s.Repository.CreateTx(ctx, tx, record)
		}
		return nil, err
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	now := time.Now()
	record.UpdatedAt = &now

	return s.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
}

func (s *sessions) Delete(ctx context.Context, sessionID string) error {
	return s.DeleteTx(ctx, s.db, sessionID)
}

func (s *sessions) DeleteTx(ctx context.Context, tx bun.IDB, sessionID string) error {
	_, err := tx.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	return err
}

func (s *sessions) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.db.RunInTx(ctx, opts, f)
	}
}

// EnsureID derives a deterministic record id from the session's natural key
// so repeated writes of the same session converge on one row.
func (r *SessionRecord) EnsureID() {
	if r.ID != uuid.Nil {
		return
	}
	if id, err := hashid.NewUUID(r.UserID + ":" + r.SessionID); err == nil {
		r.ID = id
		return
	}
	r.ID = uuid.New()
}
