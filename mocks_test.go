package authsync_test

import (
	"context"
	"database/sql"
	"encoding/json"

	authsync "github.com/goliatone/go-authsync"
	"github.com/goliatone/go-router"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// stubResolver implements authsync.SessionResolver with a canned result.
type stubResolver struct {
	result authsync.AuthResult
	err    error
	calls  int
}

func (s *stubResolver) Resolve(ctx context.Context, c router.Context) (authsync.AuthResult, error) {
	s.calls++
	return s.result, s.err
}

// stubRefresher implements authsync.TokenRefresher.
type stubRefresher struct {
	result  authsync.AuthResult
	err     error
	lastReq authsync.RefreshRequest
	calls   int
}

func (s *stubRefresher) Refresh(ctx context.Context, req authsync.RefreshRequest) (authsync.AuthResult, error) {
	s.calls++
	s.lastReq = req
	return s.result, s.err
}

// memoryStore is an in-memory SessionStore for action tests.
type memoryStore struct {
	records map[string]*authsync.SessionRecord
	getErr  error
	deleted []string
}

func newMemoryStore(records ...*authsync.SessionRecord) *memoryStore {
	m := &memoryStore{records: map[string]*authsync.SessionRecord{}}
	for _, r := range records {
		m.records[r.SessionID] = r
	}
	return m
}

func (m *memoryStore) Get(ctx context.Context, sessionID string) (*authsync.SessionRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[sessionID]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return rec, nil
}

func (m *memoryStore) GetTx(ctx context.Context, tx bun.IDB, sessionID string) (*authsync.SessionRecord, error) {
	return m.Get(ctx, sessionID)
}

func (m *memoryStore) Put(ctx context.Context, record *authsync.SessionRecord) (*authsync.SessionRecord, error) {
	m.records[record.SessionID] = record
	return record, nil
}

func (m *memoryStore) PutTx(ctx context.Context, tx bun.IDB, record *authsync.SessionRecord) (*authsync.SessionRecord, error) {
	return m.Put(ctx, record)
}

func (m *memoryStore) Delete(ctx context.Context, sessionID string) error {
	delete(m.records, sessionID)
	m.deleted = append(m.deleted, sessionID)
	return nil
}

func (m *memoryStore) DeleteTx(ctx context.Context, tx bun.IDB, sessionID string) error {
	return m.Delete(ctx, sessionID)
}

func (m *memoryStore) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// stubContext is a minimal router.Context for middleware and controller
// tests: it records locals, context swaps, and JSON responses.
// embeddedRouterContext renames the embedded field so it does not collide
// with the Context() method below.
type embeddedRouterContext = router.Context

type stubContext struct {
	embeddedRouterContext

	ctx        context.Context
	locals     map[any]any
	cookies    map[string]string
	headers    map[string]string
	body       []byte
	nextCalled bool
	jsonStatus int
	jsonBody   any
}

func newStubContext() *stubContext {
	return &stubContext{
		ctx:     context.Background(),
		locals:  map[any]any{},
		cookies: map[string]string{},
		headers: map[string]string{},
	}
}

func (s *stubContext) Next() error {
	s.nextCalled = true
	return nil
}

func (s *stubContext) Context() context.Context {
	return s.ctx
}

func (s *stubContext) SetContext(ctx context.Context) {
	s.ctx = ctx
}

func (s *stubContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		s.locals[key] = value[0]
		return nil
	}
	return s.locals[key]
}

func (s *stubContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := s.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (s *stubContext) SetHeader(key, val string) router.Context {
	s.headers[key] = val
	return s
}

func (s *stubContext) JSON(code int, val any) error {
	s.jsonStatus = code
	s.jsonBody = val
	return nil
}

func (s *stubContext) Bind(i any) error {
	if len(s.body) == 0 {
		return nil
	}
	return json.Unmarshal(s.body, i)
}
