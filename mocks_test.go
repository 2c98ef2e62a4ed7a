package accounts_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
)

const (
	sqliteCreateProfiles = `CREATE TABLE profiles (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL,
    phone TEXT,
    department TEXT,
    designation TEXT,
    specialization TEXT,
    user_role TEXT NOT NULL DEFAULT 'teacher',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
	sqliteCreateAuditLog = `CREATE TABLE audit_log (
    id TEXT NOT NULL PRIMARY KEY,
    event_type TEXT NOT NULL,
    subject_id TEXT,
    payload TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
)

func setupRepoManager(t *testing.T) (accounts.RepositoryManager, *bun.DB, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateProfiles)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateAuditLog)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return accounts.NewRepositoryManager(bunDB), bunDB, cleanup
}

func seedProfile(t *testing.T, repo accounts.RepositoryManager, id uuid.UUID, email string) *accounts.Profile {
	t.Helper()

	profile, err := repo.Profiles().Create(context.Background(), &accounts.Profile{
		ID:    id,
		Email: email,
	})
	require.NoError(t, err)

	return profile
}

// MockIdentityProvider implements accounts.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateIdentity(ctx context.Context, email, credential string) (*accounts.Identity, error) {
	args := m.Called(ctx, email, credential)
	var identity *accounts.Identity
	if v := args.Get(0); v != nil {
		identity = v.(*accounts.Identity)
	}
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) VerifyCredential(ctx context.Context, email, credential string) (*accounts.Identity, error) {
	args := m.Called(ctx, email, credential)
	var identity *accounts.Identity
	if v := args.Get(0); v != nil {
		identity = v.(*accounts.Identity)
	}
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIdentityProvider) ListIdentityIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	var ids []uuid.UUID
	if v := args.Get(0); v != nil {
		ids = v.([]uuid.UUID)
	}
	return ids, args.Error(1)
}

// testConfig implements accounts.Config
type testConfig struct {
	signingKey string
	expiration int
}

func (c testConfig) GetSigningKey() string {
	if c.signingKey != "" {
		return c.signingKey
	}
	return "test-signing-key"
}

func (c testConfig) GetSigningMethod() string { return "HS256" }
func (c testConfig) GetContextKey() string    { return "user" }

func (c testConfig) GetTokenExpiration() int {
	if c.expiration != 0 {
		return c.expiration
	}
	return 1
}

func (c testConfig) GetTokenLookup() string { return "header:Authorization" }
func (c testConfig) GetAuthScheme() string  { return "Bearer" }
func (c testConfig) GetIssuer() string      { return "test-issuer" }
func (c testConfig) GetAudience() []string  { return []string{"test-audience"} }

// routerContext aliases router.Context so it can be embedded without the
// field name colliding with the Context() method.
type routerContext = router.Context

// MockContext mocks router.Context for middleware tests
type MockContext struct {
	routerContext
	mock.Mock
	NextCalled bool

	stdCtx context.Context
	locals map[any]any

	JSONStatus int
	JSONBody   any
}

func NewMockContext() *MockContext {
	return &MockContext{
		stdCtx: context.Background(),
		locals: map[any]any{},
	}
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	return m.stdCtx
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.stdCtx = ctx
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.locals[key] = value[0]
		return nil
	}
	return m.locals[key]
}

func (m *MockContext) JSON(code int, val any) error {
	m.JSONStatus = code
	m.JSONBody = val
	return nil
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	def := ""
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	args := m.Called(key, def)
	return args.String(0)
}
