package accounts_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/provider/local"
)

const sqliteCreateIdentities = `CREATE TABLE identities (
	id UUID PRIMARY KEY,
	email VARCHAR NOT NULL UNIQUE,
	credential_hash VARCHAR NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

type accountStack struct {
	repo       accounts.RepositoryManager
	provider   *local.Provider
	register   *accounts.RegisterAccountHandler
	deleter    *accounts.DeleteAccountHandler
	verifier   *accounts.LoginVerifier
	reconciler *accounts.Reconciler
}

func setupStack(t *testing.T) (*accountStack, func()) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	for _, ddl := range []string{sqliteCreateIdentities, sqliteCreateProfiles, sqliteCreateAuditLog} {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}

	repo := accounts.NewRepositoryManager(db)
	provider := local.New(db)

	return &accountStack{
		repo:       repo,
		provider:   provider,
		register:   accounts.NewRegisterAccountHandler(repo, provider),
		deleter:    accounts.NewDeleteAccountHandler(repo, provider),
		verifier:   accounts.NewLoginVerifier(provider, repo, testConfig{}),
		reconciler: accounts.NewReconciler(provider, repo),
	}, func() { db.Close() }
}

func (s *accountStack) signup(t *testing.T, email, credential string) uuid.UUID {
	t.Helper()

	var result accounts.RegisterAccountResult
	err := s.register.Execute(context.Background(), accounts.RegisterAccountMessage{
		Email:      email,
		Credential: credential,
		OnResponse: func(r accounts.RegisterAccountResult) { result = r },
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, result.IdentityID)

	return result.IdentityID
}

func TestAccountLifecycle(t *testing.T) {
	stack, cleanup := setupStack(t)
	defer cleanup()

	ctx := context.Background()
	email := "lifecycle@example.com"
	credential := "a-long-credential"

	id := stack.signup(t, email, credential)

	// Both halves exist and login works.
	result, err := stack.verifier.Login(ctx, email, credential)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, id, result.Profile.ID)

	// A session minted at login resolves back to the same account.
	session, err := stack.verifier.SessionFromToken(result.Token)
	require.NoError(t, err)
	sessionID, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, id, sessionID)

	// Cascade delete removes the profile, audits it, and clears the
	// identity.
	err = stack.deleter.Execute(ctx, accounts.DeleteAccountMessage{ProfileID: id})
	require.NoError(t, err)

	_, err = stack.verifier.Login(ctx, email, credential)
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	entries, err := stack.repo.Audit().FindBySubject(ctx, id)
	require.NoError(t, err)
	types := make([]accounts.AuditEventType, 0, len(entries))
	for _, entry := range entries {
		types = append(types, entry.EventType)
	}
	assert.Equal(t, []accounts.AuditEventType{
		accounts.AuditProfileCreated,
		accounts.AuditProfileDeleted,
	}, types)

	// Re-signup starts a fresh lifecycle under a new id; the old audit
	// trail stays put.
	fresh := stack.signup(t, email, credential)
	assert.NotEqual(t, id, fresh)

	result, err = stack.verifier.Login(ctx, email, credential)
	require.NoError(t, err)
	assert.Equal(t, fresh, result.Profile.ID)

	entries, err = stack.repo.Audit().FindBySubject(ctx, id)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestOrphanSelfHealsAtLogin(t *testing.T) {
	stack, cleanup := setupStack(t)
	defer cleanup()

	ctx := context.Background()

	// An identity created outside the registration flow has no profile.
	identity, err := stack.provider.CreateIdentity(ctx, "orphan@example.com", "a-long-credential")
	require.NoError(t, err)

	orphans, err := stack.reconciler.Orphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{identity.ID}, orphans)

	// Login against the orphan fails generically and removes the
	// dangling identity.
	_, err = stack.verifier.Login(ctx, "orphan@example.com", "a-long-credential")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	orphans, err = stack.reconciler.Orphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	// The email is free to sign up again.
	fresh := stack.signup(t, "orphan@example.com", "a-long-credential")
	assert.NotEqual(t, identity.ID, fresh)
}

func TestReconcilerConverges(t *testing.T) {
	stack, cleanup := setupStack(t)
	defer cleanup()

	ctx := context.Background()

	stack.signup(t, "healthy@example.com", "a-long-credential")

	orphanA, err := stack.provider.CreateIdentity(ctx, "stray-a@example.com", "a-long-credential")
	require.NoError(t, err)
	orphanB, err := stack.provider.CreateIdentity(ctx, "stray-b@example.com", "a-long-credential")
	require.NoError(t, err)

	report, err := stack.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{orphanA.ID, orphanB.ID}, report.Deleted)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)

	// The healthy account survives the pass.
	result, err := stack.verifier.Login(ctx, "healthy@example.com", "a-long-credential")
	require.NoError(t, err)
	assert.True(t, result.Profile.Active)

	// A second pass finds nothing to do but still leaves a run record.
	report, err = stack.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Orphans)
	assert.Empty(t, report.Deleted)

	runs, err := stack.repo.Audit().FindBySubject(ctx, uuid.Nil)
	require.NoError(t, err)

	var cleanups int
	for _, entry := range runs {
		if entry.EventType == accounts.AuditCleanupRun {
			cleanups++
		}
	}
	assert.Equal(t, 2, cleanups)
}

func TestRegistrationDriftIsRepairedByReconciler(t *testing.T) {
	stack, cleanup := setupStack(t)
	defer cleanup()

	ctx := context.Background()

	// Occupy the profile email so provisioning fails after the identity
	// is created, leaving a drifted account behind.
	blocker := uuid.New()
	seedProfile(t, stack.repo, blocker, "drift@example.com")

	var drift *accounts.DriftWarning
	var result accounts.RegisterAccountResult
	err := stack.register.Execute(ctx, accounts.RegisterAccountMessage{
		Email:      "drift@example.com",
		Credential: "a-long-credential",
		OnDrift:    func(w accounts.DriftWarning) { drift = &w },
		OnResponse: func(r accounts.RegisterAccountResult) { result = r },
	})
	require.NoError(t, err, "provisioning failure must not surface to the caller")
	require.NotNil(t, drift)
	assert.Equal(t, accounts.DriftProfileCreate, drift.Side)

	orphans, err := stack.reconciler.Orphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{result.IdentityID}, orphans)

	report, err := stack.reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{result.IdentityID}, report.Deleted)

	orphans, err = stack.reconciler.Orphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
