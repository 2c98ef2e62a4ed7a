package accounts_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-accounts"
)

func TestProvisionProfileCreatesProfileAndAudit(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	identityID := uuid.New()

	handler := accounts.NewProvisionProfileHandler(repo)
	err := handler.Execute(ctx, accounts.ProvisionProfileMessage{
		IdentityID: identityID,
		Email:      "new@example.com",
		FullName:   "New Teacher",
		Role:       accounts.RoleTeacher,
	})
	require.NoError(t, err)

	profile, err := repo.Profiles().FindByID(ctx, identityID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", profile.Email)
	assert.Equal(t, "New Teacher", profile.FullName)
	assert.True(t, profile.Active)

	entries, err := repo.Audit().FindBySubject(ctx, identityID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, accounts.AuditProfileCreated, entries[0].EventType)
}

func TestProvisionProfileFailOpen(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	identityID := uuid.New()

	// Occupy the id so the insert collides.
	seedProfile(t, repo, identityID, "existing@example.com")

	var drift *accounts.DriftWarning

	handler := accounts.NewProvisionProfileHandler(repo)
	err := handler.Execute(ctx, accounts.ProvisionProfileMessage{
		IdentityID: identityID,
		Email:      "colliding@example.com",
		OnDrift: func(w accounts.DriftWarning) {
			drift = &w
		},
	})

	require.NoError(t, err, "provisioning failures must not propagate")
	require.NotNil(t, drift)
	assert.Equal(t, accounts.DriftProfileCreate, drift.Side)
	assert.Equal(t, identityID, drift.SubjectID)
	assert.Equal(t, "colliding@example.com", drift.Email)
	assert.Error(t, drift.Cause)
}

func TestProvisionProfileFailureWritesNoAudit(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	identityID := uuid.New()
	seedProfile(t, repo, identityID, "held@example.com")

	handler := accounts.NewProvisionProfileHandler(repo)
	err := handler.Execute(ctx, accounts.ProvisionProfileMessage{
		IdentityID: identityID,
		Email:      "other@example.com",
	})
	require.NoError(t, err)

	entries, err := repo.Audit().FindBySubject(ctx, identityID)
	require.NoError(t, err)
	assert.Empty(t, entries, "rolled back attempt must leave no audit entry")
}
