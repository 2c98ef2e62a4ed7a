package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-accounts"
)

func TestAuditAppendAndFindBySubject(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	subject := uuid.New()

	first, err := repo.Audit().Append(ctx, &accounts.AuditEntry{
		EventType: accounts.AuditProfileCreated,
		SubjectID: subject,
		Payload:   map[string]any{"email": "ada@example.com"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = repo.Audit().Append(ctx, &accounts.AuditEntry{
		EventType: accounts.AuditProfileDeleted,
		SubjectID: subject,
		Payload:   map[string]any{"email": "ada@example.com"},
	})
	require.NoError(t, err)

	// Unrelated subject stays out of the result
	_, err = repo.Audit().Append(ctx, &accounts.AuditEntry{
		EventType: accounts.AuditProfileCreated,
		SubjectID: uuid.New(),
	})
	require.NoError(t, err)

	entries, err := repo.Audit().FindBySubject(ctx, subject)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, accounts.AuditProfileCreated, entries[0].EventType)
	assert.Equal(t, accounts.AuditProfileDeleted, entries[1].EventType)
}

func TestAuditFindBetween(t *testing.T) {
	repo, _, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	_, err := repo.Audit().Append(ctx, &accounts.AuditEntry{
		EventType: accounts.AuditCleanupRun,
		CreatedAt: now.Add(-2 * time.Hour),
	})
	require.NoError(t, err)

	inWindow, err := repo.Audit().Append(ctx, &accounts.AuditEntry{
		EventType: accounts.AuditCleanupRun,
		CreatedAt: now.Add(-10 * time.Minute),
	})
	require.NoError(t, err)

	entries, err := repo.Audit().FindBetween(ctx, now.Add(-time.Hour), now)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, inWindow.ID, entries[0].ID)
}

func TestAuditAppendInTransactionRollsBackWithIt(t *testing.T) {
	repo, db, cleanup := setupRepoManager(t)
	defer cleanup()

	ctx := context.Background()
	subject := uuid.New()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	_, err = repo.Audit().AppendTx(ctx, tx, &accounts.AuditEntry{
		EventType: accounts.AuditProfileCreated,
		SubjectID: subject,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	entries, err := repo.Audit().FindBySubject(ctx, subject)
	require.NoError(t, err)
	assert.Empty(t, entries, "rolled back entry must not persist")
}
