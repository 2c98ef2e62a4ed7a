package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeleteAccountMessage struct {
	ProfileID uuid.UUID `json:"profile_id"`
	OnDrift   func(DriftWarning)
}

func (e DeleteAccountMessage) Type() string { return "account.delete" }

var _ command.Message = DeleteAccountMessage{}

type DeleteAccountsMessage struct {
	ProfileIDs []uuid.UUID `json:"profile_ids"`
	OnDrift    func(DriftWarning)
}

func (e DeleteAccountsMessage) Type() string { return "account.delete_many" }

var _ command.Message = DeleteAccountsMessage{}

// DeleteAccountHandler removes an account from both stores. The local
// half is atomic: snapshot, audit entry, and row delete commit together
// or not at all. The identity half runs after commit and is best
// effort, a provider failure leaves an orphan identity for the
// reconciler and is surfaced as drift, never as a handler error.
//
// Deleting an id with no profile row is a no-op and writes no audit
// entry, so replays cannot double-audit.
type DeleteAccountHandler struct {
	repo     RepositoryManager
	provider IdentityProvider
	logger   Logger
}

func NewDeleteAccountHandler(repo RepositoryManager, provider IdentityProvider) *DeleteAccountHandler {
	return &DeleteAccountHandler{
		repo:     repo,
		provider: provider,
		logger:   defLogger{},
	}
}

func (h *DeleteAccountHandler) WithLogger(logger Logger) *DeleteAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *DeleteAccountHandler) Execute(ctx context.Context, event DeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account deletion",
		)
	default:
		return h.deleteOne(ctx, event.ProfileID, event.OnDrift)
	}
}

func (h *DeleteAccountHandler) ExecuteMany(ctx context.Context, event DeleteAccountsMessage) error {
	for _, id := range event.ProfileIDs {
		select {
		case <-ctx.Done():
			return goerrors.Wrap(
				ctx.Err(),
				goerrors.CategoryOperation,
				"context cancelled during account deletion",
			)
		default:
		}

		if err := h.deleteOne(ctx, id, event.OnDrift); err != nil {
			return err
		}
	}
	return nil
}

func (h *DeleteAccountHandler) deleteOne(ctx context.Context, id uuid.UUID, onDrift func(DriftWarning)) error {
	var (
		removed bool
		email   string
	)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile, err := h.repo.Profiles().FindByIDTx(ctx, tx, id)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return nil
			}
			return err
		}

		affected, err := h.repo.Profiles().RemoveByIDTx(ctx, tx, profile.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "could not delete profile")
		}

		// A concurrent delete can take the row between our snapshot
		// read and the delete. Whoever deleted it owns the audit entry.
		if affected == 0 {
			return nil
		}

		entry := &AuditEntry{
			EventType: AuditProfileDeleted,
			SubjectID: profile.ID,
			Payload:   profile.Snapshot(),
		}
		if _, err := h.repo.Audit().AppendTx(ctx, tx, entry); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not record profile deletion")
		}

		removed = true
		email = profile.Email

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account deletion transaction failed")
	}

	if !removed {
		return nil
	}

	if err := h.provider.DeleteIdentity(ctx, id); err != nil {
		warning := DriftWarning{
			Side:       DriftIdentityDelete,
			SubjectID:  id,
			Email:      email,
			Cause:      err,
			OccurredAt: time.Now(),
		}

		h.logger.Warn("%s", warning.String())

		if onDrift != nil {
			onDrift(warning)
		}
	}

	return nil
}
