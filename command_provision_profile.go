package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProvisionProfileMessage creates the local profile for a freshly
// created identity. It is fail open: a store failure is reported as
// drift but never propagated, so the signup that triggered it still
// succeeds.
type ProvisionProfileMessage struct {
	IdentityID uuid.UUID `json:"identity_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Role       UserRole  `json:"role"`
	OnDrift    func(DriftWarning)
}

func (e ProvisionProfileMessage) Type() string { return "account.provision_profile" }

var _ command.Message = ProvisionProfileMessage{}

type ProvisionProfileHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewProvisionProfileHandler(repo RepositoryManager) *ProvisionProfileHandler {
	return &ProvisionProfileHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *ProvisionProfileHandler) WithLogger(logger Logger) *ProvisionProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ProvisionProfileHandler) Execute(ctx context.Context, event ProvisionProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile provisioning",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile := &Profile{
			ID:       event.IdentityID,
			Email:    event.Email,
			FullName: event.FullName,
			Phone:    event.Phone,
			Role:     event.Role,
		}

		if _, err := h.repo.Profiles().CreateTx(ctx, tx, profile); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create profile")
		}

		entry := &AuditEntry{
			EventType: AuditProfileCreated,
			SubjectID: event.IdentityID,
			Payload:   profile.Snapshot(),
		}
		if _, err := h.repo.Audit().AppendTx(ctx, tx, entry); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not record profile creation")
		}

		return nil
	})

	if err == nil {
		return nil
	}

	warning := DriftWarning{
		Side:       DriftProfileCreate,
		SubjectID:  event.IdentityID,
		Email:      event.Email,
		Cause:      err,
		OccurredAt: time.Now(),
	}

	h.logger.Warn("%s", warning.String())

	if event.OnDrift != nil {
		event.OnDrift(warning)
	}

	return nil
}
