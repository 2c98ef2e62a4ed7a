package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdateProfileMessage struct {
	ProfileID      uuid.UUID `json:"profile_id"`
	FullName       *string   `json:"full_name,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Department     *string   `json:"department,omitempty"`
	Designation    *string   `json:"designation,omitempty"`
	Specialization *string   `json:"specialization,omitempty"`
	Role           *UserRole `json:"role,omitempty"`
	Active         *bool     `json:"active,omitempty"`
	OnResponse     func(*Profile)
}

func (e UpdateProfileMessage) Type() string { return "account.update_profile" }

var _ command.Message = UpdateProfileMessage{}

type UpdateProfileHandler struct {
	repo RepositoryManager
}

func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{repo: repo}
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var updated *Profile

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		profile, err := h.repo.Profiles().FindByIDTx(ctx, tx, event.ProfileID)
		if err != nil {
			return err
		}

		before := profile.Snapshot()

		if event.FullName != nil {
			profile.FullName = *event.FullName
		}
		if event.Phone != nil {
			profile.Phone = *event.Phone
		}
		if event.Department != nil {
			profile.Department = *event.Department
		}
		if event.Designation != nil {
			profile.Designation = *event.Designation
		}
		if event.Specialization != nil {
			profile.Specialization = *event.Specialization
		}
		if event.Role != nil {
			role, valid := ParseRole(string(*event.Role))
			if !valid {
				return goerrors.New("invalid role", goerrors.CategoryValidation).
					WithMetadata(map[string]any{"role": *event.Role})
			}
			profile.Role = role
		}
		if event.Active != nil {
			profile.Active = *event.Active
		}

		now := time.Now()
		profile.UpdatedAt = &now

		if profile, err = h.repo.Profiles().UpdateTx(ctx, tx, profile, repository.UpdateByID(profile.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "could not update profile")
		}

		entry := &AuditEntry{
			EventType: AuditProfileUpdated,
			SubjectID: profile.ID,
			Payload: map[string]any{
				"before": before,
				"after":  profile.Snapshot(),
			},
		}
		if _, err := h.repo.Audit().AppendTx(ctx, tx, entry); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not record profile update")
		}

		updated = profile

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}
