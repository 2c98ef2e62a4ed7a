package accounts

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type RegisterAccountMessage struct {
	Email      string   `json:"email"`
	Credential string   `json:"credential"`
	FullName   string   `json:"full_name"`
	Phone      string   `json:"phone"`
	Role       UserRole `json:"role"`
	OnDrift    func(DriftWarning)
	OnResponse func(RegisterAccountResult)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

var _ command.Message = RegisterAccountMessage{}

type RegisterAccountResult struct {
	IdentityID uuid.UUID `json:"identity_id"`
	Email      string    `json:"email"`
	Profile    *Profile  `json:"profile,omitempty"`
}

// RegisterAccountHandler is the signup entry point. The identity is the
// source of truth, so a provider failure aborts the signup. The profile
// half runs through the fail open provisioning hook afterwards, meaning
// the signup can succeed with the profile missing and only drift
// recorded.
type RegisterAccountHandler struct {
	repo      RepositoryManager
	provider  IdentityProvider
	provision *ProvisionProfileHandler
	logger    Logger
}

func NewRegisterAccountHandler(repo RepositoryManager, provider IdentityProvider) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:      repo,
		provider:  provider,
		provision: NewProvisionProfileHandler(repo),
		logger:    defLogger{},
	}
}

func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
		h.provision.WithLogger(logger)
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	identity, err := h.provider.CreateIdentity(ctx, event.Email, event.Credential)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity creation failed")
	}

	provisionErr := h.provision.Execute(ctx, ProvisionProfileMessage{
		IdentityID: identity.ID,
		Email:      identity.Email,
		FullName:   event.FullName,
		Phone:      event.Phone,
		Role:       event.Role,
		OnDrift:    event.OnDrift,
	})
	if provisionErr != nil {
		// Only context cancellation escapes the hook.
		return provisionErr
	}

	result := RegisterAccountResult{
		IdentityID: identity.ID,
		Email:      identity.Email,
	}

	if profile, err := h.repo.Profiles().FindByID(ctx, identity.ID); err == nil {
		result.Profile = profile
	}

	if event.OnResponse != nil {
		event.OnResponse(result)
	}

	return nil
}
