package accounts

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// LoginVerifier authenticates against the identity provider and then
// requires the matching profile row before it will mint a token. An
// identity without a profile is an orphan: the verifier refuses the
// login with the same generic failure a bad credential gets, and
// self heals by removing the orphan identity so the email can sign up
// again from scratch.
type LoginVerifier struct {
	provider        IdentityProvider
	repo            RepositoryManager
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
	tokenValidator  TokenValidator
}

var _ Verifier = (*LoginVerifier)(nil)

// NewLoginVerifier returns a new LoginVerifier
func NewLoginVerifier(provider IdentityProvider, repo RepositoryManager, opts Config) *LoginVerifier {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		jwt.ClaimStrings(opts.GetAudience()),
		defLogger{},
	)

	return &LoginVerifier{
		provider:        provider,
		repo:            repo,
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		audience:        opts.GetAudience(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		tokenService:    tokenService,
	}
}

func (s *LoginVerifier) WithLogger(logger Logger) *LoginVerifier {
	s.logger = logger
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		jwt.ClaimStrings(s.audience),
		logger,
	)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *LoginVerifier) WithTokenValidator(validator TokenValidator) *LoginVerifier {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this verifier
func (s *LoginVerifier) TokenService() TokenService {
	return s.tokenService
}

func (s *LoginVerifier) Login(ctx context.Context, email, credential string) (*AuthResult, error) {
	identity, err := s.provider.VerifyCredential(ctx, email, credential)
	if err != nil {
		s.logger.Error("Login verify credential error: %v", err)
		return nil, loginFailure(err)
	}

	if identity == nil {
		s.logger.Error("Login identity is nil")
		return nil, ErrInvalidCredentials
	}

	profile, err := s.repo.Profiles().FindByID(ctx, identity.ID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, s.healOrphan(ctx, identity)
		}
		s.logger.Error("Login profile lookup error: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "profile lookup failed")
	}

	// An unauthenticated caller never learns whether the account is
	// missing, orphaned, or deactivated. The guard answers 403 for an
	// inactive profile once the caller holds a valid token.
	if !profile.Active {
		s.logger.Warn("Login blocked, profile %s is inactive", profile.ID)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(profile)
	if err != nil {
		s.logger.Error("Login token generation error: %v", err)
		return nil, err
	}

	return &AuthResult{
		Token:   token,
		Profile: profile,
	}, nil
}

// healOrphan removes an identity that verified but has no profile. The
// caller always gets the generic credential failure regardless of the
// cleanup outcome, so a probe cannot tell an orphan from a bad password.
func (s *LoginVerifier) healOrphan(ctx context.Context, identity *Identity) error {
	s.logger.Warn("Login refused, identity %s has no profile", identity.ID)

	if err := s.provider.DeleteIdentity(ctx, identity.ID); err != nil {
		warning := DriftWarning{
			Side:       DriftIdentityDelete,
			SubjectID:  identity.ID,
			Email:      identity.Email,
			Cause:      err,
			OccurredAt: time.Now(),
		}
		s.logger.Warn("%s", warning.String())
	}

	return ErrInvalidCredentials
}

func (s *LoginVerifier) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

// loginFailure collapses credential failures into the generic refusal.
// Anything that is not an auth category error keeps its own shape so
// transient store problems are not mislabeled as bad credentials.
func loginFailure(err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryNotFound, goerrors.CategoryBadInput:
			return ErrInvalidCredentials
		default:
			return richErr
		}
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "credential verification failed")
}
