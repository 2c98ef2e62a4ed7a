package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity is the provider-owned half of an account. The credential never
// crosses this boundary.
type Identity struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// IdentityProvider is the caller-side contract with the external
// authentication service. VerifyCredential must answer every failure with
// the same generic error so callers cannot probe for registered emails.
// DeleteIdentity must be idempotent: deleting an id the provider no longer
// knows is a successful no-op.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, credential string) (*Identity, error)
	VerifyCredential(ctx context.Context, email, credential string) (*Identity, error)
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
	// ListIdentityIDs enumerates every identity the provider holds. The
	// reconciliation scan needs the full provider-side id set to compute
	// the orphan difference.
	ListIdentityIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

/// AuthResult is what a successful login hands back to the caller: the
// signed session token plus the profile that backs it.
type AuthResult struct {
	Token   string   `json:"token"`
	Profile *Profile `json:"profile"`
}

// Verifier authenticates credentials and enforces profile existence. A
// token is never minted for an identity without a live profile.
type Verifier interface {
	Login(ctx context.Context, email, credential string) (*AuthResult, error)
}

// TokenService mints and validates session tokens.
type TokenService interface {
	Generate(profile *Profile) (string, error)
	SignClaims(claims *SessionClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
}

// DefaultLogger returns the stdout logger used when no Logger is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
