package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeProfileRevoked     = "PROFILE_NOT_FOUND"
	textCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	textCodeTokenExpired       = "TOKEN_EXPIRED"
	textCodeTokenMalformed     = "TOKEN_MALFORMED"
)

// ErrInvalidCredentials answers a bad credential and a missing profile at
// login time with the same message, so callers cannot tell which half
// failed.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrProfileRevoked rejects a request whose session token is still valid
// but whose backing profile no longer exists. Deliberately distinct from
// ErrInvalidCredentials: the token is legitimate, the account is not.
var ErrProfileRevoked = errors.New("profile has been removed or access revoked", errors.CategoryAuthz).
	WithTextCode(textCodeProfileRevoked).
	WithCode(errors.CodeForbidden)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(textCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenExpired is returned when a session token is past its expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed at all.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is the error when the request carries no token
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from the request
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// DriftSide identifies which best-effort cross-store step was dropped.
type DriftSide string

const (
	// DriftProfileCreate means an identity exists with no profile because
	// auto-provisioning failed.
	DriftProfileCreate DriftSide = "profile.create"
	// DriftIdentityDelete means a profile was removed but the matching
	// provider delete did not go through.
	DriftIdentityDelete DriftSide = "identity.delete"
)

// DriftWarning records a swallowed failure of one of the two designated
// fail-open operations. It reaches logs and drift callbacks, never the end
// user; the next reconciliation pass picks up the repair.
type DriftWarning struct {
	Side       DriftSide
	SubjectID  uuid.UUID
	Email      string
	Cause      error
	OccurredAt time.Time
}

func (w DriftWarning) String() string {
	cause := ""
	if w.Cause != nil {
		cause = w.Cause.Error()
	}
	return fmt.Sprintf("drift %s subject=%s email=%s cause=%s", w.Side, w.SubjectID, w.Email, cause)
}
