package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured JWT claims with role checking
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	Email() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// SessionClaims is the concrete implementation of AuthClaims
type SessionClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	UserEmail string `json:"email,omitempty"`
	UserRole  string `json:"role,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*SessionClaims)(nil)

// Subject returns the subject claim
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the global role
func (c *SessionClaims) Role() string {
	return c.UserRole
}

// Email returns the email carried in the token
func (c *SessionClaims) Email() string {
	return c.UserEmail
}

// HasRole checks if the user has a specific role
func (c *SessionClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (c *SessionClaims) IsAtLeast(minRole string) bool {
	return RoleIsAtLeast(c.UserRole, minRole)
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
