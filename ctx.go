package accounts

import (
	"context"
)

var profileCtxKey = &contextKey{"profile"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithProfileContext sets the Profile in the given context
func WithProfileContext(r context.Context, profile *Profile) context.Context {
	return context.WithValue(r, profileCtxKey, profile)
}

// ProfileFromContext finds the profile the guard attached to the request.
func ProfileFromContext(ctx context.Context) (*Profile, bool) {
	raw, ok := ctx.Value(profileCtxKey).(*Profile)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}
