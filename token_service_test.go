package accounts_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-accounts"
)

func TestTokenService_Generate(t *testing.T) {
	signingKey := []byte("test-signing-key")
	tokenExpiration := 24
	issuer := "test-issuer"
	audience := jwt.ClaimStrings{"test-audience"}

	service := accounts.NewTokenService(signingKey, tokenExpiration, issuer, audience, nil)

	t.Run("generates valid JWT token", func(t *testing.T) {
		profile := &accounts.Profile{
			ID:    uuid.New(),
			Email: "teach@example.com",
			Role:  accounts.RoleAdmin,
		}

		tokenString, err := service.Generate(profile)

		assert.NoError(t, err)
		assert.NotEmpty(t, tokenString)

		token, err := jwt.ParseWithClaims(tokenString, &accounts.SessionClaims{}, func(token *jwt.Token) (any, error) {
			return signingKey, nil
		})

		assert.NoError(t, err)
		assert.True(t, token.Valid)

		claims, ok := token.Claims.(*accounts.SessionClaims)
		assert.True(t, ok)
		assert.Equal(t, profile.ID.String(), claims.Subject())
		assert.Equal(t, profile.ID.String(), claims.UserID())
		assert.Equal(t, accounts.RoleAdmin, claims.Role())
		assert.Equal(t, "teach@example.com", claims.Email())
		assert.Equal(t, issuer, claims.Issuer)
		assert.Equal(t, audience, claims.Audience)
		assert.NotEmpty(t, claims.ID, "token id should be filled in")
		assert.NotNil(t, claims.IssuedAt)
		assert.NotNil(t, claims.ExpiresAt)
	})

	t.Run("sets correct expiration time", func(t *testing.T) {
		profile := &accounts.Profile{
			ID:    uuid.New(),
			Email: "expiry@example.com",
		}

		beforeGenerate := time.Now()
		tokenString, err := service.Generate(profile)
		afterGenerate := time.Now()

		assert.NoError(t, err)

		token, err := jwt.ParseWithClaims(tokenString, &accounts.SessionClaims{}, func(token *jwt.Token) (any, error) {
			return signingKey, nil
		})

		assert.NoError(t, err)
		claims := token.Claims.(*accounts.SessionClaims)

		expectedExpiry := beforeGenerate.Add(time.Duration(tokenExpiration) * time.Hour)
		actualExpiry := claims.ExpiresAt.Time

		// Allow for a small margin of difference due to timing
		assert.True(t, actualExpiry.After(expectedExpiry.Add(-time.Second)))
		assert.True(t, actualExpiry.Before(afterGenerate.Add(time.Duration(tokenExpiration)*time.Hour+time.Second)))
	})

	t.Run("rejects nil profile", func(t *testing.T) {
		tokenString, err := service.Generate(nil)

		assert.Error(t, err)
		assert.Empty(t, tokenString)
	})
}

func TestTokenService_Validate(t *testing.T) {
	signingKey := []byte("test-signing-key")
	tokenExpiration := 24
	issuer := "test-issuer"
	audience := jwt.ClaimStrings{"test-audience"}

	service := accounts.NewTokenService(signingKey, tokenExpiration, issuer, audience, nil)

	t.Run("full generate and validate cycle", func(t *testing.T) {
		profile := &accounts.Profile{
			ID:    uuid.New(),
			Email: "cycle@example.com",
			Role:  accounts.RoleTeacher,
		}

		tokenString, err := service.Generate(profile)
		assert.NoError(t, err)

		claims, err := service.Validate(tokenString)

		assert.NoError(t, err)
		assert.NotNil(t, claims)
		assert.Equal(t, profile.ID.String(), claims.Subject())
		assert.Equal(t, profile.ID.String(), claims.UserID())
		assert.Equal(t, accounts.RoleTeacher, claims.Role())
		assert.True(t, claims.HasRole(accounts.RoleTeacher))
		assert.True(t, claims.IsAtLeast(accounts.RoleStudent))
		assert.False(t, claims.IsAtLeast(accounts.RoleAdmin))
	})

	t.Run("returns error for expired token", func(t *testing.T) {
		now := time.Now()
		expiredClaims := &accounts.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Subject:   uuid.NewString(),
				Audience:  audience,
				IssuedAt:  jwt.NewNumericDate(now.Add(-25 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Hour)),
			},
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims)
		tokenString, err := token.SignedString(signingKey)
		assert.NoError(t, err)

		claims, err := service.Validate(tokenString)

		assert.Error(t, err)
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, accounts.ErrTokenExpired)
	})

	t.Run("returns error for malformed token", func(t *testing.T) {
		claims, err := service.Validate("not.a.valid.jwt.token")

		assert.Error(t, err)
		assert.Nil(t, claims)
		assert.True(t, accounts.IsMalformedError(err))
	})

	t.Run("returns error for token with wrong signing key", func(t *testing.T) {
		wrongKey := []byte("wrong-signing-key")
		profile := &accounts.Profile{ID: uuid.New(), Email: "wrong@example.com"}

		other := accounts.NewTokenService(wrongKey, tokenExpiration, issuer, audience, nil)
		tokenString, err := other.Generate(profile)
		assert.NoError(t, err)

		validatedClaims, err := service.Validate(tokenString)

		assert.Error(t, err)
		assert.Nil(t, validatedClaims)
	})

	t.Run("returns error for wrong issuer", func(t *testing.T) {
		profile := &accounts.Profile{ID: uuid.New(), Email: "issuer@example.com"}

		other := accounts.NewTokenService(signingKey, tokenExpiration, "someone-else", audience, nil)
		tokenString, err := other.Generate(profile)
		assert.NoError(t, err)

		validatedClaims, err := service.Validate(tokenString)

		assert.Error(t, err)
		assert.Nil(t, validatedClaims)
	})

	t.Run("returns error for wrong audience", func(t *testing.T) {
		profile := &accounts.Profile{ID: uuid.New(), Email: "aud@example.com"}

		other := accounts.NewTokenService(signingKey, tokenExpiration, issuer, jwt.ClaimStrings{"other-audience"}, nil)
		tokenString, err := other.Generate(profile)
		assert.NoError(t, err)

		validatedClaims, err := service.Validate(tokenString)

		assert.Error(t, err)
		assert.Nil(t, validatedClaims)
	})
}
