package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"

	"github.com/goliatone/go-accounts/middleware/jwtware"
)

const profileLocalsKey = "account_profile"

// RequestGuard gates protected routes on two separate facts: a valid
// token and a live profile row. A bad or missing token is a 401. A
// valid token whose profile is gone or revoked is a 403, the token
// holder is authenticated but the account no longer grants access.
type RequestGuard struct {
	repo      RepositoryManager
	cfg       Config
	validator TokenValidator
	logger    Logger
}

func NewRequestGuard(repo RepositoryManager, validator TokenValidator, cfg Config) *RequestGuard {
	return &RequestGuard{
		repo:      repo,
		cfg:       cfg,
		validator: validator,
		logger:    defLogger{},
	}
}

func (g *RequestGuard) WithLogger(logger Logger) *RequestGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Protected returns middleware that authenticates the request and then
// rechecks the profile store before letting it through.
func (g *RequestGuard) Protected(minRole ...string) router.MiddlewareFunc {
	cfg := jwtware.Config{
		TokenValidator: guardValidator{inner: g.validator},
		ErrorHandler:   g.unauthorized,
		SuccessHandler: g.requireProfile,
		SigningKey: jwtware.SigningKey{
			Key:    []byte(g.cfg.GetSigningKey()),
			JWTAlg: g.cfg.GetSigningMethod(),
		},
		AuthScheme:      g.cfg.GetAuthScheme(),
		ContextKey:      g.cfg.GetContextKey(),
		TokenLookup:     g.cfg.GetTokenLookup(),
		ContextEnricher: ContextEnricherAdapter,
	}

	if len(minRole) > 0 {
		cfg.MinimumRole = minRole[0]
	}

	return jwtware.New(cfg)
}

// requireProfile is the second gate. The token already validated, now
// the profile row has to exist and be active.
func (g *RequestGuard) requireProfile(ctx router.Context) error {
	claims, ok := ctx.Locals(g.cfg.GetContextKey()).(AuthClaims)
	if !ok || claims == nil {
		return g.unauthorized(ctx, ErrUnableToMapClaims)
	}

	subjectID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return g.unauthorized(ctx, ErrUnableToMapClaims)
	}

	profile, err := g.repo.Profiles().FindByID(ctx.Context(), subjectID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			g.logger.Warn("Guard refused %s, profile missing", subjectID)
			return g.forbidden(ctx)
		}
		g.logger.Error("Guard profile lookup error: %s", print.MaybePrettyJSON(map[string]any{
			"subject": subjectID.String(),
			"error":   err.Error(),
		}))
		return ctx.JSON(router.StatusInternalServerError, map[string]any{
			"error": "profile lookup failed",
		})
	}

	if !profile.Active {
		g.logger.Warn("Guard refused %s, profile inactive", subjectID)
		return g.forbidden(ctx)
	}

	ctx.Locals(profileLocalsKey, profile)
	ctx.SetContext(WithProfileContext(ctx.Context(), profile))

	return ctx.Next()
}

func (g *RequestGuard) unauthorized(ctx router.Context, err error) error {
	// Role denials arrive here from the middleware authorization
	// checks. The token holder is authenticated, so answer 403.
	if err != nil && strings.HasPrefix(err.Error(), "access denied") {
		return ctx.JSON(router.StatusForbidden, map[string]any{
			"error": err.Error(),
		})
	}

	var richErr *goerrors.Error

	if IsTokenExpiredError(err) {
		richErr = ErrTokenExpired
	} else if IsMalformedError(err) {
		richErr = ErrTokenMalformed
	} else if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "Invalid authentication token").
			WithCode(goerrors.CodeUnauthorized)
	}

	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func (g *RequestGuard) forbidden(ctx router.Context) error {
	return ctx.JSON(router.StatusForbidden, map[string]any{
		"error":     ErrProfileRevoked.Message,
		"text_code": ErrProfileRevoked.TextCode,
	})
}

// ProfileFromRequest returns the profile the guard attached to the request.
func ProfileFromRequest(ctx router.Context) (*Profile, bool) {
	profile, ok := ctx.Locals(profileLocalsKey).(*Profile)
	return profile, ok
}

type guardValidator struct {
	inner TokenValidator
}

func (v guardValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.inner.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
