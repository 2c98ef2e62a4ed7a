package accounts

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

type AccountControllerRoutes struct {
	Register  string
	Login     string
	Logout    string
	Me        string
	Profiles  string
	Audit     string
	Reconcile string
}

type AccountController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Provider     IdentityProvider
	Verifier     *LoginVerifier
	Guard        *RequestGuard
	Reconciler   *Reconciler
	Config       Config
	Routes       *AccountControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AccountControllerRoutes{
			Register:  "/auth/register",
			Login:     "/auth/login",
			Logout:    "/auth/logout",
			Me:        "/profiles/me",
			Profiles:  "/profiles",
			Audit:     "/audit",
			Reconcile: "/reconcile",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Provider == nil {
		panic("Missing IdentityProvider in account controller...")
	}

	if c.Verifier == nil {
		panic("Missing LoginVerifier in account controller...")
	}

	if c.Guard == nil {
		c.Guard = NewRequestGuard(c.Repo, c.Verifier.TokenService(), c.Config)
	}

	if c.Reconciler == nil {
		c.Reconciler = NewReconciler(c.Provider, c.Repo)
	}

	return c
}

func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {
	controller := NewAccountController(opts...)

	protected := controller.Guard.Protected()
	adminOnly := controller.Guard.Protected(RoleAdmin)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("account-register.post")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("account-login.post")
	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("account-logout.post")

	app.Get(controller.Routes.Me, protected(controller.MeGet)).
		SetName("profile-me.get")
	app.Put(fmt.Sprintf("%s/:id", controller.Routes.Profiles), protected(controller.ProfileUpdate)).
		SetName("profile.put")
	app.Delete(fmt.Sprintf("%s/:id", controller.Routes.Profiles), adminOnly(controller.AccountDelete)).
		SetName("profile.delete")

	app.Get(controller.Routes.Audit, adminOnly(controller.AuditByRange)).
		SetName("audit-range.get")
	app.Get(fmt.Sprintf("%s/:subject", controller.Routes.Audit), adminOnly(controller.AuditBySubject)).
		SetName("audit-subject.get")

	app.Get(fmt.Sprintf("%s/orphans", controller.Routes.Reconcile), adminOnly(controller.OrphansGet)).
		SetName("reconcile-orphans.get")
	app.Post(fmt.Sprintf("%s/run", controller.Routes.Reconcile), adminOnly(controller.ReconcilePost)).
		SetName("reconcile-run.post")
}

// RegisterPayload is the signup payload
type RegisterPayload struct {
	Email           string `form:"email" json:"email"`
	FullName        string `form:"full_name" json:"full_name"`
	Phone           string `form:"phone" json:"phone"`
	Role            string `form:"role" json:"role"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.FullName, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		validation.Field(&r.Role, validation.In(RoleStudent, RoleTeacher, RoleAdmin)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload error: %v", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register validate payload error: %v", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("register payload: %s", print.MaybePrettyJSON(payload))
	}

	var result RegisterAccountResult

	msg := RegisterAccountMessage{
		Email:      payload.Email,
		Credential: payload.Password,
		FullName:   payload.FullName,
		Phone:      payload.Phone,
		Role:       payload.Role,
		OnResponse: func(r RegisterAccountResult) {
			result = r
		},
	}

	register := NewRegisterAccountHandler(a.Repo, a.Provider).WithLogger(a.Logger)
	if err := register.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("register execute error: %v", err)
		return a.jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"identity_id": result.IdentityID,
		"email":       result.Email,
		"profile":     result.Profile,
	})
}

// LoginPayload is the credential payload
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	result, err := a.Verifier.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login error: %v", err)
		return a.jsonError(ctx, err)
	}

	a.setCookieToken(ctx, result.Token)

	return ctx.JSON(router.StatusOK, map[string]any{
		"token":   result.Token,
		"profile": result.Profile,
	})
}

func (a *AccountController) LogoutPost(ctx router.Context) error {
	a.cookieDel(ctx, a.Config.GetContextKey())
	return ctx.JSON(router.StatusOK, map[string]any{
		"logged_out": true,
	})
}

func (a *AccountController) MeGet(ctx router.Context) error {
	profile, ok := ProfileFromRequest(ctx)
	if !ok {
		return ctx.JSON(router.StatusForbidden, map[string]any{
			"error": ErrProfileRevoked.Message,
		})
	}

	return ctx.JSON(router.StatusOK, profile)
}

// ProfileUpdatePayload carries partial profile changes
type ProfileUpdatePayload struct {
	FullName       *string `form:"full_name" json:"full_name"`
	Phone          *string `form:"phone" json:"phone"`
	Department     *string `form:"department" json:"department"`
	Designation    *string `form:"designation" json:"designation"`
	Specialization *string `form:"specialization" json:"specialization"`
	Role           *string `form:"role" json:"role"`
	Active         *bool   `form:"active" json:"active"`
}

// Validate will validate the payload
func (r ProfileUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidateOptionalPhoneNumber)),
		validation.Field(&r.Role, validation.By(ValidateOptionalRole)),
	)
}

func (a *AccountController) ProfileUpdate(ctx router.Context) error {
	profileID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "invalid profile id",
		})
	}

	actor, ok := ProfileFromRequest(ctx)
	if !ok {
		return a.jsonError(ctx, ErrProfileRevoked)
	}

	// Role and active changes are admin operations, everything else a
	// user can do to their own profile.
	payload := new(ProfileUpdatePayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	isAdmin := RoleIsAtLeast(actor.Role, RoleAdmin)
	if actor.ID != profileID && !isAdmin {
		return ctx.JSON(router.StatusForbidden, map[string]any{
			"error": "cannot modify another profile",
		})
	}

	if (payload.Role != nil || payload.Active != nil) && !isAdmin {
		return ctx.JSON(router.StatusForbidden, map[string]any{
			"error": "role and active changes require admin",
		})
	}

	var updated *Profile

	msg := UpdateProfileMessage{
		ProfileID:      profileID,
		FullName:       payload.FullName,
		Phone:          payload.Phone,
		Department:     payload.Department,
		Designation:    payload.Designation,
		Specialization: payload.Specialization,
		Role:           payload.Role,
		Active:         payload.Active,
		OnResponse: func(p *Profile) {
			updated = p
		},
	}

	update := NewUpdateProfileHandler(a.Repo)
	if err := update.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("profile update error: %v", err)
		return a.jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

func (a *AccountController) AccountDelete(ctx router.Context) error {
	profileID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "invalid profile id",
		})
	}

	var drift []DriftWarning

	msg := DeleteAccountMessage{
		ProfileID: profileID,
		OnDrift: func(w DriftWarning) {
			drift = append(drift, w)
		},
	}

	remove := NewDeleteAccountHandler(a.Repo, a.Provider).WithLogger(a.Logger)
	if err := remove.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("account delete error: %v", err)
		return a.jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"deleted":     profileID,
		"drift_count": len(drift),
	})
}

func (a *AccountController) AuditBySubject(ctx router.Context) error {
	subjectID, err := uuid.Parse(ctx.Param("subject"))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "invalid subject id",
		})
	}

	entries, err := a.Repo.Audit().FindBySubject(ctx.Context(), subjectID)
	if err != nil {
		a.Logger.Error("audit lookup error: %v", err)
		return a.jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"subject": subjectID,
		"entries": entries,
	})
}

// AuditByRange answers GET /audit?from=...&to=... with every entry in
// the window, any subject. Timestamps are RFC3339; both bounds are
// required so a typo cannot dump the whole log.
func (a *AccountController) AuditByRange(ctx router.Context) error {
	from, err := time.Parse(time.RFC3339, ctx.Query("from", ""))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "invalid or missing from timestamp, want RFC3339",
		})
	}

	to, err := time.Parse(time.RFC3339, ctx.Query("to", ""))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "invalid or missing to timestamp, want RFC3339",
		})
	}

	if to.Before(from) {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "to must not precede from",
		})
	}

	entries, err := a.Repo.Audit().FindBetween(ctx.Context(), from, to)
	if err != nil {
		a.Logger.Error("audit range lookup error: %v", err)
		return a.jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"from":    from,
		"to":      to,
		"entries": entries,
	})
}

func (a *AccountController) OrphansGet(ctx router.Context) error {
	orphans, err := a.Reconciler.Orphans(ctx.Context())
	if err != nil {
		a.Logger.Error("orphan scan error: %v", err)
		return a.jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"orphans": orphans,
	})
}

func (a *AccountController) ReconcilePost(ctx router.Context) error {
	report, err := a.Reconciler.Run(ctx.Context())
	if err != nil {
		a.Logger.Error("reconcile run error: %v", err)
		return a.jsonError(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("reconcile report: %s", print.MaybePrettyJSON(report))
	}

	return ctx.JSON(router.StatusOK, report)
}

func (a *AccountController) jsonError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return ctx.JSON(status, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func (a *AccountController) setCookieToken(c router.Context, val string) {
	duration := 24 * time.Hour
	if a.Config.GetTokenExpiration() > 0 {
		duration = time.Duration(a.Config.GetTokenExpiration()) * time.Hour
	}

	c.Cookie(&router.Cookie{
		Name:     a.Config.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *AccountController) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber parses the value as an international phone number.
// Empty values pass, pair with validation.Required when the field is mandatory.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return errors.New("invalid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("invalid phone number")
	}

	return nil
}

// ValidateOptionalPhoneNumber handles pointer payload fields.
func ValidateOptionalPhoneNumber(value any) error {
	s, ok := value.(*string)
	if !ok || s == nil {
		return nil
	}
	return ValidatePhoneNumber(*s)
}

// ValidateOptionalRole handles pointer payload fields.
func ValidateOptionalRole(value any) error {
	s, ok := value.(*string)
	if !ok || s == nil {
		return nil
	}
	if _, valid := ParseRole(*s); !valid {
		return errors.New("invalid role")
	}
	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	if err != nil {
		out["error"] = err.Error()
	}

	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Status(router.StatusInternalServerError).SendString(err.Error())
}
