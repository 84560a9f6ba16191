package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

const passwordResetSuccess = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type authApi struct {
	conf     *core.Config
	logger   core.Logger
	svc      *user.Service
	sessions *sessions
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := authApi{
		conf:     s.deps.Conf,
		logger:   s.deps.Logger,
		svc:      s.deps.UserSvc,
		sessions: s.sessions,
		validate: s.deps.Validate,
	}
	rl := s.deps.Conf.RateLimit

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login, rateLimitMiddleware(s.deps.RateLimiter, s.deps.Logger, "login", rl.LoginMax, rl.Window))
	ag.POST("/logout", api.logout)
	ag.POST("/password-reset", api.resetPassword,
		rateLimitMiddleware(s.deps.RateLimiter, s.deps.Logger, "password-reset", rl.PasswordResetMax, rl.Window))
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.GET("/me", api.me, jwt)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.sessions.authenticate(ctx, data.Username, data.Password)
	if err != nil {
		return err
	}
	claims := NewClaims(api.conf, usr)
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	setSessionCookie(ctx, api.conf, token, claims.ExpiresAt.Time)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: &usr})
}

func (api *authApi) logout(ctx echo.Context) error {
	clearSessionCookie(ctx, api.conf)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, claims, err := api.sessions.refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	setSessionCookie(ctx, api.conf, token, claims.ExpiresAt.Time)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time})
}

func (api *authApi) me(ctx echo.Context) error {
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	return ctx.JSON(http.StatusOK, newMeResponse(actor))
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetSuccess})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token     string     `json:"token"`
		ExpiresAt time.Time  `json:"expires_at"`
		User      *user.User `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	// MeResponse is the authenticated user along with its school profiles.
	MeResponse struct {
		User    user.User       `json:"user"`
		Student *school.Student `json:"student"`
		Teacher *school.Teacher `json:"teacher"`
		Parent  *school.Parent  `json:"parent"`
	}
)

func newMeResponse(actor school.Actor) MeResponse {
	return MeResponse{User: actor.User, Student: actor.Student, Teacher: actor.Teacher, Parent: actor.Parent}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
