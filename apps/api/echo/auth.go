package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

const (
	contextClaimsKey = "claims"
	contextUserKey   = "user"
	contextActorKey  = "actor"

	tokenAudience = "Academia"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsParent     bool     `json:"is_parent,omitempty"`  // -> PARENT PORTAL
	IsTeacher    bool     `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin      bool     `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
	Roles        []string `json:"roles,omitempty"`
}

// NewClaims returns the claims of a session opened now for usr. origIat carries
// the issue time of the first token of a refreshed session.
func NewClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsParent:     usr.IsParent(),
		IsTeacher:    usr.IsTeacher(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(conf *core.Config, tokenString string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (interface{}, error) { return []byte(conf.SecretKey), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// requestToken extracts the token from the Authorization header, or else from the session cookie.
func requestToken(ctx echo.Context, cookieName string) string {
	if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := ctx.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// authMiddleware authenticates requests carrying a valid JWT.
func authMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := requestToken(ctx, conf.Server.CookieName)
			if token == "" {
				return errMissingToken
			}
			claims, err := parseToken(conf, token)
			if err != nil {
				return errInvalidToken
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}

func setSessionCookie(ctx echo.Context, conf *core.Config, token string, expires time.Time) {
	ctx.SetCookie(&http.Cookie{
		Name:     conf.Server.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(ctx echo.Context, conf *core.Config) {
	ctx.SetCookie(&http.Cookie{
		Name:     conf.Server.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessions resolves the user and the school actor behind the claims of a request.
type sessions struct {
	conf      *core.Config
	userSvc   *user.Service
	schoolSvc *school.Service
}

func newSessions(conf *core.Config, userSvc *user.Service, schoolSvc *school.Service) *sessions {
	return &sessions{conf: conf, userSvc: userSvc, schoolSvc: schoolSvc}
}

func (ss *sessions) authenticate(ctx echo.Context, uname, pwd string) (user.User, error) {
	reqCtx := ctx.Request().Context()
	usr, err := ss.userSvc.GetByUsernameOrEmail(reqCtx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = ss.userSvc.SetLastLogin(reqCtx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

// user returns the active User of the request claims.
func (ss *sessions) user(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := ss.userSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// actor returns the request User along with its school profiles.
func (ss *sessions) actor(ctx echo.Context) (school.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(school.Actor); ok {
		return actor, nil
	}
	usr, err := ss.user(ctx)
	if err != nil {
		return school.Actor{}, err
	}
	actor, err := ss.schoolSvc.ResolveActor(ctx.Request().Context(), usr)
	if err != nil {
		return school.Actor{}, errors.Wrap(err, "resolving actor")
	}
	ctx.Set(contextActorKey, actor)
	return actor, nil
}

// refresh issues a new token for the session while its refresh window is open.
func (ss *sessions) refresh(ctx echo.Context) (string, *Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", nil, err
	}
	usr, err := ss.user(ctx)
	if err != nil {
		return "", nil, err
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ss.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", nil, errRefreshExpired
	}

	newClaims := NewClaims(ss.conf, usr, claims.OrigIssuedAt)
	token, err := GenerateToken(ss.conf, newClaims)
	if err != nil {
		return "", nil, errors.Wrap(err, "generating token")
	}
	return token, newClaims, nil
}
