package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// adminMiddleware restricts the routes to active admins; roles are read from the stored User.
func adminMiddleware(ss *sessions) echo.MiddlewareFunc {
	return roleMiddleware(ss, func(usr user.User) bool { return usr.IsAdmin() })
}

// staffMiddleware restricts the routes to active admins and teachers.
func staffMiddleware(ss *sessions) echo.MiddlewareFunc {
	return roleMiddleware(ss, func(usr user.User) bool { return usr.IsAdmin() || usr.IsTeacher() })
}

func roleMiddleware(ss *sessions, allowed func(usr user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := ss.user(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if allowed(usr) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// rateLimitMiddleware allows max requests per client IP and window on the routes of scope.
// The requests go through if the limiter itself fails.
func rateLimitMiddleware(limiter core.RateLimiter, logger core.Logger, scope string, max int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limiter == nil || max <= 0 {
				return next(ctx)
			}
			key := scope + ":" + ctx.RealIP()
			rl, err := limiter.Allow(ctx.Request().Context(), key, max, window)
			if err != nil {
				logger.Warn("rate limiter unavailable", errors.Wrap(err, "allowing "+key))
				return next(ctx)
			}

			header := ctx.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
			if !rl.Allowed {
				secs := int(rl.RetryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				header.Set(echo.HeaderRetryAfter, strconv.Itoa(secs))
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// requestLogger logs every request through the app Logger.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			fields := map[string]interface{}{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"remote_ip":  v.RemoteIP,
				"request_id": v.RequestID,
			}
			if v.Status >= http.StatusInternalServerError {
				s.deps.Logger.Warn("request failed", fields)
				return nil
			}
			s.deps.Logger.Info("request", fields)
			return nil
		},
	})
}
