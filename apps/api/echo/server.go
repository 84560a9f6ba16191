package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/account"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/discipline"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		RateLimiter    core.RateLimiter
		DisableReqLogs bool

		UserSvc       *user.Service
		SchoolSvc     *school.Service
		AccountSvc    *account.Service
		AttendanceSvc *attendance.Service
		DisciplineSvc *discipline.Service
		GradingSvc    *grading.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		sessions *sessions
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		sessions: newSessions(deps.Conf, deps.UserSvc, deps.SchoolSvc),
		metrics:  newMetrics(deps.Conf.Build),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !s.deps.DisableReqLogs {
		s.app.Use(s.requestLogger())
	}
	s.app.Use(s.metrics.middleware(s.deps.Translator))
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.CORSAllowedOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     conf.Server.CORSAllowedOrigins,
			AllowCredentials: true,
		}))
	}

	s.app.GET("/", s.home)
	s.app.GET("/metrics", s.metrics.handler())

	g := s.app.Group("/api")
	g.GET("/health", health)

	auth := authMiddleware(conf)
	registerAuthAPI(g, auth, s)
	registerAccountAPI(g, auth, s)
	registerUserAPI(g, auth, s)
	registerSchoolAPI(g, auth, s)
	registerAttendanceAPI(g, auth, s)
	registerDisciplineAPI(g, auth, s)
	registerGradingAPI(g, auth, s)
}

// Start listens until the server is shut down; listening errors are sent on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops accepting connections and waits for the outstanding requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
