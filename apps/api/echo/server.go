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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/access"
	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/enrollment"
	"github.com/carosello75/courseconnect/core/notification"
	"github.com/carosello75/courseconnect/core/progress"
	"github.com/carosello75/courseconnect/core/user"
)

// Options holds the dependencies of the API server.
type Options struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc       user.Service
	Courses       *course.Service
	Enrollments   *enrollment.Service
	Access        *access.Service
	Progress      *progress.Tracker
	Notifications *notification.Dispatcher
}

type Server struct {
	opts     Options
	app      *echo.Echo
	auth     *authenticator
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		auth:     newAuthenticator(opts.Conf, opts.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	jwt := s.auth.required()
	optionalJWT := s.auth.optional()

	registerUserAPI(v1, jwt, s.auth, s.opts.UserSvc, s.opts.Validate)
	registerCourseAPI(v1, jwt, optionalJWT, s.opts.Courses, s.opts.Access, s.opts.Enrollments, s.opts.Progress)
	registerLessonAPI(v1, jwt, optionalJWT, s.opts.Access, s.opts.Progress)
	registerEnrollmentAPI(v1, jwt, s.opts.Enrollments)
	registerNotificationAPI(v1, jwt, s.opts.Notifications)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

// Start serves HTTP until the server gets shut down; other failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
