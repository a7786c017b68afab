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
	"github.com/pkg/errors"

	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/project"
	"github.com/brightwater/swereport/core/session"
)

type (
	// ProjectLister lists the dashboard projects.
	ProjectLister interface {
		Projects() []project.Entry
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Projects   ProjectLister
		Sessions   *session.Manager
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}

	appValidator struct {
		validate *validator.Validate
	}
)

func (v appValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Validator = appValidator{validate: s.deps.Validate}
	s.app.Renderer = newRenderer()
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	} else {
		s.app.Logger.SetLevel(log.INFO)
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Secure())
	s.app.Use(middleware.BodyLimit("64K"))

	s.app.GET("/healthz", s.health)

	dash := dashboard{
		conf:     conf,
		projects: s.deps.Projects,
	}
	withSession := sessionMiddleware(conf, s.deps.Sessions)
	s.app.GET("/", dash.page, withSession)
	s.app.POST("/project", dash.selectProject, withSession)
	s.app.POST("/theme", dash.setTheme, withSession)
	s.app.POST("/refresh", dash.refresh, withSession)
	s.app.GET("/export.xlsx", dash.export, withSession)

	api := s.app.Group("/api")
	api.GET("/projects", dash.listProjects)
	api.GET("/views", dash.views, withSession)
}

// Start serves in the background; failures are reported on Errors.
func (s *Server) Start() {
	go func() {
		if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
			s.errors <- errors.Wrap(err, "serving")
		}
	}()
}

func (s *Server) Errors() <-chan error { return s.errors }

// ShutdownSignal receives SIGINT, SIGTERM and fatal application errors.
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	defer signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"status": "ok",
		"build":  s.deps.Conf.Build,
		"env":    s.deps.Conf.Env,
	})
}
