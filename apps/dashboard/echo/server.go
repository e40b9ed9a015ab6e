package echodash

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

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/device"
	notifysvc "github.com/trezcool/attendly/services/notify"
	snapshotsvc "github.com/trezcool/attendly/services/snapshot"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Debug          bool
		TestMode       bool

		Repo       attendance.Repository
		Recognizer attendance.Recognizer
		// Selector follows the local cameras; its notifications are expected in CameraNotes.
		Selector    *device.Selector
		CameraNotes *notifysvc.Buffer
		Snapshots   snapshotsvc.Writer
		Validate    *validator.Validate
		Translator  ut.Translator
		Logger      core.Logger
	}

	Server struct {
		opts     *Options
		app      *echo.Echo
		hubs     *hubRegistry
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(opts *Options) *Server {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger
	}
	if opts.Translator == nil {
		opts.Translator = core.NewTranslator()
	}
	if opts.Validate == nil {
		opts.Validate = core.NewValidator(opts.Translator)
	}
	if opts.CameraNotes == nil {
		opts.CameraNotes = notifysvc.NewBuffer(0)
	}

	s := &Server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.hubs = newHubRegistry(opts)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1", tokenMiddleware, supervisorMiddleware)
	registerCameraAPI(v1, s.opts)
	registerSessionAPI(v1, s.opts, s.hubs)
}

// Start serves until Shutdown; a listen failure is reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// Shutdown releases every capture, then stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	s.hubs.closeAll()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.hubs.closeAll()
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the Attendly dashboard!")
}
