package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
	"github.com/toure-cloud/institutdeveloppement/core/content"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/mailing"
	"github.com/toure-cloud/institutdeveloppement/core/user"
	metricsvc "github.com/toure-cloud/institutdeveloppement/services/metrics"
	ratelimitsvc "github.com/toure-cloud/institutdeveloppement/services/ratelimit"
	revocationsvc "github.com/toure-cloud/institutdeveloppement/services/revocation"
)

type ServerDeps struct {
	Conf           *core.Config
	Logger         core.Logger
	Validate       *validator.Validate
	Translator     ut.Translator
	Storage        core.FileStorage
	UserSvc        user.Service
	EnrollmentSvc  enrollment.Service
	ActivitySvc    activity.Service
	ContentSvc     content.Service
	ConvocationSvc convocation.Service
	MailingSvc     mailing.Service
	Limiters       *ratelimitsvc.Limiters
	Revocations    revocationsvc.List
	Metrics        *metricsvc.Metrics

	DisableReqLogs bool
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	auth     *authenticator
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	if deps.Limiters == nil {
		deps.Limiters = ratelimitsvc.NewLimiters(nil, deps.Conf)
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.Revocations),
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
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
	}
	s.app.Use(middleware.BodyLimit(bodyLimit(conf.Media.MaxUploadSize)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)
	registerMediaAPI(s.app, s)

	api := s.app.Group("/api")
	jwt := s.auth.middleware()

	registerAuthAPI(api, jwt, s)
	registerPublicAPI(api, s)
	registerCandidateAPI(api, jwt, s)
	registerAdminAPI(api, jwt, s)
}

// bodyLimit leaves room for the multipart overhead around the largest accepted upload.
func bodyLimit(maxUpload int64) string {
	return strconv.FormatInt((4*maxUpload+1<<20)>>10, 10) + "K"
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the application to stop gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signalled
	}
}

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
	return ctx.String(http.StatusOK, "Bienvenue sur l'API "+s.deps.Conf.AppName+" !")
}
