package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/importer"
)

type ServerDeps struct {
	Conf      *core.Config
	Logger    core.Logger
	ImportSvc *importer.Service
	Gatherer  prometheus.Gatherer // served on /metrics; prometheus.DefaultGatherer when nil
}

type Server struct {
	conf     *core.Config
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	srv := &Server{
		conf:     deps.Conf,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(srv.shutdown, os.Interrupt, syscall.SIGTERM)

	srv.app.HideBanner = true
	srv.app.Debug = deps.Conf.Debug
	srv.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, srv.SignalShutdown)

	srv.app.Pre(middleware.RemoveTrailingSlash())
	if !deps.Conf.TestMode {
		srv.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(deps.Conf.Debug || deps.Conf.TestMode) {
		srv.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if deps.Conf.Server.BodyLimit != "" {
		srv.app.Use(middleware.BodyLimit(deps.Conf.Server.BodyLimit))
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	srv.app.GET("/", home(deps.Conf.AppName))
	srv.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := srv.app.Group("/v1")
	registerImportAPI(v1, deps.ImportSvc)

	return srv
}

func (srv *Server) Start() {
	if err := srv.app.Start(srv.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		srv.errors <- err
	}
}

// Errors delivers the error that stopped the listener.
func (srv *Server) Errors() <-chan error {
	return srv.errors
}

// ShutdownSignal delivers SIGINT, SIGTERM and the signal raised by SignalShutdown.
func (srv *Server) ShutdownSignal() <-chan os.Signal {
	return srv.shutdown
}

// SignalShutdown asks the application to stop gracefully.
func (srv *Server) SignalShutdown() {
	select {
	case srv.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (srv *Server) Shutdown(ctx context.Context) error {
	signal.Stop(srv.shutdown)
	return srv.app.Shutdown(ctx)
}

func (srv *Server) Close() error {
	return srv.app.Close()
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	srv.app.ServeHTTP(w, r)
}

func home(appName string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+appName+" API!")
	}
}
