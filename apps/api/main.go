package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	dig_container "github.com/toure-cloud/institutdeveloppement/apps/api/di/dig"
	echoapi "github.com/toure-cloud/institutdeveloppement/apps/api/echo"
	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/user"
	appfs "github.com/toure-cloud/institutdeveloppement/fs"
	logsvc "github.com/toure-cloud/institutdeveloppement/services/logger"
)

type appParams struct {
	dig.In

	Conf       *core.Config
	APILogger  *logsvc.RollbarLogger
	DBLogger   core.Logger `name:"dbLogger"`
	DB         *sqlx.DB `optional:"true"`
	Redis      *redis.Client
	Registry   *prometheus.Registry
	Validate   *validator.Validate
	Translator ut.Translator
	Server     *echoapi.Server
}

func main() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(p appParams) {
	conf, apiLogger := p.Conf, p.APILogger

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q : %s", conf.Build, conf))
	defer apiLogger.Close()

	core.InitValidators(p.Validate, p.Translator)
	user.InitValidators(p.Validate, p.Translator)
	enrollment.InitValidators(p.Validate, p.Translator)

	core.ParseEmailTemplates(appfs.FS, !conf.Debug, apiLogger)

	user.LoadCommonPasswords(appfs.FS, "common-passwords.txt.gz", apiLogger)

	if p.DB != nil {
		defer func() {
			if err := p.DB.Close(); err != nil {
				p.DBLogger.Fatal("Failed to close", err)
			}
		}()
	}
	if p.Redis != nil {
		defer func() { _ = p.Redis.Close() }()
	}
	defer apiLogger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := p.Server
	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
