package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	dig_container "github.com/carosello75/courseconnect/apps/api/di/dig"
	echoapi "github.com/carosello75/courseconnect/apps/api/echo"
	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/user"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		closeDB dig_container.DBCloser,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)

		core.ParseEmailTemplates(apiLogger)

		user.LoadCommonPasswords(apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := closeDB(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		go server.Start()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
