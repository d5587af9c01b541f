package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"go.uber.org/dig"

	dig_container "github.com/NoheilaRamdani/sae401/apps/api/di/dig"
	echoapi "github.com/NoheilaRamdani/sae401/apps/api/echo"
	"github.com/NoheilaRamdani/sae401/core"
)

type closers struct {
	dig.In
	DB     dig_container.Closer `name:"dbClose"`
	Events dig_container.Closer `name:"eventsClose"`
}

func main() {
	inMemory := flag.Bool("inmem", false, "keep data in memory instead of Postgres")
	graph := flag.Bool("graph", false, "print the dependency graph and exit")
	flag.Parse()

	c := dig_container.New(dig_container.Options{InMemory: *inMemory})
	if *graph {
		must(dig_container.Visualize(c))
		return
	}
	must(c.Invoke(start))
}

func start(conf *core.Config, apiLogger core.Logger, cls closers, server *echoapi.Server) {
	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	defer func() {
		if err := cls.Events(); err != nil {
			apiLogger.Error("failed to close the broker connection", err)
		}
		if err := cls.DB(); err != nil {
			apiLogger.Fatal("failed to close the database", err)
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
		apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

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
