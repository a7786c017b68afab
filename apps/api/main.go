package main

import (
	"context"
	"fmt"
	"log"
	"os"

	echoapi "github.com/brightwater/swereport/apps/api/echo"
	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/project"
	"github.com/brightwater/swereport/core/session"
	"github.com/brightwater/swereport/services/arcgis"
	logsvc "github.com/brightwater/swereport/services/logger"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.LoadConfig()
	if err != nil {
		log.Fatalf("%+v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	client, err := arcgis.NewClient(arcgis.Config{
		PortalURL:       conf.ArcGIS.PortalURL,
		Username:        conf.ArcGIS.Username,
		Password:        conf.ArcGIS.Password,
		TokenExpiration: conf.ArcGIS.TokenExpiration,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up arcgis client: %v", err), err)
	}

	registry, err := project.NewRegistry(conf.ItemIDs(project.Keys()), client, project.Options{
		Timeout: conf.Fetch.Timeout,
		Retries: conf.Fetch.Retries,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up project registry: %v", err), err)
	}
	for _, p := range registry.Projects() {
		if !p.Configured {
			logger.Warn(fmt.Sprintf("no hosted table configured for %q", p.Label))
		}
	}

	sessions, err := session.NewManager(registry, session.Options{
		FetchTimeout: conf.Fetch.Timeout,
		TTL:          conf.Session.TTL,
		MaxSessions:  conf.Session.MaxSessions,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up sessions: %v", err), err)
	}
	defer sessions.Close()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Projects:   registry,
			Sessions:   sessions,
			Validate:   validate,
			Translator: translator,
		},
	)
	server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
