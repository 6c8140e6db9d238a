package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/rpattn/crmimport/internal/config"
	"github.com/rpattn/crmimport/internal/crm"
	"github.com/rpattn/crmimport/internal/db"
	"github.com/rpattn/crmimport/internal/importer"
	"github.com/rpattn/crmimport/internal/logging"
	"github.com/rpattn/crmimport/internal/metrics"
	"github.com/rpattn/crmimport/internal/middleware"
	"github.com/rpattn/crmimport/internal/repository"
)

func main() {
	cfg, err := config.Load(os.Getenv("CRMIMPORT_CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.LogEnv); err != nil {
		panic(err)
	}
	defer logging.Close()
	logger := logging.Named("server")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.NewRegistry()

	serviceOpts := []importer.Option{importer.WithMetrics(reg)}
	var handlerOpts []importer.HandlerOption

	// Run history is optional
	if cfg.Database.Enabled {
		conn, err := db.NewConnection(ctx, cfg.Database.Config)
		if err != nil {
			logger.Fatalw("failed to connect to database", "error", err)
		}
		defer conn.Close()

		if err := db.RunMigrations(cfg.Database.Config); err != nil {
			logger.Fatalw("failed to run migrations", "error", err)
		}

		runs := repository.NewImportRunRepository(conn.Pool)
		serviceOpts = append(serviceOpts, importer.WithStore(runs))
		handlerOpts = append(handlerOpts, importer.WithOutcomeReader(runs))
	}
	handlerOpts = append(handlerOpts,
		importer.WithCacheTTL(cfg.Server.FieldsCacheTTL, cfg.Server.ArtifactTTL),
		importer.WithDefaultCheckDuplicates(cfg.Import.CheckDuplicates),
	)

	clientOpts := append(cfg.ClientOptions(reg), crm.WithLogger(logging.Named("crm")))
	clients := func(webhook string) (importer.Client, error) {
		return crm.NewClient(webhook, clientOpts...)
	}

	service := importer.NewService(serviceOpts...)
	handler := importer.NewHTTPHandler(service, clients, handlerOpts...)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	router := chi.NewRouter()
	router.Use(corsHandler.Handler)
	router.Use(middleware.LoggingMiddleware(logging.Named("http"), reg))
	router.Mount("/api", handler.Routes())
	router.Handle("/metrics", reg.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Imports run synchronously inside the request, so writes get a long deadline.
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infow("starting import server", "addr", cfg.Server.Addr, "history", cfg.Database.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalw("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
