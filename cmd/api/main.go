package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/api/handlers"
	"github.com/colaso96/beforeyouradvisor/internal/api/middleware"
	"github.com/colaso96/beforeyouradvisor/internal/app"
	"github.com/colaso96/beforeyouradvisor/internal/config"
	"github.com/colaso96/beforeyouradvisor/internal/infra/postgres"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
)

func main() {
	cfg := config.Load()

	var (
		port    = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		migrate = flag.Bool("migrate", true, "Apply the embedded schema on startup")
	)
	flag.Parse()

	log := logger.Configure(cfg.LogFormat, cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	// Jobs outlive the request that queued them; cancel on shutdown.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	a, err := app.New(ctx, workerCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	if *migrate {
		if err := postgres.Migrate(ctx, a.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
	}
	if a.Exporter != nil {
		if err := a.Exporter.EnsureTable(ctx); err != nil {
			log.Warn().Err(err).Msg("BigQuery export table unavailable")
		}
	}

	mux := http.NewServeMux()
	handlers.Register(mux,
		handlers.NewJobsHandler(a.Service),
		handlers.NewTransactionsHandler(a.Transactions),
		handlers.NewChatHandler(a.Agent),
	)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("filestore", cfg.FileStore).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain queued jobs; past the deadline the running job is cancelled.
	if err := a.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job queue did not drain before shutdown")
		cancelWorker()
	}

	log.Info().Msg("Server exited")
}
