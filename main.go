package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jetstream-aero/embedq/api"
	"github.com/jetstream-aero/embedq/configs"
	"github.com/jetstream-aero/embedq/db"
	"github.com/jetstream-aero/embedq/indexer"
	jobmetrics "github.com/jetstream-aero/embedq/jobs/metrics"
	"github.com/jetstream-aero/embedq/jobs/recovery"
	"github.com/jetstream-aero/embedq/jobs/scheduler"
	"github.com/jetstream-aero/embedq/metrics"
	"github.com/jetstream-aero/embedq/services"

	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"
)

func main() {
	authSecret := getAuthSecret()
	if authSecret == "" {
		log.Fatal().Msg("auth secret is not provided: either set EMBEDQ_AUTH_SECRET environment variable or pass it as a command line argument --auth-secret")
		panic("auth secret is not provided: either set EMBEDQ_AUTH_SECRET environment variable or pass it as a command line argument --auth-secret")
	}

	appConfigs, err := configs.NewAppConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
		panic(err)
	}

	if appConfigs.SkipMigrations {
		log.Info().Msg("skipping migrations, schema is owned by the platform")
	} else {
		runMigrations(appConfigs.DatabaseURL)
	}

	repo, err := db.NewPostgresRepo(appConfigs.DatabaseURL, appConfigs, context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Postgres repository")
		panic(err)
	}
	defer repo.Close()

	metricsService := metrics.NewMetricsService(appConfigs.MetricsEnabled)
	indexerClient := indexer.NewClient(appConfigs)

	processorService := services.NewProcessorService(repo, indexerClient, appConfigs, metricsService)
	queueService := services.NewQueueService(repo, metricsService)

	if appConfigs.SchedulerEnabled {
		processingJob := scheduler.NewProcessingJob(processorService, appConfigs.JobsIntervals.Scheduler)
		defer processingJob.Close()
	}
	staleItemsRecoveryJob := recovery.NewStaleItemsRecoveryJob(repo, metricsService, appConfigs.JobsIntervals.StaleRecovery)
	defer staleItemsRecoveryJob.Close()
	queueDepthMetricsJob := jobmetrics.NewQueueDepthMetricsJob(metricsService, repo, appConfigs.JobsIntervals.QueueDepthGauge)
	defer queueDepthMetricsJob.Close()

	shutdownCh := make(chan struct{})

	embedqRouter := api.NewRouter(processorService, queueService, authSecret, appConfigs.MetricsEnabled)

	embedqServer := &http.Server{
		Addr:              appConfigs.ListenAddr,
		Handler:           http.TimeoutHandler(embedqRouter.NewRouter(), appConfigs.ServerConfig.Timeouts.Handle, "timeout"),
		WriteTimeout:      appConfigs.ServerConfig.Timeouts.Write,
		ReadTimeout:       appConfigs.ServerConfig.Timeouts.Read,
		ReadHeaderTimeout: appConfigs.ServerConfig.Timeouts.ReadHeader,
		IdleTimeout:       appConfigs.ServerConfig.Timeouts.Idle,
	}

	go func() {
		err := embedqServer.ListenAndServe()
		if err != nil {
			close(shutdownCh)
			if errors.Is(err, http.ErrServerClosed) {
				log.Info().Msg("server shutdown")
			} else {
				log.Warn().Err(err).Msg("server failed")
			}
		}
	}()

	for range shutdownCh {
		log.Info().Msg("server shutdown requested")
		err := embedqServer.Shutdown(context.Background())
		if err != nil {
			err := embedqServer.Close()
			if err != nil {
				log.Warn().Err(err).Msg("failed to close server")
				return
			}
		}
	}
}

func getAuthSecret() string {
	authSecret := os.Getenv("EMBEDQ_AUTH_SECRET")
	if authSecret != "" {
		return authSecret
	}

	var flagAuthSecret string
	flag.StringVar(&flagAuthSecret, "auth-secret", "", "Authentication secret")
	flag.Parse()

	return flagAuthSecret
}

func runMigrations(databaseURL string) {
	// golang-migrate's pgx/v5 driver registers the pgx5:// scheme
	dbURL := databaseURL
	if strings.HasPrefix(dbURL, "postgresql://") {
		dbURL = "pgx5://" + strings.TrimPrefix(dbURL, "postgresql://")
	} else if strings.HasPrefix(dbURL, "postgres://") {
		dbURL = "pgx5://" + strings.TrimPrefix(dbURL, "postgres://")
	}

	m, err := migrate.New("file://db/migrations", dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migration instance")
		panic(err)
	}

	err = m.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations to run")
			return
		}
		log.Fatal().Err(err).Msg("failed to run migrations")
		panic(fmt.Errorf("failed to run migrations: %w", err))
	} else {
		log.Info().Msg("migrations applied successfully")
	}
}
