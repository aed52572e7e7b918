package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ocpisync/internal/config"
	"ocpisync/internal/db"
	"ocpisync/internal/httpapi"
	"ocpisync/internal/notify"
	"ocpisync/internal/ocpi"
	"ocpisync/internal/repo"
	"ocpisync/internal/scheduler"
	"ocpisync/internal/services"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "ocpisync").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connect failed")
	}
	defer d.Close()
	if err := d.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("schema migration failed")
	}

	endpoints := repo.NewEndpointsRepo(d.Pool)
	tokens := repo.NewTokensRepo(d.Pool)
	transactions := repo.NewTransactionsRepo(d.Pool)
	sites := repo.NewSitesRepo(d.Pool)
	stations := repo.NewStationsRepo(d.Pool)
	notifications := repo.NewStatusNotificationsRepo(d.Pool)
	authorizations := repo.NewAuthorizationsRepo(d.Pool)
	locks := repo.NewLocksRepo(d.Pool)

	client := ocpi.NewClient(cfg.OCPITimeout)
	notifier := notify.NewWebhookNotifier(cfg.PatchFailureWebhookURL, logger)

	locationSvc := services.NewLocationService(client, sites, stations, logger)
	tokenSvc := services.NewTokenService(client, tokens, cfg.TokenPageSize, logger)
	authSvc := services.NewAuthorizationService(client, authorizations, sites, cfg.AuthCacheTTL, logger)
	sessionSvc := services.NewSessionService(client, transactions, stations, locationSvc, logger)
	cdrSvc := services.NewCdrService(client, transactions, logger)
	statusSvc := services.NewStatusService(client, endpoints, locationSvc, notifications, locks, notifier, cfg.JobLockTTL, logger)
	jobSvc := services.NewJobService(tokenSvc, statusSvc, cdrSvc, sessionSvc, logger)

	sched := scheduler.New(endpoints, tokenSvc, statusSvc, cdrSvc, sessionSvc, locationSvc, logger)
	if err := sched.Start(cfg); err != nil {
		logger.Fatal().Err(err).Msg("starting scheduler failed")
	}

	srv := httpapi.NewServer(cfg, endpoints, transactions, stations, jobSvc, tokenSvc, authSvc, statusSvc, cdrSvc, sessionSvc, locationSvc, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("ocpisync listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	sched.Stop()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = httpServer.Shutdown(ctx2)
	logger.Info().Msg("ocpisync shutdown complete")
}
