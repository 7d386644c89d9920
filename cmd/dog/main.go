package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/membergate/discourse-on-ghost/pkg/admin"
	"github.com/membergate/discourse-on-ghost/pkg/async"
	"github.com/membergate/discourse-on-ghost/pkg/config"
	"github.com/membergate/discourse-on-ghost/pkg/discourse"
	"github.com/membergate/discourse-on-ghost/pkg/ghost"
	"github.com/membergate/discourse-on-ghost/pkg/membersync"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
	"github.com/membergate/discourse-on-ghost/pkg/server"
	"github.com/membergate/discourse-on-ghost/pkg/signing"
	"github.com/membergate/discourse-on-ghost/pkg/sso"
	"github.com/membergate/discourse-on-ghost/pkg/webhook"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	ghostClient, err := ghost.NewClient(cfg.Ghost, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Ghost client")
		os.Exit(1)
	}

	forumClient, err := discourse.NewClient(cfg.Discourse, logger, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to create Discourse client")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer := membersync.NewSyncer(ghostClient, forumClient, logger, metrics, cfg.Sync.JobDelay)
	tierSyncer := membersync.NewTierSyncer(ghostClient, forumClient, logger)

	var verifier sso.TokenVerifier
	if cfg.SSO.Mode == config.SSOModeJWT {
		verifier = sso.NewIdentityVerifier(ctx, cfg.SSO.JWTIssuer, ghostClient.JWKSEndpoint())
	}

	ssoController := sso.NewController(ghostClient, signing.NewCodec(cfg.Discourse.SSOSecret), verifier, cfg.SSO, logger)
	webhookController := webhook.NewController(cfg.Webhooks, syncer, logger, metrics)
	adminController := admin.NewController(ghostClient, tierSyncer, logger, forumClient)

	handlers := server.Handlers{
		SSO:           ssoController.Handle,
		MemberUpdated: webhookController.MemberUpdated,
		SyncTiers:     adminController.SyncTiers,
		ClearCaches:   adminController.ClearCaches,
	}
	if cfg.Webhooks.DeleteAction != config.DeleteActionNone {
		handlers.MemberDeleted = webhookController.MemberDeleted
	}

	srv := server.New(cfg, handlers, logger, metrics)

	var scheduler *cron.Cron
	if cfg.Sync.TiersCron != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Sync.TiersCron, func() {
			async.SafeGo(ctx, 5*time.Minute, "scheduled_tier_sync", logger, func(ctx context.Context) error {
				return tierSyncer.SyncTiersToGroups(ctx, false)
			})
		})
		if err != nil {
			logger.WithError(err).Error("Invalid tier sync schedule")
			os.Exit(1)
		}
		scheduler.Start()
		logger.WithField("schedule", cfg.Sync.TiersCron).Info("Scheduled recurring tier sync")
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Start()
	}()

	select {
	case err := <-errs:
		if err != nil {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}

	// Let queued sync jobs finish before exiting.
	syncer.Queue().Wait()
	adminController.Queue().Wait()

	logger.Info("Shutdown complete")
}
