package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seolens/audit-relay/internal/api"
	"github.com/seolens/audit-relay/internal/clock/system"
	"github.com/seolens/audit-relay/internal/config"
	"github.com/seolens/audit-relay/internal/dispatch"
	"github.com/seolens/audit-relay/internal/logging"
	"github.com/seolens/audit-relay/internal/pagespeed"
	"github.com/seolens/audit-relay/internal/quota"
	"github.com/seolens/audit-relay/internal/relay"
	"github.com/seolens/audit-relay/internal/report"
	"github.com/seolens/audit-relay/internal/whatsapp"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()

	tracker := quota.New(cfg.Quota.MaxAuditsPerDay, cfg.QuotaResetInterval(), logger.Named("quota"))
	go tracker.Run(ctx)

	caller := relay.NewCaller(relay.Config{
		MaxAttempts:    cfg.PageSpeed.MaxAttempts,
		AttemptTimeout: cfg.PageSpeedTimeout(),
		BackoffBase:    cfg.PageSpeedBackoffBase(),
	}, logger.Named("relay"))
	psClient := pagespeed.NewClient(cfg.PageSpeed.BaseURL, cfg.PageSpeed.APIKey)
	analyzer := pagespeed.NewService(psClient, caller, logger.Named("pagespeed"))

	waClient := whatsapp.NewClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.InstanceID, cfg.WhatsApp.AccessToken)
	formatter := report.NewTextFormatter(clock)
	dispatcher := dispatch.New(tracker, waClient, formatter, dispatch.Config{
		MaxRecipients:   cfg.Quota.MaxRecipients,
		DeliveryTimeout: cfg.WhatsAppTimeout(),
	}, logger.Named("dispatch"))

	apiServer := api.NewServer(analyzer, dispatcher, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
