package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"saas-billing/internal/config"
	"saas-billing/internal/domain/ports/adapter"
	pg "saas-billing/internal/infra/db/postgres"
	"saas-billing/internal/infra/gateway"
	"saas-billing/internal/infra/logging"
	"saas-billing/internal/infra/notify"
	red "saas-billing/internal/infra/redis"
	"saas-billing/internal/infra/sched"
	"saas-billing/internal/infra/web"
	"saas-billing/internal/infra/worker"
	"saas-billing/internal/usecase"
	"saas-billing/internal/usecase/pricing"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, log notifications)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	poolSize := int32(cfg.Database.PoolSize)
	if poolSize <= 0 {
		poolSize = 10
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, poolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	accountRepo := pg.NewAccountRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	invoiceRepo := pg.NewInvoiceRepo(pool)
	outboxRepo := pg.NewOutboxRepo(pool)
	eventRepo := pg.NewWebhookEventRepo(pool)
	auditQueries := pg.NewAuditQueries(pool)
	tm := pg.NewTxManager(pool)

	// ---- Gateway ----
	var gw adapter.PaymentGateway
	if cfg.Runtime.Dev && cfg.Gateway.BaseURL == "" {
		gw = gateway.NewNoopGateway()
		logger.Warn().Msg("payment gateway: noop (dev)")
	} else {
		gw = gateway.NewClient(cfg.Gateway)
		logger.Info().Str("gateway", cfg.Gateway.Name).Str("base_url", cfg.Gateway.BaseURL).Msg("payment gateway configured")
	}
	normalizer := gateway.NewNormalizer(cfg.Gateway, logger)

	// ---- Use cases ----
	accountUC := usecase.NewAccountUseCase(accountRepo)
	planUC := usecase.NewPlanUseCase(planRepo)
	invoiceUC := usecase.NewInvoiceUseCase(invoiceRepo, locker, cfg.Billing.TaxRateBps, logger)
	recUC := usecase.NewReconcileUseCase(payRepo, subRepo, accountRepo, outboxRepo, invoiceUC, gw, tm, cfg.Billing.PendingCutoff, logger)
	checkoutUC := usecase.NewCheckoutUseCase(accountRepo, planRepo, subRepo, payRepo, gw, pricing.DaysRemaining{}, tm, cfg.Billing.TaxRateBps, logger)
	auditUC := usecase.NewAuditUseCase(auditQueries, cfg.Billing.AuditEpsilon, logger)

	// ---- Notification pipeline ----
	var sink adapter.NotificationSink
	if cfg.Notify.SMTPAddr == "" {
		sink = notify.NewLogSink(logger)
	} else {
		sink = notify.NewSMTPSink(&cfg.Notify)
	}
	pool2 := worker.NewPool(cfg.Notify.Workers)
	pool2.Start(ctx)
	defer pool2.Stop()

	dispatcher := sched.NewOutboxDispatcher(cfg.Notify.Interval, cfg.Notify.MaxAttempts, outboxRepo, sink, pool2, logger)
	go func() { _ = dispatcher.Run(ctx) }()

	// ---- Timeout reaper ----
	reaper := sched.NewTimeoutReaper(cfg.Billing.ReaperInterval, recUC, logger)
	go func() { _ = reaper.Run(ctx) }()

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TTL)
	srv := web.NewServer(normalizer, eventRepo, recUC, checkoutUC, accountUC, planUC, invoiceUC, auditUC, auth, rateLimiter, logger)
	go func() {
		if err := srv.Listen(cfg.HTTP.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()
}
