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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/budget"
	"kayo/internal/checkin"
	"kayo/internal/church"
	"kayo/internal/comms"
	"kayo/internal/delegate"
	"kayo/internal/event"
	"kayo/internal/export"
	"kayo/internal/fund"
	"kayo/internal/ledger"
	"kayo/internal/payment"
	"kayo/internal/payment/mpesa"
	"kayo/internal/platform/config"
	"kayo/internal/platform/httpserver"
	"kayo/internal/platform/logger"
	"kayo/internal/platform/metrics"
	"kayo/internal/platform/middleware"
	"kayo/internal/platform/postgres"
	platformredis "kayo/internal/platform/redis"
)

// Badges stay valid through the whole event season, not just the token TTL
// used for staff sessions.
const badgeTTL = 30 * 24 * time.Hour

// main wires dependencies together and owns the process lifecycle. Business
// logic lives in the internal feature packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Error("run schema migrations", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	var rawRedis *goredis.Client
	if redisClient != nil {
		rawRedis = redisClient.Client
		defer redisClient.Close()
	}

	// Audit trail. Entries land in postgres; with Kafka configured they are
	// mirrored to the stream as well.
	auditOpts := []audit.Option{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Error("connect to kafka", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		auditOpts = append(auditOpts, audit.WithPublisher(publisher))
	}
	auditSvc := audit.NewService(audit.NewPostgresStore(pool), log, m, auditOpts...)
	defer auditSvc.Close()

	tokens := auth.NewTokenIssuer(cfg.Server.JWTSigningKey, cfg.Server.TokenTTL)

	mailer := comms.NewSMTPMailer(cfg.SMTP)
	var otp *auth.OTPManager
	if mailer.Configured() {
		otp = auth.NewOTPManager(redisClient, mailer)
	}

	userStore := auth.NewPostgresUserStore(pool)
	authSvc := auth.NewService(
		userStore,
		auth.NewPostgresSessionStore(pool),
		auth.NewPostgresPermissionRequestStore(pool),
		tokens,
		otp,
		log, m, auditSvc,
	)

	eventSvc := event.NewService(
		event.NewPostgresEventStore(pool),
		event.NewPostgresTierStore(pool),
		cfg.App.DelegateFeeCents,
		log, auditSvc,
	)

	delegateSvc := delegate.NewService(
		delegate.NewPostgresStore(pool),
		delegate.NewPostgresPendingStore(pool),
		authSvc,
		eventSvc,
		log, m, auditSvc,
	)

	ledgerSvc := ledger.NewService(
		ledger.NewPostgresAccountStore(pool),
		ledger.NewPostgresJournalStore(pool),
		ledger.NewPostgresVoucherStore(pool),
		log, m, auditSvc,
	)
	if err := ledgerSvc.SeedChart(ctx); err != nil {
		log.Error("seed chart of accounts", "error", err)
		os.Exit(1)
	}

	smsClient := comms.NewSMSClient(cfg.SMS, log)
	paymentOpts := payment.Options{
		Gateway:       mpesa.New(cfg.MPesa, rawRedis, log),
		Permissions:   authSvc,
		Ledger:        ledgerSvc,
		Redis:         rawRedis,
		Metrics:       m,
		AuditRecorder: auditSvc,
	}
	if smsClient.Configured() {
		paymentOpts.SMS = smsClient
	}
	paymentSvc := payment.NewService(
		payment.NewPostgresStore(pool),
		payment.NewPostgresDiscrepancyStore(pool),
		payment.NewPostgresReminderStore(pool),
		delegateSvc,
		eventSvc,
		log, paymentOpts,
	)

	fundSvc := fund.NewService(
		fund.NewPostgresPledgeStore(pool),
		fund.NewPostgresScheduleStore(pool),
		fund.NewPostgresTransferStore(pool),
		authSvc,
		ledgerSvc,
		log, m, auditSvc,
	)

	budgetSvc := budget.NewService(budget.NewPostgresStore(pool), log, m, auditSvc)

	badges := checkin.NewBadgeIssuer(cfg.Server.JWTSigningKey, badgeTTL)
	checkinSvc := checkin.NewService(checkin.NewPostgresStore(pool), delegate.NewPostgresStore(pool), badges, log, m, auditSvc)

	commsOpts := comms.Options{
		Users:         userStore,
		Metrics:       m,
		AuditRecorder: auditSvc,
	}
	if smsClient.Configured() {
		commsOpts.SMS = smsClient
	}
	if mailer.Configured() {
		commsOpts.Email = mailer
	}
	commsSvc := comms.NewService(comms.NewPostgresStore(pool), delegateSvc, log, commsOpts)

	exportSvc := export.NewService(delegateSvc, paymentSvc, ledgerSvc, budgetSvc, log, auditSvc)

	// Background jobs run through river on the same postgres pool.
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		log.Error("init river migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		log.Error("run river migrations", "error", err)
		os.Exit(1)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, payment.NewReminderWorker(paymentSvc))
	river.AddWorker(workers, payment.NewStatusPollWorker(paymentSvc))
	river.AddWorker(workers, fund.NewInstallmentWorker(fundSvc))
	river.AddWorker(workers, comms.NewSendWorker(commsSvc))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(5*time.Minute),
				func() (river.JobArgs, *river.InsertOpts) {
					return payment.StatusPollArgs{}, nil
				},
				nil,
			),
			river.NewPeriodicJob(
				river.PeriodicInterval(24*time.Hour),
				func() (river.JobArgs, *river.InsertOpts) {
					return payment.ReminderArgs{}, nil
				},
				nil,
			),
			river.NewPeriodicJob(
				river.PeriodicInterval(24*time.Hour),
				func() (river.JobArgs, *river.InsertOpts) {
					return fund.InstallmentArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		log.Error("init river client", "error", err)
		os.Exit(1)
	}
	// The queue's workers need the comms service, and the comms service
	// enqueues through the queue, so the client is attached after both exist.
	commsSvc.SetJobs(riverClient)

	if err := riverClient.Start(ctx); err != nil {
		log.Error("start river client", "error", err)
		os.Exit(1)
	}

	jwtValidator := auth.NewSessionValidator(tokens, authSvc)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(log))
	r.Use(middleware.LatencyMiddleware(m))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		auth.NewHandler(authSvc, jwtValidator, log).Register(r)
		event.NewHandler(eventSvc, jwtValidator, log).Register(r)
		church.NewHandler().Register(r)
		delegate.NewHandler(delegateSvc, jwtValidator, log).Register(r)
		payment.NewHandler(paymentSvc, jwtValidator, log).Register(r)
		fund.NewHandler(fundSvc, jwtValidator, log).Register(r)
		ledger.NewHandler(ledgerSvc, jwtValidator, log).Register(r)
		budget.NewHandler(budgetSvc, jwtValidator, log).Register(r)
		checkin.NewHandler(checkinSvc, jwtValidator, log).Register(r)
		comms.NewHandler(commsSvc, jwtValidator, log).Register(r)
		export.NewHandler(exportSvc, jwtValidator, log).Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtValidator, log))
			audit.NewHandler(auditSvc, log).Register(r)
		})
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)

	srv := httpserver.New(cfg.Server.Addr, handler)

	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Error("stop river client", "error", err)
	}
}
