// Command server runs the scorepass API: identity registration, attestation
// verification, encrypted scoring, request orchestration, and credential
// issuance behind one HTTP surface.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	attestationhandler "scorepass/internal/attestation/handler"
	attestationmetrics "scorepass/internal/attestation/metrics"
	attestationsvc "scorepass/internal/attestation/service"
	attestationstore "scorepass/internal/attestation/store"
	credentialhandler "scorepass/internal/credential/handler"
	credentialmetrics "scorepass/internal/credential/metrics"
	credentialsvc "scorepass/internal/credential/service"
	credentialstore "scorepass/internal/credential/store"
	identityhandler "scorepass/internal/identity/handler"
	identitymetrics "scorepass/internal/identity/metrics"
	identitysvc "scorepass/internal/identity/service"
	identitystore "scorepass/internal/identity/store"
	"scorepass/internal/notify"
	notifyworker "scorepass/internal/notify/worker"
	"scorepass/internal/platform/config"
	"scorepass/internal/platform/database"
	"scorepass/internal/platform/health"
	"scorepass/internal/platform/httpserver"
	"scorepass/internal/platform/kafka"
	"scorepass/internal/platform/kafka/producer"
	"scorepass/internal/platform/logger"
	platformredis "scorepass/internal/platform/redis"
	requesthandler "scorepass/internal/request/handler"
	requestmetrics "scorepass/internal/request/metrics"
	requestsvc "scorepass/internal/request/service"
	requeststore "scorepass/internal/request/store"
	"scorepass/internal/request/workers/sweeper"
	scoringhandler "scorepass/internal/scoring/handler"
	scoringmetrics "scorepass/internal/scoring/metrics"
	scoringsvc "scorepass/internal/scoring/service"
	scoringstore "scorepass/internal/scoring/store"
	"scorepass/internal/tokens"
	httptransport "scorepass/internal/transport/http"
	"scorepass/pkg/enc"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	log.Info("initializing scorepass",
		"addr", cfg.Addr,
		"postgres", cfg.PostgresURL != "",
		"redis", cfg.RedisURL != "",
		"kafka", cfg.KafkaBrokers != "",
	)

	backend := enc.NewSimulator()
	healthHandler := health.New(envOr("SCOREPASS_ENV", "development"))

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.PostgresURL
	pool, err := database.New(dbCfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		healthHandler.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}

	redisCfg := platformredis.DefaultConfig()
	redisCfg.URL = cfg.RedisURL
	redisClient, err := platformredis.New(redisCfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		notifyStore     notify.Store
		identityStore   identitysvc.Store
		attestStore     attestationsvc.Store
		scoringStore    scoringsvc.Store
		requestStore    requestsvc.Store
		credentialStore credentialstore.Store
	)
	if pool != nil {
		db := pool.DB()
		notifyStore = notify.NewPostgres(db)
		identityStore = identitystore.NewPostgres(db)
		attestStore = attestationstore.NewPostgres(db)
		scoringStore = scoringstore.NewPostgres(db, backend)
		requestStore = requeststore.NewPostgres(db)
		credentialStore = credentialstore.NewPostgres(db)
	} else {
		notifyStore = notify.NewInMemoryStore()
		identityStore = identitystore.New()
		attestStore = attestationstore.New()
		scoringStore = scoringstore.New()
		requestStore = requeststore.New()
		credentialStore = credentialstore.New()
	}
	if redisClient != nil {
		credentialStore = credentialstore.NewCached(credentialStore, redisClient.Client, 5*time.Minute)
	}

	notifier := notify.NewPublisher(notifyStore, log)

	identities := identitysvc.NewService(identityStore, notifier,
		identitysvc.WithMetrics(identitymetrics.New()),
		identitysvc.WithLogger(log),
	)
	attestations := attestationsvc.NewService(attestStore, notifier, []byte(cfg.ChainSalt),
		attestationsvc.WithMetrics(attestationmetrics.New()),
		attestationsvc.WithLogger(log),
		attestationsvc.WithWindow(cfg.AttestationMinDelay, cfg.AttestationMaxAge),
	)
	scoring := scoringsvc.NewService(scoringStore, backend, notifier,
		scoringsvc.WithMetrics(scoringmetrics.New()),
		scoringsvc.WithLogger(log),
	)
	credentials := credentialsvc.NewService(credentialStore, notifier,
		credentialsvc.WithMetrics(credentialmetrics.New()),
		credentialsvc.WithLogger(log),
	)
	requests := requestsvc.NewService(
		requestStore,
		identities,
		attestations,
		scoring,
		credentials,
		backend,
		notifier,
		requestsvc.Config{CredentialTTL: cfg.CredentialTTL},
		requestsvc.WithMetrics(requestmetrics.New()),
		requestsvc.WithLogger(log),
	)

	tokenManager := tokens.New(cfg.JWTSigningKey, 24*time.Hour)

	router := httptransport.NewRouter(httptransport.Handlers{
		Identities:   identityhandler.New(identities, log),
		Attestations: attestationhandler.New(attestations, log),
		Scoring:      scoringhandler.New(scoring, log),
		Requests:     requesthandler.New(requests, log),
		Credentials:  credentialhandler.New(credentials, log),
		Health:       healthHandler,
	}, tokenManager, cfg.AdminToken, log)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.KafkaBrokers != "" {
		producerCfg := kafka.DefaultProducerConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		prod, err := producer.New(producer.Config(producerCfg), log)
		if err != nil {
			return err
		}
		defer prod.Close()
		kafkaHealth := kafka.NewHealthChecker(cfg.KafkaBrokers)
		healthHandler.RegisterCheck("kafka", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return kafkaHealth.Check(ctx)
		})

		outbox := notifyworker.New(notifyStore, prod, notifyworker.WithLogger(log))
		g.Go(func() error {
			log.Info("starting notification outbox worker")
			if err := outbox.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Warn("kafka brokers not configured, notifications stay in the outbox")
	}

	sw := sweeper.New(requests, cfg.RequestDeadline,
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithLogger(log),
	)
	g.Go(func() error {
		log.Info("starting request expiry sweeper",
			"interval", cfg.SweepInterval,
			"deadline", cfg.RequestDeadline,
		)
		if err := sw.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
