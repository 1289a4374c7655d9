package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"propnest/internal/comparables"
	"propnest/internal/fraud"
	fraudmetrics "propnest/internal/fraud/metrics"
	httpapi "propnest/internal/http"
	jwttoken "propnest/internal/jwt_token"
	"propnest/internal/lifecycle"
	lifecyclemetrics "propnest/internal/lifecycle/metrics"
	listinghandler "propnest/internal/listing/handler"
	listingservice "propnest/internal/listing/service"
	"propnest/internal/notification"
	notificationmetrics "propnest/internal/notification/metrics"
	"propnest/internal/platform/config"
	"propnest/internal/platform/httpserver"
	"propnest/internal/platform/kafka"
	"propnest/internal/platform/logger"
	platformmetrics "propnest/internal/platform/metrics"
	redisclient "propnest/internal/platform/redis"
	verificationmetrics "propnest/internal/verification/metrics"
	vservice "propnest/internal/verification/service"
	"propnest/pkg/platform/audit"
	auditmemory "propnest/pkg/platform/audit/store/memory"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	infra, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close()

	auditor := audit.NewPublisher(auditmemory.NewInMemoryStore())

	var corpus comparables.Corpus
	reader, err := comparables.NewReader(infra.properties, cfg.Integrity.ComparablesLimit)
	if err != nil {
		return err
	}
	corpus = reader
	listingOpts := []listingservice.Option{
		listingservice.WithLogger(log),
		listingservice.WithAuditPublisher(auditor),
	}

	cache, err := redisclient.New(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		redisCache := comparables.NewRedisCache(reader, cache.Client, cfg.Integrity.ComparablesCacheTTL, log)
		corpus = redisCache
		listingOpts = append(listingOpts, listingservice.WithCacheInvalidator(redisCache))
		infra.health["redis"] = cache.Health
		log.Info("comparables cache enabled", "ttl", cfg.Integrity.ComparablesCacheTTL)
	}

	verifier, err := vservice.New(infra.verifications,
		vservice.WithLogger(log),
		vservice.WithAuditPublisher(auditor),
		vservice.WithMetrics(verificationmetrics.New(reg)),
	)
	if err != nil {
		return err
	}
	detector, err := fraud.New(infra.properties, corpus,
		fraud.WithLogger(log),
		fraud.WithAuditPublisher(auditor),
		fraud.WithMetrics(fraudmetrics.New(reg)),
		fraud.WithConfig(cfg.Integrity),
	)
	if err != nil {
		return err
	}
	lifecycleOpts := []lifecycle.Option{
		lifecycle.WithLogger(log),
		lifecycle.WithAuditPublisher(auditor),
		lifecycle.WithMetrics(lifecyclemetrics.New(reg)),
		lifecycle.WithSubmitRequiresReview(cfg.Lifecycle.SubmitRequiresReview),
	}
	if infra.tx != nil {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithTxRunner(infra.tx))
		listingOpts = append(listingOpts, listingservice.WithTxRunner(infra.tx))
	}
	controller, err := lifecycle.New(infra.properties, infra.outbox, lifecycleOpts...)
	if err != nil {
		return err
	}
	listings, err := listingservice.New(infra.properties, verifier, detector, controller, listingOpts...)
	if err != nil {
		return err
	}

	var relay *notification.Relay
	if len(cfg.Kafka.Brokers) > 0 {
		var closeRelay func()
		relay, closeRelay, err = buildRelay(ctx, cfg, infra, reg, log)
		if err != nil {
			return err
		}
		defer closeRelay()
	} else {
		log.Warn("no kafka brokers configured, lifecycle events stay in the outbox")
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:         log,
		TokenValidator: jwttoken.NewJWTServiceAdapter(jwtService),
		Metrics:        platformmetrics.New(reg),
		Gatherer:       reg,
		HealthChecks:   infra.health,
		Routes:         []httpapi.RouteRegistrar{listinghandler.New(listings, log)},
	})
	srv := httpserver.New(cfg.Addr, router, httpserver.WithErrorLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting propnest", "addr", cfg.Addr, "persistence", infra.kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("notification relay: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func buildRelay(ctx context.Context, cfg config.Server, infra *stores, reg prometheus.Registerer, log *slog.Logger) (*notification.Relay, func(), error) {
	client, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopics(ctx, client, 3, 1, cfg.Kafka.OwnerTopic, cfg.Kafka.BroadcastTopic); err != nil {
		client.Close()
		return nil, nil, err
	}
	opts := []notification.Option{
		notification.WithLogger(log),
		notification.WithMetrics(notificationmetrics.New(reg)),
	}
	if infra.tx != nil {
		opts = append(opts, notification.WithTxRunner(infra.tx))
	}
	relay, err := notification.NewRelay(infra.outbox, client, cfg.Kafka, opts...)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	infra.health["kafka"] = client.Ping
	return relay, client.Close, nil
}
