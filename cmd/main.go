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

	// Drivers
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	// Instrumentation
	"github.com/exaring/otelpgx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Interne
	"github.com/minsuRob/sportcomm-sub010/config"
	"github.com/minsuRob/sportcomm-sub010/internal/adapters/primary/events"
	"github.com/minsuRob/sportcomm-sub010/internal/adapters/primary/rest"
	"github.com/minsuRob/sportcomm-sub010/internal/adapters/secondary/cache"
	"github.com/minsuRob/sportcomm-sub010/internal/adapters/secondary/eventbroker"
	"github.com/minsuRob/sportcomm-sub010/internal/adapters/secondary/graph"
	"github.com/minsuRob/sportcomm-sub010/internal/adapters/secondary/memory"
	"github.com/minsuRob/sportcomm-sub010/internal/adapters/secondary/repository"
	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
	"github.com/minsuRob/sportcomm-sub010/internal/core/services"
)

// storage regroupe les adapters de persistance choisis par la config.
type storage struct {
	posts   ports.PostRepository
	members ports.MembershipIndex
	tx      ports.Transactor
	outbox  ports.Outbox
	close   func()
}

func main() {
	// 1. Config & Logger
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	initLogger(cfg)
	slog.Info("🚀 Starting Post Service", "env", cfg.Env, "storage", cfg.StorageBackend, "broker", cfg.Broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 3. Infrastructure: persistance
	store, err := initStorage(ctx, cfg)
	if err != nil {
		slog.Error("Unable to init storage", "error", err)
		os.Exit(1)
	}
	defer store.close()

	// 4. Infrastructure: Event Broker
	publisher, js, closeBroker, err := initBroker(ctx, cfg)
	if err != nil {
		slog.Error("Unable to init broker", "error", err)
		os.Exit(1)
	}
	defer closeBroker()

	// 5. Core
	postService := services.NewPostService(store.posts, store.members, store.tx, store.outbox, publisher)

	relay := services.NewOutboxRelay(store.outbox, publisher)
	relay.Interval = cfg.OutboxInterval
	relay.Grace = cfg.OutboxGrace
	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		_ = relay.Run(relayCtx)
	}()

	// 6. Consumer des compteurs d'équipe (JetStream + Redis)
	var consumer jetstream.ConsumeContext
	if js != nil && cfg.RedisAddr != "" {
		consumer, err = initTeamStatsConsumer(ctx, cfg, js)
		if err != nil {
			slog.Error("Unable to start team stats consumer", "error", err)
			os.Exit(1)
		}
		slog.Info("👂 Listening for events (JetStream)", "consumer", events.ConsumerName)
	}

	// 7. Primary Adapter (HTTP)
	pem, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		slog.Error("Unable to read JWT public key", "path", cfg.JWTPublicKeyPath, "error", err)
		os.Exit(1)
	}
	validator, err := rest.NewJWTValidator(pem, cfg.JWTIssuer)
	if err != nil {
		slog.Error("Invalid JWT public key", "error", err)
		os.Exit(1)
	}

	server := rest.NewServer(postService, validator, cfg.CORSAllowedOrigins)
	srvHTTP := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("📡 Post Service listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if consumer != nil {
		consumer.Stop()
	}
	// Les publications en vol finissent avant la fermeture du broker
	postService.Wait()
	stopRelay()
	<-relayDone

	slog.Info("👋 Server exited")
}

func initStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	if cfg.StorageBackend == "memory" {
		mem := memory.NewStore()
		if cfg.Env == "local" {
			seedDemo(mem)
		}
		slog.Warn("⚠️ Using in-memory storage, data is lost on restart")
		return &storage{
			posts:   memory.NewPostRepo(mem),
			members: memory.NewMembershipIndex(mem),
			tx:      memory.NewTransactor(mem),
			outbox:  memory.NewOutbox(mem),
			close:   func() {},
		}, nil
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		return nil, err
	}
	// Instrumentation SQL (requêtes visibles dans Jaeger)
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("✅ Connected to Postgres")

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("✅ Migrations applied")
	}

	s := &storage{
		posts:   repository.NewPostgresRepo(pool),
		members: repository.NewMembershipIndex(pool),
		tx:      repository.NewTransactor(pool, cfg.DBLockTimeout, cfg.DBStatementTimeout),
		outbox:  repository.NewOutbox(pool),
		close:   pool.Close,
	}

	if cfg.MembershipBackend == "neo4j" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			_ = driver.Close(ctx)
			pool.Close()
			return nil, err
		}
		index := graph.NewNeo4jMembershipIndex(driver)
		if err := index.EnsureSchema(ctx); err != nil {
			_ = driver.Close(ctx)
			pool.Close()
			return nil, err
		}
		slog.Info("✅ Connected to Neo4j (memberships)")
		s.members = index
		s.close = func() {
			_ = driver.Close(context.Background())
			pool.Close()
		}
	}

	return s, nil
}

func initBroker(ctx context.Context, cfg config.Config) (ports.EventPublisher, jetstream.JetStream, func(), error) {
	if cfg.Broker == "rabbitmq" {
		pub, err := eventbroker.NewRabbitPublisher(cfg.RabbitURL)
		if err != nil {
			return nil, nil, nil, err
		}
		slog.Info("✅ Connected to RabbitMQ")
		return pub, nil, func() { _ = pub.Close() }, nil
	}

	nc, err := nats.Connect(cfg.NatsUrl)
	if err != nil {
		return nil, nil, nil, err
	}
	pub, err := eventbroker.NewNatsPublisher(ctx, nc)
	if err != nil {
		nc.Close()
		return nil, nil, nil, err
	}
	slog.Info("✅ Connected to NATS JetStream")
	return pub, pub.JetStream(), nc.Close, nil
}

func initTeamStatsConsumer(ctx context.Context, cfg config.Config, js jetstream.JetStream) (jetstream.ConsumeContext, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	// Instrumentation Redis
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	slog.Info("✅ Connected to Redis")

	stats := services.NewTeamStatsService(cache.NewRedisTeamCounter(rdb))
	return events.NewEventHandler(stats).Subscribe(ctx, js)
}

// seedDemo : jeu de données local (u1 membre de t1, deux médias libres).
func seedDemo(s *memory.Store) {
	s.AddMembership(domain.Membership{UserID: "u1", TeamID: "t1", Priority: 0})
	s.AddUser("u2")
	s.AddMedia("m1", "m2", "m3")
}

// --- Helpers ---

func initLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Env == "local" {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("post-service"),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
