package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ms-resale/internal/account"
	"ms-resale/internal/analytics"
	"ms-resale/internal/api"
	"ms-resale/internal/auth"
	"ms-resale/internal/blob"
	"ms-resale/internal/config"
	"ms-resale/internal/database"
	"ms-resale/internal/database/migrations"
	"ms-resale/internal/dispute"
	"ms-resale/internal/escrow"
	"ms-resale/internal/events"
	"ms-resale/internal/identity"
	"ms-resale/internal/kafka"
	"ms-resale/internal/listing"
	"ms-resale/internal/lock"
	"ms-resale/internal/logger"
	"ms-resale/internal/models"
	"ms-resale/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func prepareSchema(ctx context.Context, cfg config.DatabaseConfig, db *bun.DB, log *logger.Logger) error {
	if cfg.Driver == database.DriverSQLite {
		return database.CreateSchema(ctx, db)
	}

	runner := migrations.NewRunner(database.PostgresDSN(cfg), log)
	defer runner.Close()
	if err := runner.Initialize(); err != nil {
		return err
	}
	return runner.MigrateUp()
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) blob.Store {
	if cfg.Driver != "s3" {
		log.Warn("STORAGE", "Using in-memory blob store; uploads are lost on restart")
		return blob.NewMemoryStore(cfg.PublicBaseURL)
	}

	s3, err := blob.NewS3Store(ctx, cfg, blob.WithLogger(log), blob.WithPublicBaseURL(cfg.PublicBaseURL))
	if err != nil {
		log.Fatal("STORAGE", fmt.Sprintf("Failed to create S3 client: %v", err))
	}
	if err := s3.EnsureBuckets(ctx, blob.Buckets...); err != nil {
		log.Warn("STORAGE", fmt.Sprintf("Bucket bootstrap might have failed: %v", err))
	}
	return s3
}

func newPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) events.Publisher {
	switch {
	case cfg.Kafka.Enabled:
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		log.Info("KAFKA", fmt.Sprintf("Publishing lifecycle events to %v", cfg.Kafka.Brokers))
		return kafka.NewProducer(cfg.Kafka.Brokers, log)
	case cfg.RabbitMQ.Enabled:
		p, err := events.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Error("RABBITMQ", fmt.Sprintf("Falling back to no event publishing: %v", err))
			return events.Nop{}
		}
		return p
	default:
		log.Info("EVENTS", "No broker configured, lifecycle events are dropped")
		return events.Nop{}
	}
}

// startAudit logs every lifecycle event read back from the broker.
func startAudit(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) *kafka.Consumer {
	consumer := kafka.NewConsumer(cfg.Brokers, cfg.Topics.All(), cfg.AuditGroupID, log)
	go consumer.Start(ctx, func(e models.LifecycleEvent) {
		log.Info("AUDIT", fmt.Sprintf("%s txn=%s ticket=%s dispute=%s actor=%s", e.Type, e.TransactionID, e.TicketID, e.DisputeID, e.ActorID))
	})
	return consumer
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, tokens *identity.TokenIssuer, log *logger.Logger) auth.Verifier {
	chain := auth.Chain{auth.SessionVerifier{Issuer: tokens}}
	if cfg.OIDCIssuer == "" {
		return chain
	}
	oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	if err != nil {
		log.Error("AUTH", fmt.Sprintf("OIDC issuer %s unavailable, accepting session tokens only: %v", cfg.OIDCIssuer, err))
		return chain
	}
	log.Info("AUTH", "Accepting ID tokens from "+cfg.OIDCIssuer)
	return append(chain, oidcVerifier)
}

func main() {
	log := logger.NewLogger("resale-api")
	defer log.Close()

	log.Info("APP", "Starting resale service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	if cfg.Auth.JWTSecret == "change-me" {
		log.Warn("CONFIG", "JWT_SECRET is not set, using the development default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := prepareSchema(ctx, cfg.Database, bunDB, log); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Schema setup failed: %v", err))
		}
	}
	db := store.New(bunDB)

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	var ticketLock escrow.TicketLock
	if cfg.Redis.PurchaseLock {
		ticketLock = lock.NewRedis(redisClient, cfg.Marketplace.PurchaseLockTTL, log)
	}
	otp := identity.NewRedisOTPProvider(redisClient, identity.LogSender{Logger: log}, cfg.Auth.OTPTTL, cfg.Auth.OTPAttempts, log)
	tokens := identity.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)

	blobs := newBlobStore(ctx, cfg.Storage, log)

	publisher := newPublisher(ctx, cfg, log)
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, cfg.Kafka.Topics, log)

	if cfg.Kafka.Enabled && cfg.Kafka.AuditGroupID != "" {
		consumer := startAudit(ctx, cfg.Kafka, log)
		defer consumer.Close()
	}

	handler := &api.Handler{
		Escrow:    escrow.NewEscrowService(db, blobs, ticketLock, emitter, log, cfg.Marketplace.PlatformFeePercent, cfg.Marketplace.BankName),
		Disputes:  dispute.NewDisputeService(db, blobs, emitter, log),
		Listings:  listing.NewListingService(db, blobs, emitter, log),
		Analytics: analytics.NewService(db.Bun),
		Accounts:  account.NewAccountService(db, otp, tokens, blobs, log, account.Options{
			AdminPhones: cfg.Auth.AdminPhones,
			AutoApprove: cfg.Marketplace.AutoApproveVerification,
		}),
		Health: db,
		Logger: log,
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      api.NewRouter(handler, newVerifier(ctx, cfg.Auth, tokens, log)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", "🚀 Resale service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Resale service shutdown complete")
	}
}
