package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-boxoffice/internal/analytics"
	analyticsapi "ms-boxoffice/internal/analytics/api"
	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/cache"
	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/kafka"
	"ms-boxoffice/internal/logger"
	paymenthandler "ms-boxoffice/internal/payment/handler"
	"ms-boxoffice/internal/payment/services"
	"ms-boxoffice/internal/payment/storage"
	"ms-boxoffice/internal/purchase"
	purchasedb "ms-boxoffice/internal/purchase/db"
	"ms-boxoffice/internal/purchase/purchase_api"
	qr "ms-boxoffice/internal/purchase/qr_generator"
	"ms-boxoffice/internal/server"
	ticketdb "ms-boxoffice/internal/tickets/db"
	tickets "ms-boxoffice/internal/tickets/service"
	"ms-boxoffice/internal/tickets/ticket_api"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func connectCache(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (cache.Store, *redis.Client) {
	if !cfg.Enabled {
		log.Warn("CACHE", "Cache disabled, every read goes to the database")
		return cache.NopStore{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// Reads stay correct without the cache, only slower.
		log.Error("REDIS", fmt.Sprintf("Redis unreachable at %s, continuing without cache: %v", cfg.Addr, err))
		client.Close()
		return cache.NopStore{}, nil
	}

	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return cache.NewRedisStore(client), client
}

func buildVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (auth.Verifier, error) {
	if cfg.OIDCIssuer != "" {
		log.Info("AUTH", fmt.Sprintf("Verifying tokens against OIDC issuer %s", cfg.OIDCIssuer))
		return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("set OIDC_ISSUER or JWT_SECRET")
	}
	log.Info("AUTH", "Verifying HS256 tokens with JWT_SECRET")
	return auth.NewJWTVerifier(cfg.JWTSecret), nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, ".env file not found, using environment variables")
	}
	cfg := config.Load()

	log := logger.NewLogger("boxoffice", cfg.Log.Dir, cfg.Log.Level)
	defer log.Close()
	log.Info("APP", "Starting box office service")

	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.NewRunner(bunDB, cfg.Database.MigrationsDir, log).Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	store, redisClient := connectCache(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := kafka.NewPublisher(cfg.Kafka, log)
	defer publisher.Close()
	if _, ok := publisher.(*kafka.Producer); ok {
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		topics := []string{cfg.Kafka.Topics.PurchaseCreated, cfg.Kafka.Topics.PaymentVerified}
		if err := kafka.EnsureTopicsExist(topicCtx, cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		cancel()
	}

	verifier, err := buildVerifier(ctx, cfg.Auth, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	if cfg.Payment.KeySecret == "" {
		log.Fatal("CONFIG", "PAYMENT_KEY_SECRET not set")
	}
	if cfg.QR.SecretKey == "" {
		log.Warn("CONFIG", "QR_SECRET_KEY not set, purchase passes are sealed with an empty key")
	}
	var gateway services.OrderGateway
	if stripeGateway, err := services.NewStripeGateway(cfg.Payment.StripeSecretKey, log); err == nil {
		gateway = stripeGateway
	} else {
		log.Warn("STRIPE", "Stripe not configured, POST /payment/order is unavailable")
	}

	ticketService := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, store, log, cfg.Cache.ListingTTL)
	purchaseService := purchase.NewService(
		inventory.NewLedger(bunDB),
		&purchasedb.DB{Bun: bunDB},
		store,
		publisher,
		log,
		cfg.Cache.ListingTTL,
	)
	paymentStore := storage.NewBunStore(bunDB, log)
	settlement := services.NewSettlement(gateway, paymentStore, purchaseService, publisher, log, cfg.Payment.KeySecret, cfg.Payment.Currency)

	checks := map[string]server.Pinger{"database": paymentStore.HealthCheck}
	if redisClient != nil {
		checks["cache"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	salesReports := analytics.NewService(analytics.NewDB(bunDB), store, log, cfg.Cache.SearchTTL)

	router := server.NewRouter(server.Deps{
		Logger:    log,
		Verifier:  verifier,
		Tickets:   ticket_api.NewHandler(ticketService, log),
		Purchase:  purchase_api.NewHandler(purchaseService, qr.NewQRGenerator(cfg.QR.SecretKey), log),
		Payment:   paymenthandler.NewPaymentHandler(settlement, log),
		Analytics: analyticsapi.NewHandler(salesReports, log),
		Checks:    checks,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Box office service running on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
		return
	}
	log.Info("HTTP", "Box office service shutdown complete")
}
