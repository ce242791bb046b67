package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"marketplace-service/cache"
	apperrors "marketplace-service/common/errors"
	"marketplace-service/common/logger"
	commonmw "marketplace-service/common/middleware"
	"marketplace-service/consumer"
	"marketplace-service/controllers"
	"marketplace-service/database"
	"marketplace-service/events"
	"marketplace-service/metrics"
	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/repository"
	"marketplace-service/routes"
	"marketplace-service/services"
)

const serviceName = "marketplace-service"

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	log := logger.Initialize(os.Getenv("APP_ENV"))
	// log is replaced below when CloudWatch is enabled; flush whichever is current.
	defer syncLogger(&log)()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// AWS is only needed for some backends; load it lazily.
	var (
		awsOnce sync.Once
		awsCfg  sdkaws.Config
		awsErr  error
	)
	loadAWS := func() (sdkaws.Config, error) {
		awsOnce.Do(func() { awsCfg, awsErr = awspkg.LoadAWSConfig(ctx) })
		return awsCfg, awsErr
	}

	if cfg.CloudWatchEnabled {
		if ac, err := loadAWS(); err == nil {
			if cw, err := awspkg.NewCloudWatchLogsClient(ctx, ac, os.Getenv("CLOUDWATCH_LOG_GROUP"), serviceName); err == nil {
				log = logger.InitializeWithWriter(cfg.Env, cw)
			} else {
				log.Warn("CloudWatch logs disabled", zap.Error(err))
			}
		}
	}

	// --- 1. Storage ---
	store, closeStore := buildStore(ctx, cfg, loadAWS, log)
	defer closeStore()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			// Caching and idempotency are optional; run without them.
			log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		}
	}

	// --- 2. Services ---
	tokens, err := services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal("Failed to create token service", zap.Error(err))
	}

	promMetrics := metrics.NewRegistry("api")
	var cwMetrics *awspkg.MetricsClient
	if ac, err := loadAWS(); err == nil {
		cwMetrics = awspkg.NewMetricsClient(ac, "Marketplace", cfg.CloudWatchEnabled)
	}

	var ranking services.RankingCache
	checkoutOpts := []services.CheckoutOption{
		services.WithCheckoutRecorder(metrics.Recorders{promMetrics, metrics.NewCloudWatchRecorder(cwMetrics, serviceName, log)}),
	}
	if redisClient != nil {
		ranking = cache.NewBestSellersCache(redisClient, cfg.BestSellersTTL, log)
		checkoutOpts = append(checkoutOpts,
			services.WithRankingCache(ranking),
			services.WithIdempotency(cache.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)),
		)
	}

	var kafkaPublisher *events.KafkaPublisher
	switch cfg.EventBus {
	case EventBusSNS:
		ac, err := loadAWS()
		if err != nil {
			log.Fatal("Failed to load AWS config for SNS", zap.Error(err))
		}
		checkoutOpts = append(checkoutOpts, services.WithEventPublisher(
			services.NewSNSEventPublisher(awspkg.NewSNSClient(ac), cfg.CheckoutTopicARN)))
	case EventBusKafka:
		kafkaPublisher = events.NewKafkaPublisher(events.ParseBrokers(cfg.KafkaBrokers), cfg.CheckoutTopic, log)
		checkoutOpts = append(checkoutOpts, services.WithEventPublisher(kafkaPublisher))
	}

	ledger := services.NewCounterLedger(store, store, log)
	checkoutService := services.NewCheckoutService(ledger, log, checkoutOpts...)
	accountService := services.NewAccountService(store, tokens, cfg.SellerSecretKey, cfg.BcryptCost, log)
	catalogService := services.NewCatalogService(store, store, ranking, log)
	bestSellers := services.NewBestSellersService(store, ranking, log)
	bannerService := services.NewBannerService(store, store, log)

	var presigner services.Presigner
	if cfg.S3Bucket != "" {
		if ac, err := loadAWS(); err == nil {
			presigner = awspkg.NewS3PresignClient(ac, cfg.S3Endpoint != "")
		} else {
			log.Warn("S3 uploads disabled", zap.Error(err))
		}
	}
	uploader := services.NewImageUploader(presigner, store, services.ImageUploaderConfig{
		Bucket:    cfg.S3Bucket,
		Prefix:    cfg.S3Prefix,
		Endpoint:  cfg.S3Endpoint,
		CDNDomain: cfg.CloudFrontDomain,
	}, log)

	// --- 3. HTTP Server & Middleware ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := commonmw.NewRateLimiter(rate.Limit(20), 40, 10*time.Minute)
	stopCleanup := make(chan struct{})
	go limiter.RunCleanup(stopCleanup)
	defer close(stopCleanup)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(commonmw.RequestLogger(log))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(commonmw.RateLimitMiddleware(limiter))
	r.Use(commonmw.Timeout(cfg.RequestTimeout))
	r.Use(commonmw.MetricsMiddleware(cwMetrics, serviceName))
	r.Use(promMetrics.Middleware())
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, routes.Handlers{
		Auth:     controllers.NewAuthController(accountService),
		Catalog:  controllers.NewCatalogController(catalogService, uploader),
		Checkout: controllers.NewCheckoutController(checkoutService, bestSellers),
		Banners:  controllers.NewBannerController(bannerService),
		Metrics:  promMetrics.Handler(),
	}, tokens)

	// --- 4. Background consumers ---
	var wg sync.WaitGroup
	if cfg.CheckoutQueueURL != "" {
		if ac, err := loadAWS(); err == nil {
			source := awspkg.NewSQSConsumer(ac, cfg.CheckoutQueueURL, log)
			checkoutConsumer := consumer.NewCheckoutConsumer(source, checkoutService, cwMetrics, log)
			wg.Add(1)
			go func() {
				defer wg.Done()
				checkoutConsumer.Start(ctx)
			}()
		} else {
			log.Warn("Checkout queue consumer disabled", zap.Error(err))
		}
	}

	// --- 5. Graceful Shutdown ---
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("Marketplace service starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down marketplace service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	wg.Wait()

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Error("Failed to close Kafka producer", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}
	log.Info("Marketplace service stopped gracefully")
}

func syncLogger(l **zap.Logger) func() {
	return func() { _ = (*l).Sync() }
}

func buildStore(ctx context.Context, cfg *Config, loadAWS func() (sdkaws.Config, error), log *zap.Logger) (repository.Store, func()) {
	switch cfg.StoreBackend {
	case StoreDynamoDB:
		ac, err := loadAWS()
		if err != nil {
			log.Fatal("Failed to load AWS config", zap.Error(err))
		}
		client := dynamodb.NewFromConfig(ac)
		return repository.NewDynamoStore(client, repository.DynamoTables{
			Users:   cfg.DDBTableUsers,
			Sellers: cfg.DDBTableSellers,
			Banners: cfg.DDBTableBanners,
		}), func() {}

	case StoreMemory:
		log.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}

	default:
		mongoDB, err := database.ConnectWithConfig(ctx, cfg.MongoURL, cfg.MongoDBName)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		store := repository.NewMongoStore(mongoDB.DB)
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Warn("Failed to ensure indexes", zap.Error(err))
		}
		return store, func() {
			if err := mongoDB.Close(); err != nil {
				log.Error("Failed to close MongoDB", zap.Error(err))
			}
		}
	}
}
