package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shopauctions/internal/commerce/shopclient"
	"shopauctions/internal/config"
	"shopauctions/internal/database/db_client"
	"shopauctions/internal/http/http_server"
	"shopauctions/internal/metrics"
	"shopauctions/internal/redis/redis_client"
	"shopauctions/internal/scheduler"
	"shopauctions/internal/services/auction"
	"shopauctions/internal/services/fulfillment"
	"shopauctions/internal/services/notification"
	"shopauctions/internal/services/shop"
	"shopauctions/internal/sweeps"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (fulfillment lease + notification job stream)
	redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// 4. Postgres db client + schema
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Metrics
	metrics.Register()

	// 6. Stores and queue
	auctionStore := auction.NewStore(pgDb)
	shopStore := shop.NewStore(pgDb)
	queue := notification.NewQueue(redisClient)

	// 7. Notification dispatcher + stream worker
	var shared notification.Transport
	if cfg.NotifyWebhookURL != "" {
		shared = notification.NewWebhookTransport(cfg.NotifyWebhookURL, cfg.NotifyWebhookToken)
	}
	dispatcher := notification.NewDispatcher(shopStore, shared)
	notification.RunWorker(ctx, redisClient, dispatcher)

	// 8. Fulfillment pipeline
	factory := func(shopDomain, token string) fulfillment.Platform {
		return shopclient.New(shopDomain, token, cfg.PlatformAPIVersion)
	}
	pipeline := fulfillment.NewPipeline(
		auctionStore, shopStore, shopStore,
		factory, queue,
		fulfillment.NewRedisLease(redisClient),
		time.Duration(cfg.FulfillTimeoutSeconds)*time.Second,
	)

	// 9. Periodic tasks
	sched := scheduler.New()
	sched.Add("status_sweep", time.Duration(cfg.StatusSweepSeconds)*time.Second,
		sweeps.Status(auctionStore))
	sched.Add("fulfillment_sweep", time.Duration(cfg.FulfillmentSweepSeconds)*time.Second,
		sweeps.Fulfillment(shopStore, auctionStore, pipeline))
	sched.Add("ending_soon", time.Duration(cfg.StatusSweepSeconds)*time.Second,
		sweeps.EndingSoon(auctionStore, queue))
	sched.Add("retention_cleanup", time.Duration(cfg.CleanupSweepSeconds)*time.Second,
		sweeps.Retention(auctionStore, time.Duration(cfg.RetentionDays)*24*time.Hour))
	sched.Start(ctx)

	// 10. Auction service (bid acceptor + queries)
	auctionService := auction.NewAuctionService(auctionStore, queue, shopStore)

	// 11. HTTP server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, auctionService, pipeline, sched)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
