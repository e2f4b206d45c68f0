package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ms-checkin/internal/analytics"
	analyticsapi "ms-checkin/internal/analytics/api"
	"ms-checkin/internal/checkin"
	"ms-checkin/internal/checkin/checkin_api"
	"ms-checkin/internal/config"
	"ms-checkin/internal/connectivity"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/offline"
	offlinecache "ms-checkin/internal/offline/cache"
	"ms-checkin/internal/offline/queue"
	"ms-checkin/internal/remote"
	"ms-checkin/internal/remote/migrations"
	"ms-checkin/internal/sse"
	"ms-checkin/internal/syncer"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	log := logger.NewLogger()
	defer log.Close()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Remote system of record. A failed ping just means we start offline.
	remoteDB, err := remote.Connect(cfg.RemoteDB.DSN, cfg.RemoteDB.MaxOpenConns, cfg.RemoteDB.MaxIdleConns)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open remote database: %v", err))
	}
	defer remoteDB.Close()

	reachable := true
	if err := remoteDB.Ping(ctx); err != nil {
		log.Warn("DATABASE", fmt.Sprintf("Remote database unreachable at startup: %v", err))
		reachable = false
	}

	if reachable && cfg.RemoteDB.AutoMigrate {
		runner := migrations.NewRunner(remoteDB.Bun, migrations.DefaultOptions())
		if err := runner.Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Remote migrations failed: %v", err))
		}
		log.Info("DATABASE", "Remote schema is current")
	}

	// Local durable store. Unavailability degrades to connected-only mode.
	var (
		cacheStore  *offlinecache.Store
		actionQueue *queue.Queue
	)
	if offlineDB, err := offline.Open(ctx, cfg.OfflineDB.Path); err != nil {
		log.Warn("CACHE", fmt.Sprintf("Offline storage unavailable, connected-only mode: %v", err))
	} else {
		defer offlineDB.Close()
		if cacheStore, err = offlinecache.New(ctx, offlineDB); err != nil {
			log.Fatal("CACHE", fmt.Sprintf("Failed to prepare offline cache: %v", err))
		}
		if actionQueue, err = queue.New(ctx, offlineDB); err != nil {
			log.Fatal("QUEUE", fmt.Sprintf("Failed to prepare pending action queue: %v", err))
		}
	}

	deviceID := cfg.Device.ID
	if deviceID == "" {
		deviceID = uuid.NewString()
		log.Info("CHECKIN", fmt.Sprintf("No DEVICE_ID configured, generated %s", deviceID))
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.CheckInEvents, cfg.Kafka.Topics.SyncResults}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic setup failed, audit stream disabled: %v", err))
		} else {
			producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CheckInEvents, cfg.Kafka.Topics.SyncResults, log)
			defer producer.Close()
		}
	}

	monitor := connectivity.NewMonitor(reachable, cfg.Sync.ReconnectDelay, log)

	var engineCache syncer.CacheLayer
	var serviceCache checkin.CacheLayer
	var serviceQueue checkin.QueueLayer
	var engineQueue syncer.QueueLayer
	if cacheStore != nil {
		engineCache = cacheStore
		serviceCache = cacheStore
	}
	if actionQueue != nil {
		serviceQueue = actionQueue
		engineQueue = actionQueue
	}

	var audit syncer.AuditPublisher
	if producer != nil {
		audit = producer
	}

	engine := syncer.NewEngine(engineQueue, remoteDB, engineCache, monitor, audit, deviceID, log)
	service := checkin.NewService(remoteDB, serviceCache, serviceQueue, monitor, audit, log)

	// The staff identity arrives with the first authenticated request;
	// until then offline actions record the engine's fallback identity.
	actor := checkin.Actor{OrganizerID: cfg.Device.OrganizerID}
	controller := checkin.NewController(service, engine, monitor, remoteDB, actor, checkin.ControllerConfig{
		ResultTTL:    cfg.Sync.ResultDisplay,
		PollInterval: cfg.Sync.PendingPoll,
	}, log)

	monitor.OnReachable(func() {
		controller.SyncNow(context.Background())
	})
	go controller.Run(ctx)

	emitter := sse.NewStatusEmitter()
	controller.Subscribe(emitter.Emit)

	var guard checkin_api.ScanGuard
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unreachable, duplicate-scan guard disabled: %v", err))
		} else {
			guard = redisClient
			defer redisClient.Close()
		}
		pingCancel()
	}

	handler := checkin_api.NewHandler(controller, monitor, guard, 3*time.Second, log)

	statsHandler := analyticsapi.NewHandler(analytics.NewService(remoteDB.Bun), log)

	r := chi.NewRouter()
	r.Route("/checkin-service", func(r chi.Router) {
		handler.Routes(r)
		r.Get("/status/stream", emitter.ServeHTTP)
	})
	r.Route("/analytics", statsHandler.Routes)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("API", fmt.Sprintf("Check-in service on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("API", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctxShutdown, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("API", "Check-in service shutdown complete")
}
