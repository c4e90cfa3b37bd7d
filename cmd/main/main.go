package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quote-broadcaster/src/broadcast"
	"quote-broadcaster/src/cache"
	"quote-broadcaster/src/config"
	"quote-broadcaster/src/data_source/bridge"
	"quote-broadcaster/src/grpc_control"
	"quote-broadcaster/src/helpers"
	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/market"
	"quote-broadcaster/src/network"
	"quote-broadcaster/src/publishers"
	"quote-broadcaster/src/registry"
	"quote-broadcaster/src/server"
	"quote-broadcaster/src/storage"
	"quote-broadcaster/src/symbols"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Configuration
	configPath := flag.String("config", "../../config/default.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		logger.NewLogger("INFO", "main").Critical("Failed to load configuration: %v", err)
		return
	}

	appLogger := logger.NewLogger(cfg.LogLevel, "main")
	appLogger.Info("Starting %s with %d mapped symbols", cfg.Name, len(cfg.Symbols))
	helpers.ApplyMemoryLimit(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Quote feed session
	networkManager := network.NewAsyncNetworkManager(&cfg.Feed, appLogger.Named("network"))
	feed := bridge.NewClient(&cfg.Feed, networkManager, appLogger.Named("feed"))

	err = helpers.RetryWithBackoff(ctx, appLogger, "feed login", cfg.Feed.LoginRetries, time.Second, feed.Login)
	if err != nil {
		appLogger.Critical("Failed to log in to the quote feed: %v", err)
		return
	}

	// 3. Market sessions and rate cache
	normalizer := symbols.NewNormalizer(cfg.Symbols)
	loc := cfg.Location()
	tradingCalendar := market.NewTradingCalendar(cfg.Market.HolidayCalendar, loc, appLogger.Named("calendar"))

	classifier, err := market.NewClassifier(cfg, feed, tradingCalendar, appLogger.Named("market"))
	if err != nil {
		appLogger.Critical("Failed to build market classifier: %v", err)
		return
	}

	rateCache := cache.NewRateCache(feed, tradingCalendar, appLogger.Named("cache"))
	primed := rateCache.PrimeClosingSnapshots(ctx, normalizer.Canonicals(), time.Now())
	appLogger.Info("Primed %d/%d closing snapshots", primed, len(normalizer.Canonicals()))

	subscriptions := registry.New()

	// 4. Session audit store
	var recorder *storage.AsyncRecorder
	db, err := storage.NewDatabase(&cfg.Storage, appLogger.Named("storage"))
	if err != nil {
		appLogger.Critical("Failed to open session store: %v", err)
		return
	}
	if db != nil {
		if err := db.Initialize(); err != nil {
			appLogger.Critical("Failed to initialize session store: %v", err)
			return
		}
		retention := time.Duration(cfg.Storage.RetentionHours) * time.Hour
		recorder = storage.NewAsyncRecorder(db, retention, appLogger.Named("recorder"))
		recorder.Start(ctx)
	}

	// 5. Snapshot mirrors
	mirrors := buildPublishers(ctx, cfg, appLogger)

	// 6. Gateway and scheduler
	srv := server.NewFastAPIServer(cfg, appLogger.Named("server"), subscriptions, normalizer)
	srv.Session = feed
	if recorder != nil {
		srv.Recorder = recorder
		srv.Sessions = db
	}

	scheduler := &broadcast.Scheduler{
		Feed:       feed,
		Session:    feed,
		Classifier: classifier,
		Cache:      rateCache,
		Registry:   subscriptions,
		Normalizer: normalizer,
		Exchanger:  srv,
		Publishers: mirrors,
		Interval:   cfg.BroadcastInterval(),
		Logger:     appLogger.Named("scheduler"),
	}
	srv.Resolver = scheduler

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	if err := scheduler.Start(ctx); err != nil {
		appLogger.Critical("Failed to start scheduler: %v", err)
		return
	}

	// 7. gRPC health
	var control *grpc_control.ControlService
	if cfg.GrpcPort != 0 {
		control = grpc_control.NewControlService(cfg, appLogger.Named("grpc"))
		control.SetFeedServing(feed.LoggedIn())
		go func() {
			if err := control.Start(); err != nil {
				appLogger.Error("gRPC health endpoint failed: %v", err)
			}
		}()
		go watchFeedSession(ctx, feed, control)
	}

	// 8. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down...")

	scheduler.Stop()
	if control != nil {
		control.Stop()
	}
	if err := srv.Stop(); err != nil {
		appLogger.Error("Server shutdown error: %v", err)
	}
	if recorder != nil {
		recorder.Stop()
	}
	for _, p := range mirrors {
		if err := p.Close(); err != nil {
			appLogger.Error("Failed to close %s mirror: %v", p.Name(), err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			appLogger.Error("Failed to close session store: %v", err)
		}
	}

	cancel()
	appLogger.Info("Server exited")
}

// -----------------------------------------------------------------------------

// buildPublishers connects the optional NATS and Redis mirrors. A mirror that
// cannot connect is skipped.
func buildPublishers(ctx context.Context, cfg *config.Config, log *logger.Logger) []interfaces.ISnapshotPublisher {
	var out []interfaces.ISnapshotPublisher

	if cfg.NATS.Enabled {
		np := publishers.NewNATSPublisher(&cfg.NATS, log.Named("nats"))
		if err := np.Connect(); err != nil {
			log.Error("NATS mirror disabled: %v", err)
		} else {
			out = append(out, np)
		}
	}

	if cfg.Redis.Enabled {
		rdb, err := publishers.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Error("Redis mirror disabled: %v", err)
		} else {
			ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
			out = append(out, publishers.NewRedisPublisher(rdb, ttl, cfg.Redis.Namespace))
			log.Info("Mirroring snapshots to Redis at %s", cfg.Redis.Addr)
		}
	}

	return out
}

// -----------------------------------------------------------------------------

func watchFeedSession(ctx context.Context, session interfaces.IFeedSession, control *grpc_control.ControlService) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			control.SetFeedServing(session.LoggedIn())
		}
	}
}
