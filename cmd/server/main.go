package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopcore/stockengine/api"
	orderapp "github.com/shopcore/stockengine/internal/application/order"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/auth"
	"github.com/shopcore/stockengine/internal/infrastructure/cache"
	"github.com/shopcore/stockengine/internal/infrastructure/config"
	"github.com/shopcore/stockengine/internal/infrastructure/event"
	"github.com/shopcore/stockengine/internal/infrastructure/lock"
	"github.com/shopcore/stockengine/internal/infrastructure/logger"
	"github.com/shopcore/stockengine/internal/infrastructure/messaging"
	"github.com/shopcore/stockengine/internal/infrastructure/persistence"
	"github.com/shopcore/stockengine/internal/infrastructure/scheduler"
	"github.com/shopcore/stockengine/internal/infrastructure/storage"
	"github.com/shopcore/stockengine/internal/infrastructure/telemetry"
	"github.com/shopcore/stockengine/internal/interfaces/http/handler"
	"github.com/shopcore/stockengine/internal/interfaces/http/middleware"
	"github.com/shopcore/stockengine/internal/interfaces/http/router"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry: logs first so the bridged logger is used everywhere else
	logProvider, err := telemetry.NewLoggerProvider(rootCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize OTEL logs", zap.Error(err))
	}
	if logProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(cfg.Telemetry.ServiceName, logProvider, logger.ParseLevel(cfg.Log.Level))
		if log, err = logger.New(logCfg, otelCore); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting stock engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(rootCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(cfg.Profiler, cfg.App.Name, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Profiler.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}
	defer shutdownTelemetry(log, profiler, tracerProvider, meterProvider, logProvider)

	var meter metric.Meter
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter(cfg.Telemetry.ServiceName)
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.NewDBTracing(cfg.Telemetry, log).Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	if meter != nil {
		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatal("Failed to get sql.DB", zap.Error(err))
		}
		dbMetrics, err := telemetry.NewDBMetrics(meter, sqlDB, cfg.Telemetry.DBSlowQueryThresh, log)
		if err != nil {
			log.Fatal("Failed to create database metrics", zap.Error(err))
		}
		if err := dbMetrics.Register(db.DB); err != nil {
			log.Fatal("Failed to register database metrics", zap.Error(err))
		}
		defer func() {
			_ = dbMetrics.Stop()
		}()
	}

	// Redis backs the idempotency store and the job lock; without it a
	// single replica is assumed
	redisClient := connectRedis(rootCtx, cfg, log)
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}

	// Repositories
	itemRepo := persistence.NewGormSellableItemRepository(db.DB)
	reservationRepo := persistence.NewGormStockReservationRepository(db.DB)
	movementRepo := persistence.NewGormStockMovementRepository(db.DB)
	orderRecordRepo := persistence.NewGormOrderLedgerRecordRepository(db.DB)
	lineItemReader := persistence.NewGormOrderLineItemReader(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Ordering rules
	sameDay, err := stock.ParseSameDayExpiry(cfg.Availability.SameDayExpiry)
	if err != nil {
		log.Fatal("Invalid availability policy", zap.Error(err))
	}
	location, err := cfg.Availability.Location()
	if err != nil {
		log.Fatal("Invalid availability timezone", zap.Error(err))
	}
	policy := stock.ExpiryPolicy{SameDay: sameDay, Location: location}

	// Snapshot storage is optional
	var snapshotStore stockapp.SnapshotStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewSnapshotStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize snapshot storage", zap.Error(err))
		}
		snapshotStore = s3Store
		log.Info("Snapshot storage enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	// Application services
	ledger := stockapp.NewLedger(itemRepo, reservationRepo, movementRepo, txScope, log.Named("ledger"),
		stockapp.WithReservationTTL(cfg.Reservation.TTL))
	itemService := stockapp.NewItemService(itemRepo, policy, log.Named("items"))
	availabilityService := stockapp.NewAvailabilityService(itemRepo, policy)
	sweeper := stockapp.NewExpirySweeper(itemRepo, txScope, policy, log.Named("expiry-sweeper"))
	reservationExpiry := stockapp.NewReservationExpiryService(reservationRepo, ledger, log.Named("reservation-expiry"))
	reportService := stockapp.NewReportService(itemRepo, movementRepo, snapshotStore, log.Named("reports"))
	bridge := orderapp.NewLifecycleBridge(ledger, txScope, orderRecordRepo, log.Named("order-bridge"),
		orderapp.WithLineItemReader(lineItemReader))

	// Event bus: ledger events fan out to alerting, metrics and the broker
	eventBus := event.NewInMemoryEventBus(log.Named("event-bus"))
	ledger.SetEventBus(eventBus)
	sweeper.SetEventBus(eventBus)
	reservationExpiry.SetEventBus(eventBus)

	lowStockHandler := stockapp.NewLowStockHandler(log).
		WithNotifier(stockapp.NewLoggingStockAlertNotifier(log.Named("alerts")))
	eventBus.Subscribe(lowStockHandler)

	var stockMetrics *telemetry.StockMetrics
	if meter != nil {
		stockMetrics, err = telemetry.NewStockMetrics(meter, itemRepo)
		if err != nil {
			log.Fatal("Failed to create stock metrics", zap.Error(err))
		}
		eventBus.Subscribe(stockMetrics)
	}

	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Messaging
	serializer := event.NewStockEventSerializer()
	if cfg.Messaging.Enabled {
		stopMessaging := startMessaging(rootCtx, cfg, serializer, eventBus, bridge, redisClient, log)
		defer stopMessaging()
	}

	// Background jobs
	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs = startScheduler(rootCtx, cfg, sweeper, reservationExpiry, stockMetrics, redisClient, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := jobs.Stop(ctx); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var recorder handler.ErrorRecorder
	if stockMetrics != nil {
		recorder = stockMetrics
	}
	base := handler.NewBaseHandler(recorder)

	adminOpts := []handler.AdminOption{}
	if jobs != nil {
		adminOpts = append(adminOpts, handler.WithJobInspector(jobs))
	}
	if stockMetrics != nil {
		adminOpts = append(adminOpts, handler.WithRunObservers(stockMetrics, stockMetrics))
	}

	handlers := router.Handlers{
		Items:        handler.NewItemHandler(base, itemService, availabilityService, ledger),
		Reservations: handler.NewReservationHandler(base, ledger),
		Adjustments:  handler.NewAdjustmentHandler(base, ledger),
		OrderEvents:  handler.NewOrderEventHandler(base, bridge),
		Reports:      handler.NewReportHandler(base, reportService, log.Named("reports")),
		Admin:        handler.NewAdminHandler(base, sweeper, reservationExpiry, log.Named("admin"), adminOpts...),
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	guards := router.Guards{
		Authenticate: middleware.JWTAuth(jwtService, log),
		Require: func(permission string) gin.HandlerFunc {
			return middleware.RequirePermission(permission, log)
		},
	}

	engine := router.NewEngine(router.EngineOptions{
		Config: cfg,
		Logger: log,
		Meter:  meter,
	})

	healthChecks := map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	router.RegisterSystemRoutes(engine, handler.NewHealthHandler(healthChecks), cfg.Swagger, api.OpenAPI)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, time.Minute)
		go limiter.Run(rootCtx)
		r.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled", zap.Int("requests_per_minute", cfg.HTTP.RateLimit))
	}
	r.Register(router.StockRoutes(handlers, guards)...)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// connectRedis returns nil when Redis is not needed or not reachable and the
// configuration tolerates that
func connectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	needed := cfg.Idempotency.Backend == "redis"
	if !needed && !cfg.Scheduler.Enabled {
		return nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		if needed {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		log.Warn("Redis unavailable, background jobs will only be deduplicated within this process",
			zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		return nil
	}
	log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	return client
}

// startMessaging subscribes the bridge to the order topic and, when a stock
// topic is configured, forwards ledger events to it. The returned func stops
// both.
func startMessaging(
	ctx context.Context,
	cfg *config.Config,
	serializer *event.EventSerializer,
	bus *event.InMemoryEventBus,
	bridge *orderapp.LifecycleBridge,
	redisClient *redis.Client,
	log *zap.Logger,
) func() {
	factoryOpts := []cache.IdempotencyStoreFactoryOption{cache.WithLogger(log)}
	if redisClient != nil {
		factoryOpts = append(factoryOpts, cache.WithRedisClient(redisClient))
	}
	store, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency, cfg.Redis, factoryOpts...).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	statusHandler := event.NewIdempotentHandler(bridge, store, log.Named("order-events"),
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Idempotency.TTL,
			Enabled: cfg.Idempotency.Enabled,
		}))

	consumer, err := messaging.NewOrderEventConsumer(cfg.Messaging, serializer, statusHandler, log)
	if err != nil {
		log.Fatal("Failed to create order event consumer", zap.Error(err))
	}
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start order event consumer", zap.Error(err))
	}

	var shutdownProducer func() error
	if cfg.Messaging.StockTopic != "" {
		producer, err := messaging.NewProducer(cfg.Messaging)
		if err != nil {
			log.Fatal("Failed to start event producer", zap.Error(err))
		}
		bus.Subscribe(messaging.NewEventForwarder(producer, cfg.Messaging.StockTopic, serializer, log))
		shutdownProducer = producer.Shutdown
		log.Info("Forwarding ledger events", zap.String("topic", cfg.Messaging.StockTopic))
	}

	return func() {
		if err := consumer.Shutdown(); err != nil {
			log.Error("Error stopping order event consumer", zap.Error(err))
		}
		if shutdownProducer != nil {
			if err := shutdownProducer(); err != nil {
				log.Error("Error stopping event producer", zap.Error(err))
			}
		}
		if err := store.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}
}

// startScheduler starts the worker pool and the triggers feeding it
func startScheduler(
	ctx context.Context,
	cfg *config.Config,
	sweeper *stockapp.ExpirySweeper,
	reservationExpiry *stockapp.ReservationExpiryService,
	stockMetrics *telemetry.StockMetrics,
	redisClient *redis.Client,
	log *zap.Logger,
) *scheduler.Scheduler {
	var locker lock.Locker = lock.NewLocalLocker()
	if redisClient != nil {
		locker = lock.NewRedsyncLocker(redisClient, log.Named("lock"))
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	schedCfg.LockTTL = cfg.Scheduler.LockTTL
	jobs, err := scheduler.NewScheduler(schedCfg, locker, log.Named("scheduler"))
	if err != nil {
		log.Fatal("Failed to create scheduler", zap.Error(err))
	}
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	schedule, err := scheduler.ParseDailySchedule(cfg.Scheduler.SweepCronSchedule)
	if err != nil {
		log.Fatal("Invalid sweep schedule", zap.Error(err))
	}
	location, _ := cfg.Availability.Location()

	var (
		sweepObs  scheduler.SweepObserver
		expiryObs scheduler.ReservationExpiryObserver
	)
	if stockMetrics != nil {
		sweepObs, expiryObs = stockMetrics, stockMetrics
	}

	starters := []interface {
		Start(ctx context.Context) error
	}{
		scheduler.NewCronTrigger(schedule, location, scheduler.NewSweepTask(sweeper, sweepObs, log), jobs, log),
	}
	if cfg.Reservation.TTL > 0 {
		task := scheduler.NewReservationExpiryTask(reservationExpiry, expiryObs, log)
		starters = append(starters, scheduler.NewIntervalTrigger(cfg.Reservation.CheckInterval, task, jobs, log))
	}
	if stockMetrics != nil {
		task := scheduler.NewGaugeTask(stockMetrics.RefreshStockGauges)
		starters = append(starters, scheduler.NewIntervalTrigger(cfg.Scheduler.GaugeInterval, task, jobs, log))
	}
	for _, s := range starters {
		if err := s.Start(ctx); err != nil {
			log.Fatal("Failed to start trigger", zap.Error(err))
		}
	}

	log.Info("Scheduler started",
		zap.String("sweep_schedule", cfg.Scheduler.SweepCronSchedule),
		zap.Duration("reservation_ttl", cfg.Reservation.TTL),
		zap.Duration("job_timeout", cfg.Scheduler.JobTimeout),
	)
	return jobs
}

func shutdownTelemetry(
	log *zap.Logger,
	profiler *telemetry.Profiler,
	tracerProvider *telemetry.TracerProvider,
	meterProvider *telemetry.MeterProvider,
	logProvider *telemetry.LoggerProvider,
) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}
}
