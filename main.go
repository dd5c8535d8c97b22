package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rivelya/config"
	"rivelya/cron"
	"rivelya/database"
	availabilityRepo "rivelya/database/repository/availability"
	bookingRepo "rivelya/database/repository/booking"
	chatRepo "rivelya/database/repository/chat"
	expertRepo "rivelya/database/repository/expert"
	"rivelya/database/repository/memory"
	notificationRepo "rivelya/database/repository/notification"
	sessionRepo "rivelya/database/repository/session"
	"rivelya/handlers"
	"rivelya/routes"
	"rivelya/services/availability"
	"rivelya/services/booking"
	"rivelya/services/chat"
	"rivelya/services/notification"
	"rivelya/services/reconcile"
	"rivelya/services/session"
	"rivelya/services/tasks"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// repositories is the storage layer selected by STORAGE_DRIVER.
type repositories struct {
	Bookings     bookingRepo.BookingRepository
	Sessions     sessionRepo.SessionRepository
	Earnings     sessionRepo.EarningRepository
	Threads      chatRepo.ThreadRepository
	Messages     chatRepo.MessageRepository
	Calls        chatRepo.CallRepository
	Availability availabilityRepo.AvailabilityRepository
	Experts      expertRepo.ExpertRepository
	Inbox        notificationRepo.InboxRepository
	Devices      notificationRepo.DeviceRepository
	Alerts       notificationRepo.AlertRepository
}

func memoryRepositories() repositories {
	s := memory.NewStore()
	return repositories{
		Bookings: s.Bookings, Sessions: s.Sessions, Earnings: s.Earnings,
		Threads: s.Threads, Messages: s.Messages, Calls: s.Calls,
		Availability: s.Availability, Experts: s.Experts,
		Inbox: s.Inbox, Devices: s.Devices, Alerts: s.Alerts,
	}
}

func mongoRepositories(ctx context.Context, db *mongo.Database) (repositories, error) {
	for _, ensure := range []func(context.Context, *mongo.Database) error{
		bookingRepo.EnsureIndexes,
		sessionRepo.EnsureIndexes,
		chatRepo.EnsureIndexes,
		availabilityRepo.EnsureIndexes,
		expertRepo.EnsureIndexes,
		notificationRepo.EnsureIndexes,
	} {
		if err := ensure(ctx, db); err != nil {
			return repositories{}, err
		}
	}
	return repositories{
		Bookings:     bookingRepo.NewMongoBookingRepo(db),
		Sessions:     sessionRepo.NewMongoSessionRepo(db),
		Earnings:     sessionRepo.NewMongoEarningRepo(db),
		Threads:      chatRepo.NewMongoThreadRepo(db),
		Messages:     chatRepo.NewMongoMessageRepo(db),
		Calls:        chatRepo.NewMongoCallRepo(db),
		Availability: availabilityRepo.NewMongoAvailabilityRepo(db),
		Experts:      expertRepo.NewMongoExpertRepo(db),
		Inbox:        notificationRepo.NewMongoInboxRepo(db),
		Devices:      notificationRepo.NewMongoDeviceRepo(db),
		Alerts:       notificationRepo.NewMongoAlertRepo(db),
	}, nil
}

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()
	cfg := config.AppConfig

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repos repositories
	if config.UsesMemoryStorage() {
		logger.Warn("using in-memory storage, data is lost on restart")
		repos = memoryRepositories()
	} else {
		database.InitDB()
		var err error
		repos, err = mongoRepositories(ctx, database.DB())
		if err != nil {
			logger.Fatal("failed to ensure indexes", zap.Error(err))
		}
	}

	// Redis backs the month cache, the realtime relay and the push queue. Without it the
	// service still runs with recomputed months, in-process events and no device pushes.
	var (
		monthCache   availability.MonthCache = availability.NoopMonthCache{}
		publisher    notification.Publisher
		events       handlers.EventSubscriber
		pushQueue    *asynq.Client
		pushWorker   *cron.PushWorker
		redisClients []*redis.Client
	)
	if err := utils.InitCache(); err != nil {
		logger.Warn("redis unavailable, running without cache, relay and push queue", zap.Error(err))
		hub := notification.NewLocalHub()
		publisher, events = hub, hub
	} else {
		defer utils.CloseCache()
		redisClients = []*redis.Client{utils.CacheClient, utils.RealtimeClient}
		monthCache = &availability.RedisMonthCache{Client: utils.CacheClient, TTL: cfg.AvailabilityCacheTTL}
		relay := &notification.RedisRelay{Client: utils.RealtimeClient}
		publisher, events = relay, relay

		pushQueue = asynq.NewClient(cron.QueueRedisOpt())
		defer pushQueue.Close()

		var sender tasks.PushSender = notification.LogSender{Logger: logger}
		if fcm, err := utils.NewMessagingClient(ctx, cfg.FirebaseCredentialsPath); err != nil {
			logger.Warn("firebase messaging disabled", zap.Error(err))
		} else {
			sender = &notification.FCMSender{Client: fcm, Devices: repos.Devices, Logger: logger}
		}
		pushWorker = cron.InitPushWorker(sender, logger)
	}
	utils.StartHealthMonitor(ctx, redisClients, database.MongoClient)

	dispatcher := &notification.Dispatcher{
		Inbox:    repos.Inbox,
		Realtime: publisher,
		Logger:   logger,
		Timeout:  cfg.NotifyTimeout,
	}
	if pushQueue != nil {
		dispatcher.Push = pushQueue
	}

	var payments booking.PaymentGateway = booking.NewSimulatedGateway(logger)
	if cfg.StripeKey != "" {
		stripe.Key = cfg.StripeKey
		payments = &booking.StripeGateway{Logger: logger}
	} else {
		logger.Warn("STRIPE_KEY not set, payments are simulated")
	}

	availabilitySvc := &availability.Service{
		Repo:     repos.Availability,
		Bookings: repos.Bookings,
		Cache:    monthCache,
		Logger:   logger,
	}
	alertSvc := &notification.AlertService{Repo: repos.Alerts, Notifier: dispatcher, Logger: logger}
	bookingSvc := &booking.Service{
		Bookings:        repos.Bookings,
		Sessions:        repos.Sessions,
		Threads:         repos.Threads,
		Experts:         repos.Experts,
		Availability:    availabilitySvc,
		Payments:        payments,
		Notifier:        dispatcher,
		Alerts:          alertSvc,
		Logger:          logger,
		UpcomingLead:    cfg.UpcomingLead,
		DefaultCurrency: cfg.DefaultCurrency,
	}
	sessionSvc := &session.Service{
		Sessions:          repos.Sessions,
		Earnings:          repos.Earnings,
		Experts:           repos.Experts,
		Bookings:          bookingSvc,
		Notifier:          dispatcher,
		Logger:            logger,
		CommissionPercent: cfg.PlatformCommissionPct,
		DefaultCurrency:   cfg.DefaultCurrency,
	}
	chatSvc := &chat.Service{
		Threads:     repos.Threads,
		Messages:    repos.Messages,
		Calls:       repos.Calls,
		Bookings:    bookingSvc,
		Notifier:    dispatcher,
		Logger:      logger,
		RingTimeout: cfg.CallRingTimeout,
	}

	loop := &reconcile.Loop{
		Bookings:     repos.Bookings,
		Sessions:     repos.Sessions,
		Threads:      repos.Threads,
		Calls:        repos.Calls,
		BookingSvc:   bookingSvc,
		SessionSvc:   sessionSvc,
		ChatSvc:      chatSvc,
		Logger:       logger,
		Interval:     cfg.ReconcileInterval,
		BatchSize:    cfg.ReconcileBatchSize,
		AbandonAfter: cfg.CallAbandonAfter,
	}
	if err := loop.Start(ctx); err != nil {
		logger.Fatal("failed to start reconcile loop", zap.Error(err))
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	handlerBundle := handlers.NewHandlerBundle(handlers.Services{
		Availability: availabilitySvc,
		Experts:      repos.Experts,
		Bookings:     bookingSvc,
		Sessions:     sessionSvc,
		Chat:         chatSvc,
		Alerts:       alertSvc,
		Inbox:        repos.Inbox,
		Devices:      repos.Devices,
		Events:       events,
		Loop:         loop,

		DefaultCurrency: cfg.DefaultCurrency,
	})
	routes.RegisterRoutes(router, handlerBundle, cfg.MaxRequestsPerMin)

	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageDriver))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	loop.Stop()
	if pushWorker != nil {
		pushWorker.Shutdown()
	}
	if err := database.Disconnect(shutdownCtx); err != nil {
		logger.Warn("mongo disconnect failed", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}
