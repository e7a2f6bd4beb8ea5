package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"matatu/internal/app"
	"matatu/internal/auth"
	"matatu/internal/config"
	"matatu/internal/gateway"
	"matatu/internal/handler"
	"matatu/internal/logger"
	"matatu/internal/queue"
	internalRedis "matatu/internal/redis"
	"matatu/internal/repository/postgres"
	"matatu/internal/service"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logger.New(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	if cfg.Database.Migrate {
		if err := app.Migrate(ctx, db, log); err != nil {
			log.WithError(err).Fatal("failed to apply migrations")
		}
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	server, drain := wireServer(db, redisClient, nrApp, cfg, log)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	drain()

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and a
// function that drains the reconciliation queue and any callbacks being
// reconciled off-queue.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log *logrus.Entry,
) (*http.Server, func()) {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	uow := postgres.NewUnitOfWork(db)
	userRepo := postgres.NewUserRepository(db)
	routeRepo := postgres.NewRouteRepository(db)
	vehicleRepo := postgres.NewVehicleRepository(db)
	tripRepo := postgres.NewTripRepository(db)
	splitRepo := postgres.NewRevenueSplitRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	alertRepo := postgres.NewAlertRepository(db)
	withdrawalRepo := postgres.NewWithdrawalRepository(db)

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		log.WithError(err).Fatal("invalid JWT configuration")
	}

	// Initialize services.
	notificationService := service.NewNotificationService(alertRepo, log.WithField("component", "notification"))
	fareService := service.NewFareService(routeRepo, uow, cacheStore, log.WithField("component", "fare"))
	revenueService, err := service.NewRevenueService(splitRepo, tripRepo, notificationService, log.WithField("component", "revenue"))
	if err != nil {
		log.WithError(err).Fatal("invalid revenue allocation")
	}
	tripService := service.NewTripService(tripRepo, vehicleRepo, userRepo, fareService, revenueService, uow, log.WithField("component", "trip"))
	userService := service.NewUserService(userRepo, tokens, log.WithField("component", "user"))
	vehicleService := service.NewVehicleService(vehicleRepo, userRepo, log.WithField("component", "vehicle"))
	walletService := service.NewWalletService(splitRepo, withdrawalRepo, uow, notificationService, log.WithField("component", "wallet"))

	paymentService := service.NewPaymentService(
		paymentRepo,
		tripRepo,
		uow,
		lockStore,
		newChargeGateway(cfg, log),
		tripService,
		notificationService,
		service.PaymentOptions{
			DebounceWindow: cfg.Payment.DebounceWindow,
			MatchWindow:    cfg.Payment.MatchWindow,
			GatewayTimeout: cfg.Payment.GatewayTimeout,

			InFlightWait:    cfg.Payment.InFlightWait,
			BackgroundLimit: cfg.Payment.BackgroundLimit,
		},
		log.WithField("component", "payment"),
	)
	shutdownQueue := wireQueue(paymentService, cfg, log.WithField("component", "queue"))
	drain := func() {
		shutdownQueue()
		paymentService.Drain()
	}

	gin.SetMode(gin.ReleaseMode)
	router := app.NewRouter(app.RouterDeps{
		UserHandler:    handler.NewUserHandler(userService),
		RouteHandler:   handler.NewRouteHandler(fareService),
		VehicleHandler: handler.NewVehicleHandler(vehicleService),
		TripHandler:    handler.NewTripHandler(tripService),
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		RevenueHandler: handler.NewRevenueHandler(revenueService),
		WalletHandler:  handler.NewWalletHandler(walletService),
		AlertHandler:   handler.NewAlertHandler(notificationService),
		Tokens:         tokens,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Log:            log.WithField("component", "http"),
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, drain
}

// newChargeGateway uses Africa's Talking when credentials are configured
// and the in-memory sandbox otherwise.
func newChargeGateway(cfg *config.Config, log *logrus.Entry) gateway.ChargeGateway {
	if cfg.Gateway.Username == "" || cfg.Gateway.APIKey == "" {
		log.Warn("payment gateway credentials missing, using sandbox gateway")
		return gateway.NewSandboxGateway()
	}

	return gateway.NewAfricasTalkingClient(gateway.Config{
		Username:    cfg.Gateway.Username,
		APIKey:      cfg.Gateway.APIKey,
		ProductName: cfg.Gateway.ProductName,
		BaseURL:     cfg.Gateway.BaseURL,
		Timeout:     cfg.Payment.GatewayTimeout,
	})
}

// wireQueue routes payment callbacks through NSQ when an nsqd address is
// configured, and through an in-process worker pool otherwise.
func wireQueue(payments *service.PaymentService, cfg *config.Config, log *logrus.Entry) func() {
	if cfg.NSQ.NSQDAddr != "" {
		producer, err := queue.NewNSQDispatcher(cfg.NSQ.NSQDAddr, cfg.NSQ.Topic, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to nsqd")
		}
		worker, err := queue.NewNSQWorker(queue.NSQWorkerConfig{
			Addr:        cfg.NSQ.NSQDAddr,
			Topic:       cfg.NSQ.Topic,
			Channel:     cfg.NSQ.Channel,
			MaxAttempts: cfg.NSQ.MaxAttempts,
			Concurrency: cfg.Payment.Workers,
			JobTimeout:  cfg.Payment.GatewayTimeout,
		}, payments.ProcessJob, log)
		if err != nil {
			producer.Stop()
			log.WithError(err).Fatal("failed to start nsq consumer")
		}

		payments.SetDispatcher(producer)
		log.WithField("topic", cfg.NSQ.Topic).Info("reconciling payment callbacks through NSQ")
		return func() {
			worker.Stop()
			producer.Stop()
		}
	}

	local := queue.NewLocalDispatcher(queue.LocalOptions{
		Size:        cfg.Payment.QueueSize,
		Workers:     cfg.Payment.Workers,
		MaxAttempts: cfg.NSQ.MaxAttempts,
		JobTimeout:  cfg.Payment.GatewayTimeout,
	}, payments.ProcessJob, log)
	payments.SetDispatcher(local)
	log.Info("reconciling payment callbacks in process")
	return local.Close
}
