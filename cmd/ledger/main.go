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

	"github.com/eaglebank/ledger/internal/command"
	"github.com/eaglebank/ledger/internal/config"
	"github.com/eaglebank/ledger/internal/handler"
	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/internal/notify"
	"github.com/eaglebank/ledger/internal/query"
	"github.com/eaglebank/ledger/internal/repository/postgres"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/logger"
	"github.com/eaglebank/ledger/shared/middleware"
	redisClient "github.com/eaglebank/ledger/shared/redis"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

// permissionCreateTransfer is required on API keys used for partner transfers.
const permissionCreateTransfer = "create:transfer"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Options{Service: "ledger"})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "ledger"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database connection (ledger of record)
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	// Redis connection (event streaming + history cache)
	redis, err := redisClient.NewClient(ctx, redisClient.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redis.Close()

	publisher := events.NewPublisher(redis.Client, events.WithPublisherLogger(log))

	// Stores
	uow := postgres.NewUnitOfWork(db, cfg.LockTimeout)
	accounts := postgres.NewAccountWriteRepository(db)
	transactions := postgres.NewTransactionWriteRepository()
	readRepo := postgres.NewTransactionReadRepository(db, redis.Client)
	audit := postgres.NewAuditRepository(db)
	apiKeys := postgres.NewAPIKeyRepository(db)

	engine := ledger.New(uow, accounts, transactions, ledger.Config{
		CommissionRate: cfg.CommissionRate,
		CommissionMin:  cfg.CommissionMin,
		Timeout:        cfg.OpTimeout,
		NotifyTimeout:  cfg.NotifyTimeout,
		Location:       cfg.Location,
	},
		ledger.WithNotifier(notify.NewStreamDispatcher(publisher)),
		ledger.WithAuditor(audit),
		ledger.WithLogger(log.With().Str("component", "engine").Logger()),
	)

	// Command + Query services
	commandSvc := command.NewTransferCommandService(engine)
	accountSvc := command.NewAccountCommandService(accounts)
	querySvc := query.NewTransactionQueryService(readRepo, accounts)

	transferHandler := handler.NewTransferHandler(commandSvc)
	accountHandler := handler.NewAccountHandler(accountSvc)
	transactionHandler := handler.NewTransactionHandler(querySvc)

	// History projector
	projectorDone := make(chan struct{})
	go func() {
		defer close(projectorDone)
		projectorLog := log.With().Str("component", "projector").Logger()
		hostname, _ := os.Hostname()
		subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
			Group:    query.ProjectorGroup,
			Consumer: "ledger-" + hostname,
			Stream:   events.TransactionEventsStream,
			Handler:  query.NewHistoryProjector(readRepo).Handle,
			Logger:   &projectorLog,
		})
		if err := subscriber.Start(logger.WithContext(ctx, projectorLog)); err != nil && !errors.Is(err, context.Canceled) {
			projectorLog.Error().Err(err).Msg("subscriber stopped")
		}
	}()

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1", middleware.AuthMiddleware())
	{
		v1.POST("/transfers", transferHandler.Transfer)
		v1.POST("/transfers/self", transferHandler.SelfTransfer)
		v1.POST("/payments/external", transferHandler.ExternalPayment)
		v1.POST("/payments/service", transferHandler.ServicePayment)

		v1.GET("/transactions", transactionHandler.ListUserTransactions)
		v1.GET("/accounts/:accountId/transactions", transactionHandler.ListAccountTransactions)
		v1.GET("/accounts/:accountId/transactions/:transactionId", transactionHandler.GetTransaction)

		v1.PATCH("/accounts/:accountId/limit", accountHandler.SetDailyLimit)
		v1.PATCH("/accounts/:accountId/freeze", accountHandler.SetFrozen)
		v1.PATCH("/accounts/:accountId/pin", accountHandler.ChangePIN)

		admin := v1.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
		admin.POST("/accounts/:accountId/deposits", transferHandler.AdminDeposit)
	}

	partners := router.Group("/v1/external", middleware.APIKeyMiddleware(apiKeys, permissionCreateTransfer))
	partners.POST("/transfers", transferHandler.APITransfer)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("ledger service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OpTimeout+cfg.NotifyTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	engine.Wait()
	<-projectorDone
}
