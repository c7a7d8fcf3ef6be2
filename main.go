package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"social-chat/internal/cache"
	"social-chat/internal/chat"
	"social-chat/internal/config"
	"social-chat/internal/db"
	"social-chat/internal/handlers"
	"social-chat/internal/logger"
	"social-chat/internal/middleware"
	"social-chat/internal/notify"
	"social-chat/internal/observability"
	"social-chat/internal/rabbitmq"
	"social-chat/internal/repositories"
	"social-chat/internal/telemetry"
	"social-chat/internal/ws"
)

const serviceName = "social-chat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.IsProduction())
	defer func() { _ = log.Sync() }()
	if !cfg.DotEnvLoaded {
		log.Info("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	redisClient, err := cache.NewClient(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info("audit publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Environment, log)

	// empty project id yields a noop gateway
	push, err := notify.NewFCMGateway(ctx, cfg.FCMProjectID)
	if err != nil {
		log.Fatal("failed to init fcm", zap.Error(err))
	}

	pubsub := notify.NewRedisPubSub(redisClient)
	fanout := notify.NewFanout(repositories.NewNotificationRepo(database), pubsub, push, cfg.PushMaxDevices, log)
	queue := notify.NewQueue(cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout, log)
	queue.Start()

	users := cache.NewUserCache(redisClient, repositories.NewUserRepo(database), cfg.UserCacheTTL, log)
	chatService := chat.NewService(repositories.NewStore(database), users, fanout, queue, chat.Config{
		Location:   cfg.Location,
		DailyLimit: cfg.TicketDailyLimit,
	}, log)

	verifier := middleware.NewTokenVerifier(cfg.JWTSecret)
	hub := ws.NewHub(log)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		ws.NewRelay(pubsub, hub, log).Run(relayCtx)
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.Recovery(log),
		middleware.RequestIDMiddleware(),
		otelgin.Middleware(serviceName),
		observability.HTTPMetricsMiddleware(),
		middleware.LoggingMiddleware(log),
	)

	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/health", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/notifications", ws.NewNotificationHandler(hub, verifier, log).Handle)

	authed := router.Group("/", middleware.AuthMiddleware(verifier))
	handlers.NewChatHandler(chatService, auditEmitter, log).RegisterRoutes(authed)
	handlers.RegisterDebugRoutes(authed, auditEmitter, fanout, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	stopRelay()
	<-relayDone
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error("notify queue did not drain", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", zap.Error(err))
	}
}
