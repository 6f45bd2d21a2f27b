package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"razdel/internal/config"
	"razdel/internal/db"
	"razdel/internal/feed"
	"razdel/internal/gateway"
	"razdel/internal/handlers"
	"razdel/internal/middleware"
	"razdel/internal/observability"
	"razdel/internal/rabbitmq"
	"razdel/internal/session"
	"razdel/internal/telemetry"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := zap.NewProduction()
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	var gw gateway.Gateway
	switch cfg.Backend {
	case "cassandra":
		cass, err := db.ConnectCassandra(cfg.CassandraHosts, cfg.CassandraKeyspace, logger)
		if err != nil {
			logger.Fatal("failed to connect to cassandra", zap.Error(err))
		}
		defer cass.Close()
		gw = gateway.NewCassandraGateway(cass)
	default:
		database, err := db.Connect(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to db", zap.Error(err))
		}
		defer database.Close()
		gw = gateway.NewPostgresGateway(database)
	}

	var changeFeed feed.Feed
	switch cfg.FeedKind {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer rdb.Close()
		changeFeed = feed.NewRedisFeed(rdb, logger)
	default:
		changeFeed = feed.NewWebSocketFeed(cfg.FeedURL, logger)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.razdel", "razdel", cfg.Environment)

	sessions := session.NewManager(gw, changeFeed, audit, logger)
	defer sessions.CloseAll()

	boxHandler := handlers.NewMessageBoxHandler(sessions)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/messages", authMiddleware, boxHandler.ListMessages)
	router.POST("/messages/:message_id/comments/toggle", authMiddleware, boxHandler.ToggleComments)
	router.POST("/messages/:message_id/reply", authMiddleware, boxHandler.PostReply)
	router.PUT("/comments/:comment_id", authMiddleware, boxHandler.EditComment)
	router.DELETE("/comments/:comment_id", authMiddleware, boxHandler.DeleteComment)

	router.POST("/messages/:message_id/select", authMiddleware, boxHandler.SelectMessage)
	router.POST("/messages/select-all", authMiddleware, boxHandler.SelectAll)
	router.DELETE("/messages/selected", authMiddleware, boxHandler.DeleteSelected)

	router.GET("/notifications", authMiddleware, boxHandler.ListNotifications)
	router.POST("/notifications/:message_id/read", authMiddleware, boxHandler.MarkNotificationRead)
	router.DELETE("/notifications", authMiddleware, boxHandler.ClearNotifications)

	router.POST("/session/end", authMiddleware, boxHandler.EndSession)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		sessions.CloseAll()
		os.Exit(0)
	}()

	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
