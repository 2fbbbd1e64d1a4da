package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"helpdesk-service/internal/auth"
	"helpdesk-service/internal/config"
	"helpdesk-service/internal/db"
	"helpdesk-service/internal/handlers"
	"helpdesk-service/internal/middleware"
	"helpdesk-service/internal/notify"
	"helpdesk-service/internal/observability"
	"helpdesk-service/internal/rabbitmq"
	"helpdesk-service/internal/repositories"
	"helpdesk-service/internal/telemetry"
	"helpdesk-service/internal/ws"
)

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing := observability.SetupTracing(context.Background(), "helpdesk-service", cfg.OTLPEndpoint)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit.helpdesk", "helpdesk-service", cfg.Environment)

	if wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AuditExchange); err == nil {
		observability.SetPublisher(wsPublisher)
		defer wsPublisher.Close()
	} else {
		log.Printf("ws event publishing disabled: %v", err)
	}

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	hub := ws.NewHub()
	notifier := notify.NewNotifier(notificationRepo, hub)

	supportHandler := handlers.NewSupportHandler(messageRepo, hub, auditEmitter)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, notifier, auditEmitter)
	supportWS := ws.NewSupportWebSocketHandler(hub, verifier)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("helpdesk-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.Auth(verifier)
	staffOnly := middleware.RequireStaff()

	router.GET("/support/messages", authMiddleware, supportHandler.GetMyConversation)
	router.POST("/support/messages", authMiddleware, supportHandler.SendMessage)
	router.POST("/support/close", authMiddleware, supportHandler.CloseMyConversation)
	router.GET("/support/conversations", authMiddleware, staffOnly, supportHandler.ListConversations)
	router.GET("/support/conversations/:user_id/messages", authMiddleware, staffOnly, supportHandler.GetConversation)
	router.GET("/support/conversations/:user_id/status", authMiddleware, staffOnly, supportHandler.ConversationStatus)
	router.POST("/support/conversations/:user_id/close", authMiddleware, staffOnly, supportHandler.CloseConversation)

	router.GET("/notifications", authMiddleware, notificationHandler.List)
	router.GET("/notifications/unread-count", authMiddleware, notificationHandler.UnreadCount)
	router.PUT("/notifications/:id/read", authMiddleware, notificationHandler.MarkRead)
	router.PUT("/notifications/read-all", authMiddleware, notificationHandler.MarkAllRead)
	router.DELETE("/notifications/:id", authMiddleware, notificationHandler.Delete)
	router.DELETE("/notifications", authMiddleware, notificationHandler.DeleteAll)
	router.POST("/notifications/announce", authMiddleware, middleware.RequireAdmin(), notificationHandler.Announce)
	router.POST("/internal/notifications", authMiddleware, staffOnly, notificationHandler.CreateInternal)

	router.GET("/ws/support", supportWS.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
