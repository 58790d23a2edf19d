package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/schoolsync/pulse/access"
	"github.com/schoolsync/pulse/audit"
	"github.com/schoolsync/pulse/config"
	"github.com/schoolsync/pulse/controller"
	"github.com/schoolsync/pulse/db"
	pulse_errors "github.com/schoolsync/pulse/errors"
	"github.com/schoolsync/pulse/impersonate"
	logger "github.com/schoolsync/pulse/logging"
	"github.com/schoolsync/pulse/metrics"
	"github.com/schoolsync/pulse/middleware"
	"github.com/schoolsync/pulse/model"
	"github.com/schoolsync/pulse/notify"
	"github.com/schoolsync/pulse/rest"
	"github.com/schoolsync/pulse/service"
	"github.com/schoolsync/pulse/util"
	"github.com/schoolsync/pulse/ws"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	eventBus.Start(ctx)

	// Initialize services and utilities
	toastService := util.NewToastService()
	auditService := audit.NewService(newAuditRepository())
	evaluator := access.NewEvaluator(config.GetString("access.adminRole"))
	hub := service.NewHubService()
	directory := service.NewDirectoryService()
	seedDirectory(directory)

	// Record every ingested notification in the audit trail
	eventBus.Subscribe(notify.EventIngested, func(ctx context.Context, event util.Event) error {
		notification, ok := event.Payload.(model.NotificationEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type: %T", event.Payload)
		}
		return auditService.Record(ctx, audit.Entry{
			ActorID:  notification.Actor,
			Action:   audit.ActionNotificationIngest,
			TargetID: notification.ID,
		})
	})

	// Initialize controllers
	controllers := controller.InitializeControllers(hub, eventBus, directory, auditService)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(100, time.Minute)) // 100 requests per minute

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": hub.ClientCount()})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Register routes
	secret := config.GetString("auth.secret")
	authed := router.Group("/", middleware.StreamAuth(secret))
	controllers.Stream.RegisterRoutes(authed)
	controllers.Impersonation.RegisterRoutes(authed)
	controllers.Notification.RegisterRoutes(authed)

	publish := router.Group("/", middleware.StreamAuth(secret),
		middleware.RequireAccess(evaluator, model.AccessRule{Permissions: []string{"events.publish"}}))
	controllers.Event.RegisterRoutes(publish)

	admin := router.Group("/", middleware.StreamAuth(secret),
		middleware.RequireAccess(evaluator, model.AccessRule{Roles: []string{config.GetString("access.adminRole")}}))
	controllers.Audit.RegisterRoutes(admin)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("Relay listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if config.GetBool("relay.demoEvents") {
		group.Go(func() error {
			runDemoPublisher(groupCtx, hub)
			return nil
		})
	}

	// The embedded agent runs the client core against the relay, useful for
	// local development without the dashboard frontend.
	if config.GetBool("agent.enabled") {
		manager := startAgent(ctx, toastService, auditService, eventBus)
		defer manager.Close()
	}

	if err := group.Wait(); err != nil {
		logger.Error("Relay terminated with error", zap.Error(err))
	}
	logger.Info("Relay stopped")
}

func newAuditRepository() audit.Repository {
	repo, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Warn("Elasticsearch unavailable, auditing to log", zap.Error(err))
		return audit.NewLogRepository()
	}
	return repo
}

func seedDirectory(directory *service.DirectoryService) {
	directory.Add(model.TargetUser{
		UserID:  "u-1001",
		Name:    "Dana Whitfield",
		Email:   "dana.whitfield@example.edu",
		Schools: []string{"northside-high", "lakeview-middle"},
	})
	directory.Add(model.TargetUser{
		UserID:  "u-1002",
		Name:    "Marcus Bell",
		Email:   "marcus.bell@example.edu",
		Schools: []string{"northside-high"},
	})
}

func startAgent(ctx context.Context, toastService *util.ToastService, auditService audit.Service, eventBus *util.EventBus) *ws.Manager {
	restClient := rest.NewClient(config.GetString("api.baseURL"), config.GetString("agent.token"), nil)

	var sessionStore impersonate.Store
	if config.GetString("impersonation.storage") == "redis" {
		sessionStore = db.NewSessionStore(config.GetString("impersonation.redisKey"))
	} else {
		sessionStore = impersonate.NewFileStore(config.GetString("impersonation.storagePath"))
	}
	impersonation := impersonate.NewManager(
		config.GetString("agent.userID"),
		sessionStore,
		restClient,
		toastService,
		auditService,
	)
	restClient.SetHeaderSource(impersonation)

	router := notify.NewRouter(db.NewNamespaceInvalidator())
	feed := notify.NewStore(config.GetInt("notifications.capacity"), router, toastService, restClient, eventBus)

	manager := ws.NewManager(ws.Options{
		URL:              config.GetString("stream.url"),
		Token:            config.GetString("agent.token"),
		BackoffBase:      config.GetDuration("stream.backoffBase"),
		BackoffMax:       config.GetDuration("stream.backoffMax"),
		GracePeriod:      config.GetDuration("stream.gracePeriod"),
		PingInterval:     config.GetDuration("stream.pingInterval"),
		PongTimeout:      config.GetDuration("stream.pongTimeout"),
		HandshakeTimeout: config.GetDuration("stream.handshakeTimeout"),
	})

	manager.Open(ws.Handlers{
		OnMessage: func(msg model.Message) {
			if msg.Type != model.MessageTypeNotification {
				return
			}
			event, err := msg.Notification()
			if err != nil {
				logger.Warn("Dropping undecodable notification payload", zap.Error(err))
				return
			}
			feed.Ingest(ctx, event)
		},
		OnConnect: func() {
			logger.Info("Agent stream online")
		},
		OnDisconnect: func() {
			logger.Info("Agent stream offline")
		},
		OnError: func(err error) {
			// Bad credentials will not improve with retries.
			if errors.Is(err, pulse_errors.ErrHandshakeRejected) {
				logger.Error("Agent stream credentials rejected, disabling the stream", zap.Error(err))
				manager.Close()
			}
		},
	})
	return manager
}

func runDemoPublisher(ctx context.Context, hub *service.HubService) {
	entities := []model.EntityType{
		model.EntityIncident,
		model.EntityWorkOrder,
		model.EntityProject,
		model.EntityDevice,
		model.EntityServiceShop,
	}

	ticker := time.NewTicker(config.GetDuration("relay.demoInterval"))
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			event := model.NotificationEvent{
				ID:        uuid.NewString(),
				Type:      entities[i%len(entities)],
				Action:    model.ActionCreate,
				Actor:     "demo",
				Summary:   "Synthetic event for local development",
				Timestamp: time.Now().UTC(),
			}
			msg, err := model.NewNotificationMessage(event, event.Timestamp.Format(time.RFC3339))
			if err != nil {
				continue
			}
			hub.Broadcast(msg)
		}
	}
}
