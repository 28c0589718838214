package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"peerprep/interview/internal/config"
	"peerprep/interview/internal/events"
	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/history"
	"peerprep/interview/internal/jobs"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/notify"
	"peerprep/interview/internal/room_management"
	"peerprep/interview/internal/routers"
	"peerprep/interview/internal/utils"
)

// services bundles everything main has to start and stop.
type services struct {
	manager   *room_management.RoomManager
	hub       *notify.Hub
	rdb       *redis.Client
	repo      *history.Repository
	reaper    *jobs.RoomReaperJob
	readiness map[string]handlers.Pinger
}

// buildServices wires the room manager and its listeners. Redis and history are
// optional; failing to reach them disables the feature instead of the service.
func buildServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) *services {
	svc := &services{
		manager:   room_management.NewRoomManager(logger),
		hub:       notify.NewHub(logger),
		readiness: make(map[string]handlers.Pinger),
	}
	svc.manager.AddListener(metrics.EventCounter{})
	svc.manager.AddListener(svc.hub)

	if cfg.RedisAddr != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Error("Redis unavailable, event publishing disabled", zap.Error(err))
		} else {
			publisher := events.NewPublisher(rdb, cfg.EventsChannel, logger)
			svc.rdb = rdb
			svc.manager.AddListener(publisher)
			svc.readiness["redis"] = publisher
			logger.Info("Event publishing enabled", zap.String("channel", publisher.Channel()))
		}
	}

	if cfg.HistoryDriver != "" {
		db, err := history.Open(cfg.HistoryDriver, cfg.HistoryDSN)
		if err != nil {
			logger.Error("Failed to initialize database, history will be disabled", zap.Error(err))
		} else {
			svc.repo = history.NewRepository(db)
			svc.manager.AddListener(history.NewRecorder(svc.repo, logger))
			svc.readiness["history"] = svc.repo
			logger.Info("Interview history enabled", zap.String("driver", cfg.HistoryDriver))
		}
	}

	svc.reaper = jobs.NewRoomReaperJob(svc.manager, cfg.ReapSchedule, cfg.RoomIdleTTL, logger)
	return svc
}

func newRouter(cfg *config.Config, svc *services, logger *zap.Logger) *chi.Mux {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", utils.UserIDHeader},
		AllowCredentials: true,
	}))
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	router.Use(metrics.Middleware("interview"))

	// keep the interface nil when history is off
	var store handlers.HistoryStore
	if svc.repo != nil {
		store = svc.repo
	}
	interviewHandler := handlers.NewInterviewHandler(svc.manager, svc.hub, store, []byte(cfg.JWTSecret), logger)

	routers.HealthRoutes(router, handlers.NewHealthHandler(svc.readiness))
	routers.InterviewRoutes(router, interviewHandler)
	return router
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	if cfg.JWTSecret == "your-secret-key" {
		logger.Warn("JWT_SECRET is not set, using the insecure default")
	}

	svc := buildServices(context.Background(), cfg, logger)
	if err := metrics.RegisterRoomGauges(prometheus.DefaultRegisterer, svc.manager); err != nil {
		logger.Fatal("Failed to register room metrics", zap.Error(err))
	}
	if err := svc.reaper.Start(); err != nil {
		logger.Fatal("Failed to start room reaper", zap.Error(err))
	}

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     newRouter(cfg, svc, logger),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shutdown the server
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")
	svc.reaper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// deliver pending room events before their sinks go away
	svc.manager.Flush()
	svc.hub.Close()
	if svc.rdb != nil {
		svc.rdb.Close()
	}

	logger.Info("Interview service exited")
}
