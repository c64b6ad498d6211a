package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storyreel/auth"
	"storyreel/config"
	"storyreel/database"
	"storyreel/handlers"
	"storyreel/logger"
	"storyreel/media"
	"storyreel/memstore"
	"storyreel/metrics"
	"storyreel/middleware"
	"storyreel/notify"
	"storyreel/routes"
	"storyreel/stories"
	"storyreel/video"
	"storyreel/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type stores struct {
	users   auth.UserRepository
	stories stories.Repository
	push    notify.SubscriptionStore
	mongo   *database.Mongo
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.SetupDefault(os.Stdout, cfg.GinMode)
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	slog.Info("[Main] Starting storyreel", "port", cfg.Port, "store", cfg.StoreBackend, "media", cfg.MediaBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("[Main] Failed to open store", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	videos, err := videoProvider(ctx, cfg)
	if err != nil {
		slog.Error("[Main] Failed to create YouTube client", "error", err)
		os.Exit(1)
	}

	uploader, err := mediaUploader(ctx, cfg)
	if err != nil {
		slog.Error("[Main] Failed to configure media storage", "error", err)
		os.Exit(1)
	}

	var pusher *notify.Pusher
	var notifier stories.EngagementNotifier
	if cfg.PushEnabled() {
		pusher = notify.NewPusher(st.push, notify.PusherConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
		})
		notifier = pusher
	} else {
		slog.Warn("[Main] VAPID keys not set, push notifications disabled")
	}

	wsManager := websocket.NewManager()
	go wsManager.Run(ctx)

	authSvc := auth.NewService(st.users, auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL))
	storySvc := stories.NewService(st.stories, stories.Options{
		Videos:           videos,
		Events:           wsManager,
		Notifier:         notifier,
		Metrics:          collector,
		MaxVideoDuration: cfg.MaxVideoDuration,
		ShareBaseURL:     cfg.PublicBaseURL,
	})

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, 5*time.Minute)
	}

	router := routes.SetupRouter(routes.Deps{
		Handler:        handlers.New(authSvc, storySvc, uploader, pusher),
		Verifier:       authSvc,
		Limiter:        limiter,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		WebSocket:      wsManager,
		AllowedOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("[Main] Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("[Main] Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Main] Forced shutdown", "error", err)
	}
	if limiter != nil {
		limiter.Stop()
	}
	if pusher != nil {
		pusher.Wait()
	}
	cancel()
	if st.mongo != nil {
		if err := st.mongo.Disconnect(shutdownCtx); err != nil {
			slog.Error("[Main] MongoDB disconnect failed", "error", err)
		}
	}

	slog.Info("[Main] Server stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreBackend == config.StoreMemory {
		slog.Warn("[Main] Using in-memory store, data is lost on restart")
		return &stores{
			users:   memstore.NewUsers(),
			stories: memstore.NewStories(),
			push:    memstore.NewPushSubscriptions(),
		}, nil
	}

	var (
		m     *database.Mongo
		dbErr error
	)
	for i := 1; i <= 3; i++ {
		m, dbErr = database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTransactions)
		if dbErr == nil {
			break
		}
		slog.Error("[Main] MongoDB connection attempt failed", "attempt", i, "error", dbErr)
		time.Sleep(2 * time.Second)
	}
	if dbErr != nil {
		return nil, dbErr
	}
	slog.Info("[Main] MongoDB connected", "database", cfg.MongoDatabase)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := m.EnsureIndexes(indexCtx); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, err
	}

	return &stores{
		users:   database.NewUserRepository(m),
		stories: database.NewStoryRepository(m),
		push:    database.NewPushStore(m),
		mongo:   m,
	}, nil
}

func videoProvider(ctx context.Context, cfg *config.Config) (video.DurationProvider, error) {
	if cfg.YouTubeAPIKey == "" {
		slog.Warn("[Main] YOUTUBE_API_KEY not set, video slides will be rejected")
		return video.DisabledProvider{}, nil
	}
	return video.NewYouTubeProvider(ctx, cfg.YouTubeAPIKey)
}

func mediaUploader(ctx context.Context, cfg *config.Config) (media.Uploader, error) {
	switch cfg.MediaBackend {
	case config.MediaCloudinary:
		return media.NewCloudinary(cfg.CloudinaryURL)
	case config.MediaS3:
		return media.NewS3(ctx, media.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	default:
		return media.Disabled{}, nil
	}
}
