package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scout-portal/internal/auth"
	"scout-portal/internal/child"
	"scout-portal/internal/config"
	"scout-portal/internal/db"
	"scout-portal/internal/document"
	"scout-portal/internal/domain"
	"scout-portal/internal/logger"
	"scout-portal/internal/middleware"
	"scout-portal/internal/notify"
	"scout-portal/internal/storage"
	"scout-portal/internal/unlock"
	"scout-portal/internal/user"
	"scout-portal/internal/worker"
	"scout-portal/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// handlers groups everything the router mounts.
type handlers struct {
	users    *user.Handler
	children *child.Handler
	docs     *document.Handler
	unlocks  *unlock.Handler
	auth     *middleware.Auth
}

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Environment, cfg.LogLevel)
	auth.Configure(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	gdb, err := db.ConnectDb(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.CloseDb(gdb)

	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if !cfg.IsProduction() {
		// Seed database with a reviewer account (for development)
		if err := db.SeedData(ctx, gdb); err != nil {
			log.Warn().Err(err).Msg("seeding failed")
		}
	}

	cache := redis.NewCache(redis.InitRedis(ctx, cfg.RedisAddress))

	files, err := newFileStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("file storage unavailable")
	}

	pool := worker.NewWorkerPool(cfg.NotifyWorkers, 100, 15*time.Second)
	defer pool.Shutdown()
	events, err := newDispatcher(pool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid notification settings")
	}

	router := setupRouter(cfg, wire(gdb, cache, files, events, cfg))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.ServerPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server shutdown complete")
}

func newFileStore(ctx context.Context, cfg config.Config) (storage.FileStore, error) {
	switch cfg.StorageDriver {
	case "drive":
		return storage.NewDriveStore(ctx, cfg.DriveCredentialsFile, cfg.DriveFolderID)
	case "memory", "":
		if cfg.IsProduction() {
			log.Warn().Msg("memory file storage in production, files are lost on restart")
		}
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func newDispatcher(pool *worker.WorkerPool, cfg config.Config) (*notify.Dispatcher, error) {
	notifiers := []notify.Notifier{notify.LogNotifier{}}
	if len(cfg.NotifyURLs) > 0 {
		sn, err := notify.NewShoutrrrNotifier(cfg.NotifyURLs, 10*time.Second)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, sn)
	}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.NotifyWebhookURL))
	}
	return notify.NewDispatcher(pool, notifiers...), nil
}

func wire(gdb *gorm.DB, cache *redis.Cache, files storage.FileStore, events notify.Publisher, cfg config.Config) handlers {
	userService := user.NewService(user.NewRepository(gdb), cache)
	childService := child.NewService(child.NewRepository(gdb), userService)
	unlockService := unlock.NewService(unlock.NewRepository(gdb), childService, events)
	docService := document.NewService(
		document.NewRepository(gdb),
		childService,
		unlockService,
		files,
		cache,
		events,
		cfg.ResubmitWindow,
	)

	return handlers{
		users:    user.NewHandler(userService),
		children: child.NewHandler(childService),
		docs:     document.NewHandler(docService, cfg.MaxUploadBytes),
		unlocks:  unlock.NewHandler(unlockService),
		auth:     &middleware.Auth{UserService: userService},
	}
}

func setupRouter(cfg config.Config, h handlers) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	// metrics wraps the error handler so it sees the final status
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics())
	}
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// User routes
	router.POST("/register", h.users.Register)
	router.POST("/login", h.users.Login)
	router.POST("/refresh", h.users.RefreshToken)

	authed := router.Group("/", h.auth.AuthMiddleWare())
	reviewers := middleware.RequireRole(domain.RoleScouter, domain.RoleAdmin)

	authed.DELETE("/logout", h.users.Logout)
	authed.GET("/profile", h.users.GetProfile)

	authed.POST("/children", reviewers, h.children.Create)
	authed.GET("/children", h.children.List)
	authed.GET("/children/:id", h.children.Show)
	authed.POST("/children/:id/guardians", reviewers, h.children.LinkGuardian)

	authed.GET("/children/:id/documents", h.docs.ListChildDocuments)
	authed.GET("/children/:id/documents/:type", h.docs.ShowDocument)
	authed.GET("/children/:id/documents/:type/upload-status", h.docs.ShowUploadStatus)
	authed.POST("/children/:id/documents/:type", middleware.RequireRole(domain.RoleGuardian), h.docs.Upload)
	authed.POST("/children/:id/documents/:type/unlock-requests", middleware.RequireRole(domain.RoleGuardian), h.unlocks.File)
	authed.GET("/children/:id/unlock-requests", h.unlocks.ListForChild)

	authed.GET("/documents/pending", reviewers, h.docs.ListPending)
	authed.POST("/documents/:slotId/review", reviewers, h.docs.Review)
	authed.GET("/documents/:slotId/revisions", h.docs.ListRevisions)
	authed.GET("/documents/:slotId/file", h.docs.ShowFile)

	authed.GET("/unlock-requests", reviewers, h.unlocks.List)
	authed.POST("/unlock-requests/:id/resolve", reviewers, h.unlocks.Resolve)

	return router
}
