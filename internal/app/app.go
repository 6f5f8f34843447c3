package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go-contacts-api/internal/auth"
	"go-contacts-api/internal/avatar"
	"go-contacts-api/internal/cache"
	"go-contacts-api/internal/config"
	"go-contacts-api/internal/database"
	"go-contacts-api/internal/email"
	"go-contacts-api/internal/event"
	"go-contacts-api/internal/handler"
	"go-contacts-api/internal/metrics"
	"go-contacts-api/internal/repository"
	"go-contacts-api/internal/router"
	"go-contacts-api/internal/service"
	"go-contacts-api/internal/storage"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	a := &App{}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.onShutdown(db.Close)

	if err := db.Migrate(ctx); err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("database ready")

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		if m, err = metrics.New(reg); err != nil {
			a.cleanup()
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		if err := m.RegisterPool(reg, db.Pool); err != nil {
			a.cleanup()
			return nil, fmt.Errorf("failed to register pool metrics: %w", err)
		}
	}

	cacheClient, err := cache.New(ctx, cache.Config{
		Driver:   cfg.CacheDriver,
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   "contacts",
	})
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.onShutdown(func() {
		if err := cacheClient.Close(); err != nil {
			slog.Warn("failed to close cache", "error", err)
		}
	})
	userCache := cache.NewUserCache(cacheClient, cfg.UserCacheTTL)

	codec, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.EmailTokenTTL)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	hasher := auth.NewHasher(0)

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	contactRepo := repository.NewContactRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	var sender email.Sender = email.LogSender{}
	if cfg.SMTPHost != "" {
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			TLSMode:  cfg.SMTPTLSMode,
		})
	} else {
		slog.Warn("SMTP_HOST not set, confirmation emails will only be logged")
	}
	mailer, err := email.NewConfirmationMailer(sender)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	bus := event.NewBus()
	auditService := service.NewAuditService(auditRepo)
	a.onShutdown(auditService.Start(bus))

	avatarStore, static, err := newAvatarStore(ctx, cfg)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize avatar storage: %w", err)
	}

	authService := service.NewAuthService(userRepo, hasher, codec, userCache, mailer, bus, m)
	a.onShutdown(authService.Wait)
	userService := service.NewUserService(userRepo, userCache, avatarStore, avatar.NewProcessor(cfg.AvatarSize), bus)
	contactService := service.NewContactService(contactRepo, bus)

	resolver := auth.NewSessionResolver(codec, userCache, userRepo, m)

	appRouter := router.New(cfg, resolver, bus, m, router.Handlers{
		Auth:    handler.NewAuthHandler(authService, cfg.PublicBaseURL),
		User:    handler.NewUserHandler(userService, cfg.AvatarMaxUpload),
		Contact: handler.NewContactHandler(contactService),
		Audit:   handler.NewAuditHandler(auditService),
		Health: handler.NewHealthHandler(
			handler.HealthCheck{Name: "database", Check: db.Health},
			handler.HealthCheck{Name: "cache", Check: cacheClient.Ping},
		),
		Static: static,
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

// newAvatarStore returns the configured object store and, for the local
// driver, the handler that serves it.
func newAvatarStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, http.Handler, error) {
	switch cfg.AvatarDriver {
	case "s3":
		store, err := storage.NewS3(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		store, err := storage.NewLocal(cfg.AvatarLocalRoot, cfg.AvatarPublicPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("serving avatars from disk", "root", store.RootAbs(), "path", store.PublicPath())
		return store, store.FileServer(), nil
	}
}

// onShutdown registers fn to run on shutdown. Functions run in reverse order
// of registration.
func (a *App) onShutdown(fn func()) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	// Drain in-flight mail and audit writes before the pool goes away.
	a.cleanup()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
