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

	"github.com/vtype/vtype/internal/chat/blob"
	httpapi "github.com/vtype/vtype/internal/chat/http"
	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/internal/chat/store/drivers/memory"
	"github.com/vtype/vtype/internal/chat/store/drivers/redis"
	"github.com/vtype/vtype/internal/chat/store/drivers/sqlite"
	"github.com/vtype/vtype/internal/chat/ws"
	"github.com/vtype/vtype/pkg/cryptox"
	"github.com/vtype/vtype/pkg/jwtx"
	"github.com/vtype/vtype/pkg/slogx"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "dev"

// Application encapsulates the chat service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db  store.Store
	kv  store.KV
	hub *ws.Hub

	tokenService   *service.TokenService
	userService    *service.UserService
	messageService *service.MessageService
	cleanupService *service.CleanupService
	blobStorage    blob.Storage

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "chat-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initKV()
	if err := app.initBlobStorage(); err != nil {
		return nil, err
	}

	app.hub = ws.NewHub()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.cleanupService.Start()

	app.logger.Info("chat service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down chat service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.cleanupService.Stop()

	if err := app.kv.Close(); err != nil {
		app.logger.Error("error closing kv store", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("chat service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initKV connects to redis when configured, otherwise falls back to the
// in-process store. The fallback keeps the service up in a degraded mode:
// token records will not survive a restart and are invisible to other
// replicas.
func (app *Application) initKV() {
	if app.cfg.RedisAddr == "" {
		app.logger.Warn("REDIS_ADDR not set, using in-memory token store")
		app.kv = memory.NewKV()
		return
	}

	kv, err := redis.NewKV(app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
	if err != nil {
		app.logger.Warn("redis unavailable, using in-memory token store",
			"addr", app.cfg.RedisAddr, "error", err)
		app.kv = memory.NewKV()
		return
	}

	app.logger.Info("connected to redis", "addr", app.cfg.RedisAddr)
	app.kv = kv
}

func (app *Application) initBlobStorage() error {
	if app.cfg.MinioEndpoint == "" {
		app.logger.Info("MINIO_ENDPOINT not set, avatar uploads disabled")
		return nil
	}

	storage, err := blob.NewMinioStorage(
		app.cfg.MinioEndpoint,
		app.cfg.MinioAccessKey,
		app.cfg.MinioSecretKey,
		app.cfg.MinioBucket,
		app.cfg.MinioUseSSL,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}
	if err := storage.EnsureBucket(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure avatar bucket: %w", err)
	}

	app.logger.Info("connected to object storage",
		"endpoint", app.cfg.MinioEndpoint, "bucket", app.cfg.MinioBucket)
	app.blobStorage = storage
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	accessSecret := []byte(app.cfg.AccessSecret)
	refreshSecret := []byte(app.cfg.RefreshSecret)

	app.tokenService = &service.TokenService{
		AccessSigner: jwtx.Signer{
			Secret: accessSecret,
			Kind:   jwtx.KindAccess,
			Issuer: app.cfg.Issuer,
			TTL:    app.cfg.AccessTTL,
		},
		RefreshSigner: jwtx.Signer{
			Secret: refreshSecret,
			Kind:   jwtx.KindRefresh,
			Issuer: app.cfg.Issuer,
			TTL:    app.cfg.RefreshTTL,
		},
		AccessVerifier: jwtx.Verifier{
			Secret: accessSecret,
			Kind:   jwtx.KindAccess,
			Issuer: app.cfg.Issuer,
		},
		RefreshVerifier: jwtx.Verifier{
			Secret: refreshSecret,
			Kind:   jwtx.KindRefresh,
			Issuer: app.cfg.Issuer,
		},
		KV:    app.kv,
		Users: app.db.Users(),
	}

	app.userService = &service.UserService{Store: app.db}
	app.messageService = &service.MessageService{Store: app.db}

	app.cleanupService = service.NewCleanupService(
		app.kv,
		app.tokenService.AccessVerifier,
		app.tokenService.RefreshVerifier,
		app.logger,
		app.cfg.AccessCleanupInterval,
		app.cfg.RefreshCleanupInterval,
		app.cfg.SessionCleanupInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.cfg.ClientOrigin,
		app.db,
		app.kv,
		app.hub,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.MessageService = app.messageService
	router.CleanupService = app.cleanupService
	router.BlobStorage = app.blobStorage
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}
