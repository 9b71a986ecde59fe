package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/shop_auth/internal/audit"
	"github.com/Skotchmaster/shop_auth/internal/config"
	"github.com/Skotchmaster/shop_auth/internal/db"
	"github.com/Skotchmaster/shop_auth/internal/events"
	"github.com/Skotchmaster/shop_auth/internal/httpserver"
	"github.com/Skotchmaster/shop_auth/internal/logging"
	"github.com/Skotchmaster/shop_auth/internal/middleware"
	"github.com/Skotchmaster/shop_auth/internal/repo"
	"github.com/Skotchmaster/shop_auth/internal/service"
	"github.com/Skotchmaster/shop_auth/internal/tokens"
)

func main() {
	cfg := config.MustValid(config.Load())

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogOutput(),
		Service: cfg.ServiceName,
		Env:     cfg.Env,
	})
	ctx := logging.IntoContext(context.Background(), logger)

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err == nil {
		err = db.Migrate(initCtx, gdb)
	}
	cancel()
	if err != nil {
		logger.Error("db init error", "error", err)
		os.Exit(1)
	}

	store := repo.New(gdb, cfg.StoreTimeout)

	var (
		resetStore service.ResetStore = store
		rdb        *redis.Client
	)
	if cfg.ResetStore == "redis" {
		rdb, err = db.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Error("redis init error", "error", err)
			os.Exit(1)
		}
		resetStore = repo.NewRedisResetStore(rdb, cfg.StoreTimeout)
	}

	var (
		publisher events.Publisher = events.Nop{}
		producer  *events.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = producer
	}

	var recorder audit.Recorder = audit.Nop{}
	if len(cfg.ESAddresses) > 0 {
		esCtx, esCancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := audit.NewClient(esCtx, cfg.ESAddresses, cfg.ESUser, cfg.ESPassword)
		esCancel()
		if err != nil {
			logger.Warn("audit disabled", "error", err)
		} else {
			recorder = audit.NewESRecorder(client, cfg.ESAuditIndex)
		}
	}

	keys := tokens.NewKeyring(
		tokens.NewTrackCodecs(tokens.Customer, cfg.Customer.AccessSecret, cfg.Customer.RefreshSecret, tokens.WithLeeway(cfg.TokenLeeway)),
		tokens.NewTrackCodecs(tokens.Admin, cfg.Admin.AccessSecret, cfg.Admin.RefreshSecret, tokens.WithLeeway(cfg.TokenLeeway)),
	)

	blacklist := service.NewBlacklist(store, cfg.BlacklistFailOpen)
	sessions := service.NewSessionManager(store, keys, blacklist, service.Options{
		AccessTTL:             cfg.AccessTTL,
		RefreshTTL:            cfg.RefreshTTL,
		BcryptCost:            cfg.BcryptCost,
		RotateRevokesPrevious: cfg.RotateRevokesPrevious,
	})
	sessions.Events = publisher
	sessions.Audit = recorder

	resets := service.NewResetManager(store, resetStore, cfg.ResetTTL, cfg.BcryptCost)
	resets.Events = publisher
	resets.Audit = recorder

	if cfg.AdminBootstrapEmail != "" {
		if _, err := sessions.EnsureAdmin(ctx, cfg.AdminBootstrapName, cfg.AdminBootstrapEmail, cfg.AdminBootstrapPassword); err != nil {
			logger.Error("admin bootstrap error", "error", err)
			os.Exit(1)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second
	e.Pre(ecM.RemoveTrailingSlash())
	e.Use(middleware.Common()...)
	e.Use(middleware.RequestLogger(logger))

	deps := &httpserver.Deps{
		Sessions: sessions,
		Resets:   resets,
		Cookies: httpserver.CookieJar{
			Secure:     cfg.CookieSecure,
			SameSite:   cfg.CookieSameSite,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		ExposeResetToken: cfg.IsDevelopment(),
		Ready: func(ctx context.Context) error {
			if err := db.Ping(ctx, gdb); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	}
	if cfg.CSRFEnabled {
		csrf := middleware.DefaultCSRFConfig()
		csrf.Secure = cfg.CookieSecure
		csrf.SameSite = cfg.CookieSameSite
		deps.CSRF = &csrf
	}
	httpserver.Register(e, deps)

	runCtx, stopRun := context.WithCancel(ctx)
	purger := &service.Purger{
		Blacklist: blacklist,
		Resets:    resets,
		Retention: cfg.BlacklistRetention,
		Interval:  cfg.PurgeInterval,
	}
	go purger.Run(runCtx)

	go func() {
		logger.Info("http server started", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("echo start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	stopRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
	resets.Wait()
	if err := db.Close(gdb); err != nil {
		logger.Error("db close error", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
