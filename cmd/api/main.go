// main.go
package main

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

	"github.com/Marga-Ghale/ora-progress-api/internal/api"
	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/Marga-Ghale/ora-progress-api/internal/cron"
	"github.com/Marga-Ghale/ora-progress-api/internal/db"
	"github.com/Marga-Ghale/ora-progress-api/internal/email"
	"github.com/Marga-Ghale/ora-progress-api/internal/logger"
	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/seed"
	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/Marga-Ghale/ora-progress-api/internal/socket"
	"github.com/Marga-Ghale/ora-progress-api/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ============================================
	// Environment & configuration
	// ============================================
	envErr := godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	logger.Setup(cfg)
	if envErr != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Storage
	// ============================================
	var repos *repository.Repositories
	switch cfg.Storage {
	case "memory":
		repos = repository.NewInMemoryRepositories()
		slog.Warn("using in-memory storage, data is lost on restart")
	case "postgres":
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}

		pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		repos = repository.NewRepositories(pg.Pool, pg.DB)
	default:
		return fmt.Errorf("unknown STORAGE %q (want postgres or memory)", cfg.Storage)
	}

	// ============================================
	// Optional collaborators
	// ============================================
	var cache service.Cache
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, dashboards are not cached", "error", err)
		} else {
			defer redisDB.Close()
			cache = redisDB
		}
	}

	var mailer service.Mailer
	mailSvc := email.NewService(cfg.SMTP)
	if mailSvc.Configured() {
		queue := email.NewQueue(mailSvc, 2)
		defer queue.Stop()
		mailer = queue
	} else {
		slog.Warn("email not configured (SMTP_HOST not set)")
	}

	// ============================================
	// Services & realtime
	// ============================================
	hub := socket.NewHub(socket.AccessAuthorizer(service.NewAccessService(repos)))
	go hub.Run(ctx)

	services := service.NewServices(&service.ServiceDeps{
		Config:   cfg,
		Repos:    repos,
		Notifier: socket.NewBroadcaster(hub),
		Cache:    cache,
		Mailer:   mailer,
	})
	wsHandler := socket.NewHandler(hub, services.Auth)

	if !cfg.IsProduction() {
		res, err := seed.SeedData(ctx, repos, services, 30*24*time.Hour)
		if err != nil {
			slog.Error("seeding failed", "error", err)
		} else if res != nil {
			for addr, token := range res.Tokens {
				slog.Debug("seeded user token", "email", addr, "token", token)
			}
		}
	}

	// ============================================
	// Scheduled jobs
	// ============================================
	scheduler := cron.NewScheduler(cfg, services.Progress, services.Workspace, services.Time)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	// ============================================
	// HTTP
	// ============================================
	router := api.NewRouter(api.RouterDeps{
		Config:    cfg,
		Services:  services,
		WebSocket: wsHandler.HandleWebSocket,
		Status: func() gin.H {
			return gin.H{
				"storage":    cfg.Storage,
				"cache":      enabled(cache != nil, "connected"),
				"email":      enabled(mailer != nil, "configured"),
				"websocket":  "active",
				"ws_clients": hub.GetConnectedClientsCount(),
			}
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited")
	return nil
}

func enabled(ok bool, state string) string {
	if ok {
		return state
	}
	return "disabled"
}
