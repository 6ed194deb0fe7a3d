package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chrisndirangu54/standstill/internal/api"
	"github.com/chrisndirangu54/standstill/internal/config"
	"github.com/chrisndirangu54/standstill/internal/database"
	"github.com/chrisndirangu54/standstill/internal/logger"
	"github.com/chrisndirangu54/standstill/internal/metrics"
	"github.com/chrisndirangu54/standstill/internal/middleware"
	"github.com/chrisndirangu54/standstill/internal/publisher"
	"github.com/chrisndirangu54/standstill/internal/repository"
	"github.com/chrisndirangu54/standstill/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer lg.Sync()

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewMigrationManager(db, lg).RunMigrations(); err != nil {
		return err
	}

	mcol := metrics.NewCollector()

	var pub publisher.Publisher = publisher.Nop{}
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, mcol, lg)
		if err != nil {
			return err
		}
		pub = np
		lg.Info("publishing run events", zap.String("nats", cfg.NATSURL), zap.String("prefix", cfg.NATSSubjectPrefix))
	}
	defer pub.Close()

	svc := service.NewSegmentService(repository.NewRunRepository(db), cfg.Segmenter(), mcol, pub, lg)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
		defer limiter.Stop()
	}
	if !cfg.AuthEnabled() {
		lg.Warn("JWT_SECRET is not set, the API is unauthenticated")
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(api.Deps{
		Config:  cfg,
		Service: svc,
		Metrics: mcol,
		Limiter: limiter,
		Logger:  lg,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		lg.Info("server starting", zap.String("addr", cfg.Port), zap.String("db", cfg.DBPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
