package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habittracker/config"
	"habittracker/internal/handler"
	"habittracker/internal/httpserver"
	"habittracker/internal/repository"
	"habittracker/internal/service/auth"
	"habittracker/internal/service/habit"
	"habittracker/internal/streak"
	"habittracker/pkg/cache"
	"habittracker/pkg/db"
	"habittracker/pkg/logger"
	"habittracker/pkg/mq"
	pkgredis "habittracker/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// habitStore is everything the services need from persistence.
type habitStore interface {
	habit.Store
	auth.UserStore
}

// pgStore joins the Postgres repositories into one habitStore.
type pgStore struct {
	*repository.HabitRepository
	*repository.UserRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logger.NewLogger(cfg.Log.Level)
	defer logr.Sync()

	gin.SetMode(gin.ReleaseMode)

	logr.Info("Starting habit tracker...",
		zap.String("store", cfg.Store.Driver),
		zap.String("timezone", cfg.Streak.Timezone),
		zap.Int("progress_days", cfg.Streak.ProgressDays),
	)

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startCancel()

	// Store
	var (
		store  habitStore
		pinger httpserver.Pinger
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logr.Warn("Using in-memory store; data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		logr.Info("Initializing database connection...",
			zap.String("db_host", cfg.DB.Host),
			zap.Int("db_port", cfg.DB.Port),
		)
		pool, err := db.NewConnection(cfg.DB, logr)
		if err != nil {
			logr.Fatal("Failed to init DB", zap.Error(err))
		}
		defer pool.Close()

		if err := db.EnsureSchema(startCtx, pool); err != nil {
			logr.Fatal("Failed to apply schema", zap.Error(err))
		}
		store = pgStore{
			HabitRepository: repository.NewHabitRepository(pool, logr),
			UserRepository:  repository.NewUserRepository(pool),
		}
		pinger = pool
		logr.Info("Database connection established successfully")
	}

	// Engine
	loc, err := cfg.Location()
	if err != nil {
		logr.Fatal("Invalid timezone", zap.Error(err))
	}
	engine := streak.NewEngine(store, logr, streak.WithLocation(loc))

	habitOpts := []habit.Option{habit.WithProgressDays(cfg.Streak.ProgressDays)}

	// Redis progress cache, optional
	if cfg.Redis.Addr != "" {
		rdb, err := pkgredis.NewRedisClient(startCtx, cfg.Redis)
		if err != nil {
			logr.Warn("Redis unavailable, progress cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			habitOpts = append(habitOpts, habit.WithProgressCache(cache.NewProgressCache(rdb, cfg.Cache.TTL, logr)))
			logr.Info("Progress cache enabled", zap.String("redis_addr", cfg.Redis.Addr))
		}
	}

	// MQ publisher, optional
	var publisher habit.Publisher = mq.Discard{}
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			logr.Warn("MQ unavailable, habit events are dropped", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
			logr.Info("Habit event publisher connected", zap.String("exchange", mq.ExchangeName))
		}
	}
	habitOpts = append(habitOpts, habit.WithPublisher(publisher))

	authSvc := auth.NewService(store, cfg.JWT.Secret, cfg.JWT.TokenTTL, logr)
	habitSvc := habit.NewService(store, engine, logr, habitOpts...)

	router := httpserver.NewRouter(
		handler.NewAuthHandler(authSvc, logr),
		handler.NewHabitHandler(habitSvc, logr),
		cfg.JWT.Secret,
		logr,
		pinger,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logr.Info("HTTP server stopped")
	}
}
