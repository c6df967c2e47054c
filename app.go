// app.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"campusquest/cache"
	"campusquest/config"
	"campusquest/database"
	"campusquest/handlers"
	"campusquest/logger"
	"campusquest/middleware"
	"campusquest/services"
)

type application struct {
	cfg      config.Config
	log      *logger.Logger
	db       *gorm.DB
	redis    *redis.Client
	handlers *handlers.Handlers
	sweeper  *services.ResetSweeper
}

// bootstrap loads configuration, connects storage and builds the services.
func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.Ping(pingCtx, db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	a := &application{cfg: cfg, log: log, db: db}

	var store cache.Store = cache.NewMemory()
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rc := cache.NewRedis(a.redis)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn("redis unavailable, using in-memory leaderboard cache", "addr", cfg.Redis.Addr, "error", err)
			_ = a.redis.Close()
			a.redis = nil
		} else {
			store = rc
		}
	}

	board := services.NewLeaderboard(db, store, config.Duration(cfg.Redis.LeaderboardTTL, 30*time.Second), log)
	clock := services.NewSystemClock(loc)
	prog := services.NewProgression(db, clock, services.NewKeyedMutex(), log, board)
	a.sweeper = services.NewResetSweeper(prog, config.Duration(cfg.Progression.ResetSweepInterval, 15*time.Minute), log)

	a.handlers = &handlers.Handlers{
		Accounts:      services.NewAccounts(db, cfg.Auth.AllowedEmailDomain, log, board),
		Progression:   prog,
		Content:       services.NewContent(db, clock, prog),
		Leaderboard:   board,
		Notifications: services.NewNotifications(db),
		Checklist:     services.NewChecklist(db, clock, prog, log),
		Sweeper:       a.sweeper,
		Tokens:        middleware.NewTokenIssuer(cfg.Auth.JWTSecret, config.Duration(cfg.Auth.TokenTTL, 72*time.Hour)),
		Log:           log,
	}
	if !cfg.RateLimit.Disabled {
		a.handlers.GeneralLimiter = middleware.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSeconds)
		a.handlers.AuthLimiter = middleware.NewRateLimiter(cfg.RateLimit.AuthMax, cfg.RateLimit.AuthWindow)
	}
	return a, nil
}

func (a *application) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := database.Close(a.db); err != nil {
		a.log.Warn("close database", "error", err)
	}
	a.log.Sync()
}
