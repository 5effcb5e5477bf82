package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/config"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/constants"
	"github.com/ticketland/mono-repo/backend/shared/go-lockcache"
	"github.com/ticketland/mono-repo/backend/shared/go-utils"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

type App struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	LockCache *lockcache.RedisLockCache
}

func NewApp(cfg *config.Config) (*App, error) {
	effectiveURL := cfg.DBUrl
	if cfg.LDFlag_UsingIsolatedSchema {
		var (
			role string
			err  error
		)
		effectiveURL, role, err = utils.IsolatedRoleURL(cfg.DBUrl, cfg.UniqueRunnerID, cfg.UniqueRunNumber)
		if err != nil {
			return nil, err
		}
		utils.Logger.Infof("Using isolated schema for ticket-verification-service; role=%s", role)
	} else {
		utils.Logger.Info("Isolated schema disabled; using public schema for ticket-verification-service.")
	}

	var dbPool *pgxpool.Pool
	err := withRetry("DB", func(ctx context.Context) error {
		var err error
		dbPool, err = newDBPool(ctx, effectiveURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	clients, err := lockcache.DialRedis(cfg.RedisHosts, cfg.RedisPassword)
	if err != nil {
		dbPool.Close()
		return nil, err
	}
	lc, err := lockcache.NewRedisLockCache(clients...)
	if err != nil {
		dbPool.Close()
		return nil, err
	}
	err = withRetry("Redis", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, constants.RedisConnectTimeout)
		defer cancel()
		return lc.Ping(ctx)
	})
	if err != nil {
		dbPool.Close()
		_ = lc.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		DB:        dbPool,
		LockCache: lc,
	}, nil
}

func (a *App) Close() {
	if a.LockCache != nil {
		if err := a.LockCache.Close(); err != nil {
			utils.Logger.WithError(err).Warn("Error closing Redis clients")
		}
	}
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Info("ticket-verification-service DB connection closed.")
	}
}

func withRetry(what string, connect func(ctx context.Context) error) error {
	backoff := initialBackoff
	for i := 1; ; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		err := connect(ctx)
		cancel()
		if err == nil {
			utils.Logger.Infof("ticket-verification-service connected to %s on attempt %d", what, i)
			return nil
		}

		if i == maxRetries {
			return fmt.Errorf("unable to connect to %s after %d attempts: %w", what, maxRetries, err)
		}
		utils.Logger.WithError(err).Warnf(
			"Failed %s connect on attempt %d/%d. Retrying in %v...",
			what, i, maxRetries, backoff,
		)
		time.Sleep(backoff)
		backoff *= 2
	}
}

func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	return pgxpool.ConnectConfig(ctx, cfg)
}
