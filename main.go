package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/krshsl/praxis-voice/repository"
	svc "github.com/krshsl/praxis-voice/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	config := svc.LoadConfig()

	if config.Database.URL == "" {
		slog.Error("Database URL not configured")
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize database connection
	pool, err := pgxpool.New(ctx, config.Database.URL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db, err := openGORM(pool, config.Database)
	if err != nil {
		slog.Error("Failed to open GORM", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to database")

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	var defaults svc.Defaults
	if config.Database.Seed {
		defaults, err = svc.NewDatabaseSeeder(repo).SeedDatabase(ctx)
	} else {
		defaults, err = svc.ResolveDefaults(ctx, repo)
	}
	if err != nil {
		slog.Error("Failed to resolve default interviewer and template", "error", err)
		os.Exit(1)
	}

	server := svc.NewServer(config)
	server.SetDatabase(pool, repo, repository.NewTurnRepository(db))
	server.SetDefaults(defaults)

	if config.Redis.Addr != "" {
		rdb, err := connectRedis(ctx, config.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, falling back to in-memory webhook cache", "error", err)
		} else {
			defer rdb.Close()
			server.SetRedis(rdb)
		}
	}

	if err := server.InitializeServices(ctx); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	server.Start()
}

// openGORM runs GORM on top of the pgx pool so the health check and the ORM
// share one set of connections.
func openGORM(pool *pgxpool.Pool, cfg svc.DatabaseConfig) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogLevel(cfg.LogLevel),
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return db, nil
}

func gormLogLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return gormLogger.Info
	case "warn":
		return gormLogger.Warn
	case "error":
		return gormLogger.Error
	default:
		return gormLogger.Silent
	}
}

func connectRedis(ctx context.Context, cfg svc.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Info("Connected to redis", "addr", cfg.Addr)
	return rdb, nil
}
