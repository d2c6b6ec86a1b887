// HealthLoc 医疗设施选址服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/healthloc/healthloc/internal/cache"
	"github.com/healthloc/healthloc/internal/config"
	"github.com/healthloc/healthloc/internal/database"
	"github.com/healthloc/healthloc/internal/handler"
	"github.com/healthloc/healthloc/internal/metrics"
	"github.com/healthloc/healthloc/internal/middleware"
	"github.com/healthloc/healthloc/internal/repository"
	"github.com/healthloc/healthloc/pkg/logger"
	"github.com/healthloc/healthloc/pkg/planner"
	"github.com/healthloc/healthloc/pkg/solver/cbc"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := pflag.StringP("config", "c", os.Getenv("HEALTHLOC_CONFIG"), "配置文件路径")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log)

	fmt.Printf("HealthLoc 医疗设施选址服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("服务异常退出")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	system := handler.NewSystemHandler(handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		Backend:   cfg.Solver.Backend,
	})

	// 运行结果存储：启用数据库时写入 PostgreSQL，否则保存在进程内
	var store handler.RunStore
	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		store = repository.NewRunRepository(db)
		system.AddCheck("database", db)
	}

	// 结果缓存：Redis 不可用时退回进程内缓存
	var runCache planner.Cache = cache.NewMemory(cfg.Redis.TTL)
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedis(ctx, cache.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Redis 不可用，使用进程内缓存")
		} else {
			runCache = rc
			system.AddCheck("redis", handler.CheckFunc(rc.Ping))
		}
	}

	factory := cbc.Factory(cbc.Config{
		Path:      cfg.Solver.Path,
		TimeLimit: cfg.Solver.TimeLimit,
		Threads:   cfg.Solver.Threads,
		WorkDir:   cfg.Solver.WorkDir,
		KeepFiles: cfg.Solver.KeepFiles,
	})

	opts := []planner.Option{
		planner.WithConfig(planner.Config{
			SolverTimeout: cfg.Planner.SolverTimeout,
			SweepWorkers:  cfg.Planner.SweepWorkers,
		}),
		planner.WithCache(runCache),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, planner.WithObserver(metrics.NewPlannerObserver()))
	}
	p := planner.New(factory, opts...)

	mux := http.NewServeMux()
	system.Register(mux)
	handler.NewPlanningHandler(p, store, cfg.Planner, cfg.API.Timeout).Register(mux)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	// 中间件执行顺序：recovery -> requestID -> logging -> cors -> auth -> rateLimit -> maxBody -> handler
	h := middleware.Chain(mux,
		middleware.Recovery,
		middleware.RequestID,
		middleware.Logging,
		middleware.SecurityHeaders,
		middleware.CORS,
		middleware.APIKey(cfg.API.Keys, "/health", "/version", cfg.Metrics.Path),
		middleware.RateLimit(float64(cfg.API.RateLimit), cfg.API.Burst),
		middleware.MaxBody(cfg.API.MaxBody),
	)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Str("solver", cfg.Solver.Backend).
			Bool("database", cfg.Database.Enabled).
			Bool("redis", cfg.Redis.Enabled).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("服务器启动失败: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}

	logger.Info().Msg("服务器已关闭")
	return nil
}
