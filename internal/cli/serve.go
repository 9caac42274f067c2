package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ashwinyue/next-eval/internal/config"
	"github.com/ashwinyue/next-eval/internal/database"
	"github.com/ashwinyue/next-eval/internal/handler"
	"github.com/ashwinyue/next-eval/internal/logger"
	"github.com/ashwinyue/next-eval/internal/observability"
	"github.com/ashwinyue/next-eval/internal/repository"
	"github.com/ashwinyue/next-eval/internal/router"
	"github.com/ashwinyue/next-eval/internal/service"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("log-level") {
				root.logLevel = ""
			}
			return runServe(cmd.Context(), root)
		},
	}
}

func runServe(ctx context.Context, root *rootOptions) error {
	log := logger.WithComponent("server")

	// 加载配置
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return err
	}
	level := root.logLevel
	if level == "" {
		level = cfg.Log.Level
	}
	if err := logger.Init(level, cfg.Log.Format); err != nil {
		return err
	}

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer db.Close()

	// 初始化 Redis，未启用时快照只缓存在进程内
	var cache redis.Cmdable
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, snapshots fall back to memory")
		}
		cache = redisClient
	}

	// 初始化各层
	metrics := observability.NewMetrics()
	repos := repository.NewRepositories(db.DB)
	services, err := service.NewServices(repos, cfg, cache, metrics)
	if err != nil {
		return fmt.Errorf("failed to init services: %w", err)
	}
	handlers := handler.NewHandlers(services)

	r := router.SetupRouter(handlers, services)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 等待中断信号
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
