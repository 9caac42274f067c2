package service

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-eval/internal/config"
	"github.com/ashwinyue/next-eval/internal/logger"
	"github.com/ashwinyue/next-eval/internal/observability"
	"github.com/ashwinyue/next-eval/internal/repository"
	"github.com/ashwinyue/next-eval/internal/service/dataset"
	"github.com/ashwinyue/next-eval/internal/service/evaluation"
	"github.com/ashwinyue/next-eval/internal/service/file"
	"github.com/ashwinyue/next-eval/internal/service/snapshot"
)

// Services 服务集合
type Services struct {
	// 业务服务
	Dataset    *dataset.Service
	Evaluation *evaluation.Service

	// 配置
	Config    *config.Config
	Snapshots *snapshot.Manager
	Metrics   *observability.Metrics
	Storage   file.Storage
}

// NewServices 创建所有服务，redisClient 为 nil 时快照只保存在进程内
func NewServices(repos *repository.Repositories, cfg *config.Config, redisClient redis.Cmdable, metrics *observability.Metrics) (*Services, error) {
	storage, storageType, err := file.NewStorageFromConfig(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	ttl := time.Duration(cfg.Redis.SnapshotTTL) * time.Second
	snapshots := snapshot.NewManager(redisClient, ttl, logger.WithComponent("snapshot"))

	datasetOpts := []dataset.Option{
		dataset.WithMetrics(metrics),
		dataset.WithLogger(logger.WithComponent("dataset")),
		dataset.WithStorageType(storageType),
	}
	if seed := cfg.Evaluation.Seed; seed != 0 {
		datasetOpts = append(datasetOpts, dataset.WithShuffler(func() evaluation.Shuffler {
			return evaluation.NewSeededShuffler(seed)
		}))
	}
	datasets := dataset.NewService(repos.Dataset, repos.Evaluation, storage, snapshots, datasetOpts...)

	evaluations := evaluation.NewService(datasets, repos.Evaluation,
		evaluation.WithMetrics(metrics),
		evaluation.WithServiceLogger(logger.WithComponent("evaluation")),
		evaluation.WithJSONRepair(cfg.Evaluation.RepairJSON),
	)

	return &Services{
		Dataset:    datasets,
		Evaluation: evaluations,
		Config:     cfg,
		Snapshots:  snapshots,
		Metrics:    metrics,
		Storage:    storage,
	}, nil
}
