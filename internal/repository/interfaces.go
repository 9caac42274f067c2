// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/next-eval/internal/model"
)

// ========== DatasetStore 接口 ==========

// DatasetStore 用例与标注数据的访问接口
type DatasetStore interface {
	// 用例操作
	CreateUseCase(ctx context.Context, uc *model.UseCase) error
	GetUseCaseByName(ctx context.Context, name string) (*model.UseCase, error)
	GetUseCaseByID(ctx context.Context, id string) (*model.UseCase, error)
	ListUseCases(ctx context.Context) ([]*model.UseCase, error)
	DeleteUseCaseCascade(ctx context.Context, useCaseID string) error

	// 标注文件与划分
	GetLatestLabelFile(ctx context.Context, useCaseID string) (*model.LabelFile, error)
	GetLabelFile(ctx context.Context, id string) (*model.LabelFile, error)
	ListLabelFiles(ctx context.Context, useCaseID string) ([]*model.LabelFile, error)
	GetEvaluationSet(ctx context.Context, labelFileID string) (*model.EvaluationSet, error)
	ReplaceLabelArtifacts(ctx context.Context, file *model.LabelFile, set *model.EvaluationSet) ([]*model.LabelFile, error)
}

// ========== EvaluationStore 接口 ==========

// EvaluationStore 预测结果与评估迭代的访问接口
type EvaluationStore interface {
	CreateExtractionResult(ctx context.Context, result *model.ExtractionResult) error
	GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error)

	CreateIteration(ctx context.Context, it *model.EvaluationIteration) error
	GetIteration(ctx context.Context, id string) (*model.EvaluationIteration, error)
	ListIterations(ctx context.Context, useCaseID string) ([]*model.EvaluationIteration, error)
	DeleteIteration(ctx context.Context, id string) error
}

// 确保实现了接口
var (
	_ DatasetStore    = (*DatasetRepository)(nil)
	_ EvaluationStore = (*EvaluationRepository)(nil)
)
