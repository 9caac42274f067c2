package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-eval/internal/model"
)

// EvaluationRepository 预测结果与评估迭代仓库
type EvaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository 创建评估仓库
func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// CreateExtractionResult 保存预测结果
func (r *EvaluationRepository) CreateExtractionResult(ctx context.Context, result *model.ExtractionResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// GetExtractionResult 根据 ID 获取预测结果
func (r *EvaluationRepository) GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error) {
	var result model.ExtractionResult
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateIteration 保存评估迭代
func (r *EvaluationRepository) CreateIteration(ctx context.Context, it *model.EvaluationIteration) error {
	return r.db.WithContext(ctx).Create(it).Error
}

// GetIteration 根据 ID 获取评估迭代
func (r *EvaluationRepository) GetIteration(ctx context.Context, id string) (*model.EvaluationIteration, error) {
	var it model.EvaluationIteration
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ListIterations 列出用例的评估历史，最新的在前
func (r *EvaluationRepository) ListIterations(ctx context.Context, useCaseID string) ([]*model.EvaluationIteration, error) {
	var its []*model.EvaluationIteration
	err := r.db.WithContext(ctx).
		Where("use_case_id = ?", useCaseID).
		Order("created_at DESC").
		Find(&its).Error
	return its, err
}

// DeleteIteration 删除评估迭代及其预测结果
func (r *EvaluationRepository) DeleteIteration(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it model.EvaluationIteration
		if err := tx.Where("id = ?", id).First(&it).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.ExtractionResult{}, "id = ?", it.ExtractionResultID).Error; err != nil {
			return err
		}
		return tx.Delete(&model.EvaluationIteration{}, "id = ?", id).Error
	})
}
