package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-eval/internal/model"
)

// DatasetRepository 用例、标注文件与划分仓库
type DatasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建数据集仓库
func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// ========== 用例操作 ==========

// CreateUseCase 创建用例
func (r *DatasetRepository) CreateUseCase(ctx context.Context, uc *model.UseCase) error {
	return r.db.WithContext(ctx).Create(uc).Error
}

// GetUseCaseByName 根据名称获取用例
func (r *DatasetRepository) GetUseCaseByName(ctx context.Context, name string) (*model.UseCase, error) {
	var uc model.UseCase
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&uc).Error
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// GetUseCaseByID 根据ID获取用例
func (r *DatasetRepository) GetUseCaseByID(ctx context.Context, id string) (*model.UseCase, error) {
	var uc model.UseCase
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&uc).Error
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// ListUseCases 列出用例，最新的在前
func (r *DatasetRepository) ListUseCases(ctx context.Context) ([]*model.UseCase, error) {
	var ucs []*model.UseCase
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&ucs).Error
	return ucs, err
}

// DeleteUseCaseCascade 删除用例及其全部关联数据
func (r *DatasetRepository) DeleteUseCaseCascade(ctx context.Context, useCaseID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.EvaluationIteration{}, "use_case_id = ?", useCaseID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.ExtractionResult{}, "use_case_id = ?", useCaseID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.EvaluationSet{}, "use_case_id = ?", useCaseID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.LabelFile{}, "use_case_id = ?", useCaseID).Error; err != nil {
			return err
		}
		return tx.Delete(&model.UseCase{}, "id = ?", useCaseID).Error
	})
}

// ========== 标注文件操作 ==========

// GetLatestLabelFile 获取用例最近上传的标注文件
func (r *DatasetRepository) GetLatestLabelFile(ctx context.Context, useCaseID string) (*model.LabelFile, error) {
	var f model.LabelFile
	err := r.db.WithContext(ctx).
		Where("use_case_id = ?", useCaseID).
		Order("uploaded_at DESC").
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetLabelFile 根据ID获取标注文件
func (r *DatasetRepository) GetLabelFile(ctx context.Context, id string) (*model.LabelFile, error) {
	var f model.LabelFile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListLabelFiles 列出用例的标注文件
func (r *DatasetRepository) ListLabelFiles(ctx context.Context, useCaseID string) ([]*model.LabelFile, error) {
	var files []*model.LabelFile
	err := r.db.WithContext(ctx).
		Where("use_case_id = ?", useCaseID).
		Order("uploaded_at DESC").
		Find(&files).Error
	return files, err
}

// GetEvaluationSet 获取标注文件对应的划分
func (r *DatasetRepository) GetEvaluationSet(ctx context.Context, labelFileID string) (*model.EvaluationSet, error) {
	var set model.EvaluationSet
	err := r.db.WithContext(ctx).Where("label_file_id = ?", labelFileID).First(&set).Error
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// ReplaceLabelArtifacts 在一个事务中用新的标注文件与划分替换用例的旧数据
// 返回被替换的旧标注文件，调用方负责删除其存储文件
func (r *DatasetRepository) ReplaceLabelArtifacts(ctx context.Context, file *model.LabelFile, set *model.EvaluationSet) ([]*model.LabelFile, error) {
	var replaced []*model.LabelFile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("use_case_id = ?", file.UseCaseID).Find(&replaced).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.EvaluationSet{}, "use_case_id = ?", file.UseCaseID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.LabelFile{}, "use_case_id = ?", file.UseCaseID).Error; err != nil {
			return err
		}
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		set.UseCaseID = file.UseCaseID
		set.LabelFileID = file.ID
		return tx.Create(set).Error
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}
