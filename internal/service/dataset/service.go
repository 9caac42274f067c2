// Package dataset 管理评估用例与标注文件
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ashwinyue/next-eval/internal/model"
	"github.com/ashwinyue/next-eval/internal/observability"
	"github.com/ashwinyue/next-eval/internal/repository"
	"github.com/ashwinyue/next-eval/internal/service/evaluation"
	"github.com/ashwinyue/next-eval/internal/service/file"
	"github.com/ashwinyue/next-eval/internal/service/ingest"
	"github.com/ashwinyue/next-eval/internal/service/snapshot"
)

var (
	// ErrUseCaseNotFound 用例不存在
	ErrUseCaseNotFound = errors.New("use case not found")
	// ErrUseCaseExists 用例名已存在
	ErrUseCaseExists = errors.New("use case already exists")
	// ErrInvalidUseCase 用例参数不合法
	ErrInvalidUseCase = errors.New("invalid use case")
	// ErrUnsupportedFile 文件类型不支持
	ErrUnsupportedFile = evaluation.ErrUnsupportedFile
	// ErrNoLabelFile 用例尚未上传标注文件
	ErrNoLabelFile = evaluation.ErrNoLabelFile
)

// Service 数据集服务
type Service struct {
	store       repository.DatasetStore
	evaluations repository.EvaluationStore
	storage     file.Storage
	storageType file.StorageType
	snapshots   *snapshot.Manager
	metrics     *observability.Metrics
	log         logrus.FieldLogger

	newShuffler func() evaluation.Shuffler
	now         func() time.Time
}

// Option Service 配置项
type Option func(*Service)

// WithMetrics 设置指标
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger 设置日志
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithShuffler 设置划分随机源的构造函数
func WithShuffler(fn func() evaluation.Shuffler) Option {
	return func(s *Service) { s.newShuffler = fn }
}

// WithStorageType 设置存储类型标记
func WithStorageType(t file.StorageType) Option {
	return func(s *Service) { s.storageType = t }
}

// NewService 创建数据集服务
func NewService(store repository.DatasetStore, evaluations repository.EvaluationStore, storage file.Storage, snapshots *snapshot.Manager, opts ...Option) *Service {
	s := &Service{
		store:       store,
		evaluations: evaluations,
		storage:     storage,
		storageType: file.StorageTypeLocal,
		snapshots:   snapshots,
		log:         logrus.StandardLogger(),
		newShuffler: func() evaluation.Shuffler { return nil },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ========== 用例 ==========

// CreateUseCaseRequest 创建用例请求
type CreateUseCaseRequest struct {
	Name            string `json:"name" binding:"required"`
	SuccessCriteria string `json:"success_criteria"`
}

// CreateUseCase 创建用例，名称必须唯一
func (s *Service) CreateUseCase(ctx context.Context, req *CreateUseCaseRequest) (*model.UseCase, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUseCase)
	}

	if _, err := s.store.GetUseCaseByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrUseCaseExists, name)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check use case: %w", err)
	}

	uc := &model.UseCase{Name: name, SuccessCriteria: req.SuccessCriteria}
	if err := s.store.CreateUseCase(ctx, uc); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrUseCaseExists, name)
		}
		return nil, fmt.Errorf("failed to create use case: %w", err)
	}
	return uc, nil
}

// ListUseCases 列出用例，最新的在前
func (s *Service) ListUseCases(ctx context.Context) ([]*model.UseCase, error) {
	ucs, err := s.store.ListUseCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list use cases: %w", err)
	}
	return ucs, nil
}

// GetUseCase 根据名称获取用例
func (s *Service) GetUseCase(ctx context.Context, name string) (*model.UseCase, error) {
	uc, err := s.store.GetUseCaseByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUseCaseNotFound, name)
		}
		return nil, fmt.Errorf("failed to get use case: %w", err)
	}
	return uc, nil
}

// GetUseCaseByID 根据ID获取用例
func (s *Service) GetUseCaseByID(ctx context.Context, id string) (*model.UseCase, error) {
	uc, err := s.store.GetUseCaseByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUseCaseNotFound, id)
		}
		return nil, fmt.Errorf("failed to get use case: %w", err)
	}
	return uc, nil
}

// DeleteUseCase 删除用例、存储的文件、全部关联记录以及缓存的快照
func (s *Service) DeleteUseCase(ctx context.Context, name string) error {
	uc, err := s.GetUseCase(ctx, name)
	if err != nil {
		return err
	}

	unlock := s.snapshots.Lock(uc.ID)
	defer unlock()

	files, err := s.store.ListLabelFiles(ctx, uc.ID)
	if err != nil {
		return fmt.Errorf("failed to list label files: %w", err)
	}
	if err := s.store.DeleteUseCaseCascade(ctx, uc.ID); err != nil {
		return fmt.Errorf("failed to delete use case: %w", err)
	}
	s.removeStoredFiles(ctx, files)

	s.snapshots.Invalidate(ctx, uc.ID)
	if s.metrics != nil {
		s.metrics.ForgetUseCase(uc.Name)
	}
	return nil
}

// ========== 标注文件 ==========

// UploadResult 标注文件上传结果
type UploadResult struct {
	LabelFileID   string              `json:"label_file_id"`
	Filename      string              `json:"filename"`
	DocumentCount int                 `json:"document_count"`
	GoldenSetSize int                 `json:"golden_set_size"`
	TestSetSize   int                 `json:"test_set_size"`
	ColumnTypes   model.ColumnTypeMap `json:"column_types"`
}

// UploadLabelFile 上传标注 CSV：保存、校验并划分、推断列类型，
// 然后整体替换用例旧的标注数据。任何一步失败都会删除本次已保存的文件。
// 同一用例的上传串行执行。
func (s *Service) UploadLabelFile(ctx context.Context, name, filename string, r io.Reader) (result *UploadResult, err error) {
	if s.metrics != nil {
		defer func() { s.metrics.LabelUploaded(err) }()
	}

	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, fmt.Errorf("%w: only .csv label files are accepted", ErrUnsupportedFile)
	}

	uc, err := s.GetUseCase(ctx, name)
	if err != nil {
		return nil, err
	}

	unlock := s.snapshots.Lock(uc.ID)
	defer unlock()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	path, err := s.storage.Save(ctx, &file.SaveRequest{
		FileName:    filename,
		ContentType: "text/csv",
		Size:        int64(len(data)),
		Reader:      bytes.NewReader(data),
		Prefix:      uc.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save label file: %w", err)
	}

	log := s.log.WithFields(logrus.Fields{"use_case": uc.Name, "file": filename})
	discard := func() {
		if derr := s.storage.Delete(ctx, path); derr != nil {
			log.WithError(derr).Warn("failed to delete rejected label file")
		}
	}

	table, err := ingest.ReadTable(bytes.NewReader(data))
	if err != nil {
		discard()
		return nil, err
	}

	split, err := evaluation.Partition(table, s.newShuffler())
	if err != nil {
		discard()
		return nil, err
	}
	types := evaluation.DetectColumnTypes(table)

	lf := &model.LabelFile{
		UseCaseID:        uc.ID,
		FilePath:         path,
		StorageType:      string(s.storageType),
		OriginalFilename: filename,
		FileSize:         int64(len(data)),
		Status:           model.LabelFileStatusProcessed,
		DocumentCount:    split.Total(),
		ValidationStatus: model.ValidationStatusValid,
		Columns:          table.Columns,
		ColumnTypes:      types,
		UploadedAt:       s.now(),
	}
	set := &model.EvaluationSet{
		GoldSet:        split.GoldenIDs,
		TestSet:        split.TestIDs,
		TotalDocuments: split.Total(),
	}

	replaced, err := s.store.ReplaceLabelArtifacts(ctx, lf, set)
	if err != nil {
		discard()
		return nil, fmt.Errorf("failed to save label artifacts: %w", err)
	}
	s.removeStoredFiles(ctx, replaced)

	s.snapshots.Put(ctx, &model.DatasetSnapshot{
		UseCaseID:   uc.ID,
		LabelFileID: lf.ID,
		Version:     lf.UploadedAt.UnixNano(),
		ColumnTypes: types,
		Split:       split,
	})

	log.WithFields(logrus.Fields{
		"documents": split.Total(),
		"golden":    len(split.GoldenIDs),
		"test":      len(split.TestIDs),
	}).Info("label file processed")

	return &UploadResult{
		LabelFileID:   lf.ID,
		Filename:      filename,
		DocumentCount: split.Total(),
		GoldenSetSize: len(split.GoldenIDs),
		TestSetSize:   len(split.TestIDs),
		ColumnTypes:   types,
	}, nil
}

// Snapshot 返回用例当前生效的列类型与划分，缓存未命中时从数据库重建
func (s *Service) Snapshot(ctx context.Context, uc *model.UseCase) (*model.DatasetSnapshot, error) {
	if snap, ok := s.snapshots.Get(ctx, uc.ID); ok {
		return snap, nil
	}

	unlock := s.snapshots.Lock(uc.ID)
	defer unlock()

	if snap, ok := s.snapshots.Get(ctx, uc.ID); ok {
		return snap, nil
	}
	return s.buildSnapshot(ctx, uc)
}

// CurrentLabels 返回用例当前快照及其标注文件
// 快照指向的标注文件已被替换时（例如其他实例上传了新文件）丢弃快照并从数据库重建
func (s *Service) CurrentLabels(ctx context.Context, uc *model.UseCase) (*model.DatasetSnapshot, *model.LabelFile, error) {
	snap, err := s.Snapshot(ctx, uc)
	if err != nil {
		return nil, nil, err
	}
	lf, err := s.LabelFile(ctx, snap.LabelFileID)
	if err == nil {
		return snap, lf, nil
	}
	if !errors.Is(err, ErrNoLabelFile) {
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"use_case":      uc.Name,
		"label_file_id": snap.LabelFileID,
	}).Info("cached snapshot is stale, rebuilding")

	snap, err = s.rebuildSnapshot(ctx, uc)
	if err != nil {
		return nil, nil, err
	}
	lf, err = s.LabelFile(ctx, snap.LabelFileID)
	if err != nil {
		return nil, nil, err
	}
	return snap, lf, nil
}

func (s *Service) rebuildSnapshot(ctx context.Context, uc *model.UseCase) (*model.DatasetSnapshot, error) {
	unlock := s.snapshots.Lock(uc.ID)
	defer unlock()

	s.snapshots.Invalidate(ctx, uc.ID)
	return s.buildSnapshot(ctx, uc)
}

// buildSnapshot 从最新的标注文件构建快照，调用方持有用例锁
func (s *Service) buildSnapshot(ctx context.Context, uc *model.UseCase) (*model.DatasetSnapshot, error) {
	lf, err := s.store.GetLatestLabelFile(ctx, uc.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoLabelFile, uc.Name)
		}
		return nil, fmt.Errorf("failed to get label file: %w", err)
	}
	set, err := s.store.GetEvaluationSet(ctx, lf.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoLabelFile, uc.Name)
		}
		return nil, fmt.Errorf("failed to get evaluation set: %w", err)
	}

	snap := &model.DatasetSnapshot{
		UseCaseID:   uc.ID,
		LabelFileID: lf.ID,
		Version:     lf.UploadedAt.UnixNano(),
		ColumnTypes: lf.ColumnTypes,
		Split:       set.Split(),
	}
	s.snapshots.Put(ctx, snap)
	return snap, nil
}

// LabelFile 根据ID获取标注文件
func (s *Service) LabelFile(ctx context.Context, id string) (*model.LabelFile, error) {
	lf, err := s.store.GetLabelFile(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: label file %s", ErrNoLabelFile, id)
		}
		return nil, fmt.Errorf("failed to get label file: %w", err)
	}
	return lf, nil
}

// LoadLabeledRows 读取存储的标注文件，按 ids 过滤（nil 表示全部）并按列类型转换
func (s *Service) LoadLabeledRows(ctx context.Context, lf *model.LabelFile, ids []string) ([]model.Record, error) {
	rc, err := s.storage.Get(ctx, lf.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer rc.Close()

	table, err := ingest.ReadTable(rc)
	if err != nil {
		return nil, err
	}

	var keep map[string]struct{}
	if ids != nil {
		keep = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			keep[id] = struct{}{}
		}
	}

	rows := make([]model.Record, 0, len(table.Rows))
	for _, row := range table.Rows {
		if keep != nil {
			id, _ := row.DocumentID()
			if _, ok := keep[id]; !ok {
				continue
			}
		}
		rows = append(rows, row)
	}

	return s.Coercer(lf.ColumnTypes).CoerceAll(rows), nil
}

// Coercer 返回绑定列类型的转换器，告警写入日志与指标
func (s *Service) Coercer(types model.ColumnTypeMap) *evaluation.Coercer {
	opts := []evaluation.CoercerOption{evaluation.WithLogger(s.log)}
	if s.metrics != nil {
		opts = append(opts, evaluation.WithWarningHook(func(w evaluation.ConversionWarning) {
			s.metrics.ConversionWarning(w.Type)
		}))
	}
	return evaluation.NewCoercer(types, opts...)
}

func (s *Service) removeStoredFiles(ctx context.Context, files []*model.LabelFile) {
	for _, f := range files {
		if err := s.storage.Delete(ctx, f.FilePath); err != nil {
			s.log.WithError(err).WithField("path", f.FilePath).Warn("failed to delete stored label file")
		}
	}
}
