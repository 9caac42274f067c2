// Package evaluation 实现标注数据的类型推断、划分、值转换与指标计算，
// 以及基于这些能力的评估服务
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ashwinyue/next-eval/internal/model"
	"github.com/ashwinyue/next-eval/internal/observability"
	"github.com/ashwinyue/next-eval/internal/repository"
	"github.com/ashwinyue/next-eval/internal/service/ingest"
)

// LabelSource 标注数据来源，由数据集服务实现
type LabelSource interface {
	GetUseCase(ctx context.Context, name string) (*model.UseCase, error)
	GetUseCaseByID(ctx context.Context, id string) (*model.UseCase, error)
	CurrentLabels(ctx context.Context, uc *model.UseCase) (*model.DatasetSnapshot, *model.LabelFile, error)
	LabelFile(ctx context.Context, id string) (*model.LabelFile, error)
	LoadLabeledRows(ctx context.Context, lf *model.LabelFile, ids []string) ([]model.Record, error)
	Coercer(types model.ColumnTypeMap) *Coercer
}

// Service 评估服务
type Service struct {
	labels  LabelSource
	store   repository.EvaluationStore
	metrics *observability.Metrics
	repair  bool
	log     logrus.FieldLogger
}

// Option Service 配置项
type Option func(*Service)

// WithMetrics 设置指标
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithServiceLogger 设置日志
func WithServiceLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithJSONRepair 预测文件不是合法 JSON 时尝试修复
func WithJSONRepair(enabled bool) Option {
	return func(s *Service) { s.repair = enabled }
}

// NewService 创建评估服务
func NewService(labels LabelSource, store repository.EvaluationStore, opts ...Option) *Service {
	s := &Service{
		labels: labels,
		store:  store,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ========== 提交预测 ==========

// SubmitResult 提交预测结果后的评估摘要
type SubmitResult struct {
	IterationID        string                 `json:"iteration_id"`
	ExtractionResultID string                 `json:"extraction_result_id"`
	LabelFileID        string                 `json:"label_file_id"`
	Predictions        int                    `json:"predictions"`
	Summary            model.IterationSummary `json:"summary"`
	Metrics            model.IterationMetrics `json:"metrics"`
}

// SubmitExtractionResult 提交抽取结果（JSON 数组），与当前标注文件对齐后
// 在黄金集、测试集和全集上计算指标，并保存为一次新的评估迭代
func (s *Service) SubmitExtractionResult(ctx context.Context, name, filename string, r io.Reader) (result *SubmitResult, err error) {
	if s.metrics != nil {
		defer func() {
			if err != nil {
				s.metrics.EvaluationFailed()
			}
		}()
	}

	if !strings.EqualFold(filepath.Ext(filename), ".json") {
		return nil, fmt.Errorf("%w: only .json extraction results are accepted", ErrUnsupportedFile)
	}

	uc, err := s.labels.GetUseCase(ctx, name)
	if err != nil {
		return nil, err
	}
	snap, lf, err := s.labels.CurrentLabels(ctx, uc)
	if err != nil {
		return nil, err
	}

	raw, err := ingest.ReadPredictions(r, ingest.WithRepair(s.repair), ingest.WithLogger(s.log))
	if err != nil {
		return nil, err
	}
	if err := checkDocumentIDs(raw, snap.Split); err != nil {
		return nil, err
	}

	labeled, err := s.labels.LoadLabeledRows(ctx, lf, nil)
	if err != nil {
		return nil, err
	}
	predicted := s.labels.Coercer(snap.ColumnTypes).CoerceAll(raw)

	er := &model.ExtractionResult{
		UseCaseID:   uc.ID,
		LabelFileID: lf.ID,
		Filename:    filename,
		Results:     raw,
	}
	if err := s.store.CreateExtractionResult(ctx, er); err != nil {
		return nil, fmt.Errorf("failed to save extraction result: %w", err)
	}

	metrics, summary := Evaluate(labeled, predicted, snap.Split)

	it := &model.EvaluationIteration{
		UseCaseID:          uc.ID,
		ExtractionResultID: er.ID,
		LabelFileID:        lf.ID,
		Metrics:            metrics,
		Summary:            summary,
	}
	if err := s.store.CreateIteration(ctx, it); err != nil {
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordEvaluation(uc.Name, summary)
	}
	s.log.WithFields(logrus.Fields{
		"use_case":  uc.Name,
		"iteration": it.ID,
		"golden_f1": summary.GoldenSet.F1Score,
		"test_f1":   summary.TestSet.F1Score,
	}).Info("evaluation completed")

	return &SubmitResult{
		IterationID:        it.ID,
		ExtractionResultID: er.ID,
		LabelFileID:        lf.ID,
		Predictions:        len(raw),
		Summary:            summary,
		Metrics:            metrics,
	}, nil
}

// checkDocumentIDs 每条预测都要有 document_id，且必须出现在标注文件中
func checkDocumentIDs(predictions []model.Record, split *model.EvaluationSplit) error {
	known := make(map[string]struct{}, split.Total())
	for _, id := range split.AllIDs() {
		known[id] = struct{}{}
	}

	unknown := make(map[string]struct{})
	for i, p := range predictions {
		id, ok := p.DocumentID()
		if !ok || strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: prediction %d has no %s", ErrMalformedInput, i, model.FieldDocumentID)
		}
		if _, ok := known[id]; !ok {
			unknown[id] = struct{}{}
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	ids := make([]string, 0, len(unknown))
	for id := range unknown {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Errorf("%w: %s", ErrUnknownDocumentIDs, strings.Join(ids, ", "))
}

// ========== 查询 ==========

// EvaluationDetail 一次评估的详情：测试集标注与对应预测并列展示
type EvaluationDetail struct {
	Iteration      *model.EvaluationIteration `json:"iteration"`
	UseCase        *model.UseCase             `json:"use_case"`
	LabelFile      *model.LabelFile           `json:"label_file,omitempty"`
	TestSetLabels  []model.Record             `json:"test_set_labels"`
	TestSetResults []model.Record             `json:"test_set_results"`
	// Superseded 评估所用的标注文件已被替换，无法再展示标注
	Superseded bool `json:"superseded"`
}

// GetEvaluation 获取评估详情
func (s *Service) GetEvaluation(ctx context.Context, id string) (*EvaluationDetail, error) {
	it, err := s.getIteration(ctx, id)
	if err != nil {
		return nil, err
	}
	uc, err := s.labels.GetUseCaseByID(ctx, it.UseCaseID)
	if err != nil {
		return nil, err
	}
	er, err := s.store.GetExtractionResult(ctx, it.ExtractionResultID)
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction result: %w", err)
	}

	detail := &EvaluationDetail{
		Iteration:      it,
		UseCase:        uc,
		TestSetLabels:  []model.Record{},
		TestSetResults: []model.Record{},
	}

	snap, lf, err := s.labels.CurrentLabels(ctx, uc)
	switch {
	case errors.Is(err, ErrNoLabelFile):
		detail.Superseded = true
		detail.TestSetResults = er.Results
		return detail, nil
	case err != nil:
		return nil, err
	}
	if snap.LabelFileID != it.LabelFileID {
		detail.Superseded = true
		detail.TestSetResults = er.Results
		return detail, nil
	}

	labels, err := s.labels.LoadLabeledRows(ctx, lf, snap.Split.TestIDs)
	if err != nil {
		return nil, err
	}

	test := make(map[string]struct{}, len(snap.Split.TestIDs))
	for _, id := range snap.Split.TestIDs {
		test[id] = struct{}{}
	}
	coercer := s.labels.Coercer(lf.ColumnTypes)
	for _, row := range er.Results {
		id, _ := row.DocumentID()
		if _, ok := test[id]; ok {
			detail.TestSetResults = append(detail.TestSetResults, coercer.Coerce(row))
		}
	}

	detail.LabelFile = lf
	detail.TestSetLabels = labels
	return detail, nil
}

// FieldReport 单个字段的指标
type FieldReport struct {
	Field              string `json:"field" yaml:"field"`
	model.FieldMetrics `yaml:",inline"`
}

// SubsetReport 一个子集的整体指标与字段明细
type SubsetReport struct {
	Overall model.MetricsSummary `json:"overall" yaml:"overall"`
	Fields  []FieldReport        `json:"fields" yaml:"fields"`
}

// Report 评估报告
type Report struct {
	IterationID string       `json:"iteration_id"`
	UseCaseID   string       `json:"use_case_id"`
	GoldenSet   SubsetReport `json:"golden_set"`
	TestSet     SubsetReport `json:"test_set"`
	Total       SubsetReport `json:"total"`
}

// GetReport 生成评估报告
func (s *Service) GetReport(ctx context.Context, id string) (*Report, error) {
	it, err := s.getIteration(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Report{
		IterationID: it.ID,
		UseCaseID:   it.UseCaseID,
		GoldenSet:   NewSubsetReport(it.Metrics.GoldenSet),
		TestSet:     NewSubsetReport(it.Metrics.TestSet),
		Total:       NewSubsetReport(it.Metrics.Total),
	}, nil
}

// NewSubsetReport 按字段名排序输出
func NewSubsetReport(report model.MetricsReport) SubsetReport {
	fields := make([]FieldReport, 0, len(report))
	for name, m := range report {
		fields = append(fields, FieldReport{Field: name, FieldMetrics: m})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return SubsetReport{Overall: Summarize(report), Fields: fields}
}

// ListEvaluations 列出用例的评估，最新的在前
func (s *Service) ListEvaluations(ctx context.Context, name string) ([]*model.EvaluationIteration, error) {
	uc, err := s.labels.GetUseCase(ctx, name)
	if err != nil {
		return nil, err
	}
	its, err := s.store.ListIterations(ctx, uc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}

	names := make(map[string]string)
	for _, it := range its {
		fn, ok := names[it.LabelFileID]
		if !ok {
			if lf, err := s.labels.LabelFile(ctx, it.LabelFileID); err == nil {
				fn = lf.OriginalFilename
			} else if !errors.Is(err, ErrNoLabelFile) {
				return nil, err
			}
			names[it.LabelFileID] = fn
		}
		it.LabelFileName = fn
	}
	return its, nil
}

// DeleteEvaluation 删除评估及其抽取结果
func (s *Service) DeleteEvaluation(ctx context.Context, id string) error {
	if err := s.store.DeleteIteration(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrEvaluationNotFound, id)
		}
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}
	return nil
}

func (s *Service) getIteration(ctx context.Context, id string) (*model.EvaluationIteration, error) {
	it, err := s.store.GetIteration(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEvaluationNotFound, id)
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return it, nil
}
