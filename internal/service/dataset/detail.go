package dataset

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-eval/internal/model"
)

// UseCaseDetail 用例详情
type UseCaseDetail struct {
	UseCase        *model.UseCase               `json:"use_case"`
	LabelFile      *model.LabelFile             `json:"label_file,omitempty"`
	GoldenSetSize  int                          `json:"golden_set_size"`
	TestSetSize    int                          `json:"test_set_size"`
	TotalDocuments int                          `json:"total_documents"`
	Headers        []string                     `json:"headers"`
	TestSet        []model.Record               `json:"test_set"`
	Evaluations    []*model.EvaluationIteration `json:"evaluations"`
}

// GetUseCaseDetail 用例、当前标注文件、测试集内容与历史评估
func (s *Service) GetUseCaseDetail(ctx context.Context, name string) (*UseCaseDetail, error) {
	uc, err := s.GetUseCase(ctx, name)
	if err != nil {
		return nil, err
	}

	detail := &UseCaseDetail{
		UseCase: uc,
		Headers: []string{},
		TestSet: []model.Record{},
	}

	snap, lf, err := s.CurrentLabels(ctx, uc)
	switch {
	case errors.Is(err, ErrNoLabelFile):
	case err != nil:
		return nil, err
	default:
		rows, err := s.LoadLabeledRows(ctx, lf, snap.Split.TestIDs)
		if err != nil {
			return nil, err
		}
		detail.LabelFile = lf
		detail.GoldenSetSize = len(snap.Split.GoldenIDs)
		detail.TestSetSize = len(snap.Split.TestIDs)
		detail.TotalDocuments = snap.Split.Total()
		detail.Headers = lf.Columns
		detail.TestSet = rows
	}

	its, err := s.evaluations.ListIterations(ctx, uc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	s.attachLabelFileNames(ctx, its)
	detail.Evaluations = its

	return detail, nil
}

// attachLabelFileNames 填充评估对应的标注文件名，已被替换的文件留空
func (s *Service) attachLabelFileNames(ctx context.Context, its []*model.EvaluationIteration) {
	names := make(map[string]string)
	for _, it := range its {
		name, ok := names[it.LabelFileID]
		if !ok {
			lf, err := s.store.GetLabelFile(ctx, it.LabelFileID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				s.log.WithError(err).WithField("label_file_id", it.LabelFileID).Warn("failed to load label file")
			}
			if lf != nil {
				name = lf.OriginalFilename
			}
			names[it.LabelFileID] = name
		}
		it.LabelFileName = name
	}
}
