package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ashwinyue/next-eval/internal/model"
)

// MemoryStore 内存实现的数据访问层，行为与 gorm 仓库一致（未找到时返回 gorm.ErrRecordNotFound）
type MemoryStore struct {
	mu    sync.Mutex
	clock time.Time

	UseCases          map[string]*model.UseCase
	LabelFiles        map[string]*model.LabelFile
	EvaluationSets    map[string]*model.EvaluationSet
	ExtractionResults map[string]*model.ExtractionResult
	Iterations        map[string]*model.EvaluationIteration

	// FailReplace 非空时 ReplaceLabelArtifacts 返回该错误
	FailReplace error
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UseCases:          make(map[string]*model.UseCase),
		LabelFiles:        make(map[string]*model.LabelFile),
		EvaluationSets:    make(map[string]*model.EvaluationSet),
		ExtractionResults: make(map[string]*model.ExtractionResult),
		Iterations:        make(map[string]*model.EvaluationIteration),
	}
}

// tick 单调递增的时间，保证排序稳定
func (s *MemoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func newID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

// ========== DatasetStore ==========

func (s *MemoryStore) CreateUseCase(ctx context.Context, uc *model.UseCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.UseCases {
		if existing.Name == uc.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	uc.ID = newID(uc.ID)
	uc.CreatedAt = s.tick()
	cp := *uc
	s.UseCases[uc.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUseCaseByName(ctx context.Context, name string) (*model.UseCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uc := range s.UseCases {
		if uc.Name == name {
			cp := *uc
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemoryStore) GetUseCaseByID(ctx context.Context, id string) (*model.UseCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uc, ok := s.UseCases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *uc
	return &cp, nil
}

func (s *MemoryStore) ListUseCases(ctx context.Context) ([]*model.UseCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.UseCase, 0, len(s.UseCases))
	for _, uc := range s.UseCases {
		cp := *uc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteUseCaseCascade(ctx context.Context, useCaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, it := range s.Iterations {
		if it.UseCaseID == useCaseID {
			delete(s.Iterations, id)
		}
	}
	for id, er := range s.ExtractionResults {
		if er.UseCaseID == useCaseID {
			delete(s.ExtractionResults, id)
		}
	}
	s.deleteLabelArtifacts(useCaseID)
	delete(s.UseCases, useCaseID)
	return nil
}

func (s *MemoryStore) GetLatestLabelFile(ctx context.Context, useCaseID string) (*model.LabelFile, error) {
	files, _ := s.ListLabelFiles(ctx, useCaseID)
	if len(files) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return files[0], nil
}

func (s *MemoryStore) GetLabelFile(ctx context.Context, id string) (*model.LabelFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.LabelFiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) ListLabelFiles(ctx context.Context, useCaseID string) ([]*model.LabelFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.LabelFile
	for _, f := range s.LabelFiles {
		if f.UseCaseID == useCaseID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (s *MemoryStore) GetEvaluationSet(ctx context.Context, labelFileID string) (*model.EvaluationSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, set := range s.EvaluationSets {
		if set.LabelFileID == labelFileID {
			cp := *set
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *MemoryStore) ReplaceLabelArtifacts(ctx context.Context, file *model.LabelFile, set *model.EvaluationSet) ([]*model.LabelFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReplace != nil {
		return nil, s.FailReplace
	}

	var replaced []*model.LabelFile
	for _, f := range s.LabelFiles {
		if f.UseCaseID == file.UseCaseID {
			cp := *f
			replaced = append(replaced, &cp)
		}
	}
	s.deleteLabelArtifacts(file.UseCaseID)

	file.ID = newID(file.ID)
	if file.UploadedAt.IsZero() {
		file.UploadedAt = s.tick()
	}
	fcp := *file
	s.LabelFiles[file.ID] = &fcp

	set.ID = newID(set.ID)
	set.UseCaseID = file.UseCaseID
	set.LabelFileID = file.ID
	set.CreatedAt = s.tick()
	scp := *set
	s.EvaluationSets[set.ID] = &scp
	return replaced, nil
}

func (s *MemoryStore) deleteLabelArtifacts(useCaseID string) {
	for id, set := range s.EvaluationSets {
		if set.UseCaseID == useCaseID {
			delete(s.EvaluationSets, id)
		}
	}
	for id, f := range s.LabelFiles {
		if f.UseCaseID == useCaseID {
			delete(s.LabelFiles, id)
		}
	}
}

// ========== EvaluationStore ==========

func (s *MemoryStore) CreateExtractionResult(ctx context.Context, result *model.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result.ID = newID(result.ID)
	result.CreatedAt = s.tick()
	cp := *result
	s.ExtractionResults[result.ID] = &cp
	return nil
}

func (s *MemoryStore) GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	er, ok := s.ExtractionResults[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *er
	return &cp, nil
}

func (s *MemoryStore) CreateIteration(ctx context.Context, it *model.EvaluationIteration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it.ID = newID(it.ID)
	it.CreatedAt = s.tick()
	cp := *it
	s.Iterations[it.ID] = &cp
	return nil
}

func (s *MemoryStore) GetIteration(ctx context.Context, id string) (*model.EvaluationIteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.Iterations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *it
	return &cp, nil
}

func (s *MemoryStore) ListIterations(ctx context.Context, useCaseID string) ([]*model.EvaluationIteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.EvaluationIteration
	for _, it := range s.Iterations {
		if it.UseCaseID == useCaseID {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteIteration(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.Iterations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.ExtractionResults, it.ExtractionResultID)
	delete(s.Iterations, id)
	return nil
}
