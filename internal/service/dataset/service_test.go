package dataset

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashwinyue/next-eval/internal/model"
	"github.com/ashwinyue/next-eval/internal/repository"
	"github.com/ashwinyue/next-eval/internal/service/evaluation"
	"github.com/ashwinyue/next-eval/internal/service/file"
	"github.com/ashwinyue/next-eval/internal/service/ingest"
	"github.com/ashwinyue/next-eval/internal/service/snapshot"
	"github.com/ashwinyue/next-eval/internal/testutil"
)

var (
	_ repository.DatasetStore    = (*testutil.MemoryStore)(nil)
	_ repository.EvaluationStore = (*testutil.MemoryStore)(nil)
)

type testEnv struct {
	svc       *Service
	store     *testutil.MemoryStore
	dir       string
	snapshots *snapshot.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	storage, err := file.NewLocalStorage(dir, "/files")
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	store := testutil.NewMemoryStore()
	snaps := snapshot.NewManager(nil, 0, nil)
	svc := NewService(store, store, storage, snaps,
		WithShuffler(func() evaluation.Shuffler { return evaluation.NewSeededShuffler(7) }))
	return &testEnv{svc: svc, store: store, dir: dir, snapshots: snaps}
}

func (e *testEnv) storedFiles(t *testing.T) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(e.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk storage dir: %v", err)
	}
	return files
}

func (e *testEnv) createUseCase(t *testing.T, name string) *model.UseCase {
	t.Helper()
	uc, err := e.svc.CreateUseCase(context.Background(), &CreateUseCaseRequest{Name: name})
	if err != nil {
		t.Fatalf("CreateUseCase() error = %v", err)
	}
	return uc
}

// ========== 用例测试 ==========

func TestCreateUseCase(t *testing.T) {
	env := newTestEnv(t)
	assert := testutil.NewAssertHelper(t)
	ctx := context.Background()

	uc, err := env.svc.CreateUseCase(ctx, &CreateUseCaseRequest{Name: " invoices ", SuccessCriteria: "f1 >= 0.9"})
	assert.NoError(err)
	assert.Equal("invoices", uc.Name)

	_, err = env.svc.CreateUseCase(ctx, &CreateUseCaseRequest{Name: "invoices"})
	assert.ErrorIs(err, ErrUseCaseExists)

	_, err = env.svc.CreateUseCase(ctx, &CreateUseCaseRequest{Name: "  "})
	assert.ErrorIs(err, ErrInvalidUseCase)

	_, err = env.svc.GetUseCase(ctx, "receipts")
	assert.ErrorIs(err, ErrUseCaseNotFound)
}

func TestListUseCases_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.createUseCase(t, "first")
	env.createUseCase(t, "second")

	ucs, err := env.svc.ListUseCases(context.Background())
	if err != nil {
		t.Fatalf("ListUseCases() error = %v", err)
	}
	if len(ucs) != 2 || ucs[0].Name != "second" {
		t.Errorf("ListUseCases() = %v, want second first", ucs)
	}
}

// ========== 标注文件测试 ==========

func TestUploadLabelFile(t *testing.T) {
	env := newTestEnv(t)
	env.createUseCase(t, "invoices")
	ctx := context.Background()

	res, err := env.svc.UploadLabelFile(ctx, "invoices", "labels.csv", strings.NewReader(testutil.LabelsCSV))
	if err != nil {
		t.Fatalf("UploadLabelFile() error = %v", err)
	}

	if res.DocumentCount != 10 || res.GoldenSetSize != 5 || res.TestSetSize != 5 {
		t.Errorf("sizes = %+v, want 10/5/5", res)
	}
	want := model.ColumnTypeMap{
		"status":   model.ColumnTypeString,
		"amount":   model.ColumnTypeInteger,
		"paid":     model.ColumnTypeBoolean,
		"due_date": model.ColumnTypeDatetime,
	}
	for field, typ := range want {
		if res.ColumnTypes[field] != typ {
			t.Errorf("ColumnTypes[%s] = %s, want %s", field, res.ColumnTypes[field], typ)
		}
	}
	if len(res.ColumnTypes) != len(want) {
		t.Errorf("ColumnTypes = %v, unexpected extra fields", res.ColumnTypes)
	}

	if got := env.storedFiles(t); len(got) != 1 {
		t.Errorf("stored files = %v, want 1", got)
	}

	uc, _ := env.svc.GetUseCase(ctx, "invoices")
	snap, ok := env.snapshots.Get(ctx, uc.ID)
	if !ok {
		t.Fatal("snapshot not cached after upload")
	}
	if snap.LabelFileID != res.LabelFileID || snap.Split.Total() != 10 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestUploadLabelFile_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		useCase  string
		filename string
		content  string
		wantErr  error
	}{
		{name: "not csv", useCase: "invoices", filename: "labels.xlsx", content: testutil.LabelsCSV, wantErr: ErrUnsupportedFile},
		{name: "unknown use case", useCase: "nope", filename: "labels.csv", content: testutil.LabelsCSV, wantErr: ErrUseCaseNotFound},
		{name: "duplicate ids", useCase: "invoices", filename: "labels.csv", content: testutil.DuplicateLabelsCSV, wantErr: evaluation.ErrDuplicateID},
		{name: "missing document_id", useCase: "invoices", filename: "labels.csv", content: "id,status\n1,open\n", wantErr: evaluation.ErrSchema},
		{name: "blank document_id", useCase: "invoices", filename: "labels.csv", content: "document_id,status\n,open\n", wantErr: evaluation.ErrEmptyID},
		{name: "ragged csv", useCase: "invoices", filename: "labels.csv", content: "document_id,status\n1\n", wantErr: ingest.ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.createUseCase(t, "invoices")

			_, err := env.svc.UploadLabelFile(context.Background(), tt.useCase, tt.filename, strings.NewReader(tt.content))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got := env.storedFiles(t); len(got) != 0 {
				t.Errorf("rejected upload left files behind: %v", got)
			}
			if len(env.store.LabelFiles) != 0 || len(env.store.EvaluationSets) != 0 {
				t.Error("rejected upload persisted label artifacts")
			}
		})
	}
}

func TestUploadLabelFile_FailedUploadKeepsPrevious(t *testing.T) {
	env := newTestEnv(t)
	uc := env.createUseCase(t, "invoices")
	ctx := context.Background()

	first, err := env.svc.UploadLabelFile(ctx, "invoices", "labels.csv", strings.NewReader(testutil.LabelsCSV))
	if err != nil {
		t.Fatalf("UploadLabelFile() error = %v", err)
	}

	_, err = env.svc.UploadLabelFile(ctx, "invoices", "labels.csv", strings.NewReader(testutil.DuplicateLabelsCSV))
	if !errors.Is(err, evaluation.ErrDuplicateID) {
		t.Fatalf("error = %v, want ErrDuplicateID", err)
	}

	snap, err := env.svc.Snapshot(ctx, uc)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.LabelFileID != first.LabelFileID {
		t.Errorf("snapshot label file = %s, want %s", snap.LabelFileID, first.LabelFileID)
	}
	if got := env.storedFiles(t); len(got) != 1 {
		t.Errorf("stored files = %v, want only the first upload", got)
	}
}

func TestUploadLabelFile_ReplacesPrevious(t *testing.T) {
	env := newTestEnv(t)
	uc := env.createUseCase(t, "invoices")
	ctx := context.Background()

	if _, err := env.svc.UploadLabelFile(ctx, "invoices", "v1.csv", strings.NewReader(testutil.LabelsCSV)); err != nil {
		t.Fatal(err)
	}
	second, err := env.svc.UploadLabelFile(ctx, "invoices", "v2.csv", strings.NewReader("document_id,total\na,1.5\nb,2.5\nc,3\n"))
	if err != nil {
		t.Fatal(err)
	}

	if len(env.store.LabelFiles) != 1 || len(env.store.EvaluationSets) != 1 {
		t.Errorf("label files = %d, sets = %d, want 1 each", len(env.store.LabelFiles), len(env.store.EvaluationSets))
	}
	if got := env.storedFiles(t); len(got) != 1 {
		t.Errorf("stored files = %v, want only the latest upload", got)
	}

	snap, _ := env.svc.Snapshot(ctx, uc)
	if snap.LabelFileID != second.LabelFileID {
		t.Errorf("snapshot not replaced")
	}
	if _, ok := snap.ColumnTypes["status"]; ok {
		t.Errorf("column types merged across uploads: %v", snap.ColumnTypes)
	}
	if snap.ColumnTypes["total"] != model.ColumnTypeFloat {
		t.Errorf("total = %s, want float", snap.ColumnTypes["total"])
	}
	if len(snap.Split.GoldenIDs) != 1 || len(snap.Split.TestIDs) != 2 {
		t.Errorf("split = %+v, want 1/2", snap.Split)
	}
}

func TestUploadLabelFile_PersistFailureDeletesFile(t *testing.T) {
	env := newTestEnv(t)
	env.createUseCase(t, "invoices")
	env.store.FailReplace = errors.New("connection refused")

	_, err := env.svc.UploadLabelFile(context.Background(), "invoices", "labels.csv", strings.NewReader(testutil.LabelsCSV))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := env.storedFiles(t); len(got) != 0 {
		t.Errorf("stored files = %v, want none", got)
	}
}

func TestUploadLabelFile_ConcurrentSameUseCase(t *testing.T) {
	env := newTestEnv(t)
	env.createUseCase(t, "invoices")
	env.createUseCase(t, "receipts")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		name := "invoices"
		if i%2 == 1 {
			name = "receipts"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.UploadLabelFile(context.Background(), name, "labels.csv", strings.NewReader(testutil.LabelsCSV))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("UploadLabelFile() error = %v", err)
		}
	}

	if len(env.store.LabelFiles) != 2 {
		t.Errorf("label files = %d, want one per use case", len(env.store.LabelFiles))
	}
	if got := env.storedFiles(t); len(got) != 2 {
		t.Errorf("stored files = %d, want one per use case", len(got))
	}
}

func TestSnapshot_RebuiltFromStore(t *testing.T) {
	env := newTestEnv(t)
	uc := env.createUseCase(t, "invoices")
	ctx := context.Background()

	if _, err := env.svc.Snapshot(ctx, uc); !errors.Is(err, ErrNoLabelFile) {
		t.Fatalf("Snapshot() error = %v, want ErrNoLabelFile", err)
	}

	res, err := env.svc.UploadLabelFile(ctx, "invoices", "labels.csv", strings.NewReader(testutil.LabelsCSV))
	if err != nil {
		t.Fatal(err)
	}
	cached, _ := env.snapshots.Get(ctx, uc.ID)

	env.snapshots.Invalidate(ctx, uc.ID)
	rebuilt, err := env.svc.Snapshot(ctx, uc)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if rebuilt.LabelFileID != res.LabelFileID {
		t.Errorf("LabelFileID = %s, want %s", rebuilt.LabelFileID, res.LabelFileID)
	}
	if strings.Join(rebuilt.Split.GoldenIDs, ",") != strings.Join(cached.Split.GoldenIDs, ",") {
		t.Errorf("rebuilt golden set %v differs from %v", rebuilt.Split.GoldenIDs, cached.Split.GoldenIDs)
	}
}

func TestLoadLabeledRows(t *testing.T) {
	env := newTestEnv(t)
	uc := env.createUseCase(t, "invoices")
	ctx := context.Background()

	if _, err := env.svc.UploadLabelFile(ctx, "invoices", "labels.csv", strings.NewReader(testutil.LabelsCSV)); err != nil {
		t.Fatal(err)
	}
	lf, err := env.store.GetLatestLabelFile(ctx, uc.ID)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := env.svc.LoadLabeledRows(ctx, lf, []string{"doc-2", "doc-3"})
	if err != nil {
		t.Fatalf("LoadLabeledRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0]["document_id"] != "doc-2" || rows[0]["amount"] != int64(20) || rows[0]["paid"] != false {
		t.Errorf("rows[0] = %v", rows[0])
	}
	if rows[1]["row_id"] != "3" {
		t.Errorf("row_id should stay raw, got %v", rows[1]["row_id"])
	}

	all, err := env.svc.LoadLabeledRows(ctx, lf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 10 {
		t.Errorf("len(all) = %d, want 10", len(all))
	}
}

// ========== 详情与删除测试 ==========

func TestGetUseCaseDetail(t *testing.T) {
	env := newTestEnv(t)
	uc := env.createUseCase(t, "invoices")
	ctx := context.Background()

	detail, err := env.svc.GetUseCaseDetail(ctx, "invoices")
	if err != nil {
		t.Fatalf("GetUseCaseDetail() error = %v", err)
	}
	if detail.LabelFile != nil || len(detail.TestSet) != 0 || detail.Headers == nil {
		t.Errorf("detail without label file = %+v", detail)
	}

	res, err := env.svc.UploadLabelFile(ctx, "invoices", "labels.csv", strings.NewReader(testutil.LabelsCSV))
	if err != nil {
		t.Fatal(err)
	}
	_ = env.store.CreateIteration(ctx, &model.EvaluationIteration{UseCaseID: uc.ID, LabelFileID: res.LabelFileID, ExtractionResultID: "er-1"})
	_ = env.store.CreateIteration(ctx, &model.EvaluationIteration{UseCaseID: uc.ID, LabelFileID: "gone", ExtractionResultID: "er-0"})

	detail, err = env.svc.GetUseCaseDetail(ctx, "invoices")
	if err != nil {
		t.Fatalf("GetUseCaseDetail() error = %v", err)
	}
	if detail.GoldenSetSize != 5 || detail.TestSetSize != 5 || detail.TotalDocuments != 10 {
		t.Errorf("sizes = %d/%d/%d", detail.GoldenSetSize, detail.TestSetSize, detail.TotalDocuments)
	}
	if len(detail.TestSet) != 5 {
		t.Errorf("len(TestSet) = %d, want 5", len(detail.TestSet))
	}
	if strings.Join(detail.Headers, ",") != "row_id,document_id,status,amount,paid,due_date" {
		t.Errorf("Headers = %v", detail.Headers)
	}
	if len(detail.Evaluations) != 2 {
		t.Fatalf("len(Evaluations) = %d, want 2", len(detail.Evaluations))
	}
	if detail.Evaluations[0].LabelFileName != "" || detail.Evaluations[1].LabelFileName != "labels.csv" {
		t.Errorf("label file names = %q, %q", detail.Evaluations[0].LabelFileName, detail.Evaluations[1].LabelFileName)
	}
}

func TestDeleteUseCase(t *testing.T) {
	env := newTestEnv(t)
	uc := env.createUseCase(t, "invoices")
	ctx := context.Background()

	if _, err := env.svc.UploadLabelFile(ctx, "invoices", "labels.csv", strings.NewReader(testutil.LabelsCSV)); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.DeleteUseCase(ctx, "invoices"); err != nil {
		t.Fatalf("DeleteUseCase() error = %v", err)
	}

	if _, err := env.svc.GetUseCase(ctx, "invoices"); !errors.Is(err, ErrUseCaseNotFound) {
		t.Errorf("GetUseCase() error = %v, want ErrUseCaseNotFound", err)
	}
	if _, ok := env.snapshots.Get(ctx, uc.ID); ok {
		t.Error("snapshot survived use case deletion")
	}
	if got := env.storedFiles(t); len(got) != 0 {
		t.Errorf("stored files = %v, want none", got)
	}
	if err := env.svc.DeleteUseCase(ctx, "invoices"); !errors.Is(err, ErrUseCaseNotFound) {
		t.Errorf("second DeleteUseCase() error = %v, want ErrUseCaseNotFound", err)
	}
}

func TestUploadLabelFile_UsesClock(t *testing.T) {
	env := newTestEnv(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return fixed }
	uc := env.createUseCase(t, "invoices")

	if _, err := env.svc.UploadLabelFile(context.Background(), "invoices", "labels.csv", strings.NewReader(testutil.LabelsCSV)); err != nil {
		t.Fatal(err)
	}
	snap, _ := env.snapshots.Get(context.Background(), uc.ID)
	if snap.Version != fixed.UnixNano() {
		t.Errorf("Version = %d, want %d", snap.Version, fixed.UnixNano())
	}
}

func TestCurrentLabels_RebuildsWhenAnotherInstanceReplacedLabels(t *testing.T) {
	env := newTestEnv(t)
	uc := env.createUseCase(t, "invoices")
	ctx := context.Background()

	storage, err := file.NewLocalStorage(env.dir, "/files")
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	other := NewService(env.store, env.store, storage, snapshot.NewManager(nil, 0, nil))

	first, err := env.svc.UploadLabelFile(ctx, "invoices", "v1.csv", strings.NewReader(testutil.LabelsCSV))
	if err != nil {
		t.Fatal(err)
	}
	if snap, err := other.Snapshot(ctx, uc); err != nil || snap.LabelFileID != first.LabelFileID {
		t.Fatalf("other.Snapshot() = %+v, %v; want label file %s", snap, err, first.LabelFileID)
	}

	second, err := env.svc.UploadLabelFile(ctx, "invoices", "v2.csv", strings.NewReader("document_id,total\na,1.5\nb,2.5\nc,3\n"))
	if err != nil {
		t.Fatal(err)
	}

	snap, lf, err := other.CurrentLabels(ctx, uc)
	if err != nil {
		t.Fatalf("CurrentLabels() error = %v", err)
	}
	if snap.LabelFileID != second.LabelFileID || lf.ID != second.LabelFileID {
		t.Errorf("CurrentLabels() = snapshot %s, file %s; want %s", snap.LabelFileID, lf.ID, second.LabelFileID)
	}
	if snap.ColumnTypes["total"] != model.ColumnTypeFloat {
		t.Errorf("total = %s, want float", snap.ColumnTypes["total"])
	}

	cached, err := other.Snapshot(ctx, uc)
	if err != nil || cached.LabelFileID != second.LabelFileID {
		t.Errorf("rebuilt snapshot not cached: %+v, %v", cached, err)
	}
}

func TestCurrentLabels_NoLabelFile(t *testing.T) {
	env := newTestEnv(t)
	uc := env.createUseCase(t, "invoices")

	if _, _, err := env.svc.CurrentLabels(context.Background(), uc); !errors.Is(err, ErrNoLabelFile) {
		t.Errorf("CurrentLabels() error = %v, want ErrNoLabelFile", err)
	}
}
