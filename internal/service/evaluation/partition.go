package evaluation

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/ashwinyue/next-eval/internal/model"
)

// Shuffler 随机源，*rand.Rand 满足该接口
// 测试时注入固定种子以获得可复现的划分
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewSeededShuffler 返回固定种子的随机源
func NewSeededShuffler(seed uint64) Shuffler {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// Partition 校验标注行并随机划分为黄金集与测试集
// 校验失败时不返回任何划分；rng 为 nil 时使用进程级随机源
func Partition(table *model.Table, rng Shuffler) (*model.EvaluationSplit, error) {
	if table == nil || !table.HasColumn(model.FieldDocumentID) {
		return nil, fmt.Errorf("%w: CSV file must contain '%s' column", ErrSchema, model.FieldDocumentID)
	}

	ids := make([]string, 0, len(table.Rows))
	seen := make(map[string]struct{}, len(table.Rows))
	var duplicates []string
	for _, row := range table.Rows {
		id, _ := row[model.FieldDocumentID].(string)
		if _, ok := seen[id]; ok {
			duplicates = append(duplicates, id)
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(duplicates) > 0 {
		return nil, fmt.Errorf("%w: duplicate document_ids found in CSV: %s",
			ErrDuplicateID, strings.Join(duplicates, ", "))
	}

	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: empty document_id found in CSV at row %d", ErrEmptyID, i+1)
		}
	}

	if rng == nil {
		rng = globalShuffler{}
	}
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	mid := len(ids) / 2
	return &model.EvaluationSplit{
		GoldenIDs: ids[:mid:mid],
		TestIDs:   ids[mid:],
	}, nil
}
