package evaluation

import (
	"errors"
	"fmt"

	"github.com/ashwinyue/next-eval/internal/model"
	"github.com/ashwinyue/next-eval/internal/service/ingest"
)

var (
	// ErrSchema 缺少必需列（document_id）
	ErrSchema = errors.New("schema error")
	// ErrDuplicateID document_id 不唯一
	ErrDuplicateID = errors.New("duplicate document_id")
	// ErrEmptyID document_id 为空
	ErrEmptyID = errors.New("empty document_id")
	// ErrMalformedInput 无法解析的输入格式
	ErrMalformedInput = ingest.ErrMalformedInput

	// ErrNoLabelFile 用例尚未上传标注文件，或标注文件已被替换
	ErrNoLabelFile = errors.New("no label file uploaded for use case")
	// ErrUnsupportedFile 文件类型不支持
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrUnknownDocumentIDs 预测中出现标注文件里没有的 document_id
	ErrUnknownDocumentIDs = errors.New("unknown document_ids")
	// ErrEvaluationNotFound 评估迭代不存在
	ErrEvaluationNotFound = errors.New("evaluation not found")
)

// ConversionWarning 单个字段值转换失败，不中断整行处理，原值保留
type ConversionWarning struct {
	Field string
	Value any
	Type  model.ColumnType
	Err   error
}

func (w ConversionWarning) String() string {
	return fmt.Sprintf("could not convert %s value %q to %s", w.Field, fmt.Sprint(w.Value), w.Type)
}
