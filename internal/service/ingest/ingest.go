// Package ingest 读取上传的标注 CSV 与预测结果 JSON
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"

	"github.com/ashwinyue/next-eval/internal/model"
)

// ErrMalformedInput 无法解析的输入格式
var ErrMalformedInput = errors.New("malformed input")

const utf8BOM = "\ufeff"

// ReadTable 读取带表头的 CSV，所有单元格保留为原始字符串
func ReadTable(r io.Reader) (*model.Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: CSV file is empty", ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	seen := make(map[string]struct{}, len(header))
	for _, col := range header {
		if _, ok := seen[col]; ok {
			return nil, fmt.Errorf("%w: duplicate column %q in CSV header", ErrMalformedInput, col)
		}
		seen[col] = struct{}{}
	}

	table := &model.Table{Columns: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		row := make(model.Record, len(header))
		for i, col := range header {
			row[col] = rec[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ========== 预测结果 ==========

type readOptions struct {
	repair bool
	log    logrus.FieldLogger
}

// Option ReadPredictions 配置项
type Option func(*readOptions)

// WithRepair JSON 不合法时先尝试修复
func WithRepair(enabled bool) Option {
	return func(o *readOptions) { o.repair = enabled }
}

// WithLogger 设置日志
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *readOptions) { o.log = l }
}

// ReadPredictions 读取顶层为对象数组的 JSON，数字保留为 json.Number
func ReadPredictions(r io.Reader, opts ...Option) ([]model.Record, error) {
	o := readOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	items, err := decodeArray(data)
	if err != nil && o.repair {
		repaired, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if o.log != nil {
			o.log.WithError(err).Warn("prediction file is not valid JSON, using repaired content")
		}
		items, err = decodeArray([]byte(repaired))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	records := make([]model.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %s, expected an object", ErrMalformedInput, i, jsonKind(item))
		}
		records = append(records, model.Record(obj))
	}

	schema, err := compiledPredictionsSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return records, nil
}

// predictionsSchema 每条预测必须带有字符串或数字类型的 document_id
const predictionsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["document_id"],
    "properties": {
      "document_id": {"type": ["string", "number"]}
    }
  }
}`

var predictionsSchemaOnce struct {
	sync.Once
	schema *jsonschema.Schema
	err    error
}

func compiledPredictionsSchema() (*jsonschema.Schema, error) {
	predictionsSchemaOnce.Do(func() {
		predictionsSchemaOnce.schema, predictionsSchemaOnce.err = jsonschema.CompileString("predictions.json", predictionsSchema)
	})
	return predictionsSchemaOnce.schema, predictionsSchemaOnce.err
}

func decodeArray(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after top-level value")
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %s, expected an array", jsonKind(v))
	}
	return items, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
