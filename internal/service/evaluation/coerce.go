package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ashwinyue/next-eval/internal/model"
)

// DefaultExcludedFields 不做类型转换的字段
var DefaultExcludedFields = []string{model.FieldDocumentID, model.FieldRowID}

var truthyLiterals = map[string]bool{"true": true, "1": true, "yes": true, "y": true}

// CoerceValue 将单个值按目标类型转换
// string、datetime 和未知类型原样返回
func CoerceValue(v any, t model.ColumnType) (any, error) {
	switch t {
	case model.ColumnTypeInteger:
		return toInteger(v)
	case model.ColumnTypeFloat:
		return toFloat(v)
	case model.ColumnTypeBoolean:
		return toBoolean(v), nil
	default:
		return v, nil
	}
}

// CoerceRecord 返回按列类型转换后的新记录，输入不被修改
// 转换失败的字段保留原值并产生一条 ConversionWarning
func CoerceRecord(row model.Record, types model.ColumnTypeMap, excluded ...string) (model.Record, []ConversionWarning) {
	if len(excluded) == 0 {
		excluded = DefaultExcludedFields
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, f := range excluded {
		skip[f] = struct{}{}
	}

	out := row.Clone()
	var warnings []ConversionWarning
	for field, value := range row {
		if _, ok := skip[field]; ok {
			continue
		}
		t, ok := types[field]
		if !ok {
			continue
		}
		converted, err := CoerceValue(value, t)
		if err != nil {
			warnings = append(warnings, ConversionWarning{Field: field, Value: value, Type: t, Err: err})
			continue
		}
		out[field] = converted
	}
	return out, warnings
}

// Coercer 绑定一份列类型表，记录转换告警
type Coercer struct {
	types     model.ColumnTypeMap
	excluded  []string
	log       logrus.FieldLogger
	onWarning func(ConversionWarning)
}

// CoercerOption Coercer 配置项
type CoercerOption func(*Coercer)

// WithLogger 设置告警日志
func WithLogger(l logrus.FieldLogger) CoercerOption {
	return func(c *Coercer) { c.log = l }
}

// WithWarningHook 每条告警的回调（例如计数）
func WithWarningHook(fn func(ConversionWarning)) CoercerOption {
	return func(c *Coercer) { c.onWarning = fn }
}

// WithExcludedFields 覆盖默认排除字段
func WithExcludedFields(fields ...string) CoercerOption {
	return func(c *Coercer) { c.excluded = fields }
}

// NewCoercer 创建转换器
func NewCoercer(types model.ColumnTypeMap, opts ...CoercerOption) *Coercer {
	c := &Coercer{types: types, excluded: DefaultExcludedFields}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Coerce 转换一行
func (c *Coercer) Coerce(row model.Record) model.Record {
	out, warnings := CoerceRecord(row, c.types, c.excluded...)
	for _, w := range warnings {
		if c.log != nil {
			c.log.WithFields(logrus.Fields{
				"field":       w.Field,
				"value":       fmt.Sprint(w.Value),
				"target_type": string(w.Type),
			}).Warn("value conversion failed, keeping raw value")
		}
		if c.onWarning != nil {
			c.onWarning(w)
		}
	}
	return out
}

// CoerceAll 转换多行
func (c *Coercer) CoerceAll(rows []model.Record) []model.Record {
	out := make([]model.Record, len(rows))
	for i, row := range rows {
		out[i] = c.Coerce(row)
	}
	return out
}

func toInteger(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return int64(0), nil
	case string:
		if strings.TrimSpace(x) == "" {
			return int64(0), nil
		}
		s, ok := decimalText(x)
		if !ok {
			return nil, fmt.Errorf("invalid integer literal %q", x)
		}
		return strconv.ParseInt(s, 10, 64)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return truncate(f)
	case float64:
		return truncate(x)
	case float32:
		return truncate(float64(x))
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func truncate(f float64) (any, error) {
	// float64(math.MaxInt64) 等于 2^63，已超出 int64
	if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("cannot convert %v to integer", f)
	}
	return int64(f), nil
}

func toFloat(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return 0.0, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return 0.0, nil
		}
		s, ok := decimalText(x)
		if !ok {
			return nil, fmt.Errorf("invalid float literal %q", x)
		}
		return strconv.ParseFloat(s, 64)
	case json.Number:
		return x.Float64()
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to float", v)
	}
}

// toBoolean 字符串按字面量判断，其余类型按真值判断
func toBoolean(v any) bool {
	if s, ok := v.(string); ok {
		return truthyLiterals[strings.ToLower(strings.TrimSpace(s))]
	}
	return isPresent(v)
}
