// Package model 提供评估服务的数据模型
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

const (
	// FieldDocumentID 文档ID列，标注与预测记录的关联键
	FieldDocumentID = "document_id"
	// FieldRowID 行序号列，不参与类型推断与评估
	FieldRowID = "row_id"
)

// ColumnType 列的语义类型
type ColumnType string

const (
	ColumnTypeString   ColumnType = "string"
	ColumnTypeInteger  ColumnType = "integer"
	ColumnTypeFloat    ColumnType = "float"
	ColumnTypeBoolean  ColumnType = "boolean"
	ColumnTypeDatetime ColumnType = "datetime"
)

// Valid 是否为已知类型
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnTypeString, ColumnTypeInteger, ColumnTypeFloat, ColumnTypeBoolean, ColumnTypeDatetime:
		return true
	}
	return false
}

// ColumnTypeMap 字段名 -> 类型（不含 document_id 与 row_id）
type ColumnTypeMap map[string]ColumnType

// Value 实现 driver.Valuer 接口
func (m ColumnTypeMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (m *ColumnTypeMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// Record 一行记录（标注或预测），字段名 -> 原始值或转换后的值
type Record map[string]any

// DocumentID 返回记录的文档ID，非字符串值按其文本形式返回
func (r Record) DocumentID() (string, bool) {
	v, ok := r[FieldDocumentID]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Clone 浅拷贝
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordList 记录列表，以 JSON 形式存储
type RecordList []Record

// Value 实现 driver.Valuer 接口
func (l RecordList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (l *RecordList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Table 表格数据：有序表头 + 原始字符串行
type Table struct {
	Columns []string
	Rows    []Record
}

// HasColumn 表头中是否包含指定列
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ColumnValues 返回某一列在所有行中的原始字符串值
func (t *Table) ColumnValues(name string) []string {
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		s, _ := row[name].(string)
		values = append(values, s)
	}
	return values
}

func scanJSON(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
