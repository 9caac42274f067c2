package model

import (
	"database/sql/driver"
	"encoding/json"
)

// FieldMetrics 单个字段的评估指标
type FieldMetrics struct {
	Precision      float64 `json:"precision" yaml:"precision"`
	Recall         float64 `json:"recall" yaml:"recall"`
	F1Score        float64 `json:"f1_score" yaml:"f1_score"`
	TruePositives  int     `json:"true_positives" yaml:"true_positives"`
	FalsePositives int     `json:"false_positives" yaml:"false_positives"`
	FalseNegatives int     `json:"false_negatives" yaml:"false_negatives"`
}

// MetricsReport 字段名 -> 指标
type MetricsReport map[string]FieldMetrics

// MetricsSummary 报告的整体指标
type MetricsSummary struct {
	Precision      float64 `json:"precision" yaml:"precision"`             // 微平均精确率
	Recall         float64 `json:"recall" yaml:"recall"`                   // 微平均召回率
	F1Score        float64 `json:"f1_score" yaml:"f1_score"`               // 微平均 F1
	MacroF1        float64 `json:"macro_f1" yaml:"macro_f1"`               // 字段 F1 的算术平均
	TruePositives  int     `json:"true_positives" yaml:"true_positives"`   // 所有字段之和
	FalsePositives int     `json:"false_positives" yaml:"false_positives"` // 所有字段之和
	FalseNegatives int     `json:"false_negatives" yaml:"false_negatives"` // 所有字段之和
	Fields         int     `json:"fields" yaml:"fields"`
}

// Subset 文档子集
type Subset string

const (
	SubsetGolden Subset = "golden_set"
	SubsetTest   Subset = "test_set"
	SubsetTotal  Subset = "total"
)

// IterationMetrics 一次评估迭代在三个子集上的报告
type IterationMetrics struct {
	GoldenSet MetricsReport `json:"golden_set" yaml:"golden_set"`
	TestSet   MetricsReport `json:"test_set" yaml:"test_set"`
	Total     MetricsReport `json:"total" yaml:"total"`
}

// Report 按子集取报告
func (m IterationMetrics) Report(s Subset) MetricsReport {
	switch s {
	case SubsetGolden:
		return m.GoldenSet
	case SubsetTest:
		return m.TestSet
	default:
		return m.Total
	}
}

// Value 实现 driver.Valuer 接口
func (m IterationMetrics) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (m *IterationMetrics) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// IterationSummary 三个子集的整体指标
type IterationSummary struct {
	GoldenSet MetricsSummary `json:"golden_set" yaml:"golden_set"`
	TestSet   MetricsSummary `json:"test_set" yaml:"test_set"`
	Total     MetricsSummary `json:"total" yaml:"total"`
}

// Value 实现 driver.Valuer 接口
func (s IterationSummary) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (s *IterationSummary) Scan(value interface{}) error {
	return scanJSON(value, s)
}
