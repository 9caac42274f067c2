package evaluation

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/ashwinyue/next-eval/internal/model"
)

// ========== Confusion 混淆计数 ==========

// Confusion 单个字段的混淆计数
type Confusion struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
}

// Observe 记录一个文档上的标注值与预测值
//
// 空字符串、0、0.0、false、nil 都视为"缺失"：
//   - 均存在且相等 -> TP
//   - 均存在但不等 -> FP
//   - 仅预测存在   -> FP
//   - 仅标注存在   -> FN
//   - 均缺失       -> 不计数
//
// 合法的假值标注（false、0）因此会被当作缺失，已知的计分偏差，保持兼容
func (c *Confusion) Observe(actual, predicted any) {
	actualOK, predictedOK := isPresent(actual), isPresent(predicted)
	switch {
	case actualOK && predictedOK:
		if valuesEqual(actual, predicted) {
			c.TruePositives++
		} else {
			c.FalsePositives++
		}
	case predictedOK:
		c.FalsePositives++
	case actualOK:
		c.FalseNegatives++
	}
}

// Precision = TP / (TP + FP)，分母为 0 时为 0
func (c Confusion) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall = TP / (TP + FN)，分母为 0 时为 0
func (c Confusion) Recall() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// F1 = 2 * P * R / (P + R)，分母为 0 时为 0
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0.0
	}
	return 2 * p * r / (p + r)
}

// Metrics 转换为字段指标
func (c Confusion) Metrics() model.FieldMetrics {
	return model.FieldMetrics{
		Precision:      c.Precision(),
		Recall:         c.Recall(),
		F1Score:        c.F1(),
		TruePositives:  c.TruePositives,
		FalsePositives: c.FalsePositives,
		FalseNegatives: c.FalseNegatives,
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0.0
	}
	return float64(num) / float64(den)
}

// ========== MetricsCalculator ==========

// CalculateMetrics 按 document_id 对齐标注与预测，在给定文档子集上计算每个字段的指标
//
// 字段集合取第一条标注记录的字段（排除 document_id、row_id），
// 只出现在预测中的字段不进入报告。任一输入为空时返回空报告。
// 同一 document_id 出现多次时取第一条。
func CalculateMetrics(labeled, predicted []model.Record, documentIDs []string) model.MetricsReport {
	report := make(model.MetricsReport)
	if len(labeled) == 0 || len(predicted) == 0 {
		return report
	}

	fields := reportFields(labeled[0])
	actualByID := indexByDocumentID(labeled)
	predictedByID := indexByDocumentID(predicted)

	for _, field := range fields {
		var c Confusion
		for _, id := range documentIDs {
			var actual, pred any
			if row, ok := actualByID[id]; ok {
				actual = row[field]
			}
			if row, ok := predictedByID[id]; ok {
				pred = row[field]
			}
			c.Observe(actual, pred)
		}
		report[field] = c.Metrics()
	}

	return report
}

// Summarize 汇总报告：计数求和后的微平均指标，以及字段 F1 的宏平均
func Summarize(report model.MetricsReport) model.MetricsSummary {
	var total Confusion
	var f1Sum float64
	for _, m := range report {
		total.TruePositives += m.TruePositives
		total.FalsePositives += m.FalsePositives
		total.FalseNegatives += m.FalseNegatives
		f1Sum += m.F1Score
	}

	summary := model.MetricsSummary{
		Precision:      total.Precision(),
		Recall:         total.Recall(),
		F1Score:        total.F1(),
		TruePositives:  total.TruePositives,
		FalsePositives: total.FalsePositives,
		FalseNegatives: total.FalseNegatives,
		Fields:         len(report),
	}
	if len(report) > 0 {
		summary.MacroF1 = f1Sum / float64(len(report))
	}
	return summary
}

func reportFields(first model.Record) []string {
	fields := make([]string, 0, len(first))
	for f := range first {
		if isExcludedField(f) {
			continue
		}
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// indexByDocumentID 建立 document_id -> 第一条记录的索引
func indexByDocumentID(rows []model.Record) map[string]model.Record {
	idx := make(map[string]model.Record, len(rows))
	for _, row := range rows {
		id, ok := row.DocumentID()
		if !ok {
			continue
		}
		if _, exists := idx[id]; !exists {
			idx[id] = row
		}
	}
	return idx
}

// isPresent 值是否"存在"：nil、空串、0、false、空集合视为缺失
func isPresent(v any) bool {
	if v == nil {
		return false
	}
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			return n != ""
		}
		return f != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
