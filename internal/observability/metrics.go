// Package observability 提供 Prometheus 指标
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashwinyue/next-eval/internal/model"
)

// 结果标签
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics 服务指标，注册在独立的 Registry 上
//
// Usage:
//
//	m := observability.NewMetrics()
//	m.ObserveHTTP("GET", "/api/v1/use-cases", 200, time.Since(start).Seconds())
//	m.RecordEvaluation("invoices", metrics)
type Metrics struct {
	registry *prometheus.Registry

	// HTTPRequestCounter Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// HTTPRequestDuration Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// LabelUploads Labels: outcome (success|failure)
	LabelUploads *prometheus.CounterVec

	// Evaluations Labels: outcome (success|failure)
	Evaluations *prometheus.CounterVec

	// ConversionWarnings Labels: target_type
	ConversionWarnings *prometheus.CounterVec

	// LastF1 最近一次评估的微平均 F1
	// Labels: use_case, subset (golden_set|test_set|total)
	LastF1 *prometheus.GaugeVec
}

// NewMetrics 创建并注册全部指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "next_eval_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "next_eval_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		LabelUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "next_eval_label_uploads_total",
				Help: "Total number of label file uploads by outcome",
			},
			[]string{"outcome"},
		),

		Evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "next_eval_evaluations_total",
				Help: "Total number of extraction result evaluations by outcome",
			},
			[]string{"outcome"},
		),

		ConversionWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "next_eval_conversion_warnings_total",
				Help: "Values that could not be converted to their column type",
			},
			[]string{"target_type"},
		),

		LastF1: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "next_eval_last_f1_score",
				Help: "Micro-averaged F1 of the most recent evaluation per use case and subset",
			},
			[]string{"use_case", "subset"},
		),
	}
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, path string, status int, seconds float64) {
	code := strconv.Itoa(status)
	m.HTTPRequestCounter.WithLabelValues(method, path, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(seconds)
}

// LabelUploaded 记录一次标注文件上传
func (m *Metrics) LabelUploaded(err error) {
	m.LabelUploads.WithLabelValues(outcome(err)).Inc()
}

// EvaluationFailed 记录一次失败的评估
func (m *Metrics) EvaluationFailed() {
	m.Evaluations.WithLabelValues(OutcomeFailure).Inc()
}

// RecordEvaluation 记录一次成功的评估及各子集的 F1
func (m *Metrics) RecordEvaluation(useCase string, summary model.IterationSummary) {
	m.Evaluations.WithLabelValues(OutcomeSuccess).Inc()
	m.LastF1.WithLabelValues(useCase, string(model.SubsetGolden)).Set(summary.GoldenSet.F1Score)
	m.LastF1.WithLabelValues(useCase, string(model.SubsetTest)).Set(summary.TestSet.F1Score)
	m.LastF1.WithLabelValues(useCase, string(model.SubsetTotal)).Set(summary.Total.F1Score)
}

// ConversionWarning 记录一次值转换告警
func (m *Metrics) ConversionWarning(t model.ColumnType) {
	m.ConversionWarnings.WithLabelValues(string(t)).Inc()
}

// ForgetUseCase 删除用例相关的时间序列
func (m *Metrics) ForgetUseCase(useCase string) {
	m.LastF1.DeletePartialMatch(prometheus.Labels{"use_case": useCase})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
