// Package testutil 提供测试辅助工具
package testutil

import (
	"errors"
	"strings"
	"testing"
)

// LabelsCSV 10 个文档的标注样例
const LabelsCSV = `row_id,document_id,status,amount,paid,due_date
1,doc-1,open,10,yes,2024-01-31
2,doc-2,closed,20,no,2024-02-29
3,doc-3,open,30,yes,2024-03-31
4,doc-4,closed,40,no,2024-04-30
5,doc-5,open,50,yes,2024-05-31
6,doc-6,closed,60,no,2024-06-30
7,doc-7,open,70,yes,2024-07-31
8,doc-8,closed,80,no,2024-08-31
9,doc-9,open,90,yes,2024-09-30
10,doc-10,closed,100,no,2024-10-31
`

// PerfectPredictionsJSON 与 LabelsCSV 完全一致的预测结果
const PerfectPredictionsJSON = `[
  {"document_id": "doc-1", "status": "open", "amount": 10, "paid": true, "due_date": "2024-01-31"},
  {"document_id": "doc-2", "status": "closed", "amount": 20, "paid": false, "due_date": "2024-02-29"},
  {"document_id": "doc-3", "status": "open", "amount": 30, "paid": true, "due_date": "2024-03-31"},
  {"document_id": "doc-4", "status": "closed", "amount": 40, "paid": false, "due_date": "2024-04-30"},
  {"document_id": "doc-5", "status": "open", "amount": 50, "paid": true, "due_date": "2024-05-31"},
  {"document_id": "doc-6", "status": "closed", "amount": 60, "paid": false, "due_date": "2024-06-30"},
  {"document_id": "doc-7", "status": "open", "amount": 70, "paid": true, "due_date": "2024-07-31"},
  {"document_id": "doc-8", "status": "closed", "amount": 80, "paid": false, "due_date": "2024-08-31"},
  {"document_id": "doc-9", "status": "open", "amount": 90, "paid": true, "due_date": "2024-09-30"},
  {"document_id": "doc-10", "status": "closed", "amount": 100, "paid": false, "due_date": "2024-10-31"}
]`

// DuplicateLabelsCSV document_id 重复的标注
const DuplicateLabelsCSV = "document_id,status\nx,open\nx,closed\n"

// AssertHelper 提供断言相关的测试辅助
type AssertHelper struct {
	t *testing.T
}

// NewAssertHelper 创建断言辅助器
func NewAssertHelper(t *testing.T) *AssertHelper {
	return &AssertHelper{t: t}
}

// NoError 断言没有错误
func (h *AssertHelper) NoError(err error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("Unexpected error: %v %v", err, msgAndArgs)
	}
}

// ErrorIs 断言错误链中包含 target
func (h *AssertHelper) ErrorIs(err, target error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if !errors.Is(err, target) {
		h.t.Fatalf("Expected error %v, got %v %v", target, err, msgAndArgs)
	}
}

// ErrorContains 断言错误包含指定字符串
func (h *AssertHelper) ErrorContains(err error, substr string, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err == nil {
		h.t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), substr) {
		h.t.Fatalf("Error %q does not contain %q %v", err.Error(), substr, msgAndArgs)
	}
}

// Equal 断言相等
func (h *AssertHelper) Equal(expected, actual interface{}, msgAndArgs ...interface{}) {
	h.t.Helper()
	if expected != actual {
		h.t.Fatalf("Expected %v, got %v %v", expected, actual, msgAndArgs)
	}
}
