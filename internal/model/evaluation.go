package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExtractionResult 外部抽取系统提交的预测结果
type ExtractionResult struct {
	ID          string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	UseCaseID   string     `json:"use_case_id" gorm:"type:varchar(36);not null;index"`
	LabelFileID string     `json:"label_file_id" gorm:"type:varchar(36);not null;index"`
	Filename    string     `json:"filename" gorm:"type:varchar(255)"`
	Results     RecordList `json:"results" gorm:"type:jsonb"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate GORM 钩子
func (e *ExtractionResult) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (ExtractionResult) TableName() string {
	return "extraction_results"
}

// EvaluationIteration 一次评估迭代，创建后不再修改
type EvaluationIteration struct {
	ID                 string           `json:"id" gorm:"type:varchar(36);primaryKey"`
	UseCaseID          string           `json:"use_case_id" gorm:"type:varchar(36);not null;index"`
	ExtractionResultID string           `json:"extraction_result_id" gorm:"type:varchar(36);not null;index"`
	LabelFileID        string           `json:"label_file_id" gorm:"type:varchar(36);not null;index"`
	Metrics            IterationMetrics `json:"metrics" gorm:"type:jsonb"`
	Summary            IterationSummary `json:"summary" gorm:"type:jsonb"`
	CreatedAt          time.Time        `json:"created_at" gorm:"autoCreateTime;index"`

	LabelFileName string `json:"label_file_name,omitempty" gorm:"-"`
}

// BeforeCreate GORM 钩子
func (e *EvaluationIteration) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (EvaluationIteration) TableName() string {
	return "evaluation_iterations"
}
