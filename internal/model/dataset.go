package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UseCase 评估用例，标注文件与评估历史都挂在用例下
type UseCase struct {
	ID              string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name            string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	SuccessCriteria string    `json:"success_criteria" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (u *UseCase) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (UseCase) TableName() string {
	return "use_cases"
}

// LabelFileStatus 标注文件处理状态
type LabelFileStatus string

const (
	LabelFileStatusProcessed LabelFileStatus = "processed"
)

// ValidationStatusValid 标注文件校验通过
const ValidationStatusValid = "valid"

// LabelFile 标注文件（CSV），包含推断出的列类型
type LabelFile struct {
	ID               string                      `json:"id" gorm:"type:varchar(36);primaryKey"`
	UseCaseID        string                      `json:"use_case_id" gorm:"type:varchar(36);not null;index"`
	FilePath         string                      `json:"file_path" gorm:"type:text"`          // 存储路径
	StorageType      string                      `json:"storage_type" gorm:"type:varchar(20)"` // local, minio
	OriginalFilename string                      `json:"original_filename" gorm:"type:varchar(255)"`
	FileSize         int64                       `json:"file_size"`
	Status           LabelFileStatus             `json:"status" gorm:"type:varchar(20)"`
	DocumentCount    int                         `json:"document_count"`
	ValidationStatus string                      `json:"validation_status" gorm:"type:varchar(20)"`
	Columns          datatypes.JSONSlice[string] `json:"columns"`
	ColumnTypes      ColumnTypeMap               `json:"column_types" gorm:"type:jsonb"`
	UploadedAt       time.Time                   `json:"uploaded_at" gorm:"autoCreateTime;index"`
}

// BeforeCreate GORM 钩子
func (f *LabelFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (LabelFile) TableName() string {
	return "label_files"
}

// EvaluationSplit 黄金集/测试集划分结果
type EvaluationSplit struct {
	GoldenIDs []string `json:"golden_ids"`
	TestIDs   []string `json:"test_ids"`
}

// Total 文档总数
func (s *EvaluationSplit) Total() int {
	return len(s.GoldenIDs) + len(s.TestIDs)
}

// AllIDs 黄金集与测试集的并集
func (s *EvaluationSplit) AllIDs() []string {
	ids := make([]string, 0, s.Total())
	ids = append(ids, s.GoldenIDs...)
	return append(ids, s.TestIDs...)
}

// EvaluationSet 持久化的划分结果
type EvaluationSet struct {
	ID             string                      `json:"id" gorm:"type:varchar(36);primaryKey"`
	UseCaseID      string                      `json:"use_case_id" gorm:"type:varchar(36);not null;index"`
	LabelFileID    string                      `json:"label_file_id" gorm:"type:varchar(36);not null;index"`
	GoldSet        datatypes.JSONSlice[string] `json:"gold_set"`
	TestSet        datatypes.JSONSlice[string] `json:"test_set"`
	TotalDocuments int                         `json:"total_documents"`
	CreatedAt      time.Time                   `json:"created_at" gorm:"autoCreateTime;index"`
}

// BeforeCreate GORM 钩子
func (e *EvaluationSet) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (EvaluationSet) TableName() string {
	return "evaluation_sets"
}

// Split 转换为划分结果
func (e *EvaluationSet) Split() *EvaluationSplit {
	return &EvaluationSplit{
		GoldenIDs: append([]string(nil), e.GoldSet...),
		TestIDs:   append([]string(nil), e.TestSet...),
	}
}

// DatasetSnapshot 用例当前生效的标注数据版本：列类型 + 划分
// 新的标注文件会整体替换旧快照，不做合并
type DatasetSnapshot struct {
	UseCaseID   string           `json:"use_case_id"`
	LabelFileID string           `json:"label_file_id"`
	Version     int64            `json:"version"` // 标注文件上传时间 (UnixNano)
	ColumnTypes ColumnTypeMap    `json:"column_types"`
	Split       *EvaluationSplit `json:"split"`
}
