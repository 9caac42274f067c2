package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-eval/internal/model"
	"github.com/ashwinyue/next-eval/internal/service"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	svc *service.Services
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(svc *service.Services) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// SystemInfo 系统信息
type SystemInfo struct {
	Name          string             `json:"name"`
	Version       string             `json:"version"`
	Environment   string             `json:"environment"`
	StorageType   string             `json:"storage_type"`
	SnapshotCache string             `json:"snapshot_cache"` // memory, redis
	MaxUploadSize int64              `json:"max_upload_size"`
	ColumnTypes   []model.ColumnType `json:"column_types"`
}

// GetSystemInfo 获取系统信息
// GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	cfg := h.svc.Config
	cache := "memory"
	if cfg.Redis.Enabled {
		cache = "redis"
	}

	Success(c, SystemInfo{
		Name:          cfg.App.Name,
		Version:       cfg.App.Version,
		Environment:   cfg.App.Environment,
		StorageType:   cfg.Storage.Type,
		SnapshotCache: cache,
		MaxUploadSize: cfg.Evaluation.MaxUploadSize,
		ColumnTypes: []model.ColumnType{
			model.ColumnTypeInteger,
			model.ColumnTypeFloat,
			model.ColumnTypeBoolean,
			model.ColumnTypeDatetime,
			model.ColumnTypeString,
		},
	})
}
