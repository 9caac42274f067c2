// Package file 上传文件的存储后端
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ashwinyue/next-eval/internal/config"
)

// Storage 文件存储接口
type Storage interface {
	// Save 保存文件，返回存储路径
	Save(ctx context.Context, req *SaveRequest) (string, error)
	// Get 获取文件内容
	Get(ctx context.Context, filePath string) (io.ReadCloser, error)
	// Delete 删除文件，文件不存在时不报错
	Delete(ctx context.Context, filePath string) error
	// GetURL 获取文件的访问URL
	GetURL(filePath string) string
}

// SaveRequest 保存文件请求
type SaveRequest struct {
	FileName    string
	ContentType string
	Size        int64 // -1 表示未知
	Reader      io.Reader
	Prefix      string // 目录前缀，一般为用例ID
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeMinIO StorageType = "minio"
)

// ErrInvalidPath 存储路径越界
var ErrInvalidPath = errors.New("invalid storage path")

// NewStorageFromConfig 根据配置创建存储后端
func NewStorageFromConfig(cfg config.StorageConfig) (Storage, StorageType, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal, "":
		basePath := cfg.BasePath
		if basePath == "" {
			basePath = "./data/uploads"
		}
		s, err := NewLocalStorage(basePath, "/files")
		if err != nil {
			return nil, "", err
		}
		return s, StorageTypeLocal, nil

	case StorageTypeMinIO:
		m := cfg.MinIO
		if m.Endpoint == "" || m.AccessKeyID == "" || m.SecretAccessKey == "" || m.BucketName == "" {
			return nil, "", fmt.Errorf("missing required MinIO config")
		}
		scheme := "http"
		if m.UseSSL {
			scheme = "https"
		}
		s, err := NewMinIOStorage(&MinIOConfig{
			Endpoint:   m.Endpoint,
			AccessKey:  m.AccessKeyID,
			SecretKey:  m.SecretAccessKey,
			BucketName: m.BucketName,
			UseSSL:     m.UseSSL,
			URLPrefix:  fmt.Sprintf("%s://%s", scheme, m.Endpoint),
		})
		if err != nil {
			return nil, "", err
		}
		return s, StorageTypeMinIO, nil

	default:
		return nil, "", fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// objectName 生成对象名: {prefix}/{id}{ext}
func objectName(prefix, id, fileName, contentType string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = extensionByContentType(contentType)
	}
	if prefix == "" {
		return id + ext
	}
	return path.Join(prefix, id+ext)
}

// extensionByContentType 根据内容类型返回扩展名
func extensionByContentType(contentType string) string {
	switch contentType {
	case "text/csv":
		return ".csv"
	case "application/json":
		return ".json"
	default:
		return ".bin"
	}
}
