package service

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/next-eval/internal/config"
	"github.com/ashwinyue/next-eval/internal/observability"
	"github.com/ashwinyue/next-eval/internal/repository"
)

func newRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	sqlDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	return repository.NewRepositories(db)
}

func TestNewServices(t *testing.T) {
	cfg := &config.Config{
		Storage:    config.StorageConfig{Type: "local", BasePath: t.TempDir()},
		Evaluation: config.EvaluationConfig{Seed: 9, RepairJSON: true},
	}

	svc, err := NewServices(newRepos(t), cfg, nil, observability.NewMetrics())
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	if svc.Dataset == nil || svc.Evaluation == nil || svc.Snapshots == nil || svc.Storage == nil {
		t.Errorf("NewServices() left services unset: %+v", svc)
	}
	if svc.Config != cfg {
		t.Error("Config not propagated")
	}
}

func TestNewServices_InvalidStorage(t *testing.T) {
	tests := []struct {
		name    string
		storage config.StorageConfig
	}{
		{name: "unknown type", storage: config.StorageConfig{Type: "ftp"}},
		{name: "minio without credentials", storage: config.StorageConfig{Type: "minio"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServices(newRepos(t), &config.Config{Storage: tt.storage}, nil, observability.NewMetrics())
			if err == nil {
				t.Error("expected storage error")
			}
		})
	}
}
