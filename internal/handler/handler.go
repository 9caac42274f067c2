package handler

import (
	"github.com/ashwinyue/next-eval/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	UseCase    *UseCaseHandler
	Evaluation *EvaluationHandler
	System     *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		UseCase:    NewUseCaseHandler(svc),
		Evaluation: NewEvaluationHandler(svc),
		System:     NewSystemHandler(svc),
	}
}
