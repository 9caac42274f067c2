package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-eval/internal/handler"
	"github.com/ashwinyue/next-eval/internal/logger"
	"github.com/ashwinyue/next-eval/internal/middleware"
	"github.com/ashwinyue/next-eval/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, svc *service.Services) *gin.Engine {
	r := gin.New()

	// 中间件
	httpLog := logger.WithComponent("http")
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RecoveryMiddleware(httpLog))
	r.Use(middleware.LoggingMiddleware(httpLog, svc.Metrics))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if svc.Metrics != nil {
		r.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))
	}

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 用例与标注文件
		useCases := v1.Group("/use-cases")
		{
			useCases.POST("", h.UseCase.CreateUseCase)
			useCases.GET("", h.UseCase.ListUseCases)
			useCases.GET("/:name", h.UseCase.GetUseCase)
			useCases.DELETE("/:name", h.UseCase.DeleteUseCase)
			useCases.POST("/:name/label-files", h.UseCase.UploadLabelFile)
			useCases.POST("/:name/extraction-results", h.Evaluation.SubmitExtractionResult)
			useCases.GET("/:name/evaluations", h.Evaluation.ListEvaluations)
		}

		// 评估迭代
		evaluations := v1.Group("/evaluations")
		{
			evaluations.GET("/:id", h.Evaluation.GetEvaluation)
			evaluations.GET("/:id/report", h.Evaluation.GetReport)
			evaluations.DELETE("/:id", h.Evaluation.DeleteEvaluation)
		}

		v1.GET("/system/info", h.System.GetSystemInfo)
	}

	return r
}
