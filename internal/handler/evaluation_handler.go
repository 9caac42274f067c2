package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-eval/internal/service"
)

// EvaluationHandler 评估处理器
type EvaluationHandler struct {
	svc *service.Services
}

// NewEvaluationHandler 创建评估处理器
func NewEvaluationHandler(svc *service.Services) *EvaluationHandler {
	return &EvaluationHandler{svc: svc}
}

// SubmitExtractionResult 提交抽取结果并评估
// @Summary      提交抽取结果
// @Description  JSON 数组，每个对象必须包含标注文件中存在的 document_id
// @Tags         评估
// @Accept       multipart/form-data
// @Produce      json
// @Param        name  path      string  true  "用例名称"
// @Param        file  formData  file    true  "预测 JSON"
// @Success      201   {object}  SuccessResponse
// @Failure      400   {object}  ErrorResponse  "文件不合法或尚未上传标注文件"
// @Router       /api/v1/use-cases/{name}/extraction-results [post]
func (h *EvaluationHandler) SubmitExtractionResult(c *gin.Context) {
	f, fileHeader, ok := formFile(c, h.svc.Config.Evaluation.MaxUploadSize)
	if !ok {
		return
	}
	defer f.Close()

	result, err := h.svc.Evaluation.SubmitExtractionResult(c.Request.Context(), c.Param("name"), fileHeader.Filename, f)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, result)
}

// ListEvaluations 列出用例的评估
// @Summary      列出评估
// @Tags         评估
// @Produce      json
// @Param        name  path      string  true  "用例名称"
// @Success      200   {object}  SuccessResponse
// @Router       /api/v1/use-cases/{name}/evaluations [get]
func (h *EvaluationHandler) ListEvaluations(c *gin.Context) {
	its, err := h.svc.Evaluation.ListEvaluations(c.Request.Context(), c.Param("name"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, its)
}

// GetEvaluation 获取评估详情
// @Summary      获取评估详情
// @Tags         评估
// @Produce      json
// @Param        id   path      string  true  "评估ID"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse  "评估不存在"
// @Router       /api/v1/evaluations/{id} [get]
func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	detail, err := h.svc.Evaluation.GetEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, detail)
}

// GetReport 获取评估报告
// @Summary      获取评估报告
// @Tags         评估
// @Produce      json
// @Param        id   path      string  true  "评估ID"
// @Success      200  {object}  SuccessResponse
// @Router       /api/v1/evaluations/{id}/report [get]
func (h *EvaluationHandler) GetReport(c *gin.Context) {
	report, err := h.svc.Evaluation.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, report)
}

// DeleteEvaluation 删除评估
// @Summary      删除评估
// @Tags         评估
// @Param        id   path  string  true  "评估ID"
// @Success      204
// @Router       /api/v1/evaluations/{id} [delete]
func (h *EvaluationHandler) DeleteEvaluation(c *gin.Context) {
	if err := h.svc.Evaluation.DeleteEvaluation(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}
