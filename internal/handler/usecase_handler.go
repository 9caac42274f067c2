package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-eval/internal/service"
	"github.com/ashwinyue/next-eval/internal/service/dataset"
)

// UseCaseHandler 用例处理器
type UseCaseHandler struct {
	svc *service.Services
}

// NewUseCaseHandler 创建用例处理器
func NewUseCaseHandler(svc *service.Services) *UseCaseHandler {
	return &UseCaseHandler{svc: svc}
}

// CreateUseCase 创建用例
// @Summary      创建用例
// @Tags         用例
// @Accept       json
// @Produce      json
// @Param        request  body      dataset.CreateUseCaseRequest  true  "用例"
// @Success      201      {object}  SuccessResponse
// @Failure      409      {object}  ErrorResponse  "用例已存在"
// @Router       /api/v1/use-cases [post]
func (h *UseCaseHandler) CreateUseCase(c *gin.Context) {
	var req dataset.CreateUseCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	uc, err := h.svc.Dataset.CreateUseCase(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, uc)
}

// ListUseCases 列出用例
// @Summary      列出用例
// @Tags         用例
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Router       /api/v1/use-cases [get]
func (h *UseCaseHandler) ListUseCases(c *gin.Context) {
	ucs, err := h.svc.Dataset.ListUseCases(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, ucs)
}

// GetUseCase 获取用例详情
// @Summary      获取用例详情
// @Description  返回当前标注文件、黄金集/测试集大小、测试集内容以及历史评估
// @Tags         用例
// @Produce      json
// @Param        name  path      string  true  "用例名称"
// @Success      200   {object}  SuccessResponse
// @Failure      404   {object}  ErrorResponse  "用例不存在"
// @Router       /api/v1/use-cases/{name} [get]
func (h *UseCaseHandler) GetUseCase(c *gin.Context) {
	detail, err := h.svc.Dataset.GetUseCaseDetail(c.Request.Context(), c.Param("name"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, detail)
}

// DeleteUseCase 删除用例
// @Summary      删除用例
// @Tags         用例
// @Param        name  path  string  true  "用例名称"
// @Success      204
// @Failure      404   {object}  ErrorResponse  "用例不存在"
// @Router       /api/v1/use-cases/{name} [delete]
func (h *UseCaseHandler) DeleteUseCase(c *gin.Context) {
	if err := h.svc.Dataset.DeleteUseCase(c.Request.Context(), c.Param("name")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// UploadLabelFile 上传标注文件
// @Summary      上传标注文件
// @Description  CSV 必须包含 document_id 列；替换用例已有的标注文件
// @Tags         用例
// @Accept       multipart/form-data
// @Produce      json
// @Param        name  path      string  true  "用例名称"
// @Param        file  formData  file    true  "标注 CSV"
// @Success      201   {object}  SuccessResponse
// @Failure      400   {object}  ErrorResponse  "文件不合法"
// @Router       /api/v1/use-cases/{name}/label-files [post]
func (h *UseCaseHandler) UploadLabelFile(c *gin.Context) {
	f, fileHeader, ok := formFile(c, h.svc.Config.Evaluation.MaxUploadSize)
	if !ok {
		return
	}
	defer f.Close()

	result, err := h.svc.Dataset.UploadLabelFile(c.Request.Context(), c.Param("name"), fileHeader.Filename, f)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, result)
}
