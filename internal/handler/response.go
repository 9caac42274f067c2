package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-eval/internal/logger"
	"github.com/ashwinyue/next-eval/internal/service/dataset"
	"github.com/ashwinyue/next-eval/internal/service/evaluation"
)

// ========== API 响应格式 ==========

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

// NoContent 无内容响应 (204)
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Msg: msg})
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Code: 404, Msg: msg})
}

// Conflict 409 错误响应
func Conflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, ErrorResponse{Code: 409, Msg: msg})
}

// RequestEntityTooLarge 413 错误响应
func RequestEntityTooLarge(c *gin.Context, msg string) {
	c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Code: 413, Msg: msg})
}

// InternalServerError 500 错误响应
func InternalServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Msg: msg})
}

// badRequestErrors 调用方输入导致的错误
var badRequestErrors = []error{
	evaluation.ErrSchema,
	evaluation.ErrDuplicateID,
	evaluation.ErrEmptyID,
	evaluation.ErrMalformedInput,
	evaluation.ErrUnsupportedFile,
	evaluation.ErrNoLabelFile,
	evaluation.ErrUnknownDocumentIDs,
	dataset.ErrInvalidUseCase,
}

// Error 根据错误类型返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, dataset.ErrUseCaseNotFound), errors.Is(err, evaluation.ErrEvaluationNotFound):
		NotFound(c, err.Error())
		return
	case errors.Is(err, dataset.ErrUseCaseExists):
		Conflict(c, err.Error())
		return
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			BadRequest(c, err.Error())
			return
		}
	}

	logger.WithComponent("http").WithError(err).
		WithField("path", c.FullPath()).Error("request failed")
	InternalServerError(c, "internal server error")
}
