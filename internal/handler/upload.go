package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// formFile 读取 multipart 的 "file" 字段，超过 maxSize 时返回 413
// 失败时已写入响应，调用方直接返回
func formFile(c *gin.Context, maxSize int64) (multipart.File, *multipart.FileHeader, bool) {
	if maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			RequestEntityTooLarge(c, fmt.Sprintf("file exceeds %d bytes", maxSize))
			return nil, nil, false
		}
		BadRequest(c, "file is required: "+err.Error())
		return nil, nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		Error(c, err)
		return nil, nil, false
	}
	return f, fileHeader, true
}
