package api

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// saveUpload 保存上传文件到 uploads 目录，保留原扩展名
func (h *Handler) saveUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s", uuid.NewString()[:8], filepath.Base(fh.Filename))
	dst := filepath.Join(h.uploadDir, name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return dst, nil
}

// filledName 填充结果的下载文件名：<模板名>_filled<扩展名>
func filledName(templateName string) string {
	base := filepath.Base(templateName)
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".xlsx"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_filled" + ext
}
