// Package api HTTP 接口：记录解析、源文件提取、模板填充与填充历史
package api

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"finfill/internal/service/fill"
	"finfill/internal/store"
)

// Version 对外报告的服务版本
const Version = "1.0.0"

// 统一错误码
const (
	codeBadParams       = 1001
	codeNotFound        = 1004
	codeMalformedRecord = 4001
	codeInternal        = 5001
)

// Handler API 处理器
type Handler struct {
	fills     *fill.Service
	store     *store.Store
	uploadDir string
	exportDir string
	downloads *downloadStore
	log       zerolog.Logger
}

// NewHandler 创建 API 处理器；上传与导出文件分别放在 dataDir 下的 uploads / exports
func NewHandler(fills *fill.Service, st *store.Store, dataDir string, log zerolog.Logger) *Handler {
	h := &Handler{
		fills:     fills,
		store:     st,
		uploadDir: filepath.Join(dataDir, "uploads"),
		exportDir: filepath.Join(dataDir, "exports"),
		downloads: newDownloadStore(),
		log:       log.With().Str("component", "api").Logger(),
	}
	if n := sweepStaleExports(h.exportDir, time.Now().Add(-downloadTTL)); n > 0 {
		h.log.Info().Int("removed", n).Msg("removed stale exports")
	}
	return h
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)
	router.GET("/aliases", h.GetAliases)

	// 记录负载与源文件
	router.POST("/parse", h.Parse)
	router.POST("/extract", h.Extract)

	// 模板填充
	router.POST("/fill", h.Fill)
	router.GET("/fill/download/:token", h.DownloadFilled)

	// 填充历史
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:id", h.GetRun)
}

// Response 通用响应
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func errorResponse(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}
