package api

import (
	"github.com/gin-gonic/gin"

	"finfill/internal/service/excel"
)

// StatusResponse 系统状态
type StatusResponse struct {
	Version            string       `json:"version"`
	AliasVersion       int          `json:"aliasVersion"`
	RunCount           int          `json:"runCount"`
	TemplateConfigured bool         `json:"templateConfigured"`
	Layout             excel.Layout `json:"layout"`
	ZeroPolicy         string       `json:"zeroPolicy"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	defaults := h.fills.Defaults()
	resp := StatusResponse{
		Version:            Version,
		AliasVersion:       h.fills.Aliases().Version(),
		TemplateConfigured: defaults.TemplatePath != "",
		Layout:             defaults.Layout,
		ZeroPolicy:         string(defaults.ZeroPolicy),
	}

	if h.store != nil {
		n, err := h.store.CountFillRuns()
		if err != nil {
			h.log.Warn().Err(err).Msg("count fill runs failed")
		}
		resp.RunCount = n
	}
	success(c, resp)
}

// GetAliases 当前类别别名表
// GET /api/aliases
func (h *Handler) GetAliases(c *gin.Context) {
	success(c, h.fills.Aliases().Export())
}
