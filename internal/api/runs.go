package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"finfill/internal/store"
)

// ListRuns 填充历史（最新在前）
// GET /api/runs?limit=20
func (h *Handler) ListRuns(c *gin.Context) {
	if h.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, codeInternal, "填充历史不可用")
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errorResponse(c, http.StatusBadRequest, codeBadParams, "limit 必须为正整数")
			return
		}
		limit = n
	}

	runs, err := h.store.ListFillRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list fill runs failed")
		errorResponse(c, http.StatusInternalServerError, codeInternal, "查询填充历史失败")
		return
	}
	success(c, runs)
}

// GetRun 单次填充详情（含全部提示）
// GET /api/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	if h.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, codeInternal, "填充历史不可用")
		return
	}

	run, err := h.store.GetFillRun(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			errorResponse(c, http.StatusNotFound, codeNotFound, "填充记录不存在")
			return
		}
		h.log.Error().Err(err).Msg("get fill run failed")
		errorResponse(c, http.StatusInternalServerError, codeInternal, "查询填充记录失败")
		return
	}
	success(c, run)
}
