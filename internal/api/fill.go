package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"finfill/internal/model"
	"finfill/internal/parser"
	"finfill/internal/service/excel"
	"finfill/internal/service/fill"
)

// FillResponse 填充结果
type FillResponse struct {
	Report      *model.FillReport `json:"report"`
	Token       string            `json:"token"`
	DownloadURL string            `json:"downloadUrl"`
	FileName    string            `json:"fileName"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

// Fill 填充模板副本并返回下载令牌
// POST /api/fill (multipart: template, records, zeroPolicy, sheet, yearRow, categoryColumn)
func (h *Handler) Fill(c *gin.Context) {
	payload, err := recordsPayload(c)
	if err != nil {
		errorResponse(c, payloadStatus(err), codeBadParams, err.Error())
		return
	}
	records, err := parser.ParseRecords(payload)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, codeMalformedRecord, err.Error())
		return
	}

	opts, err := fillOptions(c)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, codeBadParams, err.Error())
		return
	}

	templateName := filepath.Base(h.fills.Defaults().TemplatePath)
	if fh, err := c.FormFile("template"); err == nil {
		path, err := h.saveUpload(c, fh)
		if err != nil {
			h.log.Error().Err(err).Str("file", fh.Filename).Msg("save upload failed")
			errorResponse(c, http.StatusInternalServerError, codeInternal, "保存文件失败")
			return
		}
		defer os.Remove(path)
		opts.TemplatePath = path
		templateName = fh.Filename
	} else if h.fills.Defaults().TemplatePath == "" {
		errorResponse(c, http.StatusBadRequest, codeBadParams, "未提供模板文件")
		return
	}

	// 始终写入副本，不修改服务端默认模板
	fileName := filledName(templateName)
	opts.OutputPath = filepath.Join(h.exportDir, uuid.NewString()[:8]+"_"+fileName)

	report, err := h.fills.Fill(opts, records)
	if err != nil {
		status, code := fillErrorCode(err)
		errorResponse(c, status, code, err.Error())
		return
	}

	token := h.downloads.put(report.OutputPath, fileName, downloadTTL)
	h.log.Info().
		Str("run", report.RunID).
		Int("writes", len(report.Writes)).
		Int("skipped", report.SkippedCount()).
		Msg("fill completed")

	success(c, FillResponse{
		Report:      report,
		Token:       token,
		DownloadURL: "/api/fill/download/" + token,
		FileName:    fileName,
		ExpiresAt:   time.Now().Add(downloadTTL),
	})
}

// DownloadFilled 下载填充结果
// GET /api/fill/download/:token
func (h *Handler) DownloadFilled(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	item, ok := h.downloads.get(token)
	if !ok {
		errorResponse(c, http.StatusNotFound, codeNotFound, "下载链接不存在或已过期")
		return
	}
	if _, err := os.Stat(item.filePath); err != nil {
		errorResponse(c, http.StatusNotFound, codeNotFound, "文件不存在")
		return
	}

	c.Header("Content-Type", contentTypeFor(item.fileName))
	c.Header("Content-Disposition", buildContentDisposition(item.fileName))
	c.File(item.filePath)
}

// recordsPayload 记录负载：优先取上传文件 records，其次取同名表单字段
func recordsPayload(c *gin.Context) ([]byte, error) {
	if fh, err := c.FormFile("records"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open records file: %w", err)
		}
		defer f.Close()
		return readLimited(f)
	}

	text := c.PostForm("records")
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("records is required")
	}
	if len(text) > maxPayloadBytes {
		return nil, errPayloadTooLarge
	}
	return []byte(text), nil
}

// fillOptions 读取可选的布局与零值策略参数
func fillOptions(c *gin.Context) (fill.Options, error) {
	var opts fill.Options

	policy, err := excel.ParseZeroPolicy(c.PostForm("zeroPolicy"))
	if err != nil {
		return opts, err
	}
	if c.PostForm("zeroPolicy") != "" {
		opts.ZeroPolicy = policy
	}

	opts.Layout.Sheet = strings.TrimSpace(c.PostForm("sheet"))
	opts.Layout.CategoryColumn = strings.TrimSpace(c.PostForm("categoryColumn"))
	if v := strings.TrimSpace(c.PostForm("yearRow")); v != "" {
		row, err := strconv.Atoi(v)
		if err != nil || row < 1 {
			return opts, fmt.Errorf("invalid yearRow %q", v)
		}
		opts.Layout.YearRow = row
	}
	return opts, nil
}

func fillErrorCode(err error) (int, int) {
	switch {
	case errors.Is(err, parser.ErrMalformedInput):
		return http.StatusBadRequest, codeMalformedRecord
	case errors.Is(err, excel.ErrInvalidLayout), errors.Is(err, excel.ErrTemplateOpen):
		return http.StatusBadRequest, codeBadParams
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsm":
		return "application/vnd.ms-excel.sheet.macroEnabled.12"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// buildContentDisposition ASCII 回退名 + RFC 5987 UTF-8 文件名
func buildContentDisposition(name string) string {
	fallback := make([]rune, 0, len(name))
	for _, r := range name {
		if r > 0x7e || r < 0x20 || r == '"' || r == '\\' {
			r = '_'
		}
		fallback = append(fallback, r)
	}
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", string(fallback), url.PathEscape(name))
}
