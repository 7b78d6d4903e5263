package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"finfill/internal/extract"
	"finfill/internal/model"
	"finfill/internal/parser"
)

// maxPayloadBytes 记录负载大小上限
const maxPayloadBytes = 8 << 20

var errPayloadTooLarge = fmt.Errorf("records payload exceeds %d bytes", maxPayloadBytes)

// readLimited 读取负载，超过上限时报错而不是截断
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPayloadBytes {
		return nil, errPayloadTooLarge
	}
	return data, nil
}

// payloadStatus 负载过大返回 413，其余参数错误返回 400
func payloadStatus(err error) int {
	if errors.Is(err, errPayloadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// ParseResponse 解析结果
type ParseResponse struct {
	Count   int            `json:"count"`
	Records []model.Record `json:"records"`
}

// Parse 将 LLM 输出（JSON / 代码块 / 项目符号文本）解析为记录
// POST /api/parse
func (h *Handler) Parse(c *gin.Context) {
	body, err := readLimited(c.Request.Body)
	if err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			errorResponse(c, http.StatusRequestEntityTooLarge, codeBadParams, err.Error())
			return
		}
		errorResponse(c, http.StatusBadRequest, codeBadParams, "读取请求体失败")
		return
	}

	records, err := parser.ParseRecords(body)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, codeMalformedRecord, err.Error())
		return
	}
	success(c, ParseResponse{Count: len(records), Records: records})
}

// Extract 提取上传的 PDF / 表格文件内容
// POST /api/extract
func (h *Handler) Extract(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		errorResponse(c, http.StatusBadRequest, codeBadParams, "无效的表单数据")
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		errorResponse(c, http.StatusBadRequest, codeBadParams, "未找到上传文件")
		return
	}

	paths := make([]string, 0, len(files))
	defer func() {
		for _, p := range paths {
			_ = os.Remove(p)
		}
	}()
	for _, fh := range files {
		if _, err := extract.KindOf(fh.Filename); err != nil {
			errorResponse(c, http.StatusBadRequest, codeBadParams, err.Error())
			return
		}
		path, err := h.saveUpload(c, fh)
		if err != nil {
			h.log.Error().Err(err).Str("file", fh.Filename).Msg("save upload failed")
			errorResponse(c, http.StatusInternalServerError, codeInternal, "保存文件失败")
			return
		}
		paths = append(paths, path)
	}

	docs, err := extract.Files(c.Request.Context(), paths)
	if err != nil {
		status, code := http.StatusInternalServerError, codeInternal
		if errors.Is(err, extract.ErrUnsupportedSource) {
			status, code = http.StatusBadRequest, codeBadParams
		}
		errorResponse(c, status, code, err.Error())
		return
	}
	for i, doc := range docs {
		doc.FileName = files[i].Filename
	}
	success(c, docs)
}
