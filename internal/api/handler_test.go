package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"finfill/internal/alias"
	"finfill/internal/service/fill"
	"finfill/internal/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	router  *gin.Engine
	store   *store.Store
	handler *Handler
	dir     string
}

func newTestEnv(t *testing.T, defaultTemplate string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "finfill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := fill.NewService(alias.Default(), fill.Options{TemplatePath: defaultTemplate}, st, zerolog.Nop())
	h := NewHandler(svc, st, dir, zerolog.Nop())

	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	return &testEnv{router: r, store: st, handler: h, dir: dir}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func templateBytes(t *testing.T) []byte {
	t.Helper()

	wb := excelize.NewFile()
	defer wb.Close()
	require.NoError(t, wb.SetCellValue("Sheet1", "C3", 2023))
	require.NoError(t, wb.SetCellValue("Sheet1", "D3", 2024))
	require.NoError(t, wb.SetCellValue("Sheet1", "B5", "Revenue"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B6", "Taxes"))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func multipartRequest(t *testing.T, url string, files map[string][]byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		field, filename, _ := strings.Cut(name, ":")
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestStatusAndAliases(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.Equal(t, 0, resp.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	require.Equal(t, 1, status.AliasVersion)
	require.False(t, status.TemplateConfigured)
	require.Equal(t, 3, status.Layout.YearRow)
	require.Equal(t, "keep", status.ZeroPolicy)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/aliases", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var table alias.File
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &table))
	require.Contains(t, table.Canonical["Revenue"], "Sales")
}

func TestParse(t *testing.T) {
	env := newTestEnv(t, "")

	body := "```json\n[{\"year\": \"2023\", \"Revenue\": 10}, {\"year\": 2024, \"Revenue\": null}]\n```"
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var parsed struct {
		Count   int               `json:"count"`
		Records []json.RawMessage `json:"records"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &parsed))
	require.Equal(t, 2, parsed.Count)
	require.JSONEq(t, `{"year":2023,"Revenue":10}`, string(parsed.Records[0]))
	require.JSONEq(t, `{"year":2024,"Revenue":null}`, string(parsed.Records[1]))
}

func TestParse_Malformed(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader("no records here")))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, codeMalformedRecord, decode(t, w).Code)
}

func TestParse_OversizedBody(t *testing.T) {
	env := newTestEnv(t, "")

	// 截断后的前缀本身是合法 JSON，超限时也必须拒绝
	body := `{"year": 2024, "Revenue": 1}` + strings.Repeat(" ", maxPayloadBytes)
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(body)))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Equal(t, codeBadParams, decode(t, w).Code)
}

func TestReadLimited(t *testing.T) {
	t.Parallel()

	data, err := readLimited(bytes.NewReader(bytes.Repeat([]byte("a"), maxPayloadBytes)))
	require.NoError(t, err)
	require.Len(t, data, maxPayloadBytes)

	_, err = readLimited(bytes.NewReader(bytes.Repeat([]byte("a"), maxPayloadBytes+1)))
	require.ErrorIs(t, err, errPayloadTooLarge)
}

func TestFillAndDownload(t *testing.T) {
	env := newTestEnv(t, "")

	req := multipartRequest(t, "/api/fill",
		map[string][]byte{"template:利润表.xlsx": templateBytes(t)},
		map[string]string{"records": `[{"year": 2024, "Revenue": 100000}, {"year": 2022, "Revenue": 50}]`},
	)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp FillResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	require.Len(t, resp.Report.Writes, 1)
	require.Equal(t, "D5", resp.Report.Writes[0].Cell)
	require.Len(t, resp.Report.Notices, 1)
	require.Equal(t, "year 2022 not found", resp.Report.Notices[0].Message)
	require.Equal(t, "利润表_filled.xlsx", resp.FileName)
	require.Equal(t, "/api/fill/download/"+resp.Token, resp.DownloadURL)

	w = env.do(httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "filename*=UTF-8''")
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))

	wb, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	v, err := wb.GetCellValue("Sheet1", "D5")
	require.NoError(t, err)
	require.Equal(t, "100000", v)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var runs []store.FillRun
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &runs))
	require.Len(t, runs, 1)
	require.Equal(t, resp.Report.RunID, runs[0].ID)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.Report.RunID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var run store.FillRun
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &run))
	require.Len(t, run.Notices, 1)
}

func TestFill_DefaultTemplateIsNotModified(t *testing.T) {
	tpl := filepath.Join(t.TempDir(), "template.xlsx")
	wb, err := excelize.OpenReader(bytes.NewReader(templateBytes(t)))
	require.NoError(t, err)
	require.NoError(t, wb.SaveAs(tpl))
	require.NoError(t, wb.Close())

	env := newTestEnv(t, tpl)
	req := multipartRequest(t, "/api/fill", map[string][]byte{
		"records:records.json": []byte(`{"year": 2024, "Taxes": 12}`),
	}, nil)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp FillResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	require.Equal(t, "template_filled.xlsx", resp.FileName)
	require.NotEqual(t, tpl, resp.Report.OutputPath)

	orig, err := excelize.OpenFile(tpl)
	require.NoError(t, err)
	defer orig.Close()
	v, err := orig.GetCellValue("Sheet1", "D6")
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestFill_BadRequests(t *testing.T) {
	env := newTestEnv(t, "")
	tpl := templateBytes(t)
	oversized := bytes.Repeat([]byte(" "), maxPayloadBytes+1)

	cases := []struct {
		name   string
		files  map[string][]byte
		fields map[string]string
		status int
		code   int
	}{
		{
			name:   "missing records",
			files:  map[string][]byte{"template:t.xlsx": tpl},
			status: http.StatusBadRequest,
			code:   codeBadParams,
		},
		{
			name:   "missing template",
			fields: map[string]string{"records": `{"year": 2024, "Revenue": 1}`},
			status: http.StatusBadRequest,
			code:   codeBadParams,
		},
		{
			name:   "malformed records",
			files:  map[string][]byte{"template:t.xlsx": tpl},
			fields: map[string]string{"records": `{"Revenue": 1}`},
			status: http.StatusBadRequest,
			code:   codeMalformedRecord,
		},
		{
			name:   "unknown zero policy",
			files:  map[string][]byte{"template:t.xlsx": tpl},
			fields: map[string]string{"records": `{"year": 2024, "Revenue": 1}`, "zeroPolicy": "maybe"},
			status: http.StatusBadRequest,
			code:   codeBadParams,
		},
		{
			name:   "invalid category column",
			files:  map[string][]byte{"template:t.xlsx": tpl},
			fields: map[string]string{"records": `{"year": 2024, "Revenue": 1}`, "categoryColumn": "1B"},
			status: http.StatusBadRequest,
			code:   codeBadParams,
		},
		{
			name:   "oversized records file",
			files:  map[string][]byte{"template:t.xlsx": tpl, "records:r.json": oversized},
			status: http.StatusRequestEntityTooLarge,
			code:   codeBadParams,
		},
		{
			name:   "oversized records field",
			files:  map[string][]byte{"template:t.xlsx": tpl},
			fields: map[string]string{"records": string(oversized)},
			status: http.StatusRequestEntityTooLarge,
			code:   codeBadParams,
		},
		{
			name:   "broken template",
			files:  map[string][]byte{"template:t.xlsx": []byte("not a workbook")},
			fields: map[string]string{"records": `{"year": 2024, "Revenue": 1}`},
			status: http.StatusBadRequest,
			code:   codeBadParams,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(multipartRequest(t, "/api/fill", tc.files, tc.fields))
			require.Equal(t, tc.status, w.Code, w.Body.String())
			require.Equal(t, tc.code, decode(t, w).Code)
		})
	}
}

func TestRuns_NotFoundAndBadLimit(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, codeNotFound, decode(t, w).Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/runs?limit=x", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/fill/download/unknown", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtract_Spreadsheet(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(multipartRequest(t, "/api/extract", map[string][]byte{"file:income.xlsx": templateBytes(t)}, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var docs []struct {
		FileName string                `json:"fileName"`
		Kind     string                `json:"kind"`
		Sheets   map[string][][]string `json:"sheets"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &docs))
	require.Len(t, docs, 1)
	require.Equal(t, "income.xlsx", docs[0].FileName)
	require.Equal(t, "spreadsheet", docs[0].Kind)
	require.Contains(t, docs[0].Sheets, "Sheet1")

	w = env.do(multipartRequest(t, "/api/extract", map[string][]byte{"file:notes.txt": []byte("x")}, nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadStore_Expires(t *testing.T) {
	s := newDownloadStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	path := filepath.Join(t.TempDir(), "a.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	token := s.put(path, "a.xlsx", downloadTTL)
	_, ok := s.get(token)
	require.True(t, ok)
	require.FileExists(t, path)

	now = now.Add(downloadTTL + time.Second)
	_, ok = s.get(token)
	require.False(t, ok)
	require.NoFileExists(t, path)
}

func TestFillAndDownload_ExpiredExportIsRemoved(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(multipartRequest(t, "/api/fill",
		map[string][]byte{"template:t.xlsx": templateBytes(t)},
		map[string]string{"records": `{"year": 2024, "Revenue": 1}`},
	))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp FillResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	require.FileExists(t, resp.Report.OutputPath)

	h := env.handler
	h.downloads.mu.Lock()
	h.downloads.now = func() time.Time { return time.Now().Add(downloadTTL + time.Minute) }
	h.downloads.mu.Unlock()

	w = env.do(httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NoFileExists(t, resp.Report.OutputPath)
}

func TestSweepStaleExports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "old_filled.xlsx")
	fresh := filepath.Join(dir, "new_filled.xlsx")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	old := time.Now().Add(-2 * downloadTTL)
	require.NoError(t, os.Chtimes(stale, old, old))

	require.Equal(t, 1, sweepStaleExports(dir, time.Now().Add(-downloadTTL)))
	require.NoFileExists(t, stale)
	require.FileExists(t, fresh)
	require.Zero(t, sweepStaleExports(filepath.Join(dir, "missing"), time.Now()))
}

func TestBuildContentDisposition(t *testing.T) {
	t.Parallel()

	got := buildContentDisposition("利润表_filled.xlsx")
	want := "attachment; filename=\"___filled.xlsx\"; filename*=UTF-8''%E5%88%A9%E6%B6%A6%E8%A1%A8_filled.xlsx"
	require.Equal(t, want, got)
}

func TestFilledName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "P&L_filled.xlsx", filledName("P&L.xlsx"))
	require.Equal(t, "book_filled.xlsm", filledName("/x/book.xlsm"))
	require.Equal(t, "book_filled.xlsx", filledName("book"))
}
