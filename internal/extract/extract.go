// Package extract 从上传的财务文件中提取原始文本/表格，作为外部 LLM 归一化步骤的输入
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedSource 不支持的文件类型
var ErrUnsupportedSource = errors.New("unsupported source file")

// Kind 文件类别
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindSpreadsheet Kind = "spreadsheet"
)

// Document 单个文件的提取结果
type Document struct {
	FileName string                `json:"fileName"`
	Kind     Kind                  `json:"kind"`
	Pages    []string              `json:"pages,omitempty"`
	Sheets   map[string][][]string `json:"sheets,omitempty"`
}

// KindOf 按扩展名判断文件类别
func KindOf(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF, nil
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return KindSpreadsheet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, filepath.Base(path))
	}
}

// File 提取单个文件
func File(path string) (*Document, error) {
	kind, err := KindOf(path)
	if err != nil {
		return nil, err
	}
	doc := &Document{FileName: filepath.Base(path), Kind: kind}

	switch kind {
	case KindPDF:
		doc.Pages, err = pdfPages(path)
	case KindSpreadsheet:
		doc.Sheets, err = spreadsheetRows(path)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// maxParallel 同时提取的文件数
const maxParallel = 4

// Files 并发提取多个文件，结果顺序与 paths 一致；任一失败即返回
func Files(ctx context.Context, paths []string) ([]*Document, error) {
	docs := make([]*Document, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := File(p)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// pdfPages 仅读取文本层；扫描件（纯图片）得到空页
func pdfPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// spreadsheetRows 读取全部工作表（公式单元格取缓存值）
func spreadsheetRows(path string) (map[string][][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	out := make(map[string][][]string)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if rows == nil {
			rows = [][]string{}
		}
		out[sheet] = rows
	}
	return out, nil
}
