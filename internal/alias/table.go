package alias

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed aliases.toml
var defaultAliases []byte

// ErrConflict 同义词被多个模板标签声明
var ErrConflict = errors.New("alias conflict")

// File aliases.toml 的结构
type File struct {
	Version   int                 `toml:"version" yaml:"version" json:"version"`
	Canonical map[string][]string `toml:"canonical" yaml:"canonical" json:"canonical"`
}

// Table 类别别名表：提取标签 → 模板标签
type Table struct {
	version   int
	canonical map[string][]string
	lookup    map[string]string
}

// Default 内置别名表
func Default() *Table {
	t, err := Parse(defaultAliases)
	if err != nil {
		panic(fmt.Sprintf("内置别名表无效: %v", err))
	}
	return t
}

// Load 从 TOML（或 .yaml/.yml）文件加载别名表；path 为空时返回内置表
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取别名表失败: %w", err)
	}
	var t *Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err = ParseYAML(data)
	default:
		t, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse 解析 TOML 格式的别名表
func Parse(data []byte) (*Table, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析别名表失败: %w", err)
	}
	return New(f.Version, f.Canonical)
}

// ParseYAML 解析 YAML 格式的别名表，结构与 TOML 相同
func ParseYAML(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析别名表失败: %w", err)
	}
	return New(f.Version, f.Canonical)
}

// New 由 canonical → synonyms 构建别名表并校验冲突
func New(version int, canonical map[string][]string) (*Table, error) {
	t := &Table{
		version:   version,
		canonical: make(map[string][]string, len(canonical)),
		lookup:    make(map[string]string),
	}

	// 模板标签自身视为已占用，不能再作为其他标签的同义词
	owners := make(map[string]string, len(canonical))
	for label := range canonical {
		key := strings.TrimSpace(label)
		if key == "" {
			return nil, fmt.Errorf("%w: empty canonical label", ErrConflict)
		}
		owners[key] = key
	}

	labels := make([]string, 0, len(canonical))
	for label := range canonical {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		key := strings.TrimSpace(label)
		synonyms := make([]string, 0, len(canonical[label]))
		for _, syn := range canonical[label] {
			s := strings.TrimSpace(syn)
			if s == "" || s == key {
				continue
			}
			if owner, ok := owners[s]; ok && owner != key {
				return nil, fmt.Errorf("%w: %q is claimed by both %q and %q", ErrConflict, s, owner, key)
			}
			owners[s] = key
			t.lookup[s] = key
			synonyms = append(synonyms, s)
		}
		t.canonical[key] = synonyms
	}

	return t, nil
}

// Resolve 返回提取标签对应的模板标签；未登记的标签原样返回
func (t *Table) Resolve(category string) (label string, mapped bool) {
	c := strings.TrimSpace(category)
	if t == nil {
		return c, false
	}
	if label, ok := t.lookup[c]; ok {
		return label, true
	}
	return c, false
}

// Version 别名表版本
func (t *Table) Version() int {
	if t == nil {
		return 0
	}
	return t.version
}

// Export 导出为可序列化结构（按标签排序的拷贝）
func (t *Table) Export() File {
	out := File{Version: t.Version(), Canonical: make(map[string][]string)}
	if t == nil {
		return out
	}
	for label, syns := range t.canonical {
		out.Canonical[label] = append([]string(nil), syns...)
	}
	return out
}
