package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	yearLineRe   = regexp.MustCompile(`^(?:FY\s*)?(\d{4})\s*:?$`)
	bulletLineRe = regexp.MustCompile(`^[•\-\*·]\s*(.+?):\s*(.*)$`)
	numberCharRe = regexp.MustCompile(`[^0-9.\-]`)
)

// StripCodeFence 取出 LLM 输出中 Markdown 代码块的内容
// 代码块可以出现在说明文字之后，例如 "数据如下:\n```json\n{...}\n```"
// 没有代码块时原样返回去掉首尾空白的文本
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	body := s[open+3:]
	nl := strings.Index(body, "\n")
	if nl < 0 {
		return strings.TrimSpace(strings.Trim(body, "`"))
	}
	body = body[nl+1:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// LocateJSON 在文本中定位 JSON 对象或数组
// 逐个尝试 '{' / '[' 起点，优先返回像记录的值（对象，或空数组/对象数组），
// 其次返回第一个合法 JSON 值；都不合法时返回第一个起点到最后一个闭合符之间的片段，
// 交给解码阶段报告具体错误
func LocateJSON(text string) (string, bool) {
	s := StripCodeFence(text)

	fallback := ""
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		candidate, ok := decodeOneValue(s[i:])
		if !ok {
			continue
		}
		if looksLikeRecords(candidate) {
			return candidate, true
		}
		if fallback == "" {
			fallback = candidate
		}
	}
	if fallback != "" {
		return fallback, true
	}
	return outermostSpan(s)
}

// decodeOneValue 解码 s 开头的一个 JSON 值，返回其原始文本
func decodeOneValue(s string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", false
	}
	return s[:dec.InputOffset()], true
}

func looksLikeRecords(candidate string) bool {
	if strings.HasPrefix(candidate, "{") {
		return true
	}
	inner := strings.TrimSpace(strings.TrimPrefix(candidate, "["))
	return strings.HasPrefix(inner, "]") || strings.HasPrefix(inner, "{")
}

func outermostSpan(s string) (string, bool) {
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	start, closing := objStart, "}"
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start, closing = arrStart, "]"
	}
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(s, closing)
	if end < start {
		return "", false
	}
	return s[start : end+1], true
}

// ParseNumberText 解析文本形式的金额
// 支持格式: "1,234.50" / "$ 12" / "(300)"（会计负数）/ "-4.5"
// 空文本返回 ok=true 与 empty=true
func ParseNumberText(text string) (d decimal.Decimal, empty bool, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, true, true
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	cleaned := numberCharRe.ReplaceAllString(s, "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.Zero, false, false
	}
	// 去掉的字符中若包含字母，说明不是金额（例如 "n/a"、"12 months"）
	if containsLetter(s) {
		return decimal.Zero, false, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false, false
	}
	if negative {
		d = d.Neg()
	}
	return d, false, true
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
