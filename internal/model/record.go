package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// YearKey 记录中表示年份的保留键
const YearKey = "year"

// ValueKind 字段值的类型
type ValueKind string

const (
	ValueNumber  ValueKind = "number"
	ValueNull    ValueKind = "null"
	ValueInvalid ValueKind = "invalid"
)

// Value 单个财务数值（数字 / null / 无法解析）
type Value struct {
	Kind   ValueKind
	Number decimal.Decimal
	Raw    string
}

// NumberValue 构造数值
func NumberValue(d decimal.Decimal) Value {
	return Value{Kind: ValueNumber, Number: d}
}

// NullValue 构造空值
func NullValue() Value {
	return Value{Kind: ValueNull}
}

// InvalidValue 构造无法解析的值，保留原始文本用于提示
func InvalidValue(raw string) Value {
	return Value{Kind: ValueInvalid, Raw: raw}
}

// IsZero 是否为精确的 0
func (v Value) IsZero() bool {
	return v.Kind == ValueNumber && v.Number.IsZero()
}

// Float64 写入单元格使用的浮点值
func (v Value) Float64() float64 {
	f, _ := v.Number.Float64()
	return f
}

func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return v.Number.String()
	case ValueNull:
		return "null"
	default:
		return v.Raw
	}
}

// MarshalJSON 数字输出为 JSON 数值，无法解析的值保留原文
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return []byte(v.Number.String()), nil
	case ValueNull:
		return []byte("null"), nil
	default:
		return json.Marshal(v.Raw)
	}
}

// Field 记录中的一个 (类别, 数值) 对
type Field struct {
	Category string
	Value    Value
}

// Record 一年的财务数据：保持原始负载中的字段顺序
type Record struct {
	Year   string
	Fields []Field
}

// MarshalJSON 输出为 {"year": 2024, "<Category>": <number|null>, ...}，保持字段顺序
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"year":`)
	if canon, ok := CanonicalYear(r.Year); ok {
		buf.WriteString(canon)
	} else {
		b, err := json.Marshal(r.Year)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}

	for _, f := range r.Fields {
		key, err := json.Marshal(f.Category)
		if err != nil {
			return nil, err
		}
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get 按类别取值（同名字段取最后一个）
func (r Record) Get(category string) (Value, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Category == category {
			return r.Fields[i].Value, true
		}
	}
	return Value{}, false
}

// CanonicalYear 规范化年份标签："2024.0" / " 2024 " / 2024 → "2024"
// 非整数数值或非数字文本返回去空格后的原文与 false
func CanonicalYear(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s, false
	}
	if f != float64(int64(f)) {
		return s, false
	}
	return strconv.FormatInt(int64(f), 10), true
}
