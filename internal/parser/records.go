package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"finfill/internal/model"
)

// ErrMalformedInput 记录负载既不是带 year 的对象，也不是此类对象的数组
var ErrMalformedInput = errors.New("malformed record input")

// ParseRecords 解析记录负载
// 依次尝试: JSON（可被代码块或说明文字包裹）→ 按年分段的项目符号文本
func ParseRecords(data []byte) ([]model.Record, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedInput)
	}

	if payload, ok := LocateJSON(text); ok {
		records, err := DecodeJSONRecords([]byte(payload))
		if err == nil {
			return records, nil
		}
		// JSON 明确有误时直接报错，不再回退到文本格式
		if !looksLikeBulletText(text) {
			return nil, err
		}
	}

	records := ParseBulletText(text)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no JSON records or yearly text blocks found", ErrMalformedInput)
	}
	return records, nil
}

// DecodeJSONRecords 解析单个对象或对象数组，保持字段顺序
func DecodeJSONRecords(payload []byte) ([]model.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("%w: expected object or array, got %v", ErrMalformedInput, tok)
	}

	switch delim {
	case '{':
		rec, err := decodeRecordBody(dec, 0)
		if err != nil {
			return nil, err
		}
		return []model.Record{rec}, nil
	case '[':
		records := make([]model.Record, 0)
		for idx := 0; dec.More(); idx++ {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedInput, idx, err)
			}
			if d, ok := tok.(json.Delim); !ok || d != '{' {
				return nil, fmt.Errorf("%w: record %d is not an object", ErrMalformedInput, idx)
			}
			rec, err := decodeRecordBody(dec, idx)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if _, err := dec.Token(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %v", ErrMalformedInput, delim)
	}
}

// decodeRecordBody 读取 '{' 之后的键值对直到 '}'
func decodeRecordBody(dec *json.Decoder, idx int) (model.Record, error) {
	rec := model.Record{}
	hasYear := false

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return rec, fmt.Errorf("%w: record %d: %v", ErrMalformedInput, idx, err)
		}
		key, ok := tok.(string)
		if !ok {
			return rec, fmt.Errorf("%w: record %d: unexpected key %v", ErrMalformedInput, idx, tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return rec, fmt.Errorf("%w: record %d key %q: %v", ErrMalformedInput, idx, key, err)
		}

		if key == model.YearKey {
			year, err := decodeYear(raw)
			if err != nil {
				return rec, fmt.Errorf("%w: record %d: %v", ErrMalformedInput, idx, err)
			}
			rec.Year = year
			hasYear = true
			continue
		}

		rec.Fields = append(rec.Fields, model.Field{
			Category: strings.TrimSpace(key),
			Value:    decodeValue(raw),
		})
	}

	if _, err := dec.Token(); err != nil {
		return rec, fmt.Errorf("%w: record %d: %v", ErrMalformedInput, idx, err)
	}
	if !hasYear {
		return rec, fmt.Errorf("%w: record %d has no %q key", ErrMalformedInput, idx, model.YearKey)
	}
	return rec, nil
}

func decodeYear(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errors.New("empty year")
	}

	var text string
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", fmt.Errorf("invalid year: %v", err)
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(trimmed)
	default:
		return "", fmt.Errorf("year must be a number or numeric string, got %s", string(trimmed))
	}

	year, _ := model.CanonicalYear(text)
	if year == "" {
		return "", errors.New("empty year")
	}
	return year, nil
}

func decodeValue(raw json.RawMessage) model.Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return model.NullValue()
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return model.InvalidValue(string(trimmed))
		}
		d, empty, ok := ParseNumberText(text)
		if empty {
			return model.NullValue()
		}
		if !ok {
			return model.InvalidValue(text)
		}
		return model.NumberValue(d)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		d, err := decimal.NewFromString(string(trimmed))
		if err != nil {
			return model.InvalidValue(string(trimmed))
		}
		return model.NumberValue(d)
	default:
		return model.InvalidValue(string(trimmed))
	}
}
