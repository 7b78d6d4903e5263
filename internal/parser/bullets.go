package parser

import (
	"strings"

	"finfill/internal/model"
)

// ParseBulletText 解析按年分段的项目符号文本
//
//	2022
//	• Revenue: 1,200,000
//	• Cost of Goods Sold (COGS):
//	2023
//	...
//
// 缺失的数值按 0 记录；首个年份行之前的内容与没有任何条目的年份忽略。
func ParseBulletText(text string) []model.Record {
	var records []model.Record
	var current *model.Record

	flush := func() {
		if current != nil && current.Year != "" && len(current.Fields) > 0 {
			records = append(records, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := yearLineRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &model.Record{Year: m[1]}
			continue
		}

		if current == nil {
			continue
		}

		m := bulletLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		category := strings.TrimSpace(m[1])
		if category == "" {
			continue
		}

		v := model.InvalidValue(strings.TrimSpace(m[2]))
		if d, _, ok := ParseNumberText(m[2]); ok {
			v = model.NumberValue(d)
		}
		current.Fields = append(current.Fields, model.Field{Category: category, Value: v})
	}
	flush()

	return records
}

func looksLikeBulletText(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if yearLineRe.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}
