package mathtools

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n(.*?)\\n\\s*```\\s*$")

// CleanJSONContent 去掉模型输出外层的 markdown 代码块标记
func CleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	if matches := fencePattern.FindStringSubmatch(content); len(matches) > 1 {
		content = matches[1]
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// RepairJSONObject 尽力把模型输出修复成合法的 JSON 对象
// 只处理以 { 开头的内容，其余原样返回，由调用方按纯文本处理
func RepairJSONObject(content string) string {
	s := CleanJSONContent(content)
	if !strings.HasPrefix(s, "{") {
		return s
	}
	if json.Valid([]byte(s)) {
		return s
	}
	out, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return s
	}
	return out
}

// RepairToolArguments 修复工具调用参数
// 参数可能为空、被包在代码块里，或者混有前后缀文本
func RepairToolArguments(args string) string {
	s := strings.TrimSpace(args)
	if s == "" {
		return "{}"
	}
	if json.Valid([]byte(s)) {
		return s
	}

	s = CleanJSONContent(s)
	i := strings.IndexByte(s, '{')
	j := strings.LastIndexByte(s, '}')
	if i >= 0 && j >= i {
		s = s[i : j+1]
	}
	if json.Valid([]byte(s)) {
		return s
	}

	out, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return s
	}
	return out
}
