package oracle

import "strings"

// StripCodeFence 去掉模型输出外层的 Markdown 代码围栏（```json ... ```）。
// 所有 JSON 解析前统一过这一步：模型无论是否加围栏，解析行为一致。
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}
