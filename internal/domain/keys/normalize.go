// Package keys 提供缓存键与隔离桶的派生逻辑，全部为纯函数。
package keys

import (
	"strings"
	"unicode"
)

// NormalizePrompt 将提示词规范化为嵌入输入。
// 转小写、去除标点、合并空白。该操作幂等：对已规范化的文本再做一次是空操作，
// 因此同一提示词的重复缓存会得到逐位一致的向量（取决于嵌入模型自身的确定性）。
func NormalizePrompt(prompt string) string {
	lowered := strings.ToLower(prompt)

	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsControl(r) {
			return ' '
		}
		return r
	}, lowered)

	return strings.Join(strings.Fields(stripped), " ")
}
