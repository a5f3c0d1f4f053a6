package keys

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"net/url"
	"sort"
	"strings"
)

// PinnedSeedValue 种子钉死模型使用的固定哨兵值。
// 对输出与种子无关的确定性模型，派生键之前把种子统一改写为它，
// 避免客户端随机种子把同一图片的缓存打散。
const PinnedSeedValue = "42"

// KeyRules 定义了缓存键派生的可配置规则。
type KeyRules struct {
	// ExcludedParams 与输出字节无关、派生前剔除的参数名
	ExcludedParams []string

	// PinnedSeedModels 种子钉死的模型名列表
	PinnedSeedModels []string

	// MaxKeyBytes 缓存键的总字节预算
	MaxKeyBytes int
}

// DefaultKeyRules 返回默认派生规则。
func DefaultKeyRules() KeyRules {
	return KeyRules{
		ExcludedParams: []string{"no-cache", "token", "referrer", "referer"},
		MaxKeyBytes:    1000,
	}
}

// seedPinned 判断模型是否属于种子钉死列表。
func (r *KeyRules) seedPinned(model string) bool {
	for _, name := range r.PinnedSeedModels {
		if strings.EqualFold(name, model) {
			return true
		}
	}
	return false
}

// excluded 判断参数名是否应在派生前剔除。
func (r *KeyRules) excluded(name string) bool {
	for _, ex := range r.ExcludedParams {
		if name == ex {
			return true
		}
	}
	return false
}

// DeriveCacheKey 从请求路径与查询参数派生确定性缓存键。
// 步骤：模型相关改写 → 剔除无关参数 → 按参数名排序 → 重组规范串 →
// 计算32位哈希 → 清洗并截断前缀 → 拼接 "前缀-哈希"。
// 纯函数，无任何 I/O，跨进程重启对相同输入产生相同结果。
func DeriveCacheKey(path string, query url.Values, rules KeyRules) string {
	if rules.MaxKeyBytes <= 0 {
		rules.MaxKeyBytes = DefaultKeyRules().MaxKeyBytes
	}

	canonical := canonicalString(path, query, rules)

	hasher := fnv.New32a()
	hasher.Write([]byte(canonical))
	suffix := hex.EncodeToString(hasher.Sum(nil))

	prefix := sanitizeKey(canonical)

	// 给 "-哈希" 留出空间后截断前缀
	budget := rules.MaxKeyBytes - len(suffix) - 1
	if len(prefix) > budget {
		prefix = prefix[:budget]
	}

	return prefix + "-" + suffix
}

// canonicalString 重组规范化的 path+query 字符串。
// 参数按名称排序保证顺序无关；同名多值保持原有顺序。
func canonicalString(path string, query url.Values, rules KeyRules) string {
	pinSeed := rules.seedPinned(query.Get("model"))

	names := make([]string, 0, len(query))
	for name := range query {
		if rules.excluded(name) {
			continue
		}
		names = append(names, name)
	}
	// 固定种子模型统一写入哨兵值，未携带seed的请求与任意seed的请求共享同一个键
	if pinSeed && !query.Has("seed") {
		names = append(names, "seed")
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(path)
	for i, name := range names {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		values := query[name]
		if name == "seed" && pinSeed {
			values = []string{PinnedSeedValue}
		}
		for j, value := range values {
			if j > 0 {
				sb.WriteByte('&')
			}
			fmt.Fprintf(&sb, "%s=%s", name, value)
		}
	}

	return sb.String()
}

// sanitizeKey 把规范串清洗成可用作存储键的标识符。
// 路径分隔符与保留字符统一替换为下划线。
func sanitizeKey(s string) string {
	replaced := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)

	return strings.Trim(replaced, "_")
}
