package keys

import (
	"fmt"
	"strings"

	"imgcache/internal/domain/models"
)

// imageFingerprintLen 分桶时纳入的参考图指纹前缀长度。
const imageFingerprintLen = 8

// DeriveBucket 从生成参数派生语义缓存的隔离桶。
// 桶串始终以 "{width}x{height}" 开头；seed、nologo、参考图指纹只在
// 调用方显式提供时追加，且组装顺序固定。显式值总是产生隔离，
// 而从不变化这些参数的调用方不会把缓存打散。
func DeriveBucket(params models.GenerateParams) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%dx%d", params.Width, params.Height)

	if params.Seed != nil {
		fmt.Fprintf(&sb, "_seed%d", *params.Seed)
	}

	if params.NoLogo != nil {
		fmt.Fprintf(&sb, "_nologo%t", *params.NoLogo)
	}

	if params.HasImage() {
		fp := params.ImageFingerprint()
		if len(fp) > imageFingerprintLen {
			fp = fp[:imageFingerprintLen]
		}
		sb.WriteString("_img")
		sb.WriteString(fp)
	}

	return sb.String()
}
