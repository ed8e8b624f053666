package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径：反斜杠统一为正斜杠，再做 path.Clean。
// 保留相对/绝对语义，不做隐式绝对化。
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}
