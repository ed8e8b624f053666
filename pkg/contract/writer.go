package contract

import (
	"context"
	"io"
)

// Writer: 将编码后的结果以流式方式持久化到目标介质。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 已存在的目标不得被覆盖丢失（由实现决定备份策略）；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}
