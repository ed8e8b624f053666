package contract

import (
	"context"
	"io"
)

// Opener 延迟打开一个输入。打开失败属于文件级错误，由调用方决定跳过还是中止。
type Opener func() (io.ReadCloser, error)

// Reader: 输入源抽象（文件/目录/STDIN）。
// 约束：
// 1) 按声明顺序回调，目录内按字典序；
// 2) FileID 稳定且去平台差异化；
// 3) 只负责定位与打开，不做解析；
// 4) 不在内部起并发，yield 可以阻塞（背压）。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, open Opener) error) error
}
