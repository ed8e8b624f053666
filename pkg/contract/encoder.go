package contract

import (
	"context"
	"io"
)

// Encoder 将 Result 序列化为字节流，交给 Writer 持久化。
type Encoder interface {
	Encode(ctx context.Context, res Result) (io.Reader, error)
}

// Decoder 为 Encoder 的逆过程（下游消费，如绘图）。
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (Result, error)
}
