package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"oscarflow/pkg/contract"
)

// BenchmarkWrite 不同输入尺寸下测量写入性能（关闭备份，避免累积文件）。
func BenchmarkWrite(b *testing.B) {
	off := false
	for _, sz := range []int{1024, 1024 * 1024} {
		b.Run(fmt.Sprintf("size=%d", sz), func(b *testing.B) {
			data := bytes.Repeat([]byte("a"), sz)
			w, err := New(&Options{BaseDir: b.TempDir(), Backup: &off})
			if err != nil {
				b.Fatalf("创建 Writer 失败: %v", err)
			}
			id := contract.ArtifactID("out.json")
			ctx := context.Background()
			b.ReportAllocs()
			b.SetBytes(int64(sz))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := w.Write(ctx, id, bytes.NewReader(data)); err != nil {
					b.Fatalf("写入失败: %v", err)
				}
			}
		})
	}
}
