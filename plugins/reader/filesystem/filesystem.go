package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"oscarflow/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 256KiB。
	BufSize int `json:"buf_size" yaml:"buf_size"`
	// ExcludeDirNames: 扫描目录时跳过这些目录名（基名，大小写不敏感）。
	ExcludeDirNames []string `json:"exclude_dir_names" yaml:"exclude_dir_names"`
	// Extensions: 目录扫描时仅接受这些扩展名（如 ".oscar"）；为空接受全部。
	// 显式给出的单文件 root 不受影响。
	Extensions []string `json:"extensions" yaml:"extensions"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
// 打开延迟到 Opener 被调用时：打不开的文件在调用方表现为文件级失败，不会中断遍历。
type FileSystem struct {
	bufSize    int
	excludeDir map[string]struct{}
	exts       map[string]struct{}
}

const defaultBuf = 256 * 1024

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	b := defaultBuf
	ex := make(map[string]struct{})
	exts := make(map[string]struct{})
	if opts != nil {
		if opts.BufSize > 0 {
			b = opts.BufSize
		}
		for _, name := range opts.ExcludeDirNames {
			if name = strings.TrimSpace(name); name != "" {
				ex[strings.ToLower(name)] = struct{}{}
			}
		}
		for _, e := range opts.Extensions {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts[e] = struct{}{}
		}
	}
	return &FileSystem{bufSize: b, excludeDir: ex, exts: exts}
}

// Iterate 按声明顺序遍历 roots，目录内按字典序（先子目录后文件）。
// roots 为空或仅为 "-" 时读取 STDIN。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, open contract.Opener) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		stdin := func() (io.ReadCloser, error) {
			return newBufferedCloser(io.NopCloser(os.Stdin), r.bufSize), nil
		}
		return yield(contract.FileID("stdin"), stdin)
	}
	for _, s := range roots {
		if s == "-" {
			return fmt.Errorf("%w: stdin '-' cannot be mixed with other inputs", contract.ErrConfig)
		}
	}
	for _, root := range roots {
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.FileID, contract.Opener) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := contract.NormalizeFileID(root)
	info, err := os.Lstat(root)
	if err != nil {
		// 缺失的输入交由调用方按文件级失败处理
		return yield(id, failed(err))
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := os.Stat(root)
		if err != nil {
			return yield(id, failed(err))
		}
		// 目录符号链接不跟随
		if !t.Mode().IsRegular() {
			return nil
		}
		return yield(id, r.opener(root))
	}
	if info.IsDir() {
		return r.walkDir(ctx, root, yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return yield(id, r.opener(root))
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, yield func(contract.FileID, contract.Opener) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(contract.NormalizeFileID(dir), failed(err))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), yield); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !r.accept(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		switch {
		case e.Type()&os.ModeSymlink != 0:
			t, err := os.Stat(p)
			if err != nil {
				if err := yield(contract.NormalizeFileID(p), failed(err)); err != nil {
					return err
				}
				continue
			}
			if !t.Mode().IsRegular() {
				continue
			}
		case !e.Type().IsRegular():
			// 设备、管道等
			continue
		}
		if err := yield(contract.NormalizeFileID(p), r.opener(p)); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) accept(name string) bool {
	if len(r.exts) == 0 {
		return true
	}
	_, ok := r.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (r *FileSystem) opener(p string) contract.Opener {
	return func() (io.ReadCloser, error) {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		return newBufferedCloser(f, r.bufSize), nil
	}
}

func failed(err error) contract.Opener {
	if err == nil {
		err = errors.New("unreadable input")
	}
	return func() (io.ReadCloser, error) { return nil, err }
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = defaultBuf
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
