package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"oscarflow/pkg/contract"
)

// BackupLayout 为备份文件名中的时间格式（YYYY-MM-DD-HH-MM-SS）。
const BackupLayout = "2006-01-02-15-04-05"

const backupInfix = "_backup_copy_"

// Options: 文件系统 Writer 选项。
type Options struct {
	// BaseDir: 可选输出根目录。为空时 ArtifactID 即目标路径（可为绝对路径）；
	// 非空时 ArtifactID 必须是不越界的相对路径。
	BaseDir string `json:"base_dir,omitempty" yaml:"base_dir,omitempty"`
	// Atomic: 同目录临时文件 + fsync + rename。默认 true。
	Atomic *bool `json:"atomic,omitempty" yaml:"atomic,omitempty"`
	// Backup: 目标已存在时先改名为 <目标>_backup_copy_<时间戳>。默认 true；
	// 关闭后已存在的目标被替换。
	Backup *bool `json:"backup,omitempty" yaml:"backup,omitempty"`
	// PermFile/PermDir: 为 0 表示使用默认 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty" yaml:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty" yaml:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用 64KiB。
	BufSize int `json:"buf_size,omitempty" yaml:"buf_size,omitempty"`
}

// FS 将结果写入本地文件系统。
type FS struct {
	base    string
	atomic  bool
	backup  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
	now     func() time.Time
}

// New 创建文件系统 Writer。opts 可为 nil。
func New(opts *Options) (*FS, error) {
	if opts == nil {
		opts = &Options{}
	}
	w := &FS{
		base:    strings.TrimSpace(opts.BaseDir),
		atomic:  true,
		backup:  true,
		permF:   0o644,
		permD:   0o755,
		bufSize: 64 * 1024,
		now:     time.Now,
	}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	if opts.Backup != nil {
		w.backup = *opts.Backup
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	if opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	return w, nil
}

var _ contract.Writer = (*FS)(nil)

// Write 将 r 的全部字节写入 id 对应的目标。
// 内容先完整落到临时文件；只有在此之后才把已存在的目标改名备份并替换，
// 因此写入失败时旧输出保持原样。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := w.mapPath(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}
	if w.atomic {
		return w.writeAtomic(ctx, dest, r)
	}
	if _, err := w.backupAside(dest); err != nil {
		return err
	}
	return w.writeOverwrite(ctx, dest, r)
}

// mapPath: Clean + 可选 Join + 越界校验。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(strings.TrimSpace(string(id)))
	if rel == "." || rel == "" || strings.HasSuffix(string(id), "/") {
		return "", contract.ErrPathInvalid
	}
	if w.base == "" {
		return rel, nil
	}
	// 有根目录时：禁止绝对路径、父级逃逸、Windows 卷名
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", contract.ErrPathInvalid
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.base, rel), nil
}

// BackupName 返回 dest 在时刻 t 的备份路径。
func BackupName(dest string, t time.Time) string {
	return dest + backupInfix + t.Format(BackupLayout)
}

// backupAside 在 dest 已存在时将其改名为带时间戳的备份，返回备份路径（无备份时为空）。
// 同一秒内重复运行时追加序号，不覆盖更早的备份。
func (w *FS) backupAside(dest string) (string, error) {
	if !w.backup {
		return "", nil
	}
	info, err := os.Lstat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", contract.ErrPathInvalid, dest)
	}
	name := BackupName(dest, w.now())
	cand := name
	for i := 1; ; i++ {
		if _, err := os.Lstat(cand); errors.Is(err, fs.ErrNotExist) {
			break
		}
		cand = fmt.Sprintf("%s-%d", name, i)
	}
	if err := os.Rename(dest, cand); err != nil {
		return "", fmt.Errorf("backup existing output: %w", err)
	}
	return cand, nil
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func (w *FS) writeAtomic(ctx context.Context, dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	abort := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	_ = os.Chmod(tmpPath, w.permF)

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return abort(err)
	}
	if err := bw.Flush(); err != nil {
		return abort(err)
	}
	if err := tmp.Sync(); err != nil {
		return abort(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	backup, err := w.backupAside(dest)
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := osReplace(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		if backup != "" {
			_ = os.Rename(backup, dest)
		}
		return err
	}
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
