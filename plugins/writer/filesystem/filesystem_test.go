package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oscarflow/pkg/contract"
)

func fixedClock(w *FS, ts string) {
	t, _ := time.Parse(BackupLayout, ts)
	w.now = func() time.Time { return t }
}

func noTmp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("tmp file not cleaned: %s", e.Name())
		}
	}
}

// UT-WRT-01: 原子写入到绝对路径
func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	w, err := New(nil)
	require.NoError(t, err)
	dest := filepath.Join(dir, "nested", "out.json")
	require.NoError(t, w.Write(context.Background(), contract.ArtifactID(dest), bytes.NewBufferString("data")))
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))
	noTmp(t, filepath.Dir(dest))
}

// UT-WRT-02: 目标已存在时先改名备份，再写入新内容
func TestWriteBacksUpExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(dest, []byte("v1"), 0o644))

	w, _ := New(nil)
	fixedClock(w, "2024-03-09-17-05-42")
	require.NoError(t, w.Write(context.Background(), contract.ArtifactID(dest), bytes.NewBufferString("v2")))

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(b))
	old, err := os.ReadFile(dest + "_backup_copy_2024-03-09-17-05-42")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(old))

	// 同一秒再次写入：追加序号，不覆盖已有备份
	require.NoError(t, w.Write(context.Background(), contract.ArtifactID(dest), bytes.NewBufferString("v3")))
	again, err := os.ReadFile(dest + "_backup_copy_2024-03-09-17-05-42-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(again))
	noTmp(t, dir)
}

// UT-WRT-03: 源读取失败时旧输出保持原样，且不产生备份
func TestWriteFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(dest, []byte("keep"), 0o644))
	w, _ := New(nil)
	err := w.Write(context.Background(), contract.ArtifactID(dest), &errReader{})
	require.Error(t, err)
	b, _ := os.ReadFile(dest)
	assert.Equal(t, "keep", string(b))
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

// 关闭备份：直接替换
func TestWriteNoBackup(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(dest, []byte("v1"), 0o644))
	off := false
	w, _ := New(&Options{Backup: &off})
	require.NoError(t, w.Write(context.Background(), contract.ArtifactID(dest), bytes.NewBufferString("v2")))
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

// 非原子写入同样先备份
func TestWriteNonAtomic(t *testing.T) {
	dir := t.TempDir()
	off := false
	w, _ := New(&Options{BaseDir: dir, Atomic: &off, PermFile: 0o600, PermDir: 0o700, BufSize: 16})
	fixedClock(w, "2025-01-01-00-00-00")
	require.NoError(t, w.Write(context.Background(), "sub/out.json", bytes.NewBufferString("a")))
	require.NoError(t, w.Write(context.Background(), "sub/out.json", bytes.NewBufferString("b")))
	b, _ := os.ReadFile(filepath.Join(dir, "sub", "out.json"))
	assert.Equal(t, "b", string(b))
	_, err := os.Stat(filepath.Join(dir, "sub", "out.json_backup_copy_2025-01-01-00-00-00"))
	assert.NoError(t, err)
}

// 目标为目录时拒绝
func TestWriteDestIsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0o755))
	w, _ := New(&Options{BaseDir: dir})
	err := w.Write(context.Background(), "out", bytes.NewBufferString("x"))
	assert.ErrorIs(t, err, contract.ErrPathInvalid)
}

// UT-WRT-04: 路径越界
func TestWritePathInvalid(t *testing.T) {
	w, _ := New(&Options{BaseDir: t.TempDir()})
	for _, id := range []string{"../bad", "..", ".", "", "dir/"} {
		err := w.Write(context.Background(), contract.ArtifactID(id), bytes.NewBufferString("x"))
		assert.ErrorIs(t, err, contract.ErrPathInvalid, id)
	}
}

func TestWriteCanceled(t *testing.T) {
	w, _ := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Write(ctx, contract.ArtifactID(filepath.Join(t.TempDir(), "x")), bytes.NewBufferString("x"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = readerWithCtx(ctx, bytes.NewBufferString("x")).Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackupName(t *testing.T) {
	ts := time.Date(2023, 12, 31, 23, 59, 58, 0, time.UTC)
	assert.Equal(t, "out.json_backup_copy_2023-12-31-23-59-58", BackupName("out.json", ts))
}
