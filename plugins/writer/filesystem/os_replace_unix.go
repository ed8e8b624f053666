//go:build !windows

package filesystem

import "os"

// osReplace: POSIX rename 在同一文件系统内是原子的。
func osReplace(tmpPath, dest string) error { return os.Rename(tmpPath, dest) }

// syncDir 对父目录 fsync，使 rename 的元数据落盘。
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
