package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"segcheck/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
}

// FileSystem 实现基于 afero.Fs 的 Reader。
// 仅接受常规文件（符号链接按目标判定）；目录与设备文件返回 ErrNotRegular。
type FileSystem struct {
	fs      afero.Fs
	bufSize int
}

// New 创建 FileSystem Reader；fs 为 nil 时使用操作系统文件系统。
func New(fs afero.Fs, opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	if fs == nil {
		fs = afero.NewOsFs()
	}
	b := defaultBuf
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	return &FileSystem{fs: fs, bufSize: b}
}

var _ contract.Reader = (*FileSystem)(nil)

// Stat 检查 path 是否为可读取的常规文件。
func (r *FileSystem) Stat(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := r.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// 保留底层 PathError，同时标记为 ErrInputMissing
			return errors.Mark(errors.Wrapf(err, "stat %s", path), contract.ErrInputMissing)
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return errors.Wrapf(contract.ErrNotRegular, "%s (%s)", path, info.Mode().Type())
	}
	return nil
}

// Open 打开 path 并以缓冲 ReadCloser 返回；调用方负责 Close。
func (r *FileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := r.Stat(ctx, path); err != nil {
		return nil, err
	}
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return newBufferedCloser(f, r.bufSize), nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
