package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"segcheck/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出目录；为空表示原地改写（id 即目标路径）。
	// 非空时目标为 OutputDir/<base(id)>，原文件保持不变。
	OutputDir string `json:"output_dir,omitempty"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile/PermDir: 新建文件/目录的权限；为 0 表示使用默认。
	// 已存在的目标文件沿用其原有权限。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty"`
}

type FS struct {
	fs      afero.Fs
	osBack  bool
	root    string
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建文件系统 Writer 实现；fs 为 nil 时使用操作系统文件系统。
func New(fs afero.Fs, opts *Options) (*FS, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if opts == nil {
		opts = &Options{}
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	_, osBack := fs.(*afero.OsFs)
	return &FS{
		fs:      fs,
		osBack:  osBack,
		root:    strings.TrimSpace(opts.OutputDir),
		atomic:  atomic,
		permF:   pf,
		permD:   pd,
		bufSize: bsz,
	}, nil
}

var _ contract.Writer = (*FS)(nil)

// Write 将 r 的全部字节写入到基于 id 映射的目标路径。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	dest, err := w.mapPath(id)
	if err != nil {
		return err
	}
	if w.root != "" {
		if err := w.fs.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
			return errors.Wrapf(err, "mkdir %s", filepath.Dir(dest))
		}
	}
	perm := w.permF
	if info, err := w.fs.Stat(dest); err == nil {
		if !info.Mode().IsRegular() {
			return errors.Wrapf(contract.ErrNotRegular, "%s", dest)
		}
		perm = info.Mode().Perm()
	}

	if w.atomic {
		return w.writeAtomic(ctx, dest, perm, r)
	}
	return w.writeOverwrite(ctx, dest, perm, r)
}

// mapPath: 原地模式返回清理后的 id；输出目录模式仅保留文件名。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	p := filepath.Clean(filepath.FromSlash(string(id)))
	if strings.TrimSpace(string(id)) == "" || p == "." {
		return "", errors.Wrapf(contract.ErrPathInvalid, "%q", string(id))
	}
	if w.root == "" {
		return p, nil
	}
	base := filepath.Base(p)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", errors.Wrapf(contract.ErrPathInvalid, "%q", string(id))
	}
	return filepath.Join(w.root, base), nil
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, perm os.FileMode, r io.Reader) error {
	f, err := w.fs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "open %s", dest)
	}
	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", dest)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "flush %s", dest)
	}
	return errors.Wrapf(f.Close(), "close %s", dest)
}

func (w *FS) writeAtomic(ctx context.Context, dest string, perm os.FileMode, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := afero.TempFile(w.fs, dir, ".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temp in %s", dir)
	}
	tmpPath := tmp.Name()
	fail := func(err error, op string) error {
		_ = tmp.Close()
		_ = w.fs.Remove(tmpPath)
		return errors.Wrapf(err, "%s %s", op, dest)
	}

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return fail(err, "write")
	}
	if err := bw.Flush(); err != nil {
		return fail(err, "flush")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "sync")
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpPath)
		return errors.Wrapf(err, "close %s", tmpPath)
	}
	if err := w.fs.Chmod(tmpPath, perm); err != nil {
		_ = w.fs.Remove(tmpPath)
		return errors.Wrapf(err, "chmod %s", tmpPath)
	}
	if err := w.replace(tmpPath, dest); err != nil {
		_ = w.fs.Remove(tmpPath)
		return errors.Wrapf(err, "replace %s", dest)
	}
	// 最佳努力：在部分平台同步父目录，提升崩溃安全性
	if w.osBack {
		_ = syncDir(dir)
	}
	return nil
}

// replace: 操作系统文件系统走平台特定的原子替换，其余后端使用 Fs.Rename。
func (w *FS) replace(tmpPath, dest string) error {
	if w.osBack {
		return osReplace(tmpPath, dest)
	}
	return w.fs.Rename(tmpPath, dest)
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
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	return cr.r.Read(p)
}
