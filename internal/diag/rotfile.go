package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

const currentName = "segcheck-current.txt"

// RotatingFile 将日志行写入指定目录，并按文件大小轮转。
// - 当前文件固定名：segcheck-current.txt
// - 轮转：当 size+len(line) 超过 maxBytes 时，将当前文件改名为 segcheck-<UTC 时间戳>.txt 并重建当前文件。
type RotatingFile struct {
	fs       afero.Fs
	dir      string
	maxBytes int64
	mu       sync.Mutex
	f        afero.File
	curSize  int64
}

// NewRotatingFile 在操作系统文件系统上创建轮转文件。
func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	return NewRotatingFileFs(afero.NewOsFs(), dir, maxBytes)
}

// NewRotatingFileFs 在给定文件系统上创建轮转文件。
func NewRotatingFileFs(fs afero.Fs, dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024 // 10 MiB 默认
	}
	return &RotatingFile{fs: fs, dir: dir, maxBytes: maxBytes}
}

func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	lineLen := int64(len(b) + 1) // 包含换行
	if err := w.ensureOpen(); err != nil {
		return err
	}
	if w.curSize > 0 && w.curSize+lineLen > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(append(b, '\n'))
	w.curSize += int64(n)
	return errors.Wrap(err, "write log line")
}

func (w *RotatingFile) ensureOpen() error {
	if w.f != nil {
		return nil
	}
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create log dir %s", w.dir)
	}
	name := filepath.Join(w.dir, currentName)
	f, err := w.fs.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", name)
	}
	w.f = f
	w.curSize = 0
	if st, err := f.Stat(); err == nil {
		w.curSize = st.Size()
	}
	return nil
}

func (w *RotatingFile) rotate() error {
	if w.f == nil {
		return w.ensureOpen()
	}
	_ = w.f.Close()
	w.f = nil
	cur := filepath.Join(w.dir, currentName)
	// 纳秒时间戳，同秒内多次轮转不互相覆盖
	ts := time.Now().UTC().Format("20060102-150405.000000000")
	rotated := filepath.Join(w.dir, fmt.Sprintf("segcheck-%s.txt", ts))
	if err := w.fs.Rename(cur, rotated); err != nil {
		return errors.Wrap(err, "rename rotated file")
	}
	return w.ensureOpen()
}

// Close 关闭当前打开的文件句柄
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
