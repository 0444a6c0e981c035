package contract

import (
	"context"
	"io"
)

// Reader: 输入源抽象（文件系统）。
// 约束：
// 1) Stat 仅做存在性/类型检查，不打开文件；不存在返回 ErrInputMissing，非常规文件返回 ErrNotRegular；
// 2) Open 返回原始字节流，不做解码/业务解析；
// 3) 不在内部起并发。
type Reader interface {
	Stat(ctx context.Context, path string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
