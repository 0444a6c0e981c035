package contract

import (
	"context"
	"io"
)

// Splitter: 将单文件字节流按行拆分并解析为有序 Entry 序列。
// 约束：
// 1) 不跨文件合并；
// 2) 一行对应一个 Entry，顺序与原文件一致，不丢行、不插行；
// 3) 无法解析的行不是错误，Numbers 置空并保留原文；
// 4) 无内部并发、幂等。
type Splitter interface {
	Split(ctx context.Context, fileID FileID, r io.Reader) ([]Entry, error)
}
