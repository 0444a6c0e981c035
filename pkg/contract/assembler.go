package contract

import (
	"context"
	"io"
)

// Assembler: 将已定稿的 Entry 序列序列化为最终文本（单文件）。
// 约束：
//  1. 按原始顺序输出每个 Entry 的 OutputText；
//  2. 行间以单个 '\n' 分隔，末尾恰好一个 '\n'；
//  3. 不引入跨文件状态；
//  4. 存在未定稿的 Entry 时返回 ErrInvariantViolation。
type Assembler interface {
	Assemble(ctx context.Context, fileID FileID, entries []Entry) (io.Reader, error)
}
