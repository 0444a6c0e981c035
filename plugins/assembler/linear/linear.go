package linear

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"segcheck/pkg/contract"
)

// Options: 预留占位，线性装配无需配置。
type Options struct{}

type assembler struct{}

// New 从原样 JSON Options 创建线性装配器（当前忽略选项）。
func New(raw json.RawMessage) (contract.Assembler, error) {
	_ = raw
	return &assembler{}, nil
}

// Assemble 按原始行序以 "\n" 连接各行 OutputText，并追加一个结尾换行。
// 空序列产出 "\n"。非空原文却没有 OutputText 的行视为未完成标注，返回 ErrInvariantViolation。
func (a *assembler) Assemble(ctx context.Context, fileID contract.FileID, entries []contract.Entry) (io.Reader, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var b strings.Builder
	n := 1
	for i := range entries {
		n += len(entries[i].OutputText) + 1
	}
	b.Grow(n)
	for i := range entries {
		e := &entries[i]
		if e.OutputText == "" && e.OriginalText != "" {
			return nil, errors.Wrapf(contract.ErrInvariantViolation, "%s: line %d not finalized", fileID, i+1)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.OutputText)
	}
	b.WriteByte('\n')
	return strings.NewReader(b.String()), nil
}

var _ contract.Assembler = (*assembler)(nil)
