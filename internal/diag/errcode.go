package diag

import (
	"context"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"segcheck/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown      Code = "unknown"
	CodeInputMissing Code = "input_missing"
	CodeIO           Code = "io"
	CodeInvariant    Code = "invariant"
	CodePlot         Code = "plot"
	CodeCancel       Code = "cancel"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrInputMissing) || errors.Is(err, contract.ErrNotRegular) {
		return CodeInputMissing
	}
	if errors.Is(err, contract.ErrPlotUnavailable) || errors.Is(err, contract.ErrNothingToPlot) {
		return CodePlot
	}
	if errors.Is(err, contract.ErrInvariantViolation) ||
		errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var lerr *os.LinkError
	if errors.As(err, &lerr) {
		return CodeIO
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
