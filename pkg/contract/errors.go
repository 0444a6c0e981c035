package contract

import "github.com/cockroachdb/errors"

// 最小错误分类（哨兵），供上层做退出码与日志分类判定。
var (
	// ErrInputMissing: 输入路径不存在。
	ErrInputMissing = errors.New("input missing")
	// ErrNotRegular: 输入路径存在但不是常规文件。
	ErrNotRegular = errors.New("input is not a regular file")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: 调用参数非法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrPlotUnavailable: 绘图后端不可用（能力标记关闭）。
	ErrPlotUnavailable = errors.New("plot backend unavailable")
)

// ErrNothingToPlot: 没有可绘制的已解析线段。
var ErrNothingToPlot = errors.New("no parsed segments to plot")
