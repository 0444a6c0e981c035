package contract

import "context"

// Plotter: 外部协作方，将 Entry 序列渲染为图像工件。
// 约束：
//  1. 只读取 Numbers 非空的 Entry，按 Classification 选择颜色；
//  2. 不修改 entries；
//  3. 失败不影响分析与改写（由调用方降级处理）。
type Plotter interface {
	Plot(ctx context.Context, fileID FileID, dest string, entries []Entry) error
}
