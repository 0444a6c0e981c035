// Package none 提供不绘图的 Plotter：每次调用都报告后端不可用。
package none

import (
	"context"

	"github.com/cockroachdb/errors"

	"segcheck/pkg/contract"
)

type plotter struct{}

// New 返回空实现。
func New() contract.Plotter { return plotter{} }

func (plotter) Plot(ctx context.Context, fileID contract.FileID, dest string, entries []contract.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrap(contract.ErrPlotUnavailable, "no plotting backend configured")
}
