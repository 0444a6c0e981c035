// Package pairing 实现配对与标注：按原始位置两两配对 (0,1),(2,3)…，
// 对两侧均解析成功的对执行几何判定，写入结果标签与分类，最后为每一行定稿 OutputText。
package pairing

import (
	"context"

	"golang.org/x/sync/errgroup"

	"segcheck/internal/geometry"
	"segcheck/pkg/contract"
)

// Report 为一次配对过程的计数。
type Report struct {
	// Pairs: 配对循环遍历的对数（len/2，奇数时末行不参与）。
	Pairs int
	// Compared: 两侧均为段行、实际执行了几何判定的对数。
	Compared int
	// Intersecting: 其中判定为相交的对数。
	Intersecting int
}

// Engine 为配对引擎；Concurrency<=1 时顺序执行。
type Engine struct {
	Concurrency int
}

// AnalyzePairs 顺序执行配对、判定与定稿，原地修改 entries。
func AnalyzePairs(entries []contract.Entry) Report {
	rep, _ := Engine{}.Run(context.Background(), entries)
	return rep
}

// Run 对 entries 原地执行配对与定稿。
// 每一对只写自己的两个下标，因此并发执行时无需加锁；行序始终不变。
// ctx 取消时返回 ctx.Err()，此时 entries 处于未定稿状态，调用方不得写出。
func (e Engine) Run(ctx context.Context, entries []contract.Entry) (Report, error) {
	pairs := len(entries) / 2
	results := make([]pairResult, pairs)

	if e.Concurrency <= 1 || pairs < 2 {
		for k := 0; k < pairs; k++ {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
			results[k] = evaluate(entries, 2*k)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.Concurrency)
		for k := 0; k < pairs; k++ {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[k] = evaluate(entries, 2*k)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Report{}, err
		}
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
	}

	rep := Report{Pairs: pairs}
	for _, r := range results {
		if r.compared {
			rep.Compared++
		}
		if r.intersects {
			rep.Intersecting++
		}
	}
	Finalize(entries)
	return rep, nil
}

type pairResult struct {
	compared   bool
	intersects bool
}

// evaluate 处理下标 i 与 i+1 组成的一对。任一侧未解析时不做判定、不打标签。
func evaluate(entries []contract.Entry, i int) pairResult {
	first, second := &entries[i], &entries[i+1]
	if first.Numbers == nil || second.Numbers == nil {
		return pairResult{}
	}
	intersects := geometry.SegmentsIntersect(
		geometry.SegmentFromNumbers(*first.Numbers),
		geometry.SegmentFromNumbers(*second.Numbers),
	)
	label, class := contract.LabelNotIntersecting, contract.NonIntersecting
	if intersects {
		label, class = contract.LabelIntersecting, contract.Intersecting
	}
	for _, e := range []*contract.Entry{first, second} {
		e.Label = label
		e.Classification = class
	}
	return pairResult{compared: true, intersects: intersects}
}

// Finalize 为所有行设置 OutputText（在全部配对完成之后调用）：
//   - 本次得到结果标签：CanonicalText + " " + Label；
//   - 仅解析成功：CanonicalText；
//   - 未解析：OriginalText 原样透传。
func Finalize(entries []contract.Entry) {
	for i := range entries {
		e := &entries[i]
		switch {
		case e.Label != "" && e.CanonicalText != "":
			e.OutputText = e.CanonicalText + " " + e.Label
		case e.CanonicalText != "":
			e.OutputText = e.CanonicalText
		default:
			e.OutputText = e.OriginalText
		}
	}
}
