// Package geometry 提供二维线段相交判定（方向叉积 + 容差共线检查）。
// 所有函数均为纯函数；输入需为有限值（NaN/Inf 由上游解析阶段排除）。
package geometry

import (
	"math"

	"segcheck/pkg/contract"
)

// Epsilon 为共线判定与包围盒包含检查的固定容差，与坐标量级无关。
const Epsilon = 1e-9

// Point 为二维点（值类型）。
type Point struct {
	X, Y float64
}

// Segment 为由起点、终点确定的有限线段（值类型）。
type Segment struct {
	Start, End Point
}

// SegmentFromNumbers 由 (x1, y1, x2, y2) 构造线段。
func SegmentFromNumbers(n contract.Numbers) Segment {
	return Segment{Start: Point{X: n[0], Y: n[1]}, End: Point{X: n[2], Y: n[3]}}
}

// Midpoint 返回线段中点。
func (s Segment) Midpoint() Point {
	return Point{X: (s.Start.X + s.End.X) / 2, Y: (s.Start.Y + s.End.Y) / 2}
}

// Orientation 返回 (q-p) × (r-p)：正为逆时针，负为顺时针，接近 0 为共线。
func Orientation(p, q, r Point) float64 {
	return (q.X-p.X)*(r.Y-p.Y) - (q.Y-p.Y)*(r.X-p.X)
}

// OnSegment 报告 q 是否落在 p、r 张成的包围盒内（两轴各放宽 Epsilon）。
// 仅在 p、q、r 已判定共线时才有“在线段上”的含义。
func OnSegment(p, q, r Point) bool {
	return within(q.X, p.X, r.X) && within(q.Y, p.Y, r.Y)
}

func within(v, a, b float64) bool {
	return math.Min(a, b)-Epsilon <= v && v <= math.Max(a, b)+Epsilon
}

func collinear(o float64) bool { return math.Abs(o) < Epsilon }

// straddles: 严格异号（任一为 0 均不算跨立）。
func straddles(a, b float64) bool {
	return (a > 0 && b < 0) || (a < 0 && b > 0)
}

// SegmentsIntersect 判定两线段是否相交（含端点接触与共线重叠）。
func SegmentsIntersect(a, b Segment) bool {
	p1, q1 := a.Start, a.End
	p2, q2 := b.Start, b.End

	o1 := Orientation(p1, q1, p2)
	o2 := Orientation(p1, q1, q2)
	o3 := Orientation(p2, q2, p1)
	o4 := Orientation(p2, q2, q1)

	if straddles(o1, o2) && straddles(o3, o4) {
		return true
	}

	switch {
	case collinear(o1) && OnSegment(p1, p2, q1):
		return true
	case collinear(o2) && OnSegment(p1, q2, q1):
		return true
	case collinear(o3) && OnSegment(p2, p1, q2):
		return true
	case collinear(o4) && OnSegment(p2, q1, q2):
		return true
	}
	return false
}
