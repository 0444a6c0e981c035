package raster

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/spf13/afero"
	"github.com/twpayne/go-geom"
	"golang.org/x/image/font/gofont/goregular"

	"segcheck/internal/geometry"
	"segcheck/internal/lineparse"
	"segcheck/pkg/contract"
)

// Options: 画布尺寸与排版参数；零值取默认（1200x900，对应 8x6 英寸 @150dpi）。
type Options struct {
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Margin    float64 `json:"margin,omitempty"`
	FontSize  float64 `json:"font_size,omitempty"`
	LineWidth float64 `json:"line_width,omitempty"`
}

// Caps: 运行环境提供的绘图能力。Backend=false 时 Plot 直接返回 ErrPlotUnavailable。
type Caps struct {
	Backend bool
}

const (
	colorIntersecting    = "#d62728"
	colorNonIntersecting = "#2ca02c"
	colorUnclassified    = "#1f77b4"

	title = "Визуализация отрезков"
)

// Plotter 使用 gg 软件光栅化把线段渲染为 PNG。
type Plotter struct {
	fs   afero.Fs
	opt  Options
	caps Caps
	font *text.FontSource
}

var _ contract.Plotter = (*Plotter)(nil)

// New 创建 Plotter；fs 为 nil 时使用操作系统文件系统。
func New(fs afero.Fs, opts *Options, caps Caps) (*Plotter, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	o := Options{Width: 1200, Height: 900, Margin: 90, FontSize: 14, LineWidth: 3}
	if opts != nil {
		if opts.Width > 0 {
			o.Width = opts.Width
		}
		if opts.Height > 0 {
			o.Height = opts.Height
		}
		if opts.Margin > 0 {
			o.Margin = opts.Margin
		}
		if opts.FontSize > 0 {
			o.FontSize = opts.FontSize
		}
		if opts.LineWidth > 0 {
			o.LineWidth = opts.LineWidth
		}
	}
	if 2*o.Margin >= float64(o.Width) || 2*o.Margin >= float64(o.Height) {
		return nil, errors.Wrapf(contract.ErrInvalidInput, "margin %v too large for %dx%d", o.Margin, o.Width, o.Height)
	}
	p := &Plotter{fs: fs, opt: o, caps: caps}
	if caps.Backend {
		src, err := text.NewFontSource(goregular.TTF)
		if err != nil {
			return nil, errors.Wrap(err, "load font")
		}
		p.font = src
	}
	return p, nil
}

// Close 释放字体资源。
func (p *Plotter) Close() error {
	if p.font == nil {
		return nil
	}
	return p.font.Close()
}

// segment 为一条待绘制线段及其序号（在已解析线段中从 1 开始）。
type segment struct {
	index int
	seg   geometry.Segment
	class contract.Classification
}

func collect(entries []contract.Entry) []segment {
	out := make([]segment, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if !e.Parsed() {
			continue
		}
		out = append(out, segment{index: len(out) + 1, seg: geometry.SegmentFromNumbers(*e.Numbers), class: e.Classification})
	}
	return out
}

// view 把数据坐标映射到像素坐标，x/y 等比例缩放，y 轴向上。
type view struct {
	minX, minY float64
	maxX, maxY float64
	scale      float64
	offX, offY float64
	height     float64
}

func newView(segs []segment, o Options) view {
	b := geom.NewBounds(geom.XY)
	for _, s := range segs {
		b.Extend(geom.NewLineStringFlat(geom.XY, []float64{s.seg.Start.X, s.seg.Start.Y, s.seg.End.X, s.seg.End.Y}))
	}
	minX, maxX := b.Min(0), b.Max(0)
	minY, maxY := b.Min(1), b.Max(1)
	// 退化范围（单点/水平/竖直）按 1 单位扩展，并各留 5% 边距
	padX := (maxX - minX) * 0.05
	padY := (maxY - minY) * 0.05
	if maxX-minX < geometry.Epsilon {
		padX = 1
	}
	if maxY-minY < geometry.Epsilon {
		padY = 1
	}
	minX, maxX = minX-padX, maxX+padX
	minY, maxY = minY-padY, maxY+padY

	plotW := float64(o.Width) - 2*o.Margin
	plotH := float64(o.Height) - 2*o.Margin
	scale := math.Min(plotW/(maxX-minX), plotH/(maxY-minY))
	// 等比例：较短方向向两侧扩展数据范围
	dataW, dataH := plotW/scale, plotH/scale
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	return view{
		minX: cx - dataW/2, maxX: cx + dataW/2,
		minY: cy - dataH/2, maxY: cy + dataH/2,
		scale: scale, offX: o.Margin, offY: o.Margin,
		height: float64(o.Height),
	}
}

func (v view) px(p geometry.Point) (float64, float64) {
	x := v.offX + (p.X-v.minX)*v.scale
	y := v.height - v.offY - (p.Y-v.minY)*v.scale
	return x, y
}

// tickStep 返回 1/2/5×10^k 形式的网格步长，使 span 约分为 n 格。
func tickStep(span float64, n int) float64 {
	raw := span / float64(n)
	if raw <= 0 || math.IsInf(raw, 0) || math.IsNaN(raw) {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / mag; {
	case f < 1.5:
		return mag
	case f < 3.5:
		return 2 * mag
	case f < 7.5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

func ticks(lo, hi, step float64) []float64 {
	var out []float64
	for t := math.Ceil(lo/step) * step; t <= hi+step*1e-9 && len(out) < 64; t += step {
		// 消除累加误差导致的 -0 与长尾小数
		out = append(out, math.Round(t/step)*step)
	}
	return out
}

func colorFor(c contract.Classification) string {
	switch c {
	case contract.Intersecting:
		return colorIntersecting
	case contract.NonIntersecting:
		return colorNonIntersecting
	default:
		return colorUnclassified
	}
}

// Render 在内存中绘制并返回 PNG 字节；不触碰文件系统。
func (p *Plotter) Render(ctx context.Context, entries []contract.Entry) ([]byte, error) {
	if !p.caps.Backend {
		return nil, errors.Wrap(contract.ErrPlotUnavailable, "raster backend disabled")
	}
	segs := collect(entries)
	if len(segs) == 0 {
		return nil, contract.ErrNothingToPlot
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := p.opt
	v := newView(segs, o)
	dc := gg.NewContext(o.Width, o.Height)
	defer dc.Close()
	dc.ClearWithColor(gg.White)

	small := p.font.Face(o.FontSize * 0.8)
	large := p.font.Face(o.FontSize * 1.3)
	normal := p.font.Face(o.FontSize)

	left, right := o.Margin, float64(o.Width)-o.Margin
	top, bottom := o.Margin, float64(o.Height)-o.Margin

	// 网格（虚线）与刻度
	dc.SetFont(small)
	dc.SetLineWidth(1)
	dc.SetDash(6, 4)
	dc.SetRGBA(0, 0, 0, 0.25)
	for _, t := range ticks(v.minX, v.maxX, tickStep(v.maxX-v.minX, 8)) {
		x, _ := v.px(geometry.Point{X: t, Y: v.minY})
		dc.DrawLine(x, top, x, bottom)
		if err := dc.Stroke(); err != nil {
			return nil, errors.Wrap(err, "stroke grid")
		}
		dc.DrawStringAnchored(lineparse.FormatNumber(t), x, bottom+6, 0.5, 1)
	}
	for _, t := range ticks(v.minY, v.maxY, tickStep(v.maxY-v.minY, 8)) {
		_, y := v.px(geometry.Point{X: v.minX, Y: t})
		dc.DrawLine(left, y, right, y)
		if err := dc.Stroke(); err != nil {
			return nil, errors.Wrap(err, "stroke grid")
		}
		dc.DrawStringAnchored(lineparse.FormatNumber(t), left-6, y, 1, 0.5)
	}
	dc.ClearDash()

	// 坐标框
	dc.SetRGB(0, 0, 0)
	dc.DrawRectangle(left, top, right-left, bottom-top)
	if err := dc.Stroke(); err != nil {
		return nil, errors.Wrap(err, "stroke frame")
	}

	// 线段与端点标记
	dc.SetLineWidth(o.LineWidth)
	for _, s := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dc.SetHexColor(colorFor(s.class))
		x1, y1 := v.px(s.seg.Start)
		x2, y2 := v.px(s.seg.End)
		dc.DrawLine(x1, y1, x2, y2)
		if err := dc.Stroke(); err != nil {
			return nil, errors.Wrapf(err, "stroke segment %d", s.index)
		}
		dc.DrawCircle(x1, y1, o.LineWidth*1.6)
		dc.DrawCircle(x2, y2, o.LineWidth*1.6)
		if err := dc.Fill(); err != nil {
			return nil, errors.Wrapf(err, "fill markers %d", s.index)
		}
	}

	// 中点序号
	dc.SetRGB(0, 0, 0)
	dc.SetFont(normal)
	for _, s := range segs {
		mx, my := v.px(s.seg.Midpoint())
		dc.DrawStringAnchored(strconv.Itoa(s.index), mx, my, 0.5, 0.5)
	}

	// 标题与轴名
	dc.SetFont(large)
	dc.DrawStringAnchored(title, float64(o.Width)/2, top/2, 0.5, 0.5)
	dc.SetFont(normal)
	dc.DrawStringAnchored("X", (left+right)/2, float64(o.Height)-o.Margin/4, 0.5, 0.5)
	dc.DrawStringAnchored("Y", o.Margin/4, (top+bottom)/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}

// Plot 渲染 entries 并写入 dest（父目录不存在时创建）。
func (p *Plotter) Plot(ctx context.Context, fileID contract.FileID, dest string, entries []contract.Entry) error {
	data, err := p.Render(ctx, entries)
	if err != nil {
		return errors.Wrapf(err, "plot %s", fileID)
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	if err := afero.WriteFile(p.fs, dest, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", dest)
	}
	return nil
}
