package pipeline

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"segcheck/internal/diag"
	"segcheck/internal/pairing"
	"segcheck/pkg/contract"
)

// - 逐文件串行：Reader → Splitter → 配对引擎 → Assembler → Writer，随后可选 Plotter；
// - 预检：任何输入缺失都在处理第一个文件之前失败，不写出任何内容；
// - 并发只发生在配对引擎内部（Concurrency），装配始终按原始行序；
// - 绘图失败只告警，不影响退出结果。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader    contract.Reader
	Splitter  contract.Splitter
	Assembler contract.Assembler
	Writer    contract.Writer
	// Plotter 可为空；SkipPlot=false 时必须提供。
	Plotter contract.Plotter
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs      []string
	Concurrency int
	SkipPlot    bool
	// PlotPath: 显式图像路径，仅单输入时允许；为空时取 <目录>/<stem>_plot.png。
	PlotPath string
	// PlotDir: 默认图像所在目录；为空时与输入文件同目录。
	PlotDir string
}

// Report 为一次运行的结果。
type Report struct {
	Files []contract.Summary
	Total contract.Summary
}

// InputError 标记预检失败的输入路径。
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// Run 执行完整流水线并返回逐文件汇总。
// 首个 Reader/Splitter/Assembler/Writer 错误即终止并返回；已完成的文件保持已写出状态。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Report, error) {
	if err := sanity(comp, set); err != nil {
		return Report{}, errors.Wrap(err, "sanity")
	}

	// 预检：全部输入存在且为常规文件
	pre := logger.Start("reader", "preflight")
	for _, in := range set.Inputs {
		if err := comp.Reader.Stat(ctx, in); err != nil {
			pre.Fail(err)
			return Report{}, &InputError{Path: in, Err: err}
		}
	}
	pre.Finish("preflight", int64(len(set.Inputs)))

	term := diag.GetTerminal()
	term.RunStart(len(set.Inputs))
	runStart := time.Now()

	var rep Report
	for _, in := range set.Inputs {
		if err := ctx.Err(); err != nil {
			term.RunFinish(rep.Total, false, time.Since(runStart))
			return rep, err
		}
		sum, err := runFile(ctx, comp, set, logger, in)
		if err != nil {
			term.RunFinish(rep.Total, false, time.Since(runStart))
			return rep, err
		}
		rep.Files = append(rep.Files, sum)
		rep.Total.Add(sum)
	}
	term.RunFinish(rep.Total, true, time.Since(runStart))
	return rep, nil
}

func runFile(ctx context.Context, comp Components, set Settings, logger *diag.Logger, in string) (contract.Summary, error) {
	fileID := contract.FileID(in)
	logID := string(contract.NormalizeFileID(in))
	sum := contract.Summary{FileID: fileID}
	term := diag.GetTerminal()
	term.FileStart(in)

	rt := logger.StartWith("reader", "open", logID)
	rc, err := comp.Reader.Open(ctx, in)
	if err != nil {
		rt.Fail(err)
		return sum, errors.Wrapf(err, "read %s", in)
	}
	st := logger.StartWith("splitter", "split", logID)
	entries, err := comp.Splitter.Split(ctx, fileID, rc)
	_ = rc.Close()
	if err != nil {
		st.Fail(err)
		return sum, errors.Wrapf(err, "split %s", in)
	}
	st.Finish("split", int64(len(entries)))
	rt.Finish("open", int64(len(entries)))

	sum.Lines = len(entries)
	for i := range entries {
		if entries[i].Parsed() {
			sum.Parsed++
		}
	}

	pt := logger.StartWith("pairing", "analyze", logID)
	prep, err := pairing.Engine{Concurrency: set.Concurrency}.Run(ctx, entries)
	if err != nil {
		pt.Fail(err)
		return sum, errors.Wrapf(err, "analyze %s", in)
	}
	pt.Finish("analyze", int64(prep.Compared))
	sum.Pairs = prep.Pairs
	sum.Compared = prep.Compared
	sum.Intersecting = prep.Intersecting
	logger.DebugStart("pairing", "report", logID, map[string]string{
		"lines":        strconv.Itoa(sum.Lines),
		"parsed":       strconv.Itoa(sum.Parsed),
		"pairs":        strconv.Itoa(sum.Pairs),
		"compared":     strconv.Itoa(sum.Compared),
		"intersecting": strconv.Itoa(sum.Intersecting),
	})

	at := logger.StartWith("assembler", "assemble", logID)
	r, err := comp.Assembler.Assemble(ctx, fileID, entries)
	if err != nil {
		at.Fail(err)
		return sum, errors.Wrapf(err, "assemble %s", in)
	}
	at.Finish("assemble", int64(len(entries)))

	wt := logger.StartWith("writer", "write", logID)
	if err := comp.Writer.Write(ctx, contract.ArtifactID(in), r); err != nil {
		wt.Fail(err)
		return sum, errors.Wrapf(err, "write %s", in)
	}
	wt.Finish("write", int64(len(entries)))

	if !set.SkipPlot {
		dest := set.PlotPath
		if dest == "" {
			dest = DefaultPlotPath(in, set.PlotDir)
		}
		plt := logger.StartWith("plotter", "plot", logID)
		if err := comp.Plotter.Plot(ctx, fileID, dest, entries); err != nil {
			code := diag.Classify(err)
			diag.IncOp("plotter", "finish", "skipped")
			diag.IncError("plotter", string(code))
			logger.Warn("plotter", string(code), err.Error(), logID, map[string]string{"dest": dest})
			term.PlotSkipped(err)
		} else {
			plt.Finish("plot", 1)
			sum.PlotPath = dest
			term.PlotSaved(dest)
		}
	}

	term.FileFinish(sum)
	return sum, nil
}

// DefaultPlotPath 返回 <dir>/<stem>_plot.png；dir 为空时取输入所在目录。
// stem 只去掉最后一个扩展名；以点开头且无其他点的文件名保持原样。
func DefaultPlotPath(input, dir string) string {
	base := filepath.Base(input)
	stem := base
	if ext := filepath.Ext(base); ext != "" && ext != base {
		stem = strings.TrimSuffix(base, ext)
	}
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, stem+"_plot.png")
}

func sanity(comp Components, set Settings) error {
	if comp.Reader == nil || comp.Splitter == nil || comp.Assembler == nil || comp.Writer == nil {
		return errors.Wrap(contract.ErrInvalidInput, "missing component")
	}
	if !set.SkipPlot && comp.Plotter == nil {
		return errors.Wrap(contract.ErrInvalidInput, "plotter required unless plotting is skipped")
	}
	if len(set.Inputs) == 0 {
		return errors.Wrap(contract.ErrInvalidInput, "no inputs")
	}
	if set.PlotPath != "" && len(set.Inputs) > 1 {
		return errors.Wrap(contract.ErrInvalidInput, "plot path requires a single input")
	}
	return nil
}
