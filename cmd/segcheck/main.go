package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gg"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "segcheck/internal/config"
	"segcheck/internal/diag"
	"segcheck/internal/pipeline"
	"segcheck/pkg/contract"
	"segcheck/pkg/registry"
)

// 退出码
const (
	exitOK      = 0
	exitRun     = 1
	exitMissing = 2
	exitConfig  = 3
)

var pipelineRun = pipeline.Run

// newEnv 返回组件工厂使用的运行环境；测试可替换。
var newEnv = func() registry.Env {
	return registry.Env{FS: afero.NewOsFs(), PlotAvailable: true}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 解析参数并执行一次完整运行，返回进程退出码。
func run(args []string, stdout, stderr io.Writer) int {
	var (
		f    cliFlags
		code = exitOK
	)
	cmd := &cobra.Command{
		Use:   "segcheck [flags] <input>...",
		Short: "annotate intersecting segment pairs in text files",
		Long: wrapText(`
Each input holds one segment per line as four numbers "x1 y1 x2 y2".
Consecutive parsed lines form pairs (1-2, 3-4, ...). Every pair is
checked for intersection and the file is rewritten with a verdict
appended to each line. A PNG visualization is saved next to the input
unless --skip-plot is given.`),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, inputs []string) error {
			code = execute(cmd.Context(), &f, cmd.Flags(), inputs, stdout, stderr)
			return nil
		},
	}
	initFlags(cmd, &f)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fprintf(stderr, "参数错误: %v\n", err)
		fprintf(stderr, "%s", cmd.UsageString())
		return exitConfig
	}
	return code
}

func execute(ctx context.Context, f *cliFlags, fs *pflag.FlagSet, inputs []string, stdout, stderr io.Writer) int {
	start := time.Now()
	corrID := genCorrID()
	// 先以默认等级写 stderr，配置合并后按最终等级重建
	logger := diag.NewLoggerTo(corrID, "", stderr)
	env := newEnv()

	// --init-config: 生成模板并退出
	if fs.Changed("init-config") {
		dir := strings.TrimSpace(f.initDir)
		if dir == "" {
			dir = "."
		}
		if err := env.FS.MkdirAll(dir, 0o755); err != nil {
			fprintf(stderr, "生成默认配置失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "init config", &start)
			return exitConfig
		}
		path := filepath.Join(dir, cfgpkg.DefaultFileName)
		if err := writeConfig(env.FS, path, cfgpkg.DefaultTemplateConfig()); err != nil {
			fprintf(stderr, "生成默认配置失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "init config", &start)
			return exitConfig
		}
		fprintf(stdout, "%s\n", path)
		return exitOK
	}

	if fs.Changed("concurrency") && f.concurrency < 1 {
		fprintf(stderr, "参数错误: --concurrency must be >= 1, got %d\n", f.concurrency)
		return exitConfig
	}

	// 配置分层：默认 < JSON < ENV < CLI
	environ := os.Environ()
	cfg := cfgpkg.Defaults()
	if path, raw := cfgpkg.Source(env.FS, f.config, environ); path != "" || len(raw) > 0 {
		base, err := cfgpkg.LoadJSONFs(env.FS, path, raw)
		if err != nil {
			fprintf(stderr, "配置解析失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "load", &start)
			return exitConfig
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	overEnv, err := cfgpkg.EnvOverlay(environ)
	if err != nil {
		fprintf(stderr, "环境变量解析失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "env overlay", &start)
		return exitConfig
	}
	cfg = cfgpkg.Merge(cfg, overEnv)
	cfg = cfgpkg.Merge(cfg, f.overlay(fs, inputs))

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(stderr, "配置校验失败: %v\n", err)
		dumpConfig(stderr, cfg)
		logger.Error("config", string(diag.Classify(err)), "validate", &start)
		return exitConfig
	}

	logger = diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)
	defer func() { _ = logger.Close() }()
	gg.SetLogger(logger.Slog("gg"))
	defer gg.SetLogger(nil)

	comp, set, err := cfgpkg.Assemble(cfg, env)
	if err != nil {
		fprintf(stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "assemble", &start)
		return exitConfig
	}
	if c, ok := comp.Plotter.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	term := diag.NewTerminal(stdout, !f.quiet)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", "", map[string]string{
		"inputs_count": strconv.Itoa(len(cfg.Inputs)),
		"concurrency":  strconv.Itoa(cfg.Concurrency),
		"skip_plot":    strconv.FormatBool(cfg.PlotSkipped()),
		"plot_path":    cfg.PlotPath,
		"output_dir":   cfg.OutputDir,
		"reader":       cfg.Components.Reader,
		"splitter":     cfg.Components.Splitter,
		"assembler":    cfg.Components.Assembler,
		"writer":       cfg.Components.Writer,
		"plotter":      cfg.Components.Plotter,
	})
	if logger.Enabled(diag.Debug) {
		defer dumpMetrics(logger)
	}

	t := logger.Start("pipeline", "run")
	rep, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := t.Fail(err)
		var inErr *pipeline.InputError
		if errors.As(err, &inErr) &&
			(errors.Is(inErr.Err, contract.ErrInputMissing) || errors.Is(inErr.Err, contract.ErrNotRegular)) {
			fprintf(stderr, "Файл %s не найден\n", inErr.Path)
			return exitMissing
		}
		if code != diag.CodeCancel {
			fprintf(stderr, "运行失败: %v\n", err)
		}
		return exitRun
	}
	t.Finish("run", int64(rep.Total.Pairs))
	return exitOK
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return
	}
	fprintf(w, "有效配置:\n%s\n", b)
}

// dumpMetrics 以 debug 事件输出进程内指标快照。
func dumpMetrics(logger *diag.Logger) {
	snap := diag.MetricsSnapshot()
	kv := make(map[string]string, len(snap.Counters)+len(snap.Durations))
	for _, k := range snap.Keys() {
		kv[k] = strconv.FormatInt(snap.Counters[k], 10)
	}
	for k, d := range snap.Durations {
		kv[k] = fmt.Sprintf("count=%d sum_ms=%d max_ms=%d", d.Count, d.SumMS, d.MaxMS)
	}
	logger.DebugStart("metrics", "snapshot", "", kv)
}

// writeConfig 写出配置模板；不覆盖已存在文件。
func writeConfig(fs afero.Fs, path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	fh, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if _, err := fh.Write(append(b, '\n')); err != nil {
		_ = fh.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(fh.Close(), "close %s", path)
}

func genCorrID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}
