package config

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"segcheck/internal/diag"
	"segcheck/internal/pipeline"
	"segcheck/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
	}
	if cfg.Concurrency < 1 {
		return errors.Newf("config: concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	if _, ok := diag.ParseLevel(cfg.Logging.Level); !ok {
		return errors.Newf("config: unknown log level %q", cfg.Logging.Level)
	}
	if cfg.PlotPath != "" && len(cfg.Inputs) > 1 {
		return errors.Newf("config: plot_path requires a single input, got %d", len(cfg.Inputs))
	}
	// 输出目录模式只保留文件名，同名输入会互相覆盖
	if strings.TrimSpace(cfg.OutputDir) != "" {
		seen := make(map[string]string, len(cfg.Inputs))
		for _, in := range cfg.Inputs {
			base := filepath.Base(filepath.Clean(filepath.FromSlash(in)))
			if prev, ok := seen[base]; ok {
				return errors.Newf("config: inputs %q and %q share file name %q under output_dir", prev, in, base)
			}
			seen[base] = in
		}
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return errors.Newf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Splitter, d.Splitter); registry.Splitter[name] == nil {
		return errors.Newf("config: splitter %q not registered", name)
	}
	if name := effName(cfg.Components.Assembler, d.Assembler); registry.Assembler[name] == nil {
		return errors.Newf("config: assembler %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return errors.Newf("config: writer %q not registered", name)
	}
	if name := effName(cfg.Components.Plotter, d.Plotter); registry.Plotter[name] == nil {
		return errors.Newf("config: plotter %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config, env registry.Env) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults().Components
	r, err := registry.Reader[effName(cfg.Components.Reader, d.Reader)](cfg.Options.Reader, env)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrap(err, "config: reader")
	}
	s, err := registry.Splitter[effName(cfg.Components.Splitter, d.Splitter)](cfg.Options.Splitter, env)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrap(err, "config: splitter")
	}
	asm, err := registry.Assembler[effName(cfg.Components.Assembler, d.Assembler)](cfg.Options.Assembler, env)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrap(err, "config: assembler")
	}
	wraw, err := withOutputDir(cfg.Options.Writer, cfg.OutputDir)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrap(err, "config: writer")
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Writer)](wraw, env)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrap(err, "config: writer")
	}
	comp := pipeline.Components{Reader: r, Splitter: s, Assembler: asm, Writer: w}

	// 跳过绘图时不构造 Plotter（避免无谓加载字体）
	if !cfg.PlotSkipped() {
		p, err := registry.Plotter[effName(cfg.Components.Plotter, d.Plotter)](cfg.Options.Plotter, env)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, errors.Wrap(err, "config: plotter")
		}
		comp.Plotter = p
	}

	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Concurrency: cfg.Concurrency,
		SkipPlot:    cfg.PlotSkipped(),
		PlotPath:    cfg.PlotPath,
		PlotDir:     cfg.OutputDir,
	}
	return comp, set, nil
}

// withOutputDir 把顶层 output_dir 写入 writer options（覆盖同名键）。
func withOutputDir(raw json.RawMessage, dir string) (json.RawMessage, error) {
	if strings.TrimSpace(dir) == "" {
		return raw, nil
	}
	m := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrap(err, "decode writer options")
		}
	}
	v, _ := json.Marshal(dir)
	m["output_dir"] = v
	out, err := json.Marshal(m)
	return out, errors.Wrap(err, "encode writer options")
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
