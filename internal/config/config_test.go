package config

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segcheck/pkg/registry"
)

// 解析完整 segcheck.json
func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON("../../testdata/config/basic.json", nil)
	require.NoError(t, err, "加载失败")
	assert.Equal(t, []string{"segments.txt"}, cfg.Inputs)
	assert.Equal(t, 2, cfg.Concurrency)
	require.NotNil(t, cfg.SkipPlot)
	assert.False(t, *cfg.SkipPlot)
	assert.Equal(t, "raster", cfg.Components.Plotter)
	assert.JSONEq(t, `{"width": 800, "height": 600}`, string(cfg.Options.Plotter))
	require.NoError(t, Validate(Merge(Defaults(), cfg)))
}

// 含非法字段
func TestLoadJSONUnknown(t *testing.T) {
	_, err := LoadJSON("", []byte(`{"unknown":1}`))
	require.Error(t, err)
	_, err = LoadJSON("", nil)
	require.Error(t, err)
	_, err = LoadJSONFs(afero.NewMemMapFs(), "/nope.json", nil)
	require.Error(t, err)
}

func TestSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, raw := Source(fs, "", nil)
	assert.Empty(t, p)
	assert.Nil(t, raw)

	require.NoError(t, afero.WriteFile(fs, DefaultFileName, []byte(`{}`), 0o644))
	p, _ = Source(fs, "", nil)
	assert.Equal(t, DefaultFileName, p)

	_, raw = Source(fs, "", []string{"SEGCHECK_CONFIG_JSON={\"concurrency\":3}"})
	assert.Equal(t, `{"concurrency":3}`, string(raw))

	p, _ = Source(fs, "", []string{"SEGCHECK_CONFIG_JSON={}", "SEGCHECK_CONFIG_FILE=/etc/seg.json"})
	assert.Equal(t, "/etc/seg.json", p)

	p, _ = Source(fs, "flag.json", []string{"SEGCHECK_CONFIG_FILE=/etc/seg.json"})
	assert.Equal(t, "flag.json", p)
}

// ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"SEGCHECK_INPUTS=a.txt, b.txt",
		"SEGCHECK_CONCURRENCY=3",
		"SEGCHECK_SKIP_PLOT=true",
		"SEGCHECK_LOG_LEVEL=debug",
		"SEGCHECK_LOG_DIR=/var/log/seg",
		"SEGCHECK_OUTPUT_DIR=out",
		"SEGCHECK_COMPONENTS_PLOTTER=none",
		"SEGCHECK_OPTIONS_WRITER_JSON={\"atomic\":false}",
		"SEGCHECK_OPTIONS_READER_JSON=",
		"OTHER_VAR=1",
	}
	over, err := EnvOverlay(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, over.Inputs)
	assert.Equal(t, 3, over.Concurrency)
	assert.True(t, over.PlotSkipped())
	assert.Equal(t, "debug", over.Logging.Level)
	assert.Equal(t, "/var/log/seg", over.Logging.Dir)
	assert.Equal(t, "out", over.OutputDir)
	assert.Equal(t, "none", over.Components.Plotter)
	assert.Equal(t, `{"atomic":false}`, string(over.Options.Writer))
	assert.Nil(t, over.Options.Reader)

	_, err = EnvOverlay([]string{"SEGCHECK_CONCURRENCY=many"})
	require.Error(t, err)
	_, err = EnvOverlay([]string{"SEGCHECK_SKIP_PLOT=maybe"})
	require.Error(t, err)
}

// SkipPlot 三态：后续层可显式改回 false
func TestMergeSkipPlotTriState(t *testing.T) {
	yes, no := true, false
	base := Merge(Defaults(), Config{SkipPlot: &yes})
	assert.True(t, base.PlotSkipped())
	assert.True(t, Merge(base, Config{}).PlotSkipped(), "unset layer keeps value")
	assert.False(t, Merge(base, Config{SkipPlot: &no}).PlotSkipped())
}

func TestMergeReplaces(t *testing.T) {
	base := DefaultTemplateConfig()
	over := Config{
		Inputs:     []string{"x.txt"},
		PlotPath:   " p.png ",
		Logging:    Logging{Level: "error"},
		Components: Components{Writer: "fs"},
		Options:    Options{Plotter: json.RawMessage(`{"width":10}`)},
	}
	out := Merge(base, over)
	assert.Equal(t, []string{"x.txt"}, out.Inputs)
	assert.Equal(t, "p.png", out.PlotPath)
	assert.Equal(t, "error", out.Logging.Level)
	assert.Equal(t, `{"width":10}`, string(out.Options.Plotter))
	assert.Equal(t, string(base.Options.Writer), string(out.Options.Writer))

	over.Inputs[0] = "changed"
	assert.Equal(t, "x.txt", out.Inputs[0], "inputs must be copied")
}

// splitComma 与 atoi
func TestSplitCommaAtoi(t *testing.T) {
	parts := splitComma("a, b , ,c")
	if len(parts) != 3 || parts[1] != "b" {
		t.Fatalf("splitComma 结果错误: %v", parts)
	}
	if v, err := atoi(" 10 "); err != nil || v != 10 {
		t.Fatalf("atoi 失败: %v %d", err, v)
	}
	if _, err := atoi("1x"); err == nil {
		t.Fatalf("atoi 应失败")
	}
}

// Defaults 与 cloneRaw
func TestDefaultsClone(t *testing.T) {
	d := Defaults()
	if d.Components.Splitter != "lines" || d.Logging.Level != "warn" {
		t.Fatalf("默认值错误: %+v", d)
	}
	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	if string(dst) != "abc" {
		t.Fatalf("cloneRaw 未复制")
	}
}

// Validate 错误分支
func TestValidateErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"empty inputs":   func(c *Config) { c.Inputs = nil },
		"blank input":    func(c *Config) { c.Inputs = []string{" "} },
		"concurrency":    func(c *Config) { c.Concurrency = 0 },
		"log level":      func(c *Config) { c.Logging.Level = "loud" },
		"plot path many": func(c *Config) { c.Inputs = []string{"a", "b"}; c.PlotPath = "p.png" },
		"reader":         func(c *Config) { c.Components.Reader = "http" },
		"splitter":       func(c *Config) { c.Components.Splitter = "csv" },
		"assembler":      func(c *Config) { c.Components.Assembler = "x" },
		"writer":         func(c *Config) { c.Components.Writer = "s3" },
		"plotter":        func(c *Config) { c.Components.Plotter = "svg" },
		"output base clash": func(c *Config) {
			c.Inputs = []string{"a/seg.txt", "b/seg.txt"}
			c.OutputDir = "out"
		},
	}
	for name, mut := range cases {
		cfg := DefaultTemplateConfig()
		mut(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if err := Validate(DefaultTemplateConfig()); err != nil {
		t.Fatalf("template should validate: %v", err)
	}
}

func TestValidateOutputDirBaseNames(t *testing.T) {
	cfg := DefaultTemplateConfig()
	cfg.Inputs = []string{"a/seg.txt", "b/other.txt"}
	cfg.OutputDir = "out"
	require.NoError(t, Validate(cfg))

	cfg.Inputs = []string{"a/seg.txt", "./b/../c/seg.txt"}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `share file name "seg.txt"`)

	// 原地改写时同名文件互不影响
	cfg.OutputDir = ""
	require.NoError(t, Validate(cfg))
}

func TestAssemble(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := DefaultTemplateConfig()
	cfg.OutputDir = "/out"
	comp, set, err := Assemble(cfg, registry.Env{FS: fs, PlotAvailable: true})
	require.NoError(t, err)
	assert.NotNil(t, comp.Reader)
	assert.NotNil(t, comp.Splitter)
	assert.NotNil(t, comp.Assembler)
	assert.NotNil(t, comp.Writer)
	assert.NotNil(t, comp.Plotter)
	assert.Equal(t, []string{"segments.txt"}, set.Inputs)
	assert.Equal(t, "/out", set.PlotDir)
	assert.False(t, set.SkipPlot)

	skip := true
	cfg.SkipPlot = &skip
	comp, set, err = Assemble(cfg, registry.Env{FS: fs})
	require.NoError(t, err)
	assert.Nil(t, comp.Plotter)
	assert.True(t, set.SkipPlot)

	cfg = DefaultTemplateConfig()
	cfg.Options.Writer = json.RawMessage(`{"unknown":1}`)
	_, _, err = Assemble(cfg, registry.Env{FS: fs})
	require.Error(t, err, "strict options")
}

func TestWithOutputDir(t *testing.T) {
	raw, err := withOutputDir(json.RawMessage(`{"atomic":false,"output_dir":"old"}`), "new")
	require.NoError(t, err)
	assert.JSONEq(t, `{"atomic":false,"output_dir":"new"}`, string(raw))

	raw, err = withOutputDir(nil, "d")
	require.NoError(t, err)
	assert.JSONEq(t, `{"output_dir":"d"}`, string(raw))

	raw, err = withOutputDir(json.RawMessage(`{"atomic":true}`), "")
	require.NoError(t, err)
	assert.Equal(t, `{"atomic":true}`, string(raw))

	_, err = withOutputDir(json.RawMessage(`[1]`), "d")
	require.Error(t, err)
}

// 模板可序列化并可被严格解析回读
func TestTemplateRoundTrip(t *testing.T) {
	b, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	require.NoError(t, err)
	cfg, err := LoadJSON("", b)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
}
