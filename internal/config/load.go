package config

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// EnvPrefix 为环境变量前缀。
const EnvPrefix = "SEGCHECK_"

// DefaultFileName 为工作目录下自动加载的配置文件名。
const DefaultFileName = "segcheck.json"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Concurrency: 1,
		Logging:     Logging{Level: "warn"},
		Components: Components{
			Reader:    "fs",
			Splitter:  "lines",
			Assembler: "linear",
			Writer:    "fs",
			Plotter:   "raster",
		},
	}
}

// LoadJSON 从操作系统文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	return LoadJSONFs(afero.NewOsFs(), path, raw)
}

// LoadJSONFs 同 LoadJSON，文件从 fs 读取。raw 非空时优先。
func LoadJSONFs(fs afero.Fs, path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := fs.Open(path)
		if err != nil {
			return cfg, errors.Wrap(err, "open config")
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", sourceName(path, raw))
	}
	return cfg, nil
}

func sourceName(path string, raw []byte) string {
	if len(raw) > 0 {
		return "(inline)"
	}
	return path
}

// Source 选择配置来源，优先级：flagPath > SEGCHECK_CONFIG_FILE > SEGCHECK_CONFIG_JSON > ./segcheck.json（存在时）。
// 均不存在时返回空路径与空 raw。
func Source(fs afero.Fs, flagPath string, environ []string) (string, []byte) {
	if strings.TrimSpace(flagPath) != "" {
		return flagPath, nil
	}
	var file, inline string
	for _, kv := range environ {
		switch {
		case strings.HasPrefix(kv, EnvPrefix+"CONFIG_FILE="):
			file = strings.TrimSpace(strings.TrimPrefix(kv, EnvPrefix+"CONFIG_FILE="))
		case strings.HasPrefix(kv, EnvPrefix+"CONFIG_JSON="):
			inline = strings.TrimPrefix(kv, EnvPrefix+"CONFIG_JSON=")
		}
	}
	if file != "" {
		return file, nil
	}
	if strings.TrimSpace(inline) != "" {
		return "", []byte(inline)
	}
	if ok, _ := afero.Exists(fs, DefaultFileName); ok {
		return DefaultFileName, nil
	}
	return "", nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.SkipPlot != nil {
		v := *over.SkipPlot
		out.SkipPlot = &v
	}
	if strings.TrimSpace(over.PlotPath) != "" {
		out.PlotPath = strings.TrimSpace(over.PlotPath)
	}
	if strings.TrimSpace(over.OutputDir) != "" {
		out.OutputDir = strings.TrimSpace(over.OutputDir)
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}
	if strings.TrimSpace(over.Logging.Dir) != "" {
		out.Logging.Dir = strings.TrimSpace(over.Logging.Dir)
	}

	// 组件名（空不覆盖）
	mergeName(&out.Components.Reader, over.Components.Reader)
	mergeName(&out.Components.Splitter, over.Components.Splitter)
	mergeName(&out.Components.Assembler, over.Components.Assembler)
	mergeName(&out.Components.Writer, over.Components.Writer)
	mergeName(&out.Components.Plotter, over.Components.Plotter)

	// Options（完整替换对应键）
	mergeRaw(&out.Options.Reader, over.Options.Reader)
	mergeRaw(&out.Options.Splitter, over.Options.Splitter)
	mergeRaw(&out.Options.Assembler, over.Options.Assembler)
	mergeRaw(&out.Options.Writer, over.Options.Writer)
	mergeRaw(&out.Options.Plotter, over.Options.Plotter)
	return out
}

func mergeName(dst *string, over string) {
	if v := strings.TrimSpace(over); v != "" {
		*dst = v
	}
}

func mergeRaw(dst *json.RawMessage, over json.RawMessage) {
	if len(over) > 0 {
		*dst = cloneRaw(over)
	}
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 前缀 SEGCHECK_；集合之外的键忽略，集合之内的非法值返回错误。
// 支持：INPUTS, CONCURRENCY, SKIP_PLOT, PLOT_PATH, OUTPUT_DIR, LOG_LEVEL, LOG_DIR,
// COMPONENTS_{READER,SPLITTER,ASSEMBLER,WRITER,PLOTTER},
// OPTIONS_{READER,SPLITTER,ASSEMBLER,WRITER,PLOTTER}_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[:eq]
		val := kv[eq+1:]
		nk := strings.TrimPrefix(key, EnvPrefix)
		switch nk {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "CONCURRENCY":
			v, err := atoi(val)
			if err != nil {
				return over, errors.Wrapf(err, "%s", key)
			}
			over.Concurrency = v
		case "SKIP_PLOT":
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				return over, errors.Wrapf(err, "%s", key)
			}
			over.SkipPlot = &b
		case "PLOT_PATH":
			over.PlotPath = strings.TrimSpace(val)
		case "OUTPUT_DIR":
			over.OutputDir = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_SPLITTER":
			over.Components.Splitter = strings.TrimSpace(val)
		case "COMPONENTS_ASSEMBLER":
			over.Components.Assembler = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "COMPONENTS_PLOTTER":
			over.Components.Plotter = strings.TrimSpace(val)
		case "OPTIONS_READER_JSON":
			over.Options.Reader = rawOrNil(val)
		case "OPTIONS_SPLITTER_JSON":
			over.Options.Splitter = rawOrNil(val)
		case "OPTIONS_ASSEMBLER_JSON":
			over.Options.Assembler = rawOrNil(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = rawOrNil(val)
		case "OPTIONS_PLOTTER_JSON":
			over.Options.Plotter = rawOrNil(val)
		default:
			// CONFIG_FILE / CONFIG_JSON 由 Source 处理；其余忽略。
		}
	}
	return over, nil
}

// rawOrNil: 空值视为未设置，避免清空文件中的配置。
func rawOrNil(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return json.RawMessage(s)
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid integer %q", s)
	}
	return n, nil
}
