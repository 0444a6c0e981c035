package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs      []string `json:"inputs"`
	Concurrency int      `json:"concurrency"`
	// SkipPlot: 三态；nil 表示未设置，使后续层可显式改回 false。
	SkipPlot *bool `json:"skip_plot,omitempty"`
	// PlotPath: 显式图像路径，仅单输入时允许。
	PlotPath string `json:"plot_path,omitempty"`
	// OutputDir: 非空时不原地改写，输出到该目录（同时作为默认图像目录）。
	OutputDir string  `json:"output_dir,omitempty"`
	Logging   Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与输出目录；目录为空时写 stderr。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `json:"reader"`
	Splitter  string `json:"splitter"`
	Assembler string `json:"assembler"`
	Writer    string `json:"writer"`
	Plotter   string `json:"plotter"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader    json.RawMessage `json:"reader,omitempty"`
	Splitter  json.RawMessage `json:"splitter,omitempty"`
	Assembler json.RawMessage `json:"assembler,omitempty"`
	Writer    json.RawMessage `json:"writer,omitempty"`
	Plotter   json.RawMessage `json:"plotter,omitempty"`
}

// PlotSkipped 返回 SkipPlot 的有效值（未设置视为 false）。
func (c Config) PlotSkipped() bool { return c.SkipPlot != nil && *c.SkipPlot }
