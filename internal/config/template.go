package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 输入为当前目录下的 segments.txt，原地原子改写；
// - 组件名采用仓库内置实现；
// - 选项列出全部键并给出中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	skip := false
	cfg := Config{
		Inputs:      []string{"segments.txt"},
		Concurrency: d.Concurrency,
		SkipPlot:    &skip,
		Logging:     Logging{Level: "warn", Dir: ""},
		Components:  d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536
}`)
	cfg.Options.Splitter = json.RawMessage(`{
  "max_line_bytes": 0,
  "buf_size": 65536
}`)
	// 线性装配器无配置项，保持空对象
	cfg.Options.Assembler = json.RawMessage(`{}`)
	cfg.Options.Writer = json.RawMessage(`{
  "atomic": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	cfg.Options.Plotter = json.RawMessage(`{
  "width": 1200,
  "height": 900,
  "margin": 90,
  "font_size": 14,
  "line_width": 3
}`)
	return cfg
}
