package registry

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"segcheck/pkg/contract"
	linear "segcheck/plugins/assembler/linear"
	pnone "segcheck/plugins/plotter/none"
	praster "segcheck/plugins/plotter/raster"
	rfs "segcheck/plugins/reader/filesystem"
	slines "segcheck/plugins/splitter/lines"
	wfs "segcheck/plugins/writer/filesystem"
)

// Env: 工厂共享的运行环境。FS 为 nil 时各组件使用操作系统文件系统；
// PlotAvailable 为绘图后端能力标记。
type Env struct {
	FS            afero.Fs
	PlotAvailable bool
}

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode options")
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage, env Env) (contract.Reader, error)

// NewSplitter 工厂签名：接收原样 JSON Options。
type NewSplitter func(raw json.RawMessage, env Env) (contract.Splitter, error)

// NewAssembler 工厂签名：接收原样 JSON Options。
type NewAssembler func(raw json.RawMessage, env Env) (contract.Assembler, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage, env Env) (contract.Writer, error)

// NewPlotter 工厂签名：接收原样 JSON Options。
type NewPlotter func(raw json.RawMessage, env Env) (contract.Plotter, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统 Reader（仅常规文件）
	"fs": func(raw json.RawMessage, env Env) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(env.FS, &opts), nil
	},
}

// Splitter 工厂注册表。
var Splitter = map[string]NewSplitter{
	// lines: 按 '\n' 拆行并解析坐标
	"lines": func(raw json.RawMessage, _ Env) (contract.Splitter, error) {
		var opts slines.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return slines.New(&opts), nil
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// linear: 按行序以 '\n' 连接 OutputText
	"linear": func(raw json.RawMessage, _ Env) (contract.Assembler, error) { return linear.New(raw) },
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（原地/输出目录，覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage, env Env) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(env.FS, &opts)
	},
}

// Plotter 工厂注册表。
var Plotter = map[string]NewPlotter{
	// raster: gg 软件光栅化 PNG
	"raster": func(raw json.RawMessage, env Env) (contract.Plotter, error) {
		var opts praster.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return praster.New(env.FS, &opts, praster.Caps{Backend: env.PlotAvailable})
	},
	// none: 不绘图，始终报告后端不可用
	"none": func(raw json.RawMessage, _ Env) (contract.Plotter, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return pnone.New(), nil
	},
}
