package main

import (
	"github.com/kr/text"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "segcheck/internal/config"
)

const wrapWidth = 79

// cliFlags: 命令行旗标取值；是否显式设置以 pflag.Changed 为准。
type cliFlags struct {
	config      string
	plotPath    string
	skipPlot    bool
	outputDir   string
	concurrency int
	logLevel    string
	logDir      string
	initDir     string
	quiet       bool
}

var flagUsage = map[string]string{
	"config": wrapText(`
Path to the JSON configuration file. When unset, SEGCHECK_CONFIG_FILE,
SEGCHECK_CONFIG_JSON and ./segcheck.json are consulted in that order.`),
	"plot-path": wrapText(`
Where to write the PNG visualization. Only valid with a single input;
by default the image is written as <stem>_plot.png next to the input
(or into --output-dir).`),
	"skip-plot": wrapText(`
Do not render the visualization.`),
	"output-dir": wrapText(`
Write annotated files into this directory instead of rewriting the
inputs in place.`),
	"concurrency": wrapText(`
Number of segment pairs evaluated in parallel within one file. The
rewritten output does not depend on this value.`),
	"log-level": wrapText(`
Log level: debug, info, warn or error. At debug level the in-process
metrics are dumped when the run ends.`),
	"log-dir": wrapText(`
Directory for size-rotated JSON log files. Logs go to stderr when unset.`),
	"init-config": wrapText(`
Write a default segcheck.json into the given directory (current
directory when no value is given) and exit. An existing file is never
overwritten. Use --init-config=DIR to pass a directory.`),
	"quiet": wrapText(`
Suppress status messages on stdout.`),
}

func wrapText(s string) string {
	return text.Wrap(s, wrapWidth)
}

func usage(name string) string {
	s := flagUsage[name]
	if s[0] != '\n' {
		s = "\n" + s
	}
	if s[len(s)-1] != '\n' {
		s = s + "\n"
	}
	return text.Indent(s, "        ")
}

// initFlags 注册全部旗标。
func initFlags(cmd *cobra.Command, f *cliFlags) {
	fs := cmd.Flags()
	fs.SortFlags = false
	fs.StringVarP(&f.config, "config", "c", "", usage("config"))
	fs.StringVar(&f.plotPath, "plot-path", "", usage("plot-path"))
	fs.BoolVar(&f.skipPlot, "skip-plot", false, usage("skip-plot"))
	fs.StringVarP(&f.outputDir, "output-dir", "o", "", usage("output-dir"))
	fs.IntVarP(&f.concurrency, "concurrency", "j", 0, usage("concurrency"))
	fs.StringVar(&f.logLevel, "log-level", "", usage("log-level"))
	fs.StringVar(&f.logDir, "log-dir", "", usage("log-dir"))
	fs.StringVar(&f.initDir, "init-config", "", usage("init-config"))
	fs.Lookup("init-config").NoOptDefVal = "."
	fs.BoolVarP(&f.quiet, "quiet", "q", false, usage("quiet"))
}

// overlay 把显式设置的旗标与位置参数转为最高优先级的配置层。
func (f *cliFlags) overlay(fs *pflag.FlagSet, inputs []string) cfgpkg.Config {
	var over cfgpkg.Config
	if len(inputs) > 0 {
		over.Inputs = append([]string(nil), inputs...)
	}
	if fs.Changed("concurrency") {
		over.Concurrency = f.concurrency
	}
	if fs.Changed("skip-plot") {
		v := f.skipPlot
		over.SkipPlot = &v
	}
	over.PlotPath = f.plotPath
	over.OutputDir = f.outputDir
	over.Logging.Level = f.logLevel
	over.Logging.Dir = f.logDir
	return over
}
