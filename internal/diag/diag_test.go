package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	crdb "github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"segcheck/pkg/contract"
)

// 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	defer w.Close()
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
}

// 当前文件名与时间戳文件存在（内存文件系统）
func TestRotatingFileRotateFiles(t *testing.T) {
	mfs := afero.NewMemMapFs()
	w := NewRotatingFileFs(mfs, "/logs", 10)
	for i := 0; i < 5; i++ {
		if err := w.WriteLine([]byte("xxxxxxxxxxxxxxxxxx")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	ents, err := afero.ReadDir(mfs, "/logs")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	hasCurrent := false
	rotated := 0
	for _, e := range ents {
		switch {
		case e.Name() == "segcheck-current.txt":
			hasCurrent = true
		case strings.HasPrefix(e.Name(), "segcheck-") && strings.HasSuffix(e.Name(), ".txt"):
			rotated++
		}
	}
	if !hasCurrent || rotated == 0 {
		t.Fatalf("expect both current and rotated files, got current=%v rotated=%d", hasCurrent, rotated)
	}
}

// 默认 maxBytes 与 rotate 在 f==nil 分支
func TestRotatingFileDefaultsAndRotateNoOpen(t *testing.T) {
	w := NewRotatingFileFs(afero.NewMemMapFs(), "/l", 0)
	if w.maxBytes != 10*1024*1024 {
		t.Fatalf("default maxBytes %d", w.maxBytes)
	}
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if w.f == nil {
		t.Fatalf("file should be opened")
	}
}

func TestRotatingFileReadOnly(t *testing.T) {
	w := NewRotatingFileFs(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/l", 0)
	if err := w.WriteLine([]byte("x")); err == nil {
		t.Fatalf("expect error on read-only fs")
	}
}

func TestMetrics(t *testing.T) {
	ResetMetrics()
	IncOp("reader", "finish", "success")
	IncOp("reader", "finish", "success")
	IncError("writer", "io")
	ObserveDuration("pairing", "finish", 5)
	ObserveDuration("pairing", "finish", 2)

	s := MetricsSnapshot()
	if got := s.Counters[`op_total{comp="reader",stage="finish",result="success"}`]; got != 2 {
		t.Fatalf("op_total=%d", got)
	}
	if got := s.Counters[`error_total{comp="writer",code="io"}`]; got != 1 {
		t.Fatalf("error_total=%d", got)
	}
	d := s.Durations[`op_duration_ms{comp="pairing",stage="finish"}`]
	if d.Count != 2 || d.SumMS != 7 || d.MaxMS != 5 {
		t.Fatalf("duration %+v", d)
	}
	if keys := s.Keys(); len(keys) != 2 || keys[0] > keys[1] {
		t.Fatalf("keys %v", keys)
	}
	ResetMetrics()
	if len(MetricsSnapshot().Counters) != 0 {
		t.Fatalf("reset failed")
	}
}

// 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{crdb.Wrapf(contract.ErrInputMissing, "a.txt"), CodeInputMissing},
		{crdb.Mark(&fs.PathError{Op: "stat", Path: "/a", Err: fs.ErrNotExist}, contract.ErrInputMissing), CodeInputMissing},
		{crdb.Wrap(contract.ErrNotRegular, "dir"), CodeInputMissing},
		{crdb.Wrap(contract.ErrPlotUnavailable, "off"), CodePlot},
		{contract.ErrNothingToPlot, CodePlot},
		{crdb.Wrap(contract.ErrInvariantViolation, "x"), CodeInvariant},
		{contract.ErrPathInvalid, CodeInvariant},
		{crdb.Wrap(&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, "ctx"), CodeIO},
		{&os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}, CodeIO},
		{syscall.EPERM, CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for i, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("case %d (%v): got %s want %s", i, c.err, got, c.want)
		}
	}
}

func decodeEvents(t *testing.T, b []byte) []Event {
	t.Helper()
	var out []Event
	for _, line := range bytes.Split(bytes.TrimSpace(b), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("bad json %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

// Logger 基本流程
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("corr", "debug", &buf)
	timer := l.Start("comp", "msg")
	timer.Finish("ok", 1)
	timer = l.StartWith("pairing", "analyze", "a.txt")
	timer.Finish("ok", 3)
	l.Info("comp", "note", "a.txt", map[string]string{"k": "v"})
	l.Warn("plotter", "plot", "skipped", "a.txt", nil)
	l.Error("comp", "code", "msg", nil)
	l.DebugStart("comp", "msg", "fid", nil)

	evs := decodeEvents(t, buf.Bytes())
	if len(evs) != 8 {
		t.Fatalf("expect 8 events, got %d", len(evs))
	}
	if evs[3].Stage != "finish" || evs[3].FileID != "a.txt" || evs[3].Count != 3 || evs[3].CorrID != "corr" {
		t.Fatalf("finish event %+v", evs[3])
	}
	if evs[5].Level != "warn" || evs[5].Code != "plot" {
		t.Fatalf("warn event %+v", evs[5])
	}
}

// 默认 warn 级别过滤 info/debug
func TestLoggerLevelsAndFilter(t *testing.T) {
	if Warn.String() != "warn" {
		t.Fatalf("warn string")
	}
	var unknown Level = 12345
	if unknown.String() != "warn" {
		t.Fatalf("default string")
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Fatalf("unknown level should fail")
	}
	if lv, ok := ParseLevel(""); !ok || lv != Warn {
		t.Fatalf("empty level should default to warn")
	}

	var buf bytes.Buffer
	l := NewLoggerTo("c", "", &buf)
	l.DebugStart("comp", "msg", "f", nil)
	l.Start("comp", "msg").Finish("ok", 0)
	if buf.Len() != 0 {
		t.Fatalf("info/debug should be filtered: %q", buf.String())
	}
	start := time.Now().Add(-10 * time.Millisecond)
	l.ErrorWith("comp", "code", "msg", &start, "f")
	evs := decodeEvents(t, buf.Bytes())
	if len(evs) != 1 || evs[0].DurMS < 10 {
		t.Fatalf("error event %+v", evs)
	}
	// Timer nil/l=nil 早返回
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
	if tnil.Since() != nil {
		t.Fatalf("nil timer since")
	}
}

func TestTimerFail(t *testing.T) {
	ResetMetrics()
	var buf bytes.Buffer
	l := NewLoggerTo("c", "warn", &buf)
	code := l.StartWith("writer", "write", "a.txt").Fail(&fs.PathError{Op: "rename", Path: "a.txt", Err: syscall.EACCES})
	if code != CodeIO {
		t.Fatalf("code %s", code)
	}
	evs := decodeEvents(t, buf.Bytes())
	if len(evs) != 1 || evs[0].Code != "io" || evs[0].FileID != "a.txt" {
		t.Fatalf("events %+v", evs)
	}
	if MetricsSnapshot().Counters[`error_total{comp="writer",code="io"}`] != 1 {
		t.Fatalf("error metric not recorded")
	}
}

// 日志写入轮转目录
func TestLoggerWithDir(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger("corr", "info", dir)
	l.Start("comp", "msg").Finish("ok", 1)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "segcheck-current.txt"))
	if err != nil {
		t.Fatalf("log file not found: %v", err)
	}
	if len(decodeEvents(t, b)) != 2 {
		t.Fatalf("unexpected log %q", b)
	}
}

func TestSlogBridge(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("c", "warn", &buf)
	sl := l.Slog("gg").With("backend", "cpu").WithGroup("gpu")
	sl.Info("ignored")
	sl.Warn("fallback", "reason", "no adapter")
	sl.Error("failed")

	evs := decodeEvents(t, buf.Bytes())
	if len(evs) != 2 {
		t.Fatalf("expect 2 events, got %d: %q", len(evs), buf.String())
	}
	if evs[0].Comp != "gg" || evs[0].Level != "warn" || evs[0].Msg != "fallback" {
		t.Fatalf("warn event %+v", evs[0])
	}
	if evs[0].KV["backend"] != "cpu" || evs[0].KV["gpu.reason"] != "no adapter" {
		t.Fatalf("kv %+v", evs[0].KV)
	}
	if evs[1].Level != "error" || evs[1].Stage != "error" {
		t.Fatalf("error event %+v", evs[1])
	}

	quiet := NewLoggerTo("c", "error", &bytes.Buffer{})
	if quiet.Slog("gg").Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("warn should be disabled at error level")
	}
}

// 单输入：只输出绘图与配对数消息
func TestTerminalSingleInput(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.RunStart(1)
	term.FileStart("docs/segments.txt")
	term.PlotSaved("docs/segments_plot.png")
	term.FileFinish(contract.Summary{Pairs: 1})
	term.RunFinish(contract.Summary{Pairs: 1}, true, time.Second)

	want := "Визуализация сохранена в docs/segments_plot.png\nОбработано пар отрезков: 1\n"
	if sb.String() != want {
		t.Fatalf("got %q want %q", sb.String(), want)
	}
}

func TestTerminalMultiInput(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.RunStart(2)
	term.FileStart("/a/one.txt")
	term.PlotSkipped(contract.ErrNothingToPlot)
	term.FileFinish(contract.Summary{Pairs: 0})
	term.FileStart("/a/two.txt")
	term.PlotSkipped(crdb.Wrap(contract.ErrPlotUnavailable, "off"))
	term.FileFinish(contract.Summary{Pairs: 3, Intersecting: 2})
	term.RunFinish(contract.Summary{Pairs: 3, Intersecting: 2}, true, 1500*time.Millisecond)

	out := sb.String()
	for _, want := range []string{
		"[file] one.txt\n",
		"Недостаточно данных для визуализации отрезков.\n",
		"[file] two.txt\n",
		"Визуализация пропущена: off: plot backend unavailable\n",
		"Обработано пар отрезков: 3\n",
		"[ok] файлов 2 | пар 3 | пересечений 2 | время 1.5s\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

// 写失败降级为禁用态
func TestTerminalDisableOnWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.PlotSaved("x.png")
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.FileFinish(contract.Summary{})
}

func TestTerminalDisabledAndNil(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, false)
	term.RunStart(3)
	term.FileStart("a")
	term.FileFinish(contract.Summary{Pairs: 2})
	if sb.Len() != 0 {
		t.Fatalf("disabled terminal wrote %q", sb.String())
	}
	var tn *Terminal
	tn.RunStart(1)
	tn.FileStart("a")
	tn.PlotSaved("p")
	tn.PlotSkipped(nil)
	tn.FileFinish(contract.Summary{})
	tn.RunFinish(contract.Summary{}, true, 0)
}

// 工具函数
func TestHelpers(t *testing.T) {
	if got := shortenBase("/x/y/这是一个很长的文件名用于截断测试abcdefghijk.txt", 10); len([]rune(got)) != 10 {
		t.Fatalf("shortenBase: %q", got)
	}
	if shortenBase("x", 0) != "" {
		t.Fatalf("shortenBase max<=0 should be empty")
	}
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" {
		t.Fatalf("formatDur 0ms failed")
	}
	if formatDur(1500*time.Millisecond) != "1.5s" {
		t.Fatalf("formatDur 1.5s failed: %s", formatDur(1500*time.Millisecond))
	}
	if NowUTC() == "" {
		t.Fatalf("应返回时间字符串")
	}
	SetTerminal(nil)
	if GetTerminal() != nil {
		t.Fatalf("expected nil terminal")
	}
	SetTerminal(NewTerminal(os.Stderr, false))
	if GetTerminal() == nil {
		t.Fatalf("expected non-nil terminal")
	}
	SetTerminal(nil)
}
