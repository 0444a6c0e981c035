package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "warn"
	}
}

// ParseLevel 解析级别名；未知名称返回 ok=false。
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, true
	case "info":
		return Info, true
	case "warn", "warning", "":
		return Warn, true
	case "error":
		return Error, true
	default:
		return Warn, false
	}
}

// lineSink 接收一行完整的 JSON（不含换行）。
type lineSink interface {
	WriteLine(b []byte) error
}

type writerSink struct{ w io.Writer }

func (s writerSink) WriteLine(b []byte) error {
	_, err := s.w.Write(append(b, '\n'))
	return err
}

// Logger 为最小结构化日志器：单行 JSON；dir 非空时写入轮转文件，否则写 stderr。
type Logger struct {
	corrID string
	level  Level
	sink   lineSink
	closer io.Closer
	mu     sync.Mutex
}

// NewLogger 通过配置的 level 初始化；dir 为空时输出到 stderr，否则写入 dir 下 10MiB 轮转文件。
func NewLogger(corrID, level, dir string) *Logger {
	lvl, _ := ParseLevel(level)
	l := &Logger{corrID: corrID, level: lvl}
	if strings.TrimSpace(dir) == "" {
		l.sink = writerSink{w: os.Stderr}
		return l
	}
	rf := NewRotatingFile(dir, 10*1024*1024)
	l.sink, l.closer = rf, rf
	return l
}

// NewLoggerTo 将日志写入任意 io.Writer（测试与嵌入场景）。
func NewLoggerTo(corrID, level string, w io.Writer) *Logger {
	lvl, _ := ParseLevel(level)
	return &Logger{corrID: corrID, level: lvl, sink: writerSink{w: w}}
}

// Close 关闭底层文件（若有）。
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Enabled 报告给定级别是否会被输出。
func (l *Logger) Enabled(lv Level) bool { return l != nil && lv >= l.level }

// Event 为标准事件结构。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|error|warn|info
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	FileID string            `json:"file_id,omitempty"`
	Msg    string            `json:"msg"`
	KV     map[string]string `json:"kv,omitempty"`
}

func (l *Logger) log(lv Level, ev Event) {
	if !l.Enabled(lv) {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		_, _ = os.Stderr.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Info 记录 info 事件。
func (l *Logger) Info(comp, msg, fileID string, kv map[string]string) {
	l.log(Info, Event{Comp: comp, Stage: "info", FileID: fileID, Msg: msg, KV: kv})
}

// Warn 记录可降级的问题（例如绘图失败）。
func (l *Logger) Warn(comp, code, msg, fileID string, kv map[string]string) {
	l.log(Warn, Event{Comp: comp, Stage: "warn", Code: code, FileID: fileID, Msg: msg, KV: kv})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "")
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, FileID: fileID})
}

// DebugStart 输出调试级别的“start”类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时，并同步记录指标。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Since 返回计时起点。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	IncOp(t.comp, "finish", "success")
	ObserveDuration(t.comp, "finish", dur)
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, FileID: t.fileID, Msg: msg})
}

// Fail 以 error 事件结束计时，按 Classify 归类错误码。
func (t *Timer) Fail(err error) Code {
	code := Classify(err)
	if t == nil || t.l == nil {
		return code
	}
	IncOp(t.comp, "finish", "error")
	IncError(t.comp, string(code))
	ObserveDuration(t.comp, "finish", time.Since(t.t0).Milliseconds())
	t.l.ErrorWith(t.comp, string(code), err.Error(), &t.t0, t.fileID)
	return code
}
