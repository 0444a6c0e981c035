package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"segcheck/pkg/contract"
)

// Terminal: 面向用户的状态提示（非日志）。
// - 单输入时只输出绘图结果与配对数两类消息；
// - 多输入时每个文件前加 "[file]" 标题，结尾输出总览；
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool

	multi     bool
	filesDone int
	curFileID string

	mu sync.Mutex
}

// 进程级终端（可选，全局设置后供 pipeline 旁路调用）。
var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器。
// enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stdout
	}
	return &Terminal{w: w, enabled: enabled}
}

// RunStart: 记录本次运行的输入数。
func (t *Terminal) RunStart(inputs int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.multi = inputs > 1
	t.filesDone = 0
}

// FileStart: 标记当前文件。
func (t *Terminal) FileStart(fileID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.curFileID = shortenBase(fileID, 48)
	if t.multi {
		t.println(fmt.Sprintf("[file] %s", t.curFileID))
	}
}

// PlotSaved: 图像已写出。
func (t *Terminal) PlotSaved(path string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(fmt.Sprintf("Визуализация сохранена в %s", safe(path)))
}

// PlotSkipped: 绘图被跳过或失败。
func (t *Terminal) PlotSkipped(err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if errors.Is(err, contract.ErrNothingToPlot) {
		t.println("Недостаточно данных для визуализации отрезков.")
		return
	}
	reason := "неизвестная ошибка"
	if err != nil {
		reason = safe(err.Error())
	}
	t.println(fmt.Sprintf("Визуализация пропущена: %s", reason))
}

// FileFinish: 输出单文件汇总。
func (t *Terminal) FileFinish(sum contract.Summary) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filesDone++
	t.println(fmt.Sprintf("Обработано пар отрезков: %d", sum.Pairs))
}

// RunFinish: 多输入时输出总览。
func (t *Terminal) RunFinish(total contract.Summary, ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.multi {
		return
	}
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.println(fmt.Sprintf("[%s] файлов %d | пар %d | пересечений %d | время %s",
		tag, t.filesDone, total.Pairs, total.Intersecting, formatDur(dur)))
}

func (t *Terminal) println(s string) {
	if !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if visLen(base) <= max {
		return base
	}
	rs := []rune(base)
	return string(rs[:max-1]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	// 避免换行等控制字符污染终端
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
