package diag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"oscarflow/pkg/contract"
)

// 状态标签配色，仅 TTY 生效
var tagStyles = map[string]lipgloss.Style{
	"done": lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	"skip": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	"stop": lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	"ok":   lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	"fail": lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

// Terminal: 终端状态提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - TTY: 单行 \r 覆盖；非 TTY: 关键节点分行打印。
// - 多个文件并行处理，提示以运行级汇总为主；并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	concurrency int
	format      string
	filesTotal  int
	filesDone   int
	filesFailed int
	events      int64
	runStart    time.Time

	curFileID string
	curEvents int64

	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

// NewTerminal 构造终端提示器。enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			fd := f.Fd()
			t.isTTY = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		}
	}
	return t
}

// RunStart: 记录运行上下文。
func (t *Terminal) RunStart(concurrency int, format string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.concurrency = concurrency
	t.format = format
	t.filesTotal, t.filesDone, t.filesFailed, t.events = 0, 0, 0, 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("[run] 格式=%s | 并发=%d", safe(format), concurrency))
}

// FileStart: 登记一个待处理文件。
func (t *Terminal) FileStart(fileID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.filesTotal++
	t.curFileID = shortenBase(fileID, 48)
	t.curEvents = 0
	if !t.isTTY {
		t.println(fmt.Sprintf("[file] %s", t.curFileID))
	}
}

// FileProgress: 周期性进度（≥100ms 节流，仅 TTY）。
func (t *Terminal) FileProgress(fileID string, events int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || !t.isTTY {
		return
	}
	t.curFileID = shortenBase(fileID, 48)
	t.curEvents = events
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	line := fmt.Sprintf("[file] %s | 事件 %d | 文件 %d/%d | 并发 %d | 用时 %s",
		t.curFileID, t.curEvents, t.filesDone, t.filesTotal, t.concurrency, formatSince(t.runStart))
	t.printInline(line)
}

// FileFinish: 完成一个文件（立即刷新并换行）。
// err 为 nil 记 done；结构错误记 fail（整次运行终止）；取消记 stop；其余记 skip。
func (t *Terminal) FileFinish(fileID string, err error, events int64, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.filesDone++
	status := "done"
	switch {
	case err == nil:
		t.events += events
	case errors.Is(err, contract.ErrStructure):
		t.filesFailed++
		status = "fail"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		t.filesFailed++
		status = "stop"
	default:
		t.filesFailed++
		status = "skip"
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	t.println(fmt.Sprintf("%s %s | 事件 %d | 用时 %s", t.tag(status), shortenBase(fileID, 48), events, formatDur(dur)))
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.println(fmt.Sprintf("%s 全部完成 | 文件 %d (跳过 %d) | 事件 %d | 总用时 %s",
		t.tag(tag), t.filesDone, t.filesFailed, t.events, formatDur(dur)))
}

func (t *Terminal) tag(name string) string {
	label := "[" + name + "]"
	if st, ok := tagStyles[name]; ok && t.isTTY {
		return st.Render(label)
	}
	return label
}

func (t *Terminal) println(s string) {
	if t == nil || !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) printInline(s string) {
	if t == nil || !t.enabled {
		return
	}
	// 新行比旧行短时以空格覆盖残留
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if base == "" {
		return ""
	}
	if visLen(base) <= max {
		return base
	}
	cut := max - 1
	if cut < 1 {
		cut = 1
	}
	rs := []rune(base)
	return string(rs[:cut]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
