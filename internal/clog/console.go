// Package clog provides the structured console logger every CortexOS
// component accepts explicitly through its constructor. There is no
// package-level singleton: the Engine owns one Logger and threads it
// down to the planner, pool, swarm coordinator and sandbox.
package clog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const (
	LevelTrace int = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func levelFromString(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the explicit logging context passed to every component.
// Stage/task/wave events map onto CortexOS's own vocabulary rather
// than a generic orchestrator's.
type Logger interface {
	Stage(name string, detail string)
	WaveStart(waveNumber int, taskIDs []string)
	WaveComplete(waveNumber int, duration time.Duration, succeeded, failed int)
	TaskResult(taskID string, success bool, detail string)
	Budget(msg string)
	Event(kind string, detail string)
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// Console is a thread-safe Logger writing timestamped, optionally
// colored lines to an io.Writer.
type Console struct {
	w       io.Writer
	level   int
	mu      sync.Mutex
	color   bool
	verbose bool
}

// New builds a Console logger. Color is auto-detected when w is
// os.Stdout/os.Stderr attached to a TTY.
func New(w io.Writer, level string) *Console {
	return &Console{
		w:     w,
		level: levelFromString(level),
		color: isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

// terminalWidth returns stdout's current width, capped between 60
// (minimum readable) and 120 (max for readability), falling back to
// 80 when the output isn't a TTY or the ioctl fails.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 60 {
		return 80
	}
	if width > 120 {
		return 120
	}
	return width
}

// wrapLines greedily word-wraps text to fit within maxLen characters
// per line.
func wrapLines(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 80
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) <= maxLen {
			current += " " + word
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	return append(lines, current)
}

func (c *Console) SetVerbose(v bool) { c.mu.Lock(); c.verbose = v; c.mu.Unlock() }

func (c *Console) line(level int, prefix string, colorFn func(format string, a ...interface{}) string, format string, args ...any) {
	if level < c.level || c.w == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := time.Now().Format("15:04:05")

	// "[HH:MM:SS] prefix " eats into the available width before the
	// message itself starts wrapping.
	budget := terminalWidth() - len(ts) - len(prefix) - 4
	msgLines := wrapLines(fmt.Sprintf(format, args...), budget)

	for i, msg := range msgLines {
		if i > 0 {
			ts, prefix = "...", ""
		}
		if c.color && colorFn != nil {
			fmt.Fprintf(c.w, "[%s] %s\n", ts, colorFn("%s %s", prefix, msg))
		} else {
			fmt.Fprintf(c.w, "[%s] %s %s\n", ts, prefix, msg)
		}
	}
}

func (c *Console) Stage(name, detail string) {
	c.line(LevelInfo, "stage", color.CyanString, "%s %s", name, detail)
}

func (c *Console) WaveStart(waveNumber int, taskIDs []string) {
	c.line(LevelInfo, "wave", color.BlueString, "wave %d starting: %s", waveNumber, strings.Join(taskIDs, ", "))
}

func (c *Console) WaveComplete(waveNumber int, duration time.Duration, succeeded, failed int) {
	c.line(LevelInfo, "wave", color.BlueString, "wave %d done in %s (%d ok, %d failed)", waveNumber, duration.Round(time.Millisecond), succeeded, failed)
}

func (c *Console) TaskResult(taskID string, success bool, detail string) {
	if success {
		c.line(LevelInfo, "task", color.GreenString, "%s ok: %s", taskID, detail)
	} else {
		c.line(LevelWarn, "task", color.RedString, "%s failed: %s", taskID, detail)
	}
}

func (c *Console) Budget(msg string) {
	c.line(LevelWarn, "budget", color.YellowString, "%s", msg)
}

func (c *Console) Event(kind, detail string) {
	c.line(LevelDebug, "event", color.MagentaString, "%s %s", kind, detail)
}

func (c *Console) Errorf(format string, args ...any) { c.line(LevelError, "error", color.RedString, format, args...) }
func (c *Console) Warnf(format string, args ...any)  { c.line(LevelWarn, "warn", color.YellowString, format, args...) }
func (c *Console) Infof(format string, args ...any)  { c.line(LevelInfo, "info", nil, format, args...) }
func (c *Console) Debugf(format string, args ...any) { c.line(LevelDebug, "debug", color.HiBlackString, format, args...) }

var _ Logger = (*Console)(nil)

// Noop discards everything; useful for tests that don't care about
// log output but still need to satisfy the Logger interface.
type Noop struct{}

func (Noop) Stage(string, string)                              {}
func (Noop) WaveStart(int, []string)                            {}
func (Noop) WaveComplete(int, time.Duration, int, int)          {}
func (Noop) TaskResult(string, bool, string)                    {}
func (Noop) Budget(string)                                      {}
func (Noop) Event(string, string)                               {}
func (Noop) Errorf(string, ...any)                               {}
func (Noop) Warnf(string, ...any)                                {}
func (Noop) Infof(string, ...any)                                {}
func (Noop) Debugf(string, ...any)                               {}

var _ Logger = Noop{}
