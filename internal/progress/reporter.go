// Package progress reports how far an index build has got.
package progress

import (
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ziadkadry99/productassist/internal/logging"
)

// Reporter receives progress during an index build.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a TerminalReporter for interactive commands, or a
// LogReporter when running under CI or as a server.
func NewReporter(interactive bool) Reporter {
	if !interactive || os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return NewLogReporter(logging.WithComponent("index"), 5*time.Second)
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Embedding catalog"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar != nil {
		r.bar.Describe(message)
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// LogReporter writes progress as structured log lines, at most once per
// interval apart from the first and last.
type LogReporter struct {
	logger   *slog.Logger
	interval time.Duration
	total    int
	last     time.Time
	now      func() time.Time
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger *slog.Logger, interval time.Duration) *LogReporter {
	return &LogReporter{logger: logger, interval: interval, now: time.Now}
}

func (r *LogReporter) Start(total int) {
	r.total = total
	r.last = r.now()
	r.logger.Info("index build started", "documents", total)
}

func (r *LogReporter) Update(current int, message string) {
	if current < r.total && r.now().Sub(r.last) < r.interval {
		return
	}
	r.last = r.now()
	r.logger.Info(message, "done", current, "total", r.total)
}

func (r *LogReporter) Finish() {
	r.logger.Info("index build finished", "documents", r.total)
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(int)          {}
func (Nop) Update(int, string) {}
func (Nop) Finish()            {}
