package progress

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"unflatten/internal/logging"
)

// Reporter provides progress feedback for a phase of work whose size becomes
// known incrementally. Grow and Advance are safe for concurrent use.
type Reporter interface {
	Start(description string)
	Grow(n int)
	Advance(n int)
	Finish()
}

// New returns a TerminalReporter when out is an interactive terminal and a
// LogReporter otherwise.
func New(out *os.File, logger *slog.Logger) Reporter {
	if out != nil && isatty.IsTerminal(out.Fd()) && os.Getenv("CI") == "" {
		return NewTerminal(out)
	}
	return NewLog(logger)
}

// Nop returns a Reporter that does nothing.
func Nop() Reporter {
	return nopReporter{}
}

type nopReporter struct{}

func (nopReporter) Start(string) {}
func (nopReporter) Grow(int)     {}
func (nopReporter) Advance(int)  {}
func (nopReporter) Finish()      {}

// TerminalReporter displays a progress bar.
type TerminalReporter struct {
	mu          sync.Mutex
	out         io.Writer
	description string
	max         int
	bar         *progressbar.ProgressBar
}

// NewTerminal creates a progress bar reporter writing to out.
func NewTerminal(out io.Writer) *TerminalReporter {
	return &TerminalReporter{out: out}
}

func (r *TerminalReporter) Start(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked()
	r.description = description
	r.max = 0
}

func (r *TerminalReporter) Grow(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.max += n
	if r.bar == nil {
		r.bar = progressbar.NewOptions(r.max,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription(r.description),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		return
	}
	r.bar.ChangeMax(r.max)
}

func (r *TerminalReporter) Advance(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Add(n)
	}
}

func (r *TerminalReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked()
}

func (r *TerminalReporter) finishLocked() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

// LogReporter emits sampled progress lines through the logger.
type LogReporter struct {
	mu          sync.Mutex
	logger      *slog.Logger
	sampler     *logging.ProgressSampler
	description string
	total       int
	done        int
}

// NewLog creates a reporter that logs at most once per 10% of progress.
func NewLog(logger *slog.Logger) *LogReporter {
	return &LogReporter{
		logger:  logging.NewComponentLogger(logger, "progress"),
		sampler: logging.NewProgressSampler(10),
	}
}

func (r *LogReporter) Start(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.description = description
	r.total = 0
	r.done = 0
	r.sampler.Reset()
}

func (r *LogReporter) Grow(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total += n
}

func (r *LogReporter) Advance(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done += n
	if r.sampler.ShouldLog(r.done, r.total) {
		r.logger.Info(r.description,
			logging.Int("done", r.done),
			logging.Int("total", r.total))
	}
}

func (r *LogReporter) Finish() {}
