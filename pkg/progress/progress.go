// pkg/progress/progress.go - status reporting for long-running store operations.

package progress

import (
	"fmt"
	"io"
	"sync"
)

// Reporter receives status updates while an operation runs.
type Reporter interface {
	Message(txt string)
	Percent(pct int) // -1 = indeterminate
	Error(err error)
}

// NoOpReporter implements Reporter but does nothing (for headless operation).
type NoOpReporter struct{}

// NewNoOpReporter returns a Reporter that discards everything.
func NewNoOpReporter() Reporter {
	return NoOpReporter{}
}

func (NoOpReporter) Message(string) {}
func (NoOpReporter) Percent(int)    {}
func (NoOpReporter) Error(error)    {}

// ConsoleReporter writes one status line per update.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
	pct int
}

// NewConsoleReporter returns a Reporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out, pct: -1}
}

// Message prints txt, prefixed with the last known percentage.
func (r *ConsoleReporter) Message(txt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pct >= 0 {
		fmt.Fprintf(r.out, "[%3d%%] %s\n", r.pct, txt)
		return
	}
	fmt.Fprintln(r.out, txt)
}

// Percent records progress for the next message.
func (r *ConsoleReporter) Percent(pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case pct > 100:
		pct = 100
	case pct < -1:
		pct = -1
	}
	r.pct = pct
}

// Error prints err.
func (r *ConsoleReporter) Error(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "error: %v\n", err)
}
