// Package diag writes the human-facing diagnostics of an interaction:
// timeout and failure notices, print actions, warnings, and at higher
// verbosity the raw exchange with the child process.
//
// Structured operational logging stays on log/slog; diag is what a person
// watching the run reads.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Verbosity levels.
const (
	// Quiet prints only notices, warnings and print actions.
	Quiet = 0
	// Transcript additionally tees the child's output.
	Transcript = 1
	// Matches additionally reports every match.
	Matches = 2
	// Trace additionally reports every dispatched action.
	Trace = 3
)

// Printer is a verbosity-gated diagnostic writer. Safe for concurrent use.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	verbosity int

	notice  lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

// New returns a Printer writing to w. Colour is used only when w is a
// terminal and NO_COLOR is unset.
func New(w io.Writer, verbosity int) *Printer {
	r := lipgloss.NewRenderer(w)
	if !colorCapable(w) {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		w:         w,
		verbosity: clamp(verbosity),
		notice:    r.NewStyle().Foreground(lipgloss.Color("12")),
		warning:   r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		failure:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Discard returns a Printer that writes nothing.
func Discard() *Printer {
	return New(io.Discard, Quiet)
}

func colorCapable(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func clamp(v int) int {
	switch {
	case v < Quiet:
		return Quiet
	case v > Trace:
		return Trace
	}
	return v
}

// Verbosity returns the configured level.
func (p *Printer) Verbosity() int {
	return p.verbosity
}

// Enabled reports whether output at level is written.
func (p *Printer) Enabled(level int) bool {
	return p.verbosity >= level
}

// Printf writes a plain line, regardless of verbosity.
func (p *Printer) Printf(format string, args ...any) {
	p.line(lipgloss.Style{}, false, format, args...)
}

// Noticef writes a highlighted line, regardless of verbosity.
func (p *Printer) Noticef(format string, args ...any) {
	p.line(p.notice, true, format, args...)
}

// Warnf writes a warning line, regardless of verbosity.
func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.warning, true, "warning: "+format, args...)
}

// Failf writes a failure line, regardless of verbosity.
func (p *Printer) Failf(format string, args ...any) {
	p.line(p.failure, true, format, args...)
}

// Debugf writes a muted line when level is enabled.
func (p *Printer) Debugf(level int, format string, args ...any) {
	if !p.Enabled(level) {
		return
	}
	p.line(p.muted, true, format, args...)
}

// Writer returns a raw writer for level, or io.Discard when the level is disabled.
func (p *Printer) Writer(level int) io.Writer {
	if !p.Enabled(level) {
		return io.Discard
	}
	return &lockedWriter{p: p}
}

func (p *Printer) line(style lipgloss.Style, styled bool, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if styled {
		msg = style.Render(msg)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, msg)
}

type lockedWriter struct {
	p *Printer
}

func (lw *lockedWriter) Write(b []byte) (int, error) {
	lw.p.mu.Lock()
	defer lw.p.mu.Unlock()
	return lw.p.w.Write(b)
}
