package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// BarRenderer shows batch progress. On a TTY it redraws a single status
// line and leaves failures printed above it; elsewhere it writes one
// timestamped line per event.
type BarRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	start   time.Time
	isTTY   bool
	width   int
	drawn   bool // status line currently on screen
	summary *Event
}

// NewBarRenderer creates a renderer for out, sizing the bar to the terminal.
func NewBarRenderer(out *os.File) *BarRenderer {
	fd := out.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	width := 80
	if tty {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}
	return newBarRenderer(out, tty, width)
}

func newBarRenderer(out io.Writer, tty bool, width int) *BarRenderer {
	return &BarRenderer{out: out, start: time.Now(), isTTY: tty, width: width}
}

// Handle renders e. It satisfies Callback.
func (r *BarRenderer) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.Elapsed = time.Since(r.start)
	if e.Stage == StageComplete {
		e.Percent = 1
		r.summary = &e
		if r.isTTY {
			r.drawStatus(e)
		}
		return
	}

	if !r.isTTY {
		fmt.Fprintln(r.out, r.plainLine(e))
		return
	}
	if e.Error != nil {
		r.eraseStatus()
		fmt.Fprintf(r.out, "  ! %s: %v\n", e.Message, e.Error)
	}
	r.drawStatus(e)
}

// Finish erases the status line and prints the batch summary, if one was seen.
func (r *BarRenderer) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.eraseStatus()
	if r.summary == nil {
		return
	}
	s := r.summary
	fmt.Fprintf(r.out, "\n  %s: %d succeeded, %d failed (%s)\n", s.Message, s.Succeeded, s.Failed, formatElapsed(s.Elapsed))
}

func (r *BarRenderer) plainLine(e Event) string {
	prefix := fmt.Sprintf("[%s]", formatElapsed(e.Elapsed))
	if e.Total > 0 {
		prefix += fmt.Sprintf(" %d/%d", e.Done, e.Total)
	}
	if e.Error != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Error)
	}
	return prefix + " " + e.Message
}

func (r *BarRenderer) drawStatus(e Event) {
	r.eraseStatus()
	counter := fmt.Sprintf("%d/%d", e.Done, e.Total)
	line := fmt.Sprintf("  %s %s %s  %s", renderBar(e.Percent, r.barWidth()), counter, formatElapsed(e.Elapsed), e.Message)
	fmt.Fprint(r.out, truncate(line, r.width))
	r.drawn = true
}

func (r *BarRenderer) eraseStatus() {
	if !r.drawn {
		return
	}
	fmt.Fprint(r.out, "\r\033[2K")
	r.drawn = false
}

// barWidth leaves room for the counter, clock and a short message.
func (r *BarRenderer) barWidth() int {
	return min(max(r.width/3, 10), 40)
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 1 || len(runes) < width {
		return s
	}
	return string(runes[:width-1])
}

// renderBar draws a [####....] bar with width cells.
func renderBar(pct float64, width int) string {
	pct = min(max(pct, 0), 1)
	filled := min(int(pct*float64(width)), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// formatElapsed formats d as M:SS.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
