package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Reporter shows one phase at a time.
type Reporter struct {
	out     io.Writer
	caps    TerminalCapabilities
	symbols ProgressSymbols

	mu      sync.Mutex
	spin    *spinner.Spinner
	current string
}

// NewReporter returns a Reporter writing to out. The spinner is only used
// when caps reports a TTY; otherwise phases print as plain lines.
func NewReporter(out io.Writer, caps TerminalCapabilities) *Reporter {
	return &Reporter{
		out:     out,
		caps:    caps,
		symbols: SelectSymbols(caps),
	}
}

// Start begins a phase. A phase still running is stopped without a result line.
func (r *Reporter) Start(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.current = message

	if !r.caps.IsTTY {
		return
	}

	s := spinner.New(spinner.CharSets[r.symbols.SpinnerSet], 100*time.Millisecond, spinner.WithWriter(r.out))
	s.Suffix = " " + message
	if r.caps.SupportsColor {
		_ = s.Color("cyan")
	}
	s.Start()
	r.spin = s
}

// Success ends the current phase with a checkmark line.
func (r *Reporter) Success(message string) {
	r.finish(r.symbols.Checkmark, color.FgGreen, message)
}

// Fail ends the current phase with a failure line.
func (r *Reporter) Fail(message string) {
	r.finish(r.symbols.Failure, color.FgRed, message)
}

// Stop ends the current phase without printing a result.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Reporter) finish(symbol string, attr color.Attribute, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	if message == "" {
		message = r.current
	}
	r.current = ""

	if r.caps.SupportsColor {
		symbol = color.New(attr).Sprint(symbol)
	}
	fmt.Fprintf(r.out, "%s %s\n", symbol, message)
}

func (r *Reporter) stopLocked() {
	if r.spin != nil {
		r.spin.Stop()
		r.spin = nil
	}
}

// Track runs fn as a phase: Start(message), then Success or Fail with the
// same message depending on fn's error.
func (r *Reporter) Track(message string, fn func() error) error {
	r.Start(message)
	if err := fn(); err != nil {
		r.Fail(message)
		return err
	}
	r.Success(message)
	return nil
}
