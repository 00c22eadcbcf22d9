package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"devtrack/internal/ui/theme"
)

// humanLayout renders instants the way people read them, e.g.
// "Oct 19, 2026, 9:05:00 AM".
const humanLayout = "Jan 2, 2006, 3:04:05 PM"

type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) printer {
	return printer{w: w}
}

func (p printer) line(style lipgloss.Style, format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, style.Render(fmt.Sprintf(format, args...)))
}

func (p printer) Success(format string, args ...any) { p.line(theme.Success, "✓ "+format, args...) }
func (p printer) Warn(format string, args ...any)    { p.line(theme.Warn, "⚠ "+format, args...) }
func (p printer) Info(format string, args ...any)    { p.line(theme.Info, format, args...) }
func (p printer) Muted(format string, args ...any)   { p.line(theme.Muted, format, args...) }

// hoursMinutes formats whole minutes as "Xh Ym".
func hoursMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// hoursMinutesSeconds formats seconds as "Xh Ym Zs".
func hoursMinutesSeconds(seconds float64) string {
	d := time.Duration(seconds) * time.Second
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", total/3600, total/60%60, total%60)
}
