package link

import (
	"fmt"
	"strings"
)

// InfoLog collects human-readable link diagnostics. The zero value is
// ready to use.
type InfoLog struct {
	lines []string
}

// Printf appends one formatted message. Messages never contain a
// trailing newline; String joins them.
func (l *InfoLog) Printf(format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	// Embedded NULs would truncate the log for C-string consumers.
	msg = strings.ReplaceAll(msg, "\x00", "")
	l.lines = append(l.lines, msg)
}

// Lines returns the recorded messages in order.
func (l *InfoLog) Lines() []string {
	return l.lines
}

// Empty reports whether nothing was logged.
func (l *InfoLog) Empty() bool {
	return len(l.lines) == 0
}

// Reset discards all messages.
func (l *InfoLog) Reset() {
	l.lines = nil
}

// String returns the log with one message per line.
func (l *InfoLog) String() string {
	if len(l.lines) == 0 {
		return ""
	}
	return strings.Join(l.lines, "\n") + "\n"
}
