// Package audit provides the command audit trail for remctld. Every
// dispatched command produces one entry recording who ran what, with
// sensitive argument positions masked per the matched rule. Entries
// follow a key=value format suitable for parsing and analysis.
package audit

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sigmaris/remctl/internal/config"
)

// Masked replaces the value of masked argument positions in rendered
// commands.
const Masked = "**MASKED**"

// EventType represents the type of audit event.
type EventType string

// Event types for command dispatch.
const (
	// EventCommand records a command reaching the dispatcher, after rule
	// lookup (so masking can apply) and before the ACL decision.
	EventCommand EventType = "COMMAND"
	// EventDeny records an ACL denial.
	EventDeny EventType = "DENY"
	// EventUnknown records a command matching no rule.
	EventUnknown EventType = "UNKNOWN"
	// EventComplete records command completion with its canonical status.
	EventComplete EventType = "COMPLETE"
	// EventSummary records a summary (bare help) request.
	EventSummary EventType = "SUMMARY"
)

// Event represents one audit log entry.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Type is the event type.
	Type EventType

	// User is the authenticated principal.
	User string

	// Addr is the peer address.
	Addr string

	// ID is the request identifier assigned by the session layer.
	ID string

	// Cmd is the rendered command line, already masked.
	Cmd string

	// Reason is the denial reason (DENY events).
	Reason string

	// Status is the canonical exit status (COMPLETE events).
	Status int

	// Duration is the execution time (COMPLETE events).
	Duration time.Duration
}

// Format returns the log entry as a formatted string:
//
//	2026-01-15T14:32:05Z COMMAND user="alice@EXAMPLE.ORG" addr=10.0.0.1 id=4f9d cmd="backup start"
func (e *Event) Format() string {
	var b strings.Builder

	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(string(e.Type))
	b.WriteString(" user=")
	b.WriteString(strconv.Quote(e.User))
	b.WriteString(" addr=")
	b.WriteString(e.Addr)
	if e.ID != "" {
		b.WriteString(" id=")
		b.WriteString(e.ID)
	}
	b.WriteString(" cmd=")
	b.WriteString(strconv.Quote(e.Cmd))

	switch e.Type {
	case EventDeny:
		if e.Reason != "" {
			b.WriteString(" reason=")
			b.WriteString(strconv.Quote(e.Reason))
		}
	case EventComplete:
		b.WriteString(" status=")
		b.WriteString(strconv.Itoa(e.Status))
		b.WriteString(" duration=")
		b.WriteString(formatDuration(e.Duration))
	}

	return b.String()
}

// formatDuration formats a duration as a short human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// RenderCommand renders request argument chunks as a space-joined command
// line for the audit log, masking the positions the rule marks as
// sensitive. A nil rule applies no masking. Arguments containing bytes
// outside printable ASCII are rendered quoted.
func RenderCommand(args [][]byte, rule *config.Rule) string {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteString(" ")
		}
		if rule != nil && rule.MasksArg(i) {
			b.WriteString(Masked)
			continue
		}
		s := string(arg)
		if printable(s) {
			b.WriteString(s)
		} else {
			b.WriteString(strconv.Quote(s))
		}
	}
	return b.String()
}

// printable reports whether s contains only printable ASCII without
// double quotes.
func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e || s[i] == '"' {
			return false
		}
	}
	return true
}

// Logger writes audit events to an io.Writer.
type Logger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogger creates a new audit logger that writes to the given writer.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Log writes an event to the audit log. A nil logger or writer discards
// the event.
func (l *Logger) Log(e *Event) error {
	if l == nil || l.w == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	line := e.Format() + "\n"
	if _, err := l.w.Write([]byte(line)); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// LogCommand logs a COMMAND event for a dispatched request.
func (l *Logger) LogCommand(user, addr, id, cmd string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      EventCommand,
		User:      user,
		Addr:      addr,
		ID:        id,
		Cmd:       cmd,
	})
}

// LogDeny logs a DENY event for an ACL refusal.
func (l *Logger) LogDeny(user, addr, id, cmd, reason string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      EventDeny,
		User:      user,
		Addr:      addr,
		ID:        id,
		Cmd:       cmd,
		Reason:    reason,
	})
}

// LogUnknown logs an UNKNOWN event for a command matching no rule.
func (l *Logger) LogUnknown(user, addr, id, cmd string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      EventUnknown,
		User:      user,
		Addr:      addr,
		ID:        id,
		Cmd:       cmd,
	})
}

// LogComplete logs a COMPLETE event with the canonical exit status.
func (l *Logger) LogComplete(user, addr, id, cmd string, status int, duration time.Duration) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      EventComplete,
		User:      user,
		Addr:      addr,
		ID:        id,
		Cmd:       cmd,
		Status:    status,
		Duration:  duration,
	})
}

// LogSummary logs a SUMMARY event for a bare help request.
func (l *Logger) LogSummary(user, addr, id string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      EventSummary,
		User:      user,
		Addr:      addr,
		ID:        id,
		Cmd:       "help",
	})
}
