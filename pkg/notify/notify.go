// Package notify delivers operator notifications without blocking the signing path.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Message is one operator notification.
type Message struct {
	Level  Level  `json:"level"`
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
}

// String renders the message the way chat transports show it.
func (m Message) String() string {
	var b strings.Builder
	if m.Source != "" {
		fmt.Fprintf(&b, "[%s] ", m.Source)
	}
	b.WriteString(m.Text)
	return b.String()
}

// Notifier accepts notifications. Implementations used on the verification
// path must return promptly.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Transport delivers a single message to an external service.
type Transport interface {
	Name() string
	Send(ctx context.Context, text string, msg Message) error
}

// Nop discards every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Message) error { return nil }

// Warnf is a shorthand for a warning message.
func Warnf(source, format string, args ...interface{}) Message {
	return Message{Level: LevelWarn, Source: source, Text: fmt.Sprintf(format, args...)}
}

// Errorf is a shorthand for an error message.
func Errorf(source, format string, args ...interface{}) Message {
	return Message{Level: LevelError, Source: source, Text: fmt.Sprintf(format, args...)}
}
