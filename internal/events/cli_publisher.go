package events

import (
	"fmt"
	"io"
	"sync"
)

// CLIPublisher echoes notifications to a terminal stream, one line each.
// Subscriptions are served by an optional inner publisher, which also
// receives every published event; without one, subscribers get a closed
// channel.
type CLIPublisher struct {
	mu   sync.Mutex
	w    io.Writer
	next Publisher
	// verboseStore prints a line for every store_changed signal too.
	verboseStore bool
}

// CLIPublisherOption configures a CLIPublisher.
type CLIPublisherOption func(*CLIPublisher)

// WithInnerPublisher chains p behind the printer.
func WithInnerPublisher(p Publisher) CLIPublisherOption {
	return func(c *CLIPublisher) { c.next = p }
}

// WithStoreChanges toggles the store_changed lines.
func WithStoreChanges(enabled bool) CLIPublisherOption {
	return func(c *CLIPublisher) { c.verboseStore = enabled }
}

// NewCLIPublisher creates a printer writing to w.
func NewCLIPublisher(w io.Writer, opts ...CLIPublisherOption) *CLIPublisher {
	c := &CLIPublisher{w: w}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish implements Publisher.
func (c *CLIPublisher) Publish(event Event) {
	if c.next != nil {
		c.next.Publish(event)
	}
	line := c.render(event)
	if line == "" {
		return
	}
	c.mu.Lock()
	_, _ = io.WriteString(c.w, line)
	c.mu.Unlock()
}

func (c *CLIPublisher) render(event Event) string {
	switch d := event.Data.(type) {
	case Notification:
		var to string
		if d.TargetUser != "" {
			to = " @" + d.TargetUser
		}
		return fmt.Sprintf("%s [%s]%s %s\n", d.Type.Glyph(), d.Type, to, d.Message)
	case StoreChange:
		if c.verboseStore {
			return fmt.Sprintf("· store changed (%s) %v\n", d.Op, d.TaskIDs)
		}
	}
	return ""
}

// Glyph is the one-character marker printed before a notification line.
func (t NotificationType) Glyph() string {
	switch t {
	case NotifyCompleted:
		return "✓"
	case NotifyOverdue:
		return "!"
	case NotifyDue:
		return "⏰"
	case NotifyUnblocked:
		return "→"
	}
	return "•"
}

// Subscribe implements Publisher.
func (c *CLIPublisher) Subscribe(taskID int64) <-chan Event {
	if c.next == nil {
		return closedChan()
	}
	return c.next.Subscribe(taskID)
}

// Unsubscribe implements Publisher.
func (c *CLIPublisher) Unsubscribe(taskID int64, ch <-chan Event) {
	if c.next != nil {
		c.next.Unsubscribe(taskID, ch)
	}
}

// Close implements Publisher.
func (c *CLIPublisher) Close() {
	if c.next != nil {
		c.next.Close()
	}
}
