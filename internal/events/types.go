// Package events provides event types and publishing infrastructure for hrdesk.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventStoreChanged is published once after every successful mutation.
	EventStoreChanged EventType = "store_changed"
	// EventNotification carries a Notification for a business event.
	EventNotification EventType = "notification"
)

// Event represents a published event.
type Event struct {
	Type   EventType `json:"type"`
	TaskID int64     `json:"task_id"`
	Data   any       `json:"data"`
	Time   time.Time `json:"time"`
}

// NewEvent creates a new event stamped with at.
func NewEvent(eventType EventType, taskID int64, data any, at time.Time) Event {
	return Event{
		Type:   eventType,
		TaskID: taskID,
		Data:   data,
		Time:   at,
	}
}

// StoreChange describes the mutation behind a store_changed event.
type StoreChange struct {
	Op      string  `json:"op"` // create, update, delete, tick, import, ...
	TaskIDs []int64 `json:"task_ids,omitempty"`
}

// NotificationType classifies a notification.
type NotificationType string

const (
	NotifyCreated       NotificationType = "created"
	NotifyAssigned      NotificationType = "assigned"
	NotifyDue           NotificationType = "due"
	NotifyOverdue       NotificationType = "overdue"
	NotifyCompleted     NotificationType = "completed"
	NotifyStatusChanged NotificationType = "status_changed"
	NotifyUnblocked     NotificationType = "unblocked"
)

// Notification is a user-facing record of a business event.
type Notification struct {
	ID         string           `json:"id"`
	TaskID     int64            `json:"task_id"`
	Type       NotificationType `json:"type"`
	TargetUser string           `json:"target_user,omitempty"` // empty means everyone
	Message    string           `json:"message"`
	CreatedAt  time.Time        `json:"created_at"`
	Read       bool             `json:"read"`
	Priority   string           `json:"priority"`
}
