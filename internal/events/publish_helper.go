package events

import "time"

// PublishHelper is the engine's side of the event bus. A nil helper, or one
// built around a nil Publisher, swallows everything so callers never guard.
type PublishHelper struct {
	pub Publisher
}

// NewPublishHelper wraps p.
func NewPublishHelper(p Publisher) *PublishHelper {
	return &PublishHelper{pub: p}
}

func (h *PublishHelper) enabled() bool {
	return h != nil && h.pub != nil
}

// Publish forwards ev unchanged.
func (h *PublishHelper) Publish(ev Event) {
	if h.enabled() {
		h.pub.Publish(ev)
	}
}

// StoreChanged announces one committed mutation. Listeners keyed on a task
// hear about it through the first affected ID; with no IDs the signal goes
// to AllTasks only.
func (h *PublishHelper) StoreChanged(op string, at time.Time, taskIDs ...int64) {
	if !h.enabled() {
		return
	}
	var key int64
	if len(taskIDs) != 0 {
		key = taskIDs[0]
	}
	h.pub.Publish(NewEvent(EventStoreChanged, key, StoreChange{Op: op, TaskIDs: taskIDs}, at))
}

// Notify emits n keyed to its task and stamped with its creation time.
func (h *PublishHelper) Notify(n Notification) {
	if h.enabled() {
		h.pub.Publish(NewEvent(EventNotification, n.TaskID, n, n.CreatedAt))
	}
}
