package events

import (
	"context"
	"slices"
	"sync"
)

// DefaultInboxLimit caps retained notifications per recipient.
const DefaultInboxLimit = 200

// Inbox retains notifications per recipient so a UI can list and mark them
// read. Notifications without a target user go to the shared bucket, which
// every user sees.
type Inbox struct {
	mu     sync.Mutex
	byUser map[string][]Notification
	limit  int
}

// NewInbox creates an inbox keeping at most limit notifications per
// recipient. A non-positive limit uses DefaultInboxLimit.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	return &Inbox{byUser: make(map[string][]Notification), limit: limit}
}

// Add stores a notification, evicting the oldest one when full.
func (in *Inbox) Add(n Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()

	list := append(in.byUser[n.TargetUser], n)
	if len(list) > in.limit {
		list = slices.Clone(list[len(list)-in.limit:])
	}
	in.byUser[n.TargetUser] = list
}

// For returns the notifications visible to user, newest first.
func (in *Inbox) For(user string, unreadOnly bool) []Notification {
	in.mu.Lock()
	defer in.mu.Unlock()

	var out []Notification
	collect := func(list []Notification) {
		for _, n := range list {
			if !unreadOnly || !n.Read {
				out = append(out, n)
			}
		}
	}
	collect(in.byUser[user])
	if user != "" {
		collect(in.byUser[""])
	}

	slices.SortStableFunc(out, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Unread counts unread notifications visible to user.
func (in *Inbox) Unread(user string) int {
	return len(in.For(user, true))
}

// MarkRead marks a notification read and reports whether it was found.
func (in *Inbox) MarkRead(user, id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, key := range []string{user, ""} {
		list := in.byUser[key]
		for i := range list {
			if list[i].ID == id {
				list[i].Read = true
				return true
			}
		}
	}
	return false
}

// MarkAllRead marks every notification visible to user as read.
func (in *Inbox) MarkAllRead(user string) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	n := 0
	for _, key := range []string{user, ""} {
		list := in.byUser[key]
		for i := range list {
			if !list[i].Read {
				list[i].Read = true
				n++
			}
		}
	}
	return n
}

// Run feeds notification events from a publisher into the inbox until ctx
// is done or the subscription closes.
func (in *Inbox) Run(ctx context.Context, pub Publisher) {
	ch := pub.Subscribe(AllTasks)
	defer pub.Unsubscribe(AllTasks, ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if n, isNote := ev.Data.(Notification); isNote {
				in.Add(n)
			}
		}
	}
}
