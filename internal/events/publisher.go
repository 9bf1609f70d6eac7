package events

import (
	"sync"
	"sync/atomic"
)

// AllTasks is the subscription key that receives events for every task.
// Task IDs start at 1, so it never collides with a real task.
const AllTasks int64 = 0

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 100

// Publisher fans engine events out to subscribers.
type Publisher interface {
	// Publish delivers event to subscribers of event.TaskID and of AllTasks.
	Publish(event Event)
	// Subscribe opens a subscription for one task, or AllTasks.
	Subscribe(taskID int64) <-chan Event
	// Unsubscribe closes a subscription opened by Subscribe.
	Unsubscribe(taskID int64, ch <-chan Event)
	// Close closes every subscription. Later calls are no-ops.
	Close()
}

// MemoryPublisher delivers events in process. Publish never blocks the
// engine: a subscriber whose queue is full misses the event and the miss is
// counted.
type MemoryPublisher struct {
	mu         sync.RWMutex
	topics     map[int64]map[<-chan Event]chan Event
	bufferSize int
	closed     bool
	dropped    atomic.Uint64
}

// PublisherOption configures a MemoryPublisher.
type PublisherOption func(*MemoryPublisher)

// WithBufferSize sets each subscriber's queue length. Values below one
// leave the default.
func WithBufferSize(size int) PublisherOption {
	return func(p *MemoryPublisher) {
		if size > 0 {
			p.bufferSize = size
		}
	}
}

// NewMemoryPublisher creates an empty publisher.
func NewMemoryPublisher(opts ...PublisherOption) *MemoryPublisher {
	p := &MemoryPublisher{
		topics:     make(map[int64]map[<-chan Event]chan Event),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MemoryPublisher) deliver(topic int64, event Event) {
	for _, ch := range p.topics[topic] {
		select {
		case ch <- event:
		default:
			p.dropped.Add(1)
		}
	}
}

// Publish implements Publisher. An event for AllTasks reaches AllTasks
// subscribers once.
func (p *MemoryPublisher) Publish(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	p.deliver(event.TaskID, event)
	if event.TaskID != AllTasks {
		p.deliver(AllTasks, event)
	}
}

// Subscribe implements Publisher. After Close it returns a closed channel.
func (p *MemoryPublisher) Subscribe(taskID int64) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return closedChan()
	}
	ch := make(chan Event, p.bufferSize)
	subs := p.topics[taskID]
	if subs == nil {
		subs = make(map[<-chan Event]chan Event)
		p.topics[taskID] = subs
	}
	subs[ch] = ch
	return ch
}

// Unsubscribe implements Publisher. Unknown channels are ignored.
func (p *MemoryPublisher) Unsubscribe(taskID int64, ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.topics[taskID]
	if sub, ok := subs[ch]; ok {
		delete(subs, ch)
		close(sub)
	}
	if len(subs) == 0 {
		delete(p.topics, taskID)
	}
}

// Close implements Publisher.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.topics {
		for _, ch := range subs {
			close(ch)
		}
	}
	clear(p.topics)
}

// SubscriberCount returns the number of open subscriptions for taskID.
func (p *MemoryPublisher) SubscriberCount(taskID int64) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.topics[taskID])
}

// Dropped returns how many deliveries were skipped because a subscriber's
// queue was full.
func (p *MemoryPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

func closedChan() <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

// NopPublisher discards events. Subscriptions are closed immediately.
type NopPublisher struct{}

// NewNopPublisher creates a publisher that discards everything.
func NewNopPublisher() *NopPublisher { return &NopPublisher{} }

func (*NopPublisher) Publish(Event) {}
func (*NopPublisher) Subscribe(int64) <-chan Event { return closedChan() }
func (*NopPublisher) Unsubscribe(int64, <-chan Event) {}
func (*NopPublisher) Close() {}
