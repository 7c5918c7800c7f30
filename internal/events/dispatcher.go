package events

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 16

// Type names a proposal change.
type Type string

const (
	TypeProposalCreated       Type = "proposal-created"
	TypeProposalVoted         Type = "proposal-voted"
	TypeCommentAdded          Type = "comment-added"
	TypeProposalStatusChanged Type = "proposal-status-changed"
	TypeProposalDeleted       Type = "proposal-deleted"
)

// Event announces that a proposal changed.
type Event struct {
	Type       Type
	ProposalID string
	Timestamp  time.Time
}

// Publisher accepts change events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher fans events out to in-process subscribers. Slow subscribers drop
// events rather than block publishers.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      int64
	bufferSize  int
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[int64]chan Event),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe registers a subscriber until ctx ends or the returned cleanup runs.
func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	stream := make(chan Event, d.bufferSize)

	d.mu.Lock()
	d.nextID++
	subscriberID := d.nextID
	d.subscribers[subscriberID] = stream
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, subscriberID)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish delivers the event to every current subscriber.
func (d *Dispatcher) Publish(_ context.Context, event Event) error {
	if event.Type == "" {
		return nil
	}
	d.mu.RLock()
	copies := make([]chan Event, 0, len(d.subscribers))
	for _, stream := range d.subscribers {
		copies = append(copies, stream)
	}
	d.mu.RUnlock()
	for _, stream := range copies {
		select {
		case stream <- event:
		default:
		}
	}
	return nil
}

// SubscriberCount reports the number of live subscribers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
