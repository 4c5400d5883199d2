package events

import (
	"sync"
	"time"

	"bscwallet/pkg/logger"
)

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventProgress EventType = "progress"
	EventState    EventType = "state"
	EventResult   EventType = "result"
)

// Event is one notification about a running or finished operation.
type Event struct {
	TaskID  string    `json:"task_id"`
	Op      string    `json:"op"`
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Time    time.Time `json:"time"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// SubscriberBuffer is the capacity of each subscriber channel.
const SubscriberBuffer = 100

// DeliveryTimeout bounds how long a state or result event waits for room in a full
// subscriber buffer.
const DeliveryTimeout = 2 * time.Second

// Bus fans events out to every subscriber. Progress events never block and are
// dropped for a subscriber whose buffer is full. State and result events wait up to
// the delivery timeout for the subscriber to catch up.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	now         func() time.Time
	timeout     time.Duration
}

func NewBus() *Bus {
	return &Bus{now: time.Now, timeout: DeliveryTimeout}
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (b *Bus) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(Subscriber, SubscriberBuffer)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = b.now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- event:
			continue
		default:
		}
		if event.Type != EventProgress {
			b.deliver(sub, event)
		}
	}
}

func (b *Bus) deliver(sub Subscriber, event Event) {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case sub <- event:
	case <-timer.C:
		logger.WarnCF("events", "Subscriber not draining, event dropped", map[string]any{
			"task": event.TaskID,
			"type": string(event.Type),
		})
	}
}

// Progress adapts the bus to the one-argument progress callback used by the
// balance, keygen and supply packages.
func (b *Bus) Progress(taskID, op string) func(string) {
	return func(msg string) {
		b.Publish(Event{TaskID: taskID, Op: op, Type: EventProgress, Message: msg})
	}
}
