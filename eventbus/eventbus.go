package eventbus

import (
	"slices"
	"sync"

	"github.com/czx-lab/garuda/xlog"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"
)

// All receives every published event, whatever its topic.
const All = "*"

var defaultCapacity = 100

type (
	// Message is what subscribers receive: the topic it was published on and
	// its data.
	Message struct {
		Topic string
		Data  any
	}

	// CancelFunc removes a subscription. It is safe to call more than once.
	CancelFunc func()

	EventBus struct {
		mu       sync.RWMutex
		handlers map[string][]chan Message
		capacity int
		closed   bool
	}
)

// NewEventBus creates a bus whose subscriber channels buffer capacity
// messages. A full subscriber loses messages instead of blocking Publish.
func NewEventBus(capacity int) *EventBus {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	return &EventBus{
		handlers: make(map[string][]chan Message),
		capacity: capacity,
	}
}

// SubscribeOnChannel returns a channel receiving the messages of topic. It is
// closed by UnsubscribeChannel, Unsubscribe or Close.
func (eb *EventBus) SubscribeOnChannel(topic string) <-chan Message {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Message, eb.capacity)
	if eb.closed {
		close(ch)
		return ch
	}
	eb.handlers[topic] = append(eb.handlers[topic], ch)

	return ch
}

// Subscribe runs callback for every message of topic on a dedicated
// goroutine, in publish order. A panicking callback is recovered.
func (eb *EventBus) Subscribe(topic string, callback func(Message)) CancelFunc {
	return eb.SubscribeWithFilter(topic, nil, callback)
}

// SubscribeWithFilter is Subscribe restricted to the messages filter accepts.
func (eb *EventBus) SubscribeWithFilter(topic string, filter func(Message) bool, callback func(Message)) CancelFunc {
	ch := eb.SubscribeOnChannel(topic)

	go func() {
		for msg := range ch {
			if callback == nil || (filter != nil && !filter(msg)) {
				continue
			}
			threading.RunSafe(func() {
				callback(msg)
			})
		}
	}()

	return eb.canceler(topic, ch)
}

// SubscribeOnce delivers at most one message of topic.
func (eb *EventBus) SubscribeOnce(topic string, callback func(Message)) CancelFunc {
	ch := eb.SubscribeOnChannel(topic)
	cancel := eb.canceler(topic, ch)

	go func() {
		msg, ok := <-ch
		cancel()
		if !ok || callback == nil {
			return
		}
		threading.RunSafe(func() {
			callback(msg)
		})
	}()

	return cancel
}

func (eb *EventBus) canceler(topic string, ch <-chan Message) CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			eb.UnsubscribeChannel(topic, ch)
		})
	}
}

// Unsubscribe removes every subscriber of topic.
func (eb *EventBus) Unsubscribe(topic string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, ch := range eb.handlers[topic] {
		close(ch)
	}
	delete(eb.handlers, topic)
}

// UnsubscribeChannel removes one subscriber channel and closes it.
func (eb *EventBus) UnsubscribeChannel(topic string, ch <-chan Message) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscribers, ok := eb.handlers[topic]
	if !ok {
		return
	}

	for i, subscriber := range subscribers {
		if subscriber == ch {
			eb.handlers[topic] = slices.Delete(subscribers, i, i+1)
			close(subscriber)
			break
		}
	}

	if len(eb.handlers[topic]) == 0 {
		delete(eb.handlers, topic)
	}
}

// Publish hands data to the subscribers of topic and of All. It never blocks:
// a subscriber whose buffer is full misses the message.
func (eb *EventBus) Publish(topic string, data any) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	msg := Message{Topic: topic, Data: data}
	eb.deliver(topic, msg)
	if topic != All {
		eb.deliver(All, msg)
	}
}

func (eb *EventBus) deliver(topic string, msg Message) {
	for _, ch := range eb.handlers[topic] {
		select {
		case ch <- msg:
		default:
			xlog.Write().Warn("eventbus: subscriber full, message dropped", zap.String("topic", msg.Topic))
		}
	}
}

// Subscribers returns the number of subscribers of topic.
func (eb *EventBus) Subscribers(topic string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	return len(eb.handlers[topic])
}

// Close removes every subscriber. Later publishes are dropped.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for topic, subscribers := range eb.handlers {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(eb.handlers, topic)
	}
}
