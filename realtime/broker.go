package realtime

import (
	"context"
	"sync"

	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
)

// Delta describes one committed message together with the conversation row it
// produced.
type Delta struct {
	Conversation models.Conversation `json:"conversation"`
	Message      models.Message      `json:"message"`
}

// ConversationTopic carries every delta of one conversation.
func ConversationTopic(conversationID string) string {
	return "conversation:" + conversationID
}

// UserTopic carries every delta of every conversation the user takes part in.
func UserTopic(userID string) string {
	return "user:" + userID
}

// Broker fans deltas out to subscribers, possibly across processes.
type Broker interface {
	Publish(ctx context.Context, topic string, delta Delta) error
	Subscribe(ctx context.Context, topic string) (Feed, error)
	Close() error
}

// Feed is one broker subscription. C is closed when the subscription is
// interrupted: the broker went away, or the subscriber fell too far behind.
// Deltas published while a feed is interrupted are not replayed.
type Feed interface {
	C() <-chan Delta
	Close() error
}

// MemoryBroker is an in-process Broker for single-instance deployments and tests.
type MemoryBroker struct {
	mu     sync.Mutex
	buffer int
	topics map[string]map[*memoryFeed]struct{}
	closed bool
}

func NewMemoryBroker(buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryBroker{
		buffer: buffer,
		topics: make(map[string]map[*memoryFeed]struct{}),
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, delta Delta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errs.Wrap(errs.ErrUnavailable, "broker closed")
	}
	for f := range b.topics[topic] {
		select {
		case f.ch <- delta:
		default:
			// slow subscriber: cut it loose so it resyncs from the store
			b.dropLocked(topic, f)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (Feed, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errs.Wrap(errs.ErrUnavailable, "broker closed")
	}
	f := &memoryFeed{broker: b, topic: topic, ch: make(chan Delta, b.buffer)}
	feeds := b.topics[topic]
	if feeds == nil {
		feeds = make(map[*memoryFeed]struct{})
		b.topics[topic] = feeds
	}
	feeds[f] = struct{}{}
	return f, nil
}

// Interrupt drops every open feed, as a broker restart would. New subscriptions
// are accepted afterwards.
func (b *MemoryBroker) Interrupt() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, feeds := range b.topics {
		for f := range feeds {
			b.dropLocked(topic, f)
		}
	}
}

// Close drops every feed and rejects further use.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.Interrupt()
	return nil
}

func (b *MemoryBroker) subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *MemoryBroker) dropLocked(topic string, f *memoryFeed) {
	feeds := b.topics[topic]
	if _, ok := feeds[f]; !ok {
		return
	}
	delete(feeds, f)
	if len(feeds) == 0 {
		delete(b.topics, topic)
	}
	close(f.ch)
}

type memoryFeed struct {
	broker *MemoryBroker
	topic  string
	ch     chan Delta
}

func (f *memoryFeed) C() <-chan Delta {
	return f.ch
}

func (f *memoryFeed) Close() error {
	f.broker.mu.Lock()
	defer f.broker.mu.Unlock()
	f.broker.dropLocked(f.topic, f)
	return nil
}
