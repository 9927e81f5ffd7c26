// Package realtime keeps live views of conversations in step with the store.
//
// Every subscription subscribes to the broker before it loads its snapshot, so a
// commit landing between the two is seen at least once. Message streams order by
// the per-conversation commit sequence: duplicates are dropped and gaps are
// repaired from the store, which gives every subscriber the same order.
package realtime

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/metrics"
	"github.com/techagentng/collabhub/models"
)

const (
	kindMessages      = "messages"
	kindConversations = "conversations"

	EventSnapshot = "snapshot"
	EventAppended = "appended"
)

// Loader reads the state a subscription needs to (re)build its view.
type Loader interface {
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	ListMessagesAfter(ctx context.Context, conversationID string, seq int64) ([]models.Message, error)
}

// MessageEvent is delivered to message subscribers. A snapshot carries the whole
// backlog; an appended event carries exactly one message.
type MessageEvent struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

type (
	MessageHandler      func(MessageEvent)
	ConversationHandler func([]models.Conversation)
	ErrorHandler        func(error)
)

type Options struct {
	// ResubscribeAttempts is how many consecutive failed reconnects end a subscription.
	ResubscribeAttempts int
	BaseBackoff         time.Duration
	MaxBackoff          time.Duration
}

type Engine struct {
	broker Broker
	store  Loader
	opts   Options
}

func NewEngine(broker Broker, store Loader, opts Options) *Engine {
	if opts.ResubscribeAttempts <= 0 {
		opts.ResubscribeAttempts = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 100 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	return &Engine{broker: broker, store: store, opts: opts}
}

// SubscribeMessages delivers the conversation's backlog, then each newly committed
// message in sequence order. onError may be nil.
func (e *Engine) SubscribeMessages(ctx context.Context, conversationID string, handler MessageHandler, onError ErrorHandler) *Subscription {
	s := newSubscription(ctx, kindMessages, onError)
	st := &messageStream{
		conversationID: conversationID,
		store:          e.store,
		deliver: func(ev MessageEvent) {
			if s.ctx.Err() == nil {
				handler(ev)
			}
		},
	}
	go e.run(s, ConversationTopic(conversationID), st)
	return s
}

// SubscribeConversationList delivers the user's conversations, most recent first,
// on start and again after every change to any of them. onError may be nil.
func (e *Engine) SubscribeConversationList(ctx context.Context, userID string, handler ConversationHandler, onError ErrorHandler) *Subscription {
	s := newSubscription(ctx, kindConversations, onError)
	st := &listStream{
		userID: userID,
		store:  e.store,
		deliver: func(list []models.Conversation) {
			if s.ctx.Err() == nil {
				handler(list)
			}
		},
	}
	go e.run(s, UserTopic(userID), st)
	return s
}

// stream is the view-specific half of a subscription.
type stream interface {
	resync(ctx context.Context) error
	apply(ctx context.Context, d Delta) error
}

func (e *Engine) run(s *Subscription, topic string, st stream) {
	metrics.ActiveSubscriptions.WithLabelValues(s.kind).Inc()
	defer func() {
		metrics.ActiveSubscriptions.WithLabelValues(s.kind).Dec()
		close(s.done)
	}()

	failures := 0
	first := true
	for {
		if !first {
			metrics.Resyncs.WithLabelValues(s.kind).Inc()
		}
		established, err := e.session(s.ctx, topic, st)
		if s.ctx.Err() != nil {
			return
		}
		first = false
		if established {
			failures = 0
		}
		failures++
		log.Warn().Err(err).Str("topic", topic).Int("attempt", failures).Msg("subscription interrupted")
		if failures > e.opts.ResubscribeAttempts {
			s.fail(errs.Wrap(errs.ErrUnavailable, "%s: giving up after %d attempts: %v", topic, failures-1, err))
			return
		}
		if !sleep(s.ctx, e.backoff(failures)) {
			return
		}
	}
}

// session runs one broker subscription until it is interrupted. established
// reports whether the snapshot was delivered.
func (e *Engine) session(ctx context.Context, topic string, st stream) (bool, error) {
	feed, err := e.broker.Subscribe(ctx, topic)
	if err != nil {
		return false, err
	}
	defer feed.Close()

	if err := st.resync(ctx); err != nil {
		return false, err
	}

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case d, ok := <-feed.C():
			if !ok {
				return true, errs.Wrap(errs.ErrUnavailable, "feed for %s interrupted", topic)
			}
			if err := st.apply(ctx, d); err != nil {
				return true, err
			}
		}
	}
}

func (e *Engine) backoff(attempt int) time.Duration {
	d := e.opts.BaseBackoff << uint(attempt-1)
	if d <= 0 || d > e.opts.MaxBackoff {
		d = e.opts.MaxBackoff
	}
	// full jitter in [d/2, d)
	half := int64(d / 2)
	return time.Duration(half + rand.Int63n(half+1))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Subscription is a running live view. Handlers run on the subscription's own
// goroutine, one call at a time.
type Subscription struct {
	kind    string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	onError ErrorHandler

	mu  sync.Mutex
	err error
}

func newSubscription(parent context.Context, kind string, onError ErrorHandler) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{
		kind:    kind,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		onError: onError,
	}
}

// Close stops the subscription and waits for its goroutine to exit; no handler
// call starts after Close returns. It must not be called from inside a handler.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns why the subscription stopped on its own, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	log.Error().Err(err).Str("kind", s.kind).Msg("subscription ended")
	if s.onError != nil {
		s.onError(err)
	}
}

type messageStream struct {
	conversationID string
	store          Loader
	deliver        func(MessageEvent)
	lastSeq        int64
}

func (m *messageStream) resync(ctx context.Context) error {
	msgs, err := m.store.ListMessages(ctx, m.conversationID)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	m.lastSeq = 0
	if n := len(msgs); n > 0 {
		m.lastSeq = msgs[n-1].Seq
	}
	m.deliver(MessageEvent{Type: EventSnapshot, ConversationID: m.conversationID, Messages: msgs})
	return nil
}

func (m *messageStream) apply(ctx context.Context, d Delta) error {
	msg := d.Message
	if msg.ConversationID != m.conversationID || msg.Seq <= m.lastSeq {
		return nil
	}
	if msg.Seq == m.lastSeq+1 {
		m.append(msg)
		return nil
	}

	// A delta overtook an earlier commit. Everything up to msg.Seq is committed,
	// so the store has the missing tail.
	metrics.GapRepairs.Inc()
	tail, err := m.store.ListMessagesAfter(ctx, m.conversationID, m.lastSeq)
	if err != nil {
		return err
	}
	for _, t := range tail {
		if t.Seq == m.lastSeq+1 {
			m.append(t)
		}
	}
	return nil
}

func (m *messageStream) append(msg models.Message) {
	m.lastSeq = msg.Seq
	m.deliver(MessageEvent{Type: EventAppended, ConversationID: m.conversationID, Messages: []models.Message{msg}})
}

type listStream struct {
	userID  string
	store   Loader
	deliver func([]models.Conversation)
	convs   map[string]models.Conversation
}

func (l *listStream) resync(ctx context.Context) error {
	list, err := l.store.ListConversations(ctx, l.userID)
	if err != nil {
		return err
	}
	l.convs = make(map[string]models.Conversation, len(list))
	for _, c := range list {
		l.convs[c.ID] = c
	}
	l.emit()
	return nil
}

func (l *listStream) apply(ctx context.Context, d Delta) error {
	c := d.Conversation
	if !c.HasParticipant(l.userID) {
		return nil
	}
	if old, ok := l.convs[c.ID]; ok && !c.NewerThan(old) {
		return nil
	}
	l.convs[c.ID] = c
	l.emit()
	return nil
}

func (l *listStream) emit() {
	list := make([]models.Conversation, 0, len(l.convs))
	for _, c := range l.convs {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return models.ConversationLess(list[i], list[j])
	})
	l.deliver(list)
}
