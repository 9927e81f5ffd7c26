package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/db/memdb"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
	"github.com/techagentng/collabhub/realtime"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.MessageNotification
}

func (r *recordingNotifier) NotifyMessage(ctx context.Context, n models.MessageNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// tickingClock advances by a millisecond on every reading.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newChatFixture() (ChatService, *memdb.Store, *realtime.MemoryBroker, *recordingNotifier) {
	store := memdb.New()
	broker := realtime.NewMemoryBroker(64)
	notifier := &recordingNotifier{}
	for _, id := range []string{"alice", "bob", "carol"} {
		user := &models.User{ID: id, DisplayName: strings.ToUpper(id[:1]) + id[1:]}
		if err := store.CreateUser(context.Background(), user); err != nil {
			panic(err)
		}
	}
	svc := NewChatService(store, store, broker, notifier, &config.Config{}).(*chatService)
	svc.now = newTickingClock().Now
	return svc, store, broker, notifier
}

func bodies(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func TestHiHeyScenario(t *testing.T) {
	svc, _, _, notifier := newChatFixture()
	ctx := context.Background()

	hi, err := svc.SendDirectMessage(ctx, "alice", "bob", "hi")
	require.NoError(t, err)
	assert.Equal(t, "alice_bob", hi.ConversationID)
	assert.Equal(t, int64(1), hi.Seq)

	for _, user := range []string{"alice", "bob"} {
		convs, err := svc.ListConversations(ctx, user)
		require.NoError(t, err)
		require.Len(t, convs, 1, user)
		assert.Equal(t, "hi", convs[0].LastMessage)
	}

	hey, err := svc.SendMessage(ctx, hi.ConversationID, "bob", "hey")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hey.Seq)
	assert.True(t, hey.CreatedAt.After(hi.CreatedAt))

	for _, user := range []string{"alice", "bob"} {
		convs, err := svc.ListConversations(ctx, user)
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, "hey", convs[0].LastMessage)
		assert.Equal(t, hey.CreatedAt, convs[0].LastMessageAt)
	}

	msgs, err := svc.ListMessages(ctx, hi.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "hey"}, bodies(msgs))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "bob", notifier.sent[0].RecipientID)
	assert.Equal(t, "alice", notifier.sent[1].RecipientID)
}

func TestListConversationsOrdersByLatestMessage(t *testing.T) {
	svc, _, _, _ := newChatFixture()
	ctx := context.Background()

	_, err := svc.SendDirectMessage(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	_, err = svc.SendDirectMessage(ctx, "carol", "alice", "two")
	require.NoError(t, err)

	convs, err := svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "alice_carol", convs[0].ID)
	assert.Equal(t, "alice_bob", convs[1].ID)

	_, err = svc.SendDirectMessage(ctx, "bob", "alice", "three")
	require.NoError(t, err)
	convs, err = svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice_bob", convs[0].ID)
}

func TestSendMessageValidation(t *testing.T) {
	svc, store, _, _ := newChatFixture()
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "alice_bob", "alice", "   ")
	assert.ErrorIs(t, err, errs.ErrInvalidMessage)

	_, err = svc.SendMessage(ctx, "alice_bob", "mallory", "hello")
	assert.ErrorIs(t, err, errs.ErrNotAParticipant)

	_, err = svc.SendMessage(ctx, "bob_alice", "alice", "hello")
	assert.ErrorIs(t, err, errs.ErrInvalidParticipant)

	_, err = svc.SendDirectMessage(ctx, "alice", "alice", "hello")
	assert.ErrorIs(t, err, errs.ErrInvalidParticipant)

	// nothing was written
	convs, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestChatRejectsUnknownUsers(t *testing.T) {
	svc, store, broker, notifier := newChatFixture()
	ctx := context.Background()

	feed, err := broker.Subscribe(ctx, realtime.UserTopic("alice"))
	require.NoError(t, err)
	defer feed.Close()

	_, err = svc.EnsureConversation(ctx, "alice", "no-such-user")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.SendDirectMessage(ctx, "alice", "ghost", "hello?")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.SendMessage(ctx, "alice_ghost", "alice", "hello?")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// an unknown sender fails the same way
	_, err = svc.SendDirectMessage(ctx, "ghost", "bob", "hi bob")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	for _, user := range []string{"alice", "bob"} {
		convs, err := store.ListConversations(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, convs, user)
	}
	msgs, err := store.ListMessages(ctx, "alice_ghost")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, notifier.sent)

	select {
	case d := <-feed.C():
		t.Fatalf("unexpected delta for %s", d.Conversation.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestListConversationSummariesCarryTheOtherProfile(t *testing.T) {
	svc, _, _, _ := newChatFixture()
	ctx := context.Background()

	_, err := svc.SendDirectMessage(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	_, err = svc.SendDirectMessage(ctx, "carol", "alice", "two")
	require.NoError(t, err)

	summaries, err := svc.ListConversationSummaries(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "alice_carol", summaries[0].ID)
	require.NotNil(t, summaries[0].Other)
	assert.Equal(t, "carol", summaries[0].Other.ID)
	assert.Equal(t, "Carol", summaries[0].Other.DisplayName)

	assert.Equal(t, "alice_bob", summaries[1].ID)
	require.NotNil(t, summaries[1].Other)
	assert.Equal(t, "Bob", summaries[1].Other.DisplayName)

	fromBob, err := svc.ListConversationSummaries(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, fromBob, 1)
	require.NotNil(t, fromBob[0].Other)
	assert.Equal(t, "Alice", fromBob[0].Other.DisplayName)

	empty, err := svc.ListConversationSummaries(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEnsureConversationIsIdempotent(t *testing.T) {
	svc, store, _, _ := newChatFixture()
	ctx := context.Background()

	first, err := svc.EnsureConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	second, err := svc.EnsureConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice", first.ParticipantA)
	assert.Equal(t, "bob", first.ParticipantB)

	convs, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestGetConversationRequiresParticipant(t *testing.T) {
	svc, _, _, _ := newChatFixture()
	ctx := context.Background()

	_, err := svc.GetConversation(ctx, "alice_bob", "alice")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.SendDirectMessage(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	conv, err := svc.GetConversation(ctx, "alice_bob", "bob")
	require.NoError(t, err)
	assert.Equal(t, "hi", conv.LastMessage)

	_, err = svc.GetConversation(ctx, "alice_bob", "carol")
	assert.ErrorIs(t, err, errs.ErrNotAParticipant)
}

func TestSendMessagePublishesToEveryTopic(t *testing.T) {
	svc, _, broker, _ := newChatFixture()
	ctx := context.Background()

	topics := []string{
		realtime.ConversationTopic("alice_bob"),
		realtime.UserTopic("alice"),
		realtime.UserTopic("bob"),
	}
	var feeds []realtime.Feed
	for _, topic := range topics {
		f, err := broker.Subscribe(ctx, topic)
		require.NoError(t, err)
		defer f.Close()
		feeds = append(feeds, f)
	}

	msg, err := svc.SendDirectMessage(ctx, "bob", "alice", "hello")
	require.NoError(t, err)

	for i, f := range feeds {
		select {
		case d := <-f.C():
			assert.Equal(t, msg.ID, d.Message.ID, topics[i])
			assert.Equal(t, int64(1), d.Conversation.LastSeq, topics[i])
		case <-time.After(time.Second):
			t.Fatalf("no delta on %s", topics[i])
		}
	}
}

func TestConcurrentSendsGetDistinctSequences(t *testing.T) {
	svc, _, _, _ := newChatFixture()
	ctx := context.Background()
	const n = 40

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		sender := "alice"
		if i%2 == 0 {
			sender = "bob"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SendMessage(ctx, "alice_bob", sender, "race")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs, err := svc.ListMessages(ctx, "alice_bob")
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}
