package services

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/db"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/metrics"
	"github.com/techagentng/collabhub/models"
	"github.com/techagentng/collabhub/realtime"
	"github.com/techagentng/collabhub/services/chatid"
)

// ChatService is the conversation store: every write to conversations and
// messages goes through it.
type ChatService interface {
	// EnsureConversation returns the conversation between userID and otherID,
	// creating it if needed. It publishes nothing.
	EnsureConversation(ctx context.Context, userID, otherID string) (*models.Conversation, error)
	// SendMessage commits body to the conversation and publishes the delta.
	SendMessage(ctx context.Context, conversationID, senderID, body string) (*models.Message, error)
	// SendDirectMessage resolves the conversation from the pair, then sends.
	SendDirectMessage(ctx context.Context, senderID, recipientID, body string) (*models.Message, error)
	// GetConversation returns the conversation if userID takes part in it.
	GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	// ListConversationSummaries is ListConversations with the other
	// participant's profile attached to each entry.
	ListConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

type chatService struct {
	Config   *config.Config
	chatRepo db.ChatRepository
	userRepo db.UserRepository
	broker   realtime.Broker
	notifier Notifier
	now      func() time.Time
}

// NewChatService wires the store to the broker. notifier may be nil, in which
// case no push notifications are queued.
func NewChatService(chatRepo db.ChatRepository, userRepo db.UserRepository, broker realtime.Broker, notifier Notifier, conf *config.Config) ChatService {
	return &chatService{
		Config:   conf,
		chatRepo: chatRepo,
		userRepo: userRepo,
		broker:   broker,
		notifier: notifier,
		now:      time.Now,
	}
}

func (c *chatService) EnsureConversation(ctx context.Context, userID, otherID string) (*models.Conversation, error) {
	a, b, err := chatid.Order(userID, otherID)
	if err != nil {
		return nil, err
	}
	if err := c.requireUsers(ctx, a, b); err != nil {
		return nil, err
	}
	conv := &models.Conversation{
		ID:           a + chatid.Separator + b,
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    c.now().UTC(),
	}
	return c.chatRepo.EnsureConversation(ctx, conv)
}

func (c *chatService) SendMessage(ctx context.Context, conversationID, senderID, body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errs.ErrInvalidMessage
	}
	a, b, err := chatid.Participants(conversationID)
	if err != nil {
		return nil, err
	}
	if senderID != a && senderID != b {
		return nil, errs.Wrap(errs.ErrNotAParticipant, "%s in %s", senderID, conversationID)
	}
	if err := c.requireUsers(ctx, a, b); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	conv := &models.Conversation{ID: conversationID, ParticipantA: a, ParticipantB: b, CreatedAt: now}
	msg := &models.Message{
		ID:       ulid.Make().String(),
		SenderID: senderID,
		Body:     body,
		// the repository moves this forward if it would not follow the last message
		CreatedAt: now,
	}
	updated, err := c.chatRepo.AppendMessage(ctx, conv, msg)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	c.publish(ctx, realtime.Delta{Conversation: *updated, Message: *msg})
	c.notify(ctx, updated, msg)
	return msg, nil
}

func (c *chatService) SendDirectMessage(ctx context.Context, senderID, recipientID, body string) (*models.Message, error) {
	conversationID, err := chatid.Resolve(senderID, recipientID)
	if err != nil {
		return nil, err
	}
	return c.SendMessage(ctx, conversationID, senderID, body)
}

// requireUsers fails with ErrNotFound unless every id names a stored user.
func (c *chatService) requireUsers(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := c.userRepo.FindUserByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// publish fans the delta out on the conversation topic and both user topics.
// The message is already committed, so a failed publish is logged and left to
// the subscribers' gap repair and resync.
func (c *chatService) publish(ctx context.Context, d realtime.Delta) {
	topics := []string{
		realtime.ConversationTopic(d.Conversation.ID),
		realtime.UserTopic(d.Conversation.ParticipantA),
		realtime.UserTopic(d.Conversation.ParticipantB),
	}
	for _, topic := range topics {
		if err := c.broker.Publish(ctx, topic, d); err != nil {
			metrics.DeltasPublished.WithLabelValues("error").Inc()
			log.Error().Err(err).
				Str("topic", topic).
				Str("conversation_id", d.Conversation.ID).
				Int64("seq", d.Message.Seq).
				Msg("failed to publish delta")
			continue
		}
		metrics.DeltasPublished.WithLabelValues("ok").Inc()
	}
}

func (c *chatService) notify(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	if c.notifier == nil {
		return
	}
	n := models.MessageNotification{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		RecipientID:    conv.OtherParticipant(msg.SenderID),
		Body:           msg.Body,
	}
	if err := c.notifier.NotifyMessage(ctx, n); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to queue push notification")
	}
}

func (c *chatService) GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	a, b, err := chatid.Participants(conversationID)
	if err != nil {
		return nil, err
	}
	if userID != a && userID != b {
		return nil, errs.Wrap(errs.ErrNotAParticipant, "%s in %s", userID, conversationID)
	}
	return c.chatRepo.GetConversation(ctx, conversationID)
}

func (c *chatService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	if userID == "" {
		return nil, errs.Wrap(errs.ErrInvalidParticipant, "user id is empty")
	}
	return c.chatRepo.ListConversations(ctx, userID)
}

func (c *chatService) ListConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	convs, err := c.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	others := make([]string, 0, len(convs))
	for i := range convs {
		others = append(others, convs[i].OtherParticipant(userID))
	}
	users, err := c.userRepo.FindUsersByIDs(ctx, others)
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]models.Profile, len(users))
	for i := range users {
		profiles[users[i].ID] = users[i].Profile()
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := models.ConversationSummary{Conversation: conv}
		if p, ok := profiles[conv.OtherParticipant(userID)]; ok {
			summary.Other = &p
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (c *chatService) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return c.chatRepo.ListMessages(ctx, conversationID)
}
