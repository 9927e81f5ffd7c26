package db

import (
	"context"

	"github.com/pkg/errors"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository persists conversations and their messages.
type ChatRepository interface {
	// EnsureConversation inserts conv unless a conversation with the same id exists,
	// and returns the stored row either way.
	EnsureConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)
	// AppendMessage upserts conv, then assigns msg its Seq and CreatedAt (msg.CreatedAt
	// carries the caller's clock reading), stores it and moves the conversation's
	// last-message fields forward, all in one transaction. It returns the updated
	// conversation.
	AppendMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	ListMessagesAfter(ctx context.Context, conversationID string, seq int64) ([]models.Message, error)
}

type chatRepo struct {
	DB *gorm.DB
}

func NewChatRepo(db *GormDB) ChatRepository {
	return &chatRepo{db.DB}
}

func (r *chatRepo) EnsureConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	db := r.DB.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(conv).Error; err != nil {
		return nil, errors.Wrap(err, "create conversation")
	}
	stored := &models.Conversation{}
	if err := db.Where("id = ?", conv.ID).First(stored).Error; err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}
	return stored, nil
}

func (r *chatRepo) AppendMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) (*models.Conversation, error) {
	tx := r.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "begin transaction")
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(conv).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "create conversation")
	}

	// The row lock serializes concurrent senders, so seq and timestamps are
	// assigned in commit order.
	locked := &models.Conversation{}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", conv.ID).First(locked).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "lock conversation")
	}

	msg.ConversationID = locked.ID
	msg.Seq = locked.LastSeq + 1
	msg.CreatedAt = models.NextMessageTime(locked.LastMessageAt, msg.CreatedAt)
	if err := tx.Create(msg).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "insert message")
	}

	locked.LastMessage = msg.Body
	locked.LastMessageAt = msg.CreatedAt
	locked.LastSeq = msg.Seq
	err := tx.Model(&models.Conversation{}).Where("id = ?", locked.ID).Updates(map[string]interface{}{
		"last_message":    locked.LastMessage,
		"last_message_at": locked.LastMessageAt,
		"last_seq":        locked.LastSeq,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "update conversation")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.Wrap(err, "commit message")
	}
	return locked, nil
}

func (r *chatRepo) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(errs.ErrNotFound, "conversation %s", id)
		}
		return nil, errors.Wrap(err, "get conversation")
	}
	return conv, nil
}

func (r *chatRepo) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.DB.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("last_message_at DESC, id ASC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	return convs, nil
}

func (r *chatRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return r.ListMessagesAfter(ctx, conversationID, 0)
}

func (r *chatRepo) ListMessagesAfter(ctx context.Context, conversationID string, seq int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.DB.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", conversationID, seq).
		Order("seq ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return msgs, nil
}
