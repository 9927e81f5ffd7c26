package models

import (
	"time"
)

// Message is immutable once stored. Seq is the commit sequence within the conversation.
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ConversationID string    `gorm:"type:varchar(300);not null;uniqueIndex:idx_conversation_seq,priority:1" json:"conversation_id"`
	Seq            int64     `gorm:"not null;uniqueIndex:idx_conversation_seq,priority:2" json:"seq"`
	SenderID       string    `gorm:"type:varchar(128);not null" json:"sender_id"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// NextMessageTime returns the timestamp for a message committed at now after a
// message stamped last. Timestamps within a conversation strictly increase even
// if the clock stalls or steps backwards.
func NextMessageTime(last, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(last) {
		return last.Add(time.Microsecond)
	}
	return now
}
