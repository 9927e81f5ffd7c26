package models

import (
	"time"
)

// Conversation is a two-party thread. ID is derived from the participant pair, and
// ParticipantA sorts before ParticipantB.
type Conversation struct {
	ID            string    `gorm:"primaryKey;type:varchar(300)" json:"id"`
	ParticipantA  string    `gorm:"type:varchar(128);not null;index" json:"participant_a"`
	ParticipantB  string    `gorm:"type:varchar(128);not null;index" json:"participant_b"`
	LastMessage   string    `gorm:"type:text" json:"last_message"`
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
	LastSeq       int64     `gorm:"not null;default:0" json:"last_seq"`
	CreatedAt     time.Time `json:"created_at"`
}

// Participants returns both participant ids in canonical order.
func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant tells whether userID is part of this conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// ConversationSummary is a conversation as listed for one participant, with the
// other participant's profile so the list renders without further lookups.
// Other is nil if that profile no longer exists.
type ConversationSummary struct {
	Conversation
	Other *Profile `json:"other_participant"`
}

// NewerThan reports whether c reflects a later commit than other of the same conversation.
func (c *Conversation) NewerThan(other Conversation) bool {
	return c.LastSeq > other.LastSeq
}

// ConversationLess orders conversations for list views: most recent message first,
// then by id so that equal timestamps sort the same way everywhere.
func ConversationLess(a, b Conversation) bool {
	if !a.LastMessageAt.Equal(b.LastMessageAt) {
		return a.LastMessageAt.After(b.LastMessageAt)
	}
	return a.ID < b.ID
}

type StartConversationRequest struct {
	OtherID string `json:"other_id" binding:"required"`
}
